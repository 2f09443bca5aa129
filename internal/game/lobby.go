package game

import (
	"fmt"
	"strings"

	"github.com/scythe504/coral-backend/internal"
	"go.uber.org/zap"
)

// =============================================================================
// GAME FLOW - LOBBY & INITIALIZATION
// =============================================================================

const maxNameLength = 24

// CreateRoom opens a new room hosted by connID.
func (e *Engine) CreateRoom(connID string) (string, error) {
	if e.registry.IsBound(connID) {
		return "", illegal("connection already belongs to a room")
	}
	room := e.registry.Create(connID, newID())

	room.Mu.Lock()
	out := newOutbox(room)
	out.toHost(internal.EvtRoomCreated, internal.RoomCreatedData{
		RoomCode:  room.Code,
		HostToken: room.HostToken,
	})
	out.lobbyUpdate()
	code := room.Code
	room.Mu.Unlock()
	e.flush(out)

	e.log.Info("[CreateRoom] room created", zap.String("room", code))
	return code, nil
}

// RejoinHost re-attaches a host display using the token issued at creation.
func (e *Engine) RejoinHost(connID string, data internal.RejoinHostData) error {
	room, err := e.registry.Lookup(data.RoomCode)
	if err != nil {
		return err
	}
	return e.withRoom(room, func(room *internal.Room, out *outbox) error {
		if data.HostToken == "" || data.HostToken != room.HostToken {
			return illegal("host token does not match room %s", room.Code)
		}
		if room.HostConn != "" && room.HostConn != connID {
			e.registry.Unbind(room.HostConn)
		}
		room.HostConn = connID
		e.registry.Bind(connID, room.Code)

		out.toHost(internal.EvtRoomCreated, internal.RoomCreatedData{RoomCode: room.Code, HostToken: room.HostToken})
		out.lobbyUpdate()
		out.hostState()
		out.toHost(internal.EvtUpdateLog, append([]string(nil), room.State.Log...))
		out.toHost(internal.EvtUpdateDeclared, append([]internal.Declaration(nil), room.State.Declarations...))

		e.log.Info("[RejoinHost] host reattached", zap.String("room", room.Code))
		return nil
	})
}

// JoinRoom adds a player, or restores a disconnected one when PriorPlayerID matches.
func (e *Engine) JoinRoom(connID string, data internal.JoinRoomData) error {
	room, err := e.registry.Lookup(data.RoomCode)
	if err != nil {
		return err
	}
	if e.registry.IsBound(connID) {
		return illegal("connection already belongs to a room")
	}

	return e.withRoom(room, func(room *internal.Room, out *outbox) error {
		// 1. Reconnect path
		if data.PriorPlayerID != "" && room.IsDisconnected(data.PriorPlayerID) {
			if p := room.PlayerByID(data.PriorPlayerID); p != nil {
				e.reconnect(room, p, connID, out)
				return nil
			}
		}

		// 2. Fresh join
		name := strings.TrimSpace(data.DisplayName)
		if name == "" {
			return invalidJoin("display name is required")
		}
		if len(name) > maxNameLength {
			return invalidJoin(fmt.Sprintf("display name is longer than %d characters", maxNameLength))
		}

		player := &internal.Player{
			Id:     newID(),
			ConnId: connID,
			Name:   name,
			Hand:   make([]internal.Card, 0),
		}
		if err := e.registry.AttachPlayer(room, player); err != nil {
			return err
		}

		out.toPlayer(player, internal.EvtJoinSuccess, internal.JoinSuccessData{
			RoomCode:   room.Code,
			PlayerID:   player.Id,
			PlayerName: player.Name,
		})
		out.lobbyUpdate()

		e.log.Info("[JoinRoom] player joined",
			zap.String("room", room.Code),
			zap.String("player", player.Id),
			zap.Int("players", len(room.Players)))
		return nil
	})
}

// SelectCharacter claims an available character, releasing the previous choice.
func (e *Engine) SelectCharacter(connID string, data internal.SelectCharacterData) error {
	return e.withConn(connID, func(room *internal.Room, out *outbox) error {
		player, err := playerFor(room, connID)
		if err != nil {
			return err
		}
		if room.State.Phase != internal.PhaseLobby {
			return illegal("characters can only be chosen in the lobby")
		}

		var chosen *internal.Character
		for _, c := range room.AvailableCharacters {
			if c.Name == data.CharacterName {
				chosen = &c
				break
			}
		}
		if chosen == nil {
			return illegal("character %q is not available", data.CharacterName)
		}

		player.Character = chosen
		room.AvailableCharacters = e.registry.availableFor(room)
		out.lobbyUpdate()
		return nil
	})
}

// StartGame deals roles, plot, traps and hands, then opens the first scout phase. Host only.
func (e *Engine) StartGame(connID string) error {
	return e.withConn(connID, func(room *internal.Room, out *outbox) error {
		if room.HostConn != connID {
			return illegal("only the host can start the game")
		}
		if room.State.Phase != internal.PhaseLobby {
			return illegal("game is not in the lobby")
		}
		n := len(room.Players)
		if n < internal.MinPlayersToStart || n > internal.MaxPlayersPerRoom {
			return illegal("need %d-%d players to start, have %d",
				internal.MinPlayersToStart, internal.MaxPlayersPerRoom, n)
		}
		if !room.AllHaveCharacters() {
			return illegal("all players must select a character before starting")
		}

		st := internal.NewGameState()
		st.StartedAt = e.clock.Now()
		room.State = st

		// 1. Roles
		e.gen.AssignRoles(room.Players)

		// 2. Supply deck and opening hands
		deck := e.gen.NewSupplyDeck()
		handCap := e.cat.HandCapFor(n)
		for _, p := range room.Players {
			p.Hand = make([]internal.Card, 0, handCap)
			p.HasVoted = false
			p.FinalClues = nil
			deck = DrawUpTo(p, deck, handCap)
		}
		st.SupplyDeck = deck

		// 3. Traps, plot and clues, one per room square in board order
		tiles := e.gen.NewTrapTiles(n)
		plot := e.gen.SetPlot()
		st.Plot = plot.Plot
		st.PublicClue = plot.PublicClue
		st.Clues = plot.Clues
		for i, loc := range e.cat.Locations() {
			trap := tiles[i]
			st.Traps[loc] = &trap
		}

		// 4. Everyone starts on the start square
		for _, p := range room.Players {
			st.PlayerPositions[p.Id] = e.cat.StartSquare()
		}
		st.ScoutIndex = 0

		out.addLog(fmt.Sprintf("Game started with %d players.", n))
		out.addLog(fmt.Sprintf("Publicly Revealed Safe Location: %s", st.PublicClue))
		for _, p := range room.Players {
			out.toPlayer(p, internal.EvtYourRole, rolePayload(room, p))
		}

		e.log.Info("[StartGame] game started",
			zap.String("room", room.Code),
			zap.Int("players", n),
			zap.Int("hand_cap", handCap))

		e.startScoutPhase(room, out)
		return nil
	})
}

// PlayAgain returns a finished room to the lobby. Host only.
// Players still disconnected at this point are dropped.
func (e *Engine) PlayAgain(connID string) error {
	return e.withConn(connID, func(room *internal.Room, out *outbox) error {
		if room.HostConn != connID {
			return illegal("only the host can reset the room")
		}
		if room.State.Phase != internal.PhaseGameOver {
			return illegal("game is not over")
		}

		stopTimers(room)
		room.Epoch++

		kept := make([]*internal.Player, 0, len(room.Players))
		for _, p := range room.Players {
			if room.IsDisconnected(p.Id) {
				e.log.Info("[PlayAgain] dropping disconnected player",
					zap.String("room", room.Code), zap.String("player", p.Id))
				continue
			}
			p.ResetForLobby()
			kept = append(kept, p)
		}
		room.Players = kept
		room.Disconnected = make(map[string]string)
		room.State = internal.NewGameState()
		room.AvailableCharacters = e.registry.availableFor(room)

		out.toRoom(internal.EvtReturnToLobby, struct{}{})
		out.lobbyUpdate()
		out.hostState()

		e.log.Info("[PlayAgain] room reset to lobby",
			zap.String("room", room.Code), zap.Int("players", len(kept)))
		return nil
	})
}

// rolePayload is a player's private view: role, character, hand, and the plot for the Conspiracy.
func rolePayload(room *internal.Room, p *internal.Player) internal.YourRoleData {
	data := internal.YourRoleData{
		Role:      p.Role,
		Character: p.Character,
		Hand:      append([]internal.Card(nil), p.Hand...),
	}
	if p.Role.IsConspiracy() {
		plot := room.State.Plot
		data.Plot = &plot
		for _, other := range room.Players {
			if !other.Role.IsConspiracy() {
				continue
			}
			info := internal.TeammateInfo{Name: other.Name, Role: other.Role}
			if other.Character != nil {
				info.CharacterName = other.Character.Name
			}
			data.ConspiracyTeammates = append(data.ConspiracyTeammates, info)
		}
	}
	return data
}
