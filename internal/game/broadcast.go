package game

import (
	"github.com/scythe504/coral-backend/internal"
)

// =============================================================================
// BROADCASTING
// =============================================================================

type envelope struct {
	conn string
	msg  internal.Message[any]
}

// outbox collects messages while a room is locked. Recipients are resolved at
// queue time so a later reconnect cannot redirect a message meant for someone else.
type outbox struct {
	room   *internal.Room
	msgs   []envelope
	result *internal.GameResult
}

func newOutbox(room *internal.Room) *outbox {
	return &outbox{room: room}
}

func (o *outbox) send(connID, msgType string, data any) {
	if connID == "" {
		return
	}
	o.msgs = append(o.msgs, envelope{
		conn: connID,
		msg:  internal.Message[any]{Type: msgType, Data: data},
	})
}

func (o *outbox) toPlayer(p *internal.Player, msgType string, data any) {
	if p == nil || o.room.IsDisconnected(p.Id) {
		return
	}
	o.send(p.ConnId, msgType, data)
}

// toPlayers sends to every connected player.
func (o *outbox) toPlayers(msgType string, data any) {
	for _, p := range o.room.Players {
		o.toPlayer(p, msgType, data)
	}
}

func (o *outbox) toPlayersExcept(except *internal.Player, msgType string, data any) {
	for _, p := range o.room.Players {
		if p != except {
			o.toPlayer(p, msgType, data)
		}
	}
}

func (o *outbox) toHost(msgType string, data any) {
	o.send(o.room.HostConn, msgType, data)
}

// toRoom sends to the host and every connected player.
func (o *outbox) toRoom(msgType string, data any) {
	o.toHost(msgType, data)
	o.toPlayers(msgType, data)
}

// addLog appends to the public game log and mirrors it to the host.
func (o *outbox) addLog(line string) {
	o.room.State.Log = append(o.room.State.Log, line)
	o.toHost(internal.EvtUpdateLog, append([]string(nil), o.room.State.Log...))
}

func (o *outbox) announce(text string) {
	o.toHost(internal.EvtAnnouncement, internal.AnnouncementData{Text: text})
}

func (o *outbox) lobbyUpdate() {
	o.toRoom(internal.EvtLobbyUpdate, internal.LobbyUpdateData{
		Players:             o.room.Snapshots(),
		AvailableCharacters: append([]internal.Character(nil), o.room.AvailableCharacters...),
		Phase:               o.room.State.Phase,
	})
}

// hostState sends the host a snapshot of the public state.
func (o *outbox) hostState() {
	o.toHost(internal.EvtUpdateGameState, PublicView(o.room))
}

// PublicView copies the state that anyone may see. Plot, clues, hands and roles stay out.
func PublicView(room *internal.Room) internal.PublicState {
	st := room.State
	view := internal.PublicState{
		Phase:                  st.Phase,
		Health:                 st.Health,
		StormPosition:          st.StormPosition,
		ConsecutiveFailedVotes: st.ConsecutiveFailedVotes,
		FinalVoteFails:         st.FinalVoteFails,
		PlayerPositions:        make(map[string]int, len(st.PlayerPositions)),
		Traps:                  make(map[string]internal.Trap, len(st.Traps)),
		PublicClue:             st.PublicClue,
		Declarations:           append([]internal.Declaration(nil), st.Declarations...),
		DeckSize:               len(st.SupplyDeck),
		Players:                room.Snapshots(),
		Paused:                 st.Paused,
	}
	for id, sq := range st.PlayerPositions {
		view.PlayerPositions[id] = sq
	}
	for loc, t := range st.Traps {
		view.Traps[loc] = *t
	}
	if scout := room.Scout(); scout != nil && st.Phase != internal.PhaseLobby {
		view.ScoutID = scout.Id
	}
	if st.Proposal != nil && !st.Proposal.Resolved {
		pd := proposalData(room, st.Proposal)
		view.Proposal = &pd
		view.VotesCast = len(st.Proposal.Votes)
	}
	return view
}

func proposalData(room *internal.Room, prop *internal.Proposal) internal.ProposalData {
	data := internal.ProposalData{
		TeamNames:     room.PlayerNames(prop.Team),
		LocationName:  prop.Location,
		BodyguardName: "N/A",
		Final:         prop.Final,
	}
	if scout := room.Scout(); scout != nil {
		data.ScoutID = scout.Id
		data.ScoutName = scout.Name
	}
	if prop.Final {
		data.LocationName = "the final clue deal"
	} else if bg := room.PlayerByID(prop.Bodyguard); bg != nil {
		data.BodyguardName = bg.Name
	}
	return data
}
