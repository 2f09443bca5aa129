package game

import (
	"fmt"

	"github.com/scythe504/coral-backend/internal"
	"go.uber.org/zap"
)

// =============================================================================
// DISCONNECT & RESYNC
// =============================================================================

// HandleDisconnect is called by the transport once a connection is gone.
// In the lobby or after the game the player leaves; mid-game the room pauses
// and every piece of game state is kept for the player's return.
func (e *Engine) HandleDisconnect(connID string) {
	room, err := e.registry.RoomOf(connID)
	if err != nil {
		return
	}
	e.registry.Unbind(connID)

	_ = e.withRoom(room, func(room *internal.Room, out *outbox) error {
		if room.HostConn == connID {
			room.HostConn = ""
			e.log.Info("[HandleDisconnect] host disconnected", zap.String("room", room.Code))
			return nil
		}

		player := room.PlayerByConn(connID)
		if player == nil {
			return nil
		}

		if room.State.Phase.IsOpen() {
			if _, err := e.registry.RemovePlayer(room, player.Id); err != nil {
				return err
			}
			out.lobbyUpdate()
			e.log.Info("[HandleDisconnect] player left",
				zap.String("room", room.Code), zap.String("player", player.Id))
			return nil
		}

		room.Disconnected[player.Id] = player.Name
		player.ConnId = ""
		room.State.Paused = true

		msg := fmt.Sprintf("%s has disconnected. The game is paused.", player.Name)
		out.toRoom(internal.EvtGamePaused, internal.PausedData{
			Message:      msg,
			Disconnected: disconnectedNames(room),
		})
		out.announce(msg)

		e.log.Info("[HandleDisconnect] player disconnected mid-game",
			zap.String("room", room.Code),
			zap.String("player", player.Id),
			zap.String("phase", string(room.State.Phase)))
		return nil
	})
}

func disconnectedNames(room *internal.Room) []string {
	names := make([]string, 0, len(room.Disconnected))
	for _, p := range room.Players {
		if name, ok := room.Disconnected[p.Id]; ok {
			names = append(names, name)
		}
	}
	return names
}

// reconnect rebinds a returning player and replays their private state. Caller holds room.Mu.
func (e *Engine) reconnect(room *internal.Room, p *internal.Player, connID string, out *outbox) {
	p.ConnId = connID
	delete(room.Disconnected, p.Id)
	e.registry.Bind(connID, room.Code)

	out.toPlayer(p, internal.EvtJoinSuccess, internal.JoinSuccessData{
		RoomCode:   room.Code,
		PlayerID:   p.Id,
		PlayerName: p.Name,
		Rejoined:   true,
	})
	out.lobbyUpdate()
	if p.Role != "" {
		out.toPlayer(p, internal.EvtYourRole, rolePayload(room, p))
	}
	e.resync(room, p, out)

	if len(room.Disconnected) == 0 && room.State.Paused {
		room.State.Paused = false
		out.toRoom(internal.EvtGameResumed, struct{}{})
		out.announce(fmt.Sprintf("Player %s has reconnected. Game resumed!", p.Name))
	}
	out.hostState()

	e.log.Info("[reconnect] player reconnected",
		zap.String("room", room.Code),
		zap.String("player", p.Id),
		zap.String("phase", string(room.State.Phase)),
		zap.Int("still_disconnected", len(room.Disconnected)))
}

// resync re-issues the single prompt the player is owed in the current phase.
func (e *Engine) resync(room *internal.Room, p *internal.Player, out *outbox) {
	st := room.State
	if st.Pending {
		return
	}
	scout := room.Scout()
	prop := st.Proposal
	openVote := prop != nil && !prop.Resolved

	switch st.Phase {
	case internal.PhaseScout:
		// Nobody could scout while everyone was away
		if st.Stalled {
			e.startScoutPhase(room, out)
			return
		}
		if scout == p {
			e.sendScoutPrompt(room, p, out)
		}

	case internal.PhaseVote:
		if _, voted := prop.Votes[p.Id]; openVote && !voted {
			out.toPlayer(p, internal.EvtVoteOnProposal, proposalData(room, prop))
		}

	case internal.PhaseDisarm:
		if _, done := prop.Submitted[p.Id]; prop.HasMember(p.Id) && !done {
			e.sendDisarmPrompt(room, p, out)
		}

	case internal.PhaseClue:
		if prop.Bodyguard == p.Id {
			e.sendCluePrompt(room, p, out)
		}

	case internal.PhaseFinalTeamSelect:
		if openVote {
			if _, voted := prop.Votes[p.Id]; !voted {
				out.toPlayer(p, internal.EvtVoteOnProposal, proposalData(room, prop))
			}
			return
		}
		if st.Stalled {
			e.promptFinalScout(room, out)
			return
		}
		if scout == p {
			e.sendFinalScoutPrompt(room, p, out)
		}

	case internal.PhaseFinalDeclare:
		if declared, recipient := st.FinalDeclared[p.Id]; recipient && !declared {
			e.sendFinalClues(p, out)
		}

	case internal.PhaseFinalVote:
		out.toPlayer(p, internal.EvtStartAccusationVote, e.accusationPrompt(room))

	case internal.PhaseFinalTiebreak:
		if scout == p {
			e.sendTiePrompt(room, p, out)
		}

	case internal.PhaseGameOver:
		out.toPlayer(p, internal.EvtGameOver, gameOverData(room))
	}
}
