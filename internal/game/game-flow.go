package game

import (
	"fmt"

	"github.com/scythe504/coral-backend/internal"
	"go.uber.org/zap"
)

// =============================================================================
// GAME FLOW - ROUND MANAGEMENT
// =============================================================================

// startScoutPhase opens a round. Caller holds room.Mu.
func (e *Engine) startScoutPhase(room *internal.Room, out *outbox) {
	st := room.State

	// 1. Everyone back to the start square
	for _, p := range room.Players {
		st.PlayerPositions[p.Id] = e.cat.StartSquare()
	}
	st.Phase = internal.PhaseScout
	st.Proposal = nil
	for _, p := range room.Players {
		p.HasVoted = false
	}

	// 2. A disconnected scout is skipped without consuming a round
	scout, ok := skipDisconnectedScouts(room)
	st.Stalled = !ok
	if !ok {
		e.log.Warn("[startScoutPhase] no connected player can scout, waiting for a reconnect",
			zap.String("room", room.Code))
		out.hostState()
		return
	}

	// 3. No other active player holds a card: the round is forfeited
	eligible := eligibleTeammates(room, scout)
	if len(eligible) == 0 {
		out.addLog(fmt.Sprintf("Scout %s has no eligible teammates. The team is stuck!", scout.Name))
		st.Health--
		out.addLog(fmt.Sprintf("The team loses 1 health. Health is now %d.", st.Health))
		if st.Health <= 0 {
			e.startFinalAccusation(room, out)
			return
		}

		handCap := e.cat.HandCapFor(len(room.Players))
		for _, p := range room.Players {
			st.PlayerPositions[p.Id] = e.cat.SupplySquare()
			st.SupplyDeck = DrawUpTo(p, st.SupplyDeck, handCap)
			out.toPlayer(p, internal.EvtHandUpdate, append([]internal.Card(nil), p.Hand...))
		}
		out.addLog("All players move to Gather Supplies and draw cards.")
		room.AdvanceScout()
		out.hostState()
		e.scheduleAdvance(room, e.cfg.RoundDelay, e.startScoutPhase)
		return
	}

	// 4. Prompt the scout, tell everyone else who it is
	out.hostState()
	out.addLog(fmt.Sprintf("It is %s's turn to be the Scout.", scout.Name))
	e.sendScoutPrompt(room, scout, out)
	out.toPlayersExcept(scout, internal.EvtScoutPhase, internal.ScoutPhaseData{
		ScoutID:   scout.Id,
		ScoutName: scout.Name,
		Players:   room.Snapshots(),
		RoomCode:  room.Code,
	})

	e.log.Debug("[startScoutPhase] scout prompted",
		zap.String("room", room.Code), zap.String("scout", scout.Id))
}

func (e *Engine) sendScoutPrompt(room *internal.Room, scout *internal.Player, out *outbox) {
	out.toPlayer(scout, internal.EvtScoutPhase, internal.ScoutPhaseData{
		ScoutID:   scout.Id,
		ScoutName: scout.Name,
		Players:   room.Snapshots(),
		Locations: e.availableLocations(room),
		RoomCode:  room.Code,
	})
}

// skipDisconnectedScouts advances the scout index to the next connected player.
func skipDisconnectedScouts(room *internal.Room) (*internal.Player, bool) {
	for i := 0; i < len(room.Players); i++ {
		scout := room.Scout()
		if scout != nil && !room.IsDisconnected(scout.Id) {
			return scout, true
		}
		room.AdvanceScout()
	}
	return nil, false
}

// eligibleTeammates are the connected players other than the scout who still hold cards.
func eligibleTeammates(room *internal.Room, scout *internal.Player) []*internal.Player {
	eligible := make([]*internal.Player, 0)
	for _, p := range room.Players {
		if p != scout && len(p.Hand) > 0 && !room.IsDisconnected(p.Id) {
			eligible = append(eligible, p)
		}
	}
	return eligible
}

// availableLocations are the room squares a scout may pick. The public clue
// location is withdrawn once its trap is disarmed.
func (e *Engine) availableLocations(room *internal.Room) []string {
	st := room.State
	locations := make([]string, 0)
	for _, loc := range e.cat.Locations() {
		if loc == st.PublicClue {
			if t, ok := st.Traps[loc]; ok && t.Disarmed {
				continue
			}
		}
		locations = append(locations, loc)
	}
	return locations
}

// checkIntent rejects intents while a delayed transition is pending or the phase does not match.
func checkIntent(room *internal.Room, phases ...internal.GamePhase) error {
	if room.State.Pending {
		return illegal("round is advancing")
	}
	for _, ph := range phases {
		if room.State.Phase == ph {
			return nil
		}
	}
	return illegal("not allowed during %s", room.State.Phase)
}

// validateTeam checks that every id names a distinct connected player.
func validateTeam(room *internal.Room, team []string) error {
	if len(team) == 0 {
		return illegal("team is empty")
	}
	seen := make(map[string]bool, len(team))
	for _, id := range team {
		if seen[id] {
			return illegal("player %s listed twice", id)
		}
		seen[id] = true
		if room.PlayerByID(id) == nil {
			return illegal("unknown player %s", id)
		}
		if room.IsDisconnected(id) {
			return illegal("player %s is disconnected", id)
		}
	}
	return nil
}

// ProposeTeam is the scout choosing a team, a bodyguard and a location.
func (e *Engine) ProposeTeam(connID string, data internal.ProposeTeamData) error {
	return e.withConn(connID, func(room *internal.Room, out *outbox) error {
		if err := checkIntent(room, internal.PhaseScout); err != nil {
			return err
		}
		player, err := playerFor(room, connID)
		if err != nil {
			return err
		}
		scout := room.Scout()
		if player != scout {
			return illegal("only the scout can propose a team")
		}
		if err := validateTeam(room, data.Team); err != nil {
			return err
		}
		prop := &internal.Proposal{
			Team:      append([]string(nil), data.Team...),
			Location:  data.Location,
			Bodyguard: data.BodyguardID,
			Votes:     make(map[string]bool),
			Submitted: make(map[string][]internal.Card),
		}
		if !prop.HasMember(data.BodyguardID) {
			return illegal("bodyguard must be on the team")
		}
		if !contains(e.availableLocations(room), data.Location) {
			return illegal("location %q cannot be scouted", data.Location)
		}

		room.State.Proposal = prop
		room.State.Phase = internal.PhaseVote
		e.openProposalVote(room, scout, out)
		out.addLog(fmt.Sprintf("%s proposed a team for %s.", scout.Name, data.Location))
		e.maybeCloseProposalVote(room, out)
		return nil
	})
}

// openProposalVote records the scout's implicit yes and prompts everyone else.
func (e *Engine) openProposalVote(room *internal.Room, scout *internal.Player, out *outbox) {
	prop := room.State.Proposal
	for _, p := range room.Players {
		p.HasVoted = false
	}
	prop.Votes[scout.Id] = true
	scout.HasVoted = true

	data := proposalData(room, prop)
	out.toHost(internal.EvtShowProposal, data)
	out.toPlayer(scout, internal.EvtShowProposal, data)
	out.toPlayersExcept(scout, internal.EvtVoteOnProposal, data)
	out.hostState()

	if e.cfg.ProposalVoteTimeout > 0 {
		e.schedule(room, timerProposal, e.cfg.ProposalVoteTimeout, e.processVoteResult)
	}
}

// SubmitVote records a yes/no on the open proposal. A second vote is refused.
func (e *Engine) SubmitVote(connID string, data internal.SubmitVoteData) error {
	return e.withConn(connID, func(room *internal.Room, out *outbox) error {
		if err := checkIntent(room, internal.PhaseVote, internal.PhaseFinalTeamSelect); err != nil {
			return err
		}
		prop := room.State.Proposal
		if prop == nil || prop.Resolved {
			return illegal("no proposal is open")
		}
		player, err := playerFor(room, connID)
		if err != nil {
			return err
		}
		if _, voted := prop.Votes[player.Id]; voted {
			return ErrAlreadyVoted
		}

		prop.Votes[player.Id] = data.Vote
		player.HasVoted = true
		out.hostState()
		e.maybeCloseProposalVote(room, out)
		return nil
	})
}

func (e *Engine) maybeCloseProposalVote(room *internal.Room, out *outbox) {
	prop := room.State.Proposal
	for _, p := range room.ActivePlayers() {
		if _, voted := prop.Votes[p.Id]; !voted {
			return
		}
	}
	e.processVoteResult(room, out)
}

// proposalCounts counts explicit yes votes; no is explicit no plus active players who never voted.
func proposalCounts(room *internal.Room) (yes, no int) {
	prop := room.State.Proposal
	tally := NewTally[bool]()
	for _, p := range room.Players {
		if v, ok := prop.Votes[p.Id]; ok {
			_ = tally.Cast(p.Id, v)
		}
	}
	yes, no = tally.Count(true), tally.Count(false)
	for _, p := range room.ActivePlayers() {
		if !tally.Voted(p.Id) {
			no++
		}
	}
	return yes, no
}

// processVoteResult closes the open proposal. Caller holds room.Mu.
func (e *Engine) processVoteResult(room *internal.Room, out *outbox) {
	st := room.State
	prop := st.Proposal
	if prop == nil || prop.Resolved {
		return
	}
	prop.Resolved = true
	cancelTimer(room, timerProposal)

	yes, no := proposalCounts(room)
	passed := ProposalPassed(yes, no)
	verdict := "FAILED"
	if passed {
		verdict = "PASSED"
	}
	out.addLog(fmt.Sprintf("Vote %s (%d Yes, %d No).", verdict, yes, no))
	out.toRoom(internal.EvtVoteResult, internal.VoteResultData{Passed: passed, YesVotes: yes, NoVotes: no, Final: prop.Final})
	for _, p := range room.Players {
		p.HasVoted = false
	}

	e.log.Info("[processVoteResult] proposal resolved",
		zap.String("room", room.Code),
		zap.Bool("final", prop.Final),
		zap.Bool("passed", passed),
		zap.Int("yes", yes),
		zap.Int("no", no))

	if prop.Final {
		e.resolveFinalTeamVote(room, passed, out)
		return
	}
	if passed {
		e.missionApproved(room, out)
		return
	}

	// Rejected team
	st.StormPosition++
	st.ConsecutiveFailedVotes++
	if st.ConsecutiveFailedVotes >= internal.MaxFailedVotes {
		st.Health--
		st.ConsecutiveFailedVotes = 0
		out.addLog("3 consecutive failed votes! The team takes 1 damage. Storm Tracker reset.")
		if st.Health <= 0 {
			e.startFinalAccusation(room, out)
			return
		}
	}
	room.AdvanceScout()
	out.hostState()
	e.scheduleAdvance(room, e.cfg.RoundDelay, e.startScoutPhase)
}

func (e *Engine) missionApproved(room *internal.Room, out *outbox) {
	st := room.State
	prop := st.Proposal

	// The Ringleader guarding the plot location while the team is weak ends the game
	bodyguard := room.PlayerByID(prop.Bodyguard)
	if prop.Location == st.Plot.Location && bodyguard != nil && bodyguard.IsRingleader() &&
		st.Health <= internal.PlotExecutionHealth {
		e.endGame(room, internal.TeamConspiracy, "The Ringleader executed the secret plot.", out)
		return
	}

	st.StormPosition = 0
	st.ConsecutiveFailedVotes = 0

	square, _ := e.cat.SquareOf(prop.Location)
	for _, p := range room.Players {
		if prop.HasMember(p.Id) {
			st.PlayerPositions[p.Id] = square
		} else {
			st.PlayerPositions[p.Id] = e.cat.SupplySquare()
		}
	}
	out.hostState()

	trap := st.Traps[prop.Location]
	if trap.Disarmed {
		out.addLog(fmt.Sprintf("Team visits the safe location at %s.", prop.Location))
		e.scheduleAdvance(room, e.cfg.SafeVisitDelay, e.startCardDistribution)
		return
	}

	st.Phase = internal.PhaseDisarm
	for _, id := range prop.Team {
		e.sendDisarmPrompt(room, room.PlayerByID(id), out)
	}
	out.hostState()
}

func (e *Engine) sendDisarmPrompt(room *internal.Room, p *internal.Player, out *outbox) {
	prop := room.State.Proposal
	out.toPlayer(p, internal.EvtDisarmPhase, internal.DisarmPhaseData{
		Location: prop.Location,
		Trap:     *room.State.Traps[prop.Location],
		Hand:     append([]internal.Card(nil), p.Hand...),
	})
}

// SubmitCards is one team member's contribution to the trap. Each member submits once.
func (e *Engine) SubmitCards(connID string, data internal.SubmitCardsData) error {
	return e.withConn(connID, func(room *internal.Room, out *outbox) error {
		if err := checkIntent(room, internal.PhaseDisarm); err != nil {
			return err
		}
		player, err := playerFor(room, connID)
		if err != nil {
			return err
		}
		prop := room.State.Proposal
		if !prop.HasMember(player.Id) {
			return illegal("only team members contribute cards")
		}
		if _, done := prop.Submitted[player.Id]; done {
			return illegal("cards already submitted")
		}
		if !player.TakeCards(data.Cards) {
			return illegal("submitted cards are not in hand")
		}

		cards := append([]internal.Card{}, data.Cards...)
		prop.Submitted[player.Id] = cards
		room.State.Discard = append(room.State.Discard, cards...)
		out.toPlayer(player, internal.EvtHandUpdate, append([]internal.Card(nil), player.Hand...))
		out.hostState()

		for _, id := range prop.Team {
			if room.IsDisconnected(id) {
				continue
			}
			if _, done := prop.Submitted[id]; !done {
				return nil
			}
		}
		e.resolveTrap(room, out)
		return nil
	})
}

// resolveTrap scores the pooled contributions. Caller holds room.Mu.
func (e *Engine) resolveTrap(room *internal.Room, out *outbox) {
	st := room.State
	prop := st.Proposal
	trap := st.Traps[prop.Location]

	played := make([]internal.Card, 0)
	for _, id := range prop.Team {
		played = append(played, prop.Submitted[id]...)
	}
	outcome := ResolveTrap(*trap, played)

	if outcome.Success {
		trap.Disarmed = true
		out.addLog(fmt.Sprintf("Trap at %s DISARMED! (Value: %d vs %d)", prop.Location, outcome.Total, trap.Value))
	} else {
		st.Health--
		out.addLog(fmt.Sprintf("Trap at %s FAILED! (Value: %d vs %d) Team health is now %d.",
			prop.Location, outcome.Total, trap.Value, st.Health))
	}

	// Contributors stay anonymous
	out.toRoom(internal.EvtTrapResult, internal.TrapResultData{
		Location:    prop.Location,
		Success:     outcome.Success,
		TotalValue:  outcome.Total,
		TrapValue:   trap.Value,
		PlayedCards: Shuffle(e.rng, played),
		Health:      st.Health,
	})

	e.log.Info("[resolveTrap] trap resolved",
		zap.String("room", room.Code),
		zap.String("location", prop.Location),
		zap.Bool("success", outcome.Success),
		zap.Int("total", outcome.Total),
		zap.Int("health", st.Health))

	if !outcome.Success {
		if st.Health <= 0 {
			out.hostState()
			e.startFinalAccusation(room, out)
			return
		}
		trap.Disarmed = true
		out.addLog(fmt.Sprintf("Despite the failure, the trap at %s was cleared.", prop.Location))
	}

	if AllDisarmed(st.Traps) {
		e.endGame(room, internal.TeamFriends, "All traps were disarmed.", out)
		return
	}

	st.Phase = internal.PhaseClue
	e.sendCluePrompt(room, room.PlayerByID(prop.Bodyguard), out)
	out.hostState()
}

func (e *Engine) sendCluePrompt(room *internal.Room, bodyguard *internal.Player, out *outbox) {
	out.toPlayer(bodyguard, internal.EvtCluePhase, internal.CluePhaseData{
		Location:   room.State.Proposal.Location,
		Locations:  e.cat.Locations(),
		Weapons:    append([]string(nil), e.cat.Weapons...),
		PublicClue: room.State.PublicClue,
	})
}

func bodyguardOf(room *internal.Room, connID string) (*internal.Player, error) {
	player, err := playerFor(room, connID)
	if err != nil {
		return nil, err
	}
	if room.State.Proposal == nil || player.Id != room.State.Proposal.Bodyguard {
		return nil, illegal("only the bodyguard can do that")
	}
	return player, nil
}

// CollectClues privately reveals the clue pair stored at the mission location.
func (e *Engine) CollectClues(connID string) error {
	return e.withConn(connID, func(room *internal.Room, out *outbox) error {
		if err := checkIntent(room, internal.PhaseClue); err != nil {
			return err
		}
		bodyguard, err := bodyguardOf(room, connID)
		if err != nil {
			return err
		}
		clues := room.State.Clues[room.State.Proposal.Location]
		out.toPlayer(bodyguard, internal.EvtCluesRevealed, clues)
		return nil
	})
}

// DeclareClues records the bodyguard's public claim, true or not, and ends the mission.
func (e *Engine) DeclareClues(connID string, data internal.DeclareCluesData) error {
	return e.withConn(connID, func(room *internal.Room, out *outbox) error {
		if err := checkIntent(room, internal.PhaseClue); err != nil {
			return err
		}
		bodyguard, err := bodyguardOf(room, connID)
		if err != nil {
			return err
		}
		if data.DeclaredLocation != internal.NoClueFound && !e.cat.IsLocation(data.DeclaredLocation) {
			return illegal("unknown location %q", data.DeclaredLocation)
		}
		if data.DeclaredWeapon != internal.NoClueFound && !e.cat.IsWeapon(data.DeclaredWeapon) {
			return illegal("unknown weapon %q", data.DeclaredWeapon)
		}

		st := room.State
		st.Declarations = append(st.Declarations, internal.Declaration{
			BodyguardName:    bodyguard.Name,
			DeclaredLocation: data.DeclaredLocation,
			DeclaredWeapon:   data.DeclaredWeapon,
		})
		out.toRoom(internal.EvtUpdateDeclared, append([]internal.Declaration(nil), st.Declarations...))
		out.addLog(fmt.Sprintf("%s declared they found: %s & %s", bodyguard.Name, data.DeclaredLocation, data.DeclaredWeapon))

		e.startCardDistribution(room, out)
		return nil
	})
}

// startCardDistribution refills the hands of everyone who stayed behind, then queues the next round.
func (e *Engine) startCardDistribution(room *internal.Room, out *outbox) {
	st := room.State
	handCap := e.cat.HandCapFor(len(room.Players))
	out.addLog("Non-mission players draw cards.")

	for _, p := range room.Players {
		if st.Proposal != nil && st.Proposal.HasMember(p.Id) {
			continue
		}
		st.SupplyDeck = DrawUpTo(p, st.SupplyDeck, handCap)
		out.toPlayer(p, internal.EvtHandUpdate, append([]internal.Card(nil), p.Hand...))
	}

	room.AdvanceScout()
	out.hostState()
	e.scheduleAdvance(room, e.cfg.RoundDelay, e.startScoutPhase)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
