package game

import (
	"fmt"

	"github.com/scythe504/coral-backend/internal"
	"go.uber.org/zap"
)

// =============================================================================
// GAME FLOW - FINAL ACCUSATION
// =============================================================================

const (
	categorySuspect  = "suspect"
	categoryWeapon   = "weapon"
	categoryLocation = "location"
)

// startFinalAccusation is entered when health runs out. Caller holds room.Mu.
func (e *Engine) startFinalAccusation(room *internal.Room, out *outbox) {
	st := room.State
	cancelTimer(room, timerProposal)
	cancelTimer(room, timerAdvance)
	st.Pending = false
	st.Phase = internal.PhaseFinalTeamSelect
	st.Proposal = nil
	for _, p := range room.Players {
		p.HasVoted = false
	}

	out.addLog("Mr. Coral is dead! Time for a final accusation.")
	out.announce("MR. CORAL IS DEAD! Time for a final accusation.")

	room.AdvanceScout()
	e.promptFinalScout(room, out)
}

// promptFinalScout finds a connected scout and asks for the final team.
func (e *Engine) promptFinalScout(room *internal.Room, out *outbox) {
	scout, ok := skipDisconnectedScouts(room)
	room.State.Stalled = !ok
	if !ok {
		e.log.Warn("[promptFinalScout] no connected player can lead the accusation",
			zap.String("room", room.Code))
		out.hostState()
		return
	}
	out.addLog(fmt.Sprintf("It is %s's turn to lead the final accusation.", scout.Name))
	e.sendFinalScoutPrompt(room, scout, out)
	out.hostState()
}

func (e *Engine) sendFinalScoutPrompt(room *internal.Room, scout *internal.Player, out *outbox) {
	active := make([]internal.PlayerSnapshot, 0)
	for _, snap := range room.Snapshots() {
		if snap.Connected {
			active = append(active, snap)
		}
	}
	out.toPlayer(scout, internal.EvtFinalScoutPhase, internal.FinalScoutPhaseData{Players: active})
}

// ProposeFinalTeam is the scout naming who receives the remaining clues.
func (e *Engine) ProposeFinalTeam(connID string, data internal.ProposeFinalTeamData) error {
	return e.withConn(connID, func(room *internal.Room, out *outbox) error {
		if err := checkIntent(room, internal.PhaseFinalTeamSelect); err != nil {
			return err
		}
		if prop := room.State.Proposal; prop != nil && !prop.Resolved {
			return illegal("a final team is already under vote")
		}
		player, err := playerFor(room, connID)
		if err != nil {
			return err
		}
		scout := room.Scout()
		if player != scout {
			return illegal("only the scout can propose the final team")
		}
		if err := validateTeam(room, data.Team); err != nil {
			return err
		}

		room.State.Proposal = &internal.Proposal{
			Team:      append([]string(nil), data.Team...),
			Final:     true,
			Votes:     make(map[string]bool),
			Submitted: make(map[string][]internal.Card),
		}
		e.openProposalVote(room, scout, out)
		out.addLog(fmt.Sprintf("%s proposed the final team to receive clues.", scout.Name))
		e.maybeCloseProposalVote(room, out)
		return nil
	})
}

func (e *Engine) resolveFinalTeamVote(room *internal.Room, passed bool, out *outbox) {
	st := room.State
	if passed {
		out.addLog("The final team has been chosen.")
		e.startFinalClueDeal(room, out)
		return
	}

	st.FinalVoteFails++
	out.addLog(fmt.Sprintf("Final team vote failed. (%d/%d)", st.FinalVoteFails, internal.MaxFinalVoteFails))
	if st.FinalVoteFails >= internal.MaxFinalVoteFails {
		e.endGame(room, internal.TeamConspiracy, "The final team vote failed three times.", out)
		return
	}
	room.AdvanceScout()
	e.promptFinalScout(room, out)
}

// startFinalClueDeal pools the real clues of every armed trap and deals them
// round-robin to the connected final team members.
func (e *Engine) startFinalClueDeal(room *internal.Room, out *outbox) {
	st := room.State
	st.Phase = internal.PhaseFinalDeclare

	remaining := make([]internal.FinalClue, 0)
	for _, loc := range e.cat.Locations() {
		trap, ok := st.Traps[loc]
		if !ok || trap.Disarmed {
			continue
		}
		clues := st.Clues[loc]
		if clues.Location != internal.NoClueFound {
			remaining = append(remaining, internal.FinalClue{Type: internal.ClueLocation, Value: clues.Location})
		}
		if clues.Weapon != internal.NoClueFound {
			remaining = append(remaining, internal.FinalClue{Type: internal.ClueWeapon, Value: clues.Weapon})
		}
	}
	remaining = Shuffle(e.rng, remaining)

	team := make([]*internal.Player, 0)
	for _, id := range st.Proposal.Team {
		if p := room.PlayerByID(id); p != nil && !room.IsDisconnected(id) {
			team = append(team, p)
		}
	}

	st.FinalDeclared = make(map[string]bool, len(team))
	if len(team) == 0 {
		e.startAccusationVote(room, out)
		return
	}
	for _, p := range team {
		p.FinalClues = make([]internal.FinalClue, 0)
		st.FinalDeclared[p.Id] = false
	}
	for i, clue := range remaining {
		p := team[i%len(team)]
		p.FinalClues = append(p.FinalClues, clue)
	}
	for _, p := range team {
		e.sendFinalClues(p, out)
	}

	out.addLog("The final clues have been dealt.")
	out.announce("Waiting for the final team to declare their clues...")
	out.hostState()
}

func (e *Engine) sendFinalClues(p *internal.Player, out *outbox) {
	out.toPlayer(p, internal.EvtReceiveFinalClues, internal.FinalCluesData{
		Clues:     append([]internal.FinalClue(nil), p.FinalClues...),
		Weapons:   append([]string(nil), e.cat.Weapons...),
		Locations: e.cat.Locations(),
	})
}

// SubmitFinalDeclaration is a final team member publicly declaring their dealt clues.
// One entry per dealt clue of the same type; a member dealt nothing declares "No Clue Found".
func (e *Engine) SubmitFinalDeclaration(connID string, data internal.FinalDeclarationData) error {
	return e.withConn(connID, func(room *internal.Room, out *outbox) error {
		if err := checkIntent(room, internal.PhaseFinalDeclare); err != nil {
			return err
		}
		player, err := playerFor(room, connID)
		if err != nil {
			return err
		}
		st := room.State
		declared, recipient := st.FinalDeclared[player.Id]
		if !recipient {
			return illegal("only the final team declares clues")
		}
		if declared {
			return illegal("clues already declared")
		}
		if err := e.validateFinalDeclaration(player, data.Declarations); err != nil {
			return err
		}

		entries := data.Declarations
		if len(player.FinalClues) == 0 {
			entries = []internal.FinalDeclarationEntry{{Type: internal.ClueLocation, DeclaredValue: internal.NoClueFound}}
		}
		for _, d := range entries {
			decl := internal.Declaration{BodyguardName: player.Name, DeclaredLocation: "N/A", DeclaredWeapon: "N/A"}
			if d.Type == internal.ClueLocation {
				decl.DeclaredLocation = d.DeclaredValue
			} else {
				decl.DeclaredWeapon = d.DeclaredValue
			}
			st.Declarations = append(st.Declarations, decl)
		}
		st.FinalDeclared[player.Id] = true

		out.toRoom(internal.EvtUpdateDeclared, append([]internal.Declaration(nil), st.Declarations...))
		out.addLog(fmt.Sprintf("%s declared their final clues.", player.Name))

		for _, done := range st.FinalDeclared {
			if !done {
				return nil
			}
		}
		e.startAccusationVote(room, out)
		return nil
	})
}

func (e *Engine) validateFinalDeclaration(p *internal.Player, entries []internal.FinalDeclarationEntry) error {
	if len(p.FinalClues) == 0 {
		if len(entries) > 1 {
			return illegal("no clues were dealt to declare")
		}
		return nil
	}
	if len(entries) != len(p.FinalClues) {
		return illegal("declare exactly %d clues", len(p.FinalClues))
	}

	want := make(map[internal.ClueType]int)
	for _, c := range p.FinalClues {
		want[c.Type]++
	}
	for _, d := range entries {
		want[d.Type]--
		if want[d.Type] < 0 {
			return illegal("unexpected %s declaration", d.Type)
		}
		if d.DeclaredValue == internal.NoClueFound {
			continue
		}
		switch d.Type {
		case internal.ClueLocation:
			if !e.cat.IsLocation(d.DeclaredValue) {
				return illegal("unknown location %q", d.DeclaredValue)
			}
		case internal.ClueWeapon:
			if !e.cat.IsWeapon(d.DeclaredValue) {
				return illegal("unknown weapon %q", d.DeclaredValue)
			}
		}
	}
	return nil
}

// startAccusationVote opens the three-category vote and its deadline.
func (e *Engine) startAccusationVote(room *internal.Room, out *outbox) {
	st := room.State
	st.Phase = internal.PhaseFinalVote
	st.FinalVotes = make(map[string]internal.Accusation)
	for _, p := range room.Players {
		p.HasVoted = false
	}

	out.addLog(fmt.Sprintf("A %s timer starts now for the final vote!", e.cfg.AccusationTimeout))
	e.schedule(room, timerAccusation, e.cfg.AccusationTimeout, e.tallyFinalVotes)

	out.toRoom(internal.EvtStartAccusationVote, e.accusationPrompt(room))
	out.hostState()
}

func (e *Engine) accusationPrompt(room *internal.Room) internal.AccusationVoteData {
	return internal.AccusationVoteData{
		Suspects:     e.cat.CharacterNames(),
		Weapons:      append([]string(nil), e.cat.Weapons...),
		Locations:    e.cat.Locations(),
		Declarations: append([]internal.Declaration(nil), room.State.Declarations...),
		TimeoutMs:    e.cfg.AccusationTimeout.Milliseconds(),
	}
}

// SubmitFinalVote records one suspect/weapon/location ballot.
func (e *Engine) SubmitFinalVote(connID string, data internal.Accusation) error {
	return e.withConn(connID, func(room *internal.Room, out *outbox) error {
		if err := checkIntent(room, internal.PhaseFinalVote); err != nil {
			return err
		}
		player, err := playerFor(room, connID)
		if err != nil {
			return err
		}
		st := room.State
		if _, voted := st.FinalVotes[player.Id]; voted {
			return ErrAlreadyVoted
		}
		if !e.cat.IsSuspect(data.Suspect) || !e.cat.IsWeapon(data.Weapon) || !e.cat.IsLocation(data.Location) {
			return illegal("ballot must name a known suspect, weapon and location")
		}

		st.FinalVotes[player.Id] = data
		player.HasVoted = true
		out.hostState()

		for _, p := range room.ActivePlayers() {
			if _, voted := st.FinalVotes[p.Id]; !voted {
				return nil
			}
		}
		cancelTimer(room, timerAccusation)
		e.tallyFinalVotes(room, out)
		return nil
	})
}

// tallyFinalVotes decides each category independently; ties and empty ballots go to the scout.
func (e *Engine) tallyFinalVotes(room *internal.Room, out *outbox) {
	st := room.State
	if st.Phase != internal.PhaseFinalVote {
		return
	}
	cancelTimer(room, timerAccusation)

	suspects, weapons, locations := NewTally[string](), NewTally[string](), NewTally[string]()
	for _, p := range room.Players {
		vote, ok := st.FinalVotes[p.Id]
		if !ok {
			continue
		}
		_ = suspects.Cast(p.Id, vote.Suspect)
		_ = weapons.Cast(p.Id, vote.Weapon)
		_ = locations.Cast(p.Id, vote.Location)
	}

	outcomes := map[string]CategoryOutcome{
		categorySuspect:  ResolveCategory(suspects),
		categoryWeapon:   ResolveCategory(weapons),
		categoryLocation: ResolveCategory(locations),
	}

	decided := internal.Accusation{
		Suspect:  outcomes[categorySuspect].Value,
		Weapon:   outcomes[categoryWeapon].Value,
		Location: outcomes[categoryLocation].Value,
	}
	ties := make(map[string][]string)
	for cat, o := range outcomes {
		if !o.Resolved() {
			ties[cat] = o.Options
		}
	}

	e.log.Info("[tallyFinalVotes] final vote tallied",
		zap.String("room", room.Code),
		zap.Int("ballots", len(st.FinalVotes)),
		zap.Int("tied_categories", len(ties)))

	if len(ties) == 0 {
		e.checkForFinalWinner(room, decided, out)
		return
	}

	st.Phase = internal.PhaseFinalTiebreak
	st.FinalAccusation = decided
	st.Ties = ties
	scout := room.Scout()
	out.addLog(fmt.Sprintf("There's a tie! The Scout, %s, must decide.", scout.Name))
	e.sendTiePrompt(room, scout, out)
	out.hostState()
}

func (e *Engine) sendTiePrompt(room *internal.Room, scout *internal.Player, out *outbox) {
	ties := make(map[string][]string, len(room.State.Ties))
	for cat, opts := range room.State.Ties {
		ties[cat] = append([]string(nil), opts...)
	}
	out.toPlayer(scout, internal.EvtResolveTie, internal.ResolveTieData{
		Ties:    ties,
		Decided: room.State.FinalAccusation,
	})
}

// SubmitTieBreaker is the scout settling every tied category.
func (e *Engine) SubmitTieBreaker(connID string, data internal.TieBreakerData) error {
	return e.withConn(connID, func(room *internal.Room, out *outbox) error {
		if err := checkIntent(room, internal.PhaseFinalTiebreak); err != nil {
			return err
		}
		player, err := playerFor(room, connID)
		if err != nil {
			return err
		}
		if player != room.Scout() {
			return illegal("only the scout breaks ties")
		}

		st := room.State
		final := st.FinalAccusation
		choices := map[string]string{
			categorySuspect:  data.Choices.Suspect,
			categoryWeapon:   data.Choices.Weapon,
			categoryLocation: data.Choices.Location,
		}
		for cat, opts := range st.Ties {
			choice := choices[cat]
			if !contains(opts, choice) {
				return illegal("%s must be one of the tied options", cat)
			}
			switch cat {
			case categorySuspect:
				final.Suspect = choice
			case categoryWeapon:
				final.Weapon = choice
			case categoryLocation:
				final.Location = choice
			}
		}

		e.checkForFinalWinner(room, final, out)
		return nil
	})
}

// checkForFinalWinner compares the accusation field by field with the Ringleader and the plot.
func (e *Engine) checkForFinalWinner(room *internal.Room, acc internal.Accusation, out *outbox) {
	st := room.State
	st.FinalAccusation = acc
	st.Ties = nil

	correctSuspect := ""
	if rl := room.Ringleader(); rl != nil && rl.Character != nil {
		correctSuspect = rl.Character.Name
	}
	out.addLog(fmt.Sprintf("The final accusation is: %s, in the %s, with the %s.", acc.Suspect, acc.Location, acc.Weapon))

	if acc.Suspect == correctSuspect && acc.Weapon == st.Plot.Weapon && acc.Location == st.Plot.Location {
		e.endGame(room, internal.TeamFriends, "The final accusation was correct!", out)
		return
	}
	e.endGame(room, internal.TeamConspiracy, "The final accusation was incorrect!", out)
}

// endGame is reached once per game. It reveals every role and queues the archive write.
func (e *Engine) endGame(room *internal.Room, winner internal.Team, reason string, out *outbox) {
	st := room.State
	if st.Phase == internal.PhaseGameOver {
		return
	}
	stopTimers(room)
	st.Phase = internal.PhaseGameOver
	st.Pending = false
	st.Winner = winner
	st.WinReason = reason
	if st.Proposal != nil {
		st.Proposal.Resolved = true
	}

	data := gameOverData(room)
	out.addLog(fmt.Sprintf("%s win! %s", winner, reason))
	out.toRoom(internal.EvtGameOver, data)
	out.hostState()

	out.result = &internal.GameResult{
		ID:          newID(),
		RoomCode:    room.Code,
		WinningTeam: winner,
		Reason:      reason,
		Plot:        st.Plot,
		Players:     data.Players,
		StartedAt:   st.StartedAt,
		EndedAt:     e.clock.Now(),
	}

	e.log.Info("[endGame] game over",
		zap.String("room", room.Code),
		zap.String("winner", string(winner)),
		zap.String("reason", reason))
}

// gameOverData is the full reveal of a finished game.
func gameOverData(room *internal.Room) internal.GameOverData {
	st := room.State
	reveals := make([]internal.PlayerReveal, 0, len(room.Players))
	for _, p := range room.Players {
		reveals = append(reveals, p.Reveal())
	}
	return internal.GameOverData{
		WinningTeam: st.Winner,
		Reason:      st.WinReason,
		Plot:        st.Plot,
		Players:     reveals,
	}
}
