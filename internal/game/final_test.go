package game

import (
	"testing"

	"github.com/scythe504/coral-backend/internal"
	"github.com/stretchr/testify/require"
)

// declareAll has every final team member truthfully declare their dealt clues.
func (h *harness) declareAll() {
	h.t.Helper()
	for _, p := range h.players() {
		if _, recipient := h.state().FinalDeclared[p.Id]; !recipient {
			continue
		}
		entries := make([]internal.FinalDeclarationEntry, 0, len(p.FinalClues))
		for _, c := range p.FinalClues {
			entries = append(entries, internal.FinalDeclarationEntry{Type: c.Type, DeclaredValue: c.Value})
		}
		require.NoError(h.t, h.e.SubmitFinalDeclaration(p.ConnId, internal.FinalDeclarationData{Declarations: entries}))
	}
}

func (h *harness) proposeFinalTeam(members ...*internal.Player) {
	h.t.Helper()
	ids := make([]string, 0, len(members))
	for _, p := range members {
		ids = append(ids, p.Id)
	}
	require.NoError(h.t, h.e.ProposeFinalTeam(h.scout().ConnId, internal.ProposeFinalTeamData{Team: ids}))
}

func TestFinalTeamRejectedThreeTimes(t *testing.T) {
	h := newGame(t, 4)
	h.enterFinal()
	require.Same(t, h.players()[1], h.scout())

	for attempt := 1; attempt <= internal.MaxFinalVoteFails; attempt++ {
		require.Equal(t, internal.PhaseFinalTeamSelect, h.state().Phase)
		scout := h.scout()
		h.proposeFinalTeam(scout)
		require.ErrorIs(t, h.e.ProposeFinalTeam(scout.ConnId, internal.ProposeFinalTeamData{Team: []string{scout.Id}}), ErrIllegalIntent)
		h.voteAll(false)
		require.Equal(t, attempt, h.state().FinalVoteFails)
	}

	st := h.state()
	require.Equal(t, internal.PhaseGameOver, st.Phase)
	require.Equal(t, internal.TeamConspiracy, st.Winner)

	msg, ok := h.rec.last(hostConn, internal.EvtVoteResult)
	require.True(t, ok)
	require.True(t, msg.Data.(internal.VoteResultData).Final)
}

func TestFinalClueDealSplitsArmedClues(t *testing.T) {
	h := newGame(t, 4)
	h.enterFinal()
	h.proposeFinalTeam(h.players()...)
	h.voteAll(true)

	st := h.state()
	require.Equal(t, internal.PhaseFinalDeclare, st.Phase)
	require.Len(t, st.FinalDeclared, 4)

	// Every trap is armed: 7 real location clues and 7 real weapon clues
	total := 0
	for i, p := range h.players() {
		require.GreaterOrEqual(t, len(p.FinalClues), 3)
		require.LessOrEqual(t, len(p.FinalClues), 4)
		total += len(p.FinalClues)
		for _, c := range p.FinalClues {
			require.NotEqual(t, internal.NoClueFound, c.Value)
		}
		require.Equal(t, 1, h.rec.count(playerConn(i), internal.EvtReceiveFinalClues))
	}
	require.Equal(t, 14, total)
}

func TestFinalDeclarationRules(t *testing.T) {
	h := newGame(t, 4)
	h.enterFinal()
	scout := h.scout()
	outsider := h.others(scout)[1]
	h.proposeFinalTeam(scout)
	h.voteAll(true)
	require.Equal(t, internal.PhaseFinalDeclare, h.state().Phase)

	err := h.e.SubmitFinalDeclaration(outsider.ConnId, internal.FinalDeclarationData{})
	require.ErrorIs(t, err, ErrIllegalIntent)

	err = h.e.SubmitFinalDeclaration(scout.ConnId, internal.FinalDeclarationData{
		Declarations: []internal.FinalDeclarationEntry{{Type: internal.ClueWeapon, DeclaredValue: h.cat.Weapons[0]}},
	})
	require.ErrorIs(t, err, ErrIllegalIntent, "wrong number of entries")

	// Lying is allowed as long as the shape matches
	entries := make([]internal.FinalDeclarationEntry, 0)
	for _, c := range scout.FinalClues {
		value := internal.NoClueFound
		if c.Type == internal.ClueWeapon {
			value = h.cat.Weapons[0]
		}
		entries = append(entries, internal.FinalDeclarationEntry{Type: c.Type, DeclaredValue: value})
	}
	before := len(h.state().Declarations)
	require.NoError(t, h.e.SubmitFinalDeclaration(scout.ConnId, internal.FinalDeclarationData{Declarations: entries}))
	require.Len(t, h.state().Declarations, before+len(entries))
	for _, d := range h.state().Declarations[before:] {
		require.Equal(t, scout.Name, d.BodyguardName)
		require.True(t, d.DeclaredLocation == "N/A" || d.DeclaredWeapon == "N/A")
	}

	require.Equal(t, internal.PhaseFinalVote, h.state().Phase)
	require.ErrorIs(t, h.e.SubmitFinalDeclaration(scout.ConnId, internal.FinalDeclarationData{Declarations: entries}), ErrIllegalIntent)
}

func TestFinalVoteTieBrokenByScout(t *testing.T) {
	h := newGame(t, 4)
	h.enterFinal()
	h.proposeFinalTeam(h.players()...)
	h.voteAll(true)
	h.declareAll()

	st := h.state()
	require.Equal(t, internal.PhaseFinalVote, st.Phase)
	msg, ok := h.rec.last(hostConn, internal.EvtStartAccusationVote)
	require.True(t, ok)
	prompt := msg.Data.(internal.AccusationVoteData)
	require.Len(t, prompt.Suspects, 10)
	require.Equal(t, h.cfg.AccusationTimeout.Milliseconds(), prompt.TimeoutMs)

	guilty := h.room().Ringleader().Character.Name
	innocent := ""
	for _, p := range h.players() {
		if !p.IsRingleader() {
			innocent = p.Character.Name
			break
		}
	}

	bad := internal.Accusation{Suspect: "Nobody", Weapon: st.Plot.Weapon, Location: st.Plot.Location}
	require.ErrorIs(t, h.e.SubmitFinalVote(playerConn(0), bad), ErrIllegalIntent)

	for i, p := range h.players() {
		suspect := guilty
		if i >= 2 {
			suspect = innocent
		}
		require.NoError(t, h.e.SubmitFinalVote(p.ConnId, internal.Accusation{
			Suspect:  suspect,
			Weapon:   st.Plot.Weapon,
			Location: st.Plot.Location,
		}))
		if i == 0 {
			require.ErrorIs(t, h.e.SubmitFinalVote(p.ConnId, bad), ErrAlreadyVoted)
		}
	}

	require.Equal(t, internal.PhaseFinalTiebreak, st.Phase)
	require.Len(t, st.Ties, 1)
	require.ElementsMatch(t, []string{guilty, innocent}, st.Ties[categorySuspect])
	require.Equal(t, st.Plot.Weapon, st.FinalAccusation.Weapon)

	scout := h.scout()
	msg, ok = h.rec.last(scout.ConnId, internal.EvtResolveTie)
	require.True(t, ok)
	require.Equal(t, st.Ties, msg.Data.(internal.ResolveTieData).Ties)

	other := h.others(scout)[0]
	require.ErrorIs(t, h.e.SubmitTieBreaker(other.ConnId, internal.TieBreakerData{Choices: internal.Accusation{Suspect: guilty}}), ErrIllegalIntent)
	require.ErrorIs(t, h.e.SubmitTieBreaker(scout.ConnId, internal.TieBreakerData{Choices: internal.Accusation{Suspect: "Mr. Nobody"}}), ErrIllegalIntent)

	require.NoError(t, h.e.SubmitTieBreaker(scout.ConnId, internal.TieBreakerData{Choices: internal.Accusation{Suspect: guilty}}))
	require.Equal(t, internal.PhaseGameOver, st.Phase)
	require.Equal(t, internal.TeamFriends, st.Winner)
	require.Zero(t, h.clock.pending())
	require.Len(t, h.archive.saved(), 1)
}

func TestFinalVoteTimeoutWithNoBallots(t *testing.T) {
	h := newGame(t, 3)
	h.enterFinal()
	scout := h.scout()
	h.proposeFinalTeam(scout)
	h.voteAll(true)
	h.declareAll()
	require.Equal(t, internal.PhaseFinalVote, h.state().Phase)

	h.clock.Advance(h.cfg.AccusationTimeout)

	st := h.state()
	require.Equal(t, internal.PhaseFinalTiebreak, st.Phase)
	sentinel := []string{internal.NoOneVoted}
	require.Equal(t, sentinel, st.Ties[categorySuspect])
	require.Equal(t, sentinel, st.Ties[categoryWeapon])
	require.Equal(t, sentinel, st.Ties[categoryLocation])

	// The scout cannot name the real plot when nobody voted
	correct := internal.Accusation{
		Suspect:  h.room().Ringleader().Character.Name,
		Weapon:   st.Plot.Weapon,
		Location: st.Plot.Location,
	}
	require.ErrorIs(t, h.e.SubmitTieBreaker(scout.ConnId, internal.TieBreakerData{Choices: correct}), ErrIllegalIntent)
	require.Equal(t, internal.PhaseFinalTiebreak, st.Phase)

	require.NoError(t, h.e.SubmitTieBreaker(scout.ConnId, internal.TieBreakerData{Choices: internal.Accusation{
		Suspect:  internal.NoOneVoted,
		Weapon:   internal.NoOneVoted,
		Location: internal.NoOneVoted,
	}}))
	require.Equal(t, internal.PhaseGameOver, st.Phase)
	require.Equal(t, internal.TeamConspiracy, st.Winner)
	require.Equal(t, 1, h.rec.count(hostConn, internal.EvtGameOver))
}

func TestUnanimousFinalVoteSkipsTiebreak(t *testing.T) {
	h := newGame(t, 3)
	h.enterFinal()
	h.proposeFinalTeam(h.scout())
	h.voteAll(true)
	h.declareAll()

	st := h.state()
	guilty := h.room().Ringleader().Character.Name
	for _, p := range h.players() {
		require.NoError(t, h.e.SubmitFinalVote(p.ConnId, internal.Accusation{
			Suspect:  guilty,
			Weapon:   st.Plot.Weapon,
			Location: st.Plot.Location,
		}))
	}
	require.Equal(t, internal.PhaseGameOver, st.Phase)
	require.Equal(t, internal.TeamFriends, st.Winner)

	// The accusation deadline was cancelled with the game
	h.clock.Advance(h.cfg.AccusationTimeout)
	require.Equal(t, 1, h.rec.count(hostConn, internal.EvtGameOver))
}
