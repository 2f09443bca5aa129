package game

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/scythe504/coral-backend/internal"
	"github.com/scythe504/coral-backend/internal/catalog"
	"github.com/stretchr/testify/require"
)

// ===== FAKE CLOCK =====

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) internal.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs every due callback on the calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// ===== RECORDING NOTIFIER =====

type recorder struct {
	mu   sync.Mutex
	msgs map[string][]internal.Message[any]
}

func newRecorder() *recorder {
	return &recorder{msgs: make(map[string][]internal.Message[any])}
}

func (r *recorder) SendTo(connID string, msg internal.Message[any]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[connID] = append(r.msgs[connID], msg)
}

func (r *recorder) count(connID, msgType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs[connID] {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func (r *recorder) last(connID, msgType string) (internal.Message[any], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.msgs[connID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Type == msgType {
			return list[i], true
		}
	}
	return internal.Message[any]{}, false
}

func (r *recorder) types(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs[connID]))
	for _, m := range r.msgs[connID] {
		out = append(out, m.Type)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = make(map[string][]internal.Message[any])
}

// ===== HARNESS =====

const hostConn = "host-conn"

type fakeArchive struct {
	mu      sync.Mutex
	results []internal.GameResult
}

func (a *fakeArchive) SaveResult(_ context.Context, result internal.GameResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, result)
	return nil
}

func (a *fakeArchive) saved() []internal.GameResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]internal.GameResult(nil), a.results...)
}

type harness struct {
	t       *testing.T
	e       *Engine
	clock   *fakeClock
	rec     *recorder
	archive *fakeArchive
	cat     *catalog.Catalog
	cfg     Config
	code    string
}

func newEngineHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	cat := catalog.MustLoad()
	clock := newFakeClock()
	rec := newRecorder()
	archive := &fakeArchive{}
	e := NewEngine(cat, rec,
		WithClock(clock),
		WithRandom(NewRandom(7)),
		WithArchive(archive),
		WithConfig(cfg),
	)
	h := &harness{t: t, e: e, clock: clock, rec: rec, archive: archive, cat: cat, cfg: cfg}
	code, err := e.CreateRoom(hostConn)
	require.NoError(t, err)
	h.code = code
	return h
}

func playerConn(i int) string { return fmt.Sprintf("conn-%d", i) }

// newLobby joins n players and has each pick a character.
func newLobby(t *testing.T, n int) *harness {
	t.Helper()
	return newLobbyWithConfig(t, n, DefaultConfig())
}

func newLobbyWithConfig(t *testing.T, n int, cfg Config) *harness {
	t.Helper()
	h := newEngineHarness(t, cfg)
	for i := 0; i < n; i++ {
		err := h.e.JoinRoom(playerConn(i), internal.JoinRoomData{
			DisplayName: fmt.Sprintf("Player%d", i),
			RoomCode:    h.code,
		})
		require.NoError(t, err)
		err = h.e.SelectCharacter(playerConn(i), internal.SelectCharacterData{
			CharacterName: h.cat.Characters[i].Name,
		})
		require.NoError(t, err)
	}
	return h
}

// newGame starts a game of n players.
func newGame(t *testing.T, n int) *harness {
	t.Helper()
	return newGameWithConfig(t, n, DefaultConfig())
}

func newGameWithConfig(t *testing.T, n int, cfg Config) *harness {
	t.Helper()
	h := newLobbyWithConfig(t, n, cfg)
	require.NoError(t, h.e.StartGame(hostConn))
	require.Equal(t, internal.PhaseScout, h.room().State.Phase)
	return h
}

func (h *harness) room() *internal.Room {
	h.t.Helper()
	room, err := h.e.Registry().Lookup(h.code)
	require.NoError(h.t, err)
	return room
}

func (h *harness) state() *internal.GameState { return h.room().State }

func (h *harness) scout() *internal.Player { return h.room().Scout() }

func (h *harness) players() []*internal.Player { return h.room().Players }

// mutate runs fn under the room lock, the way engine transitions do.
func (h *harness) mutate(fn func(room *internal.Room, out *outbox)) {
	h.t.Helper()
	err := h.e.withRoom(h.room(), func(room *internal.Room, out *outbox) error {
		fn(room, out)
		return nil
	})
	require.NoError(h.t, err)
}

// others are the players other than p, in seat order.
func (h *harness) others(p *internal.Player) []*internal.Player {
	out := make([]*internal.Player, 0)
	for _, q := range h.players() {
		if q != p {
			out = append(out, q)
		}
	}
	return out
}

// armedLocation returns an available location with an armed trap that is neither the plot nor the public clue.
func (h *harness) armedLocation() string {
	h.t.Helper()
	st := h.state()
	for _, loc := range h.e.availableLocations(h.room()) {
		if !st.Traps[loc].Disarmed && loc != st.Plot.Location && loc != st.PublicClue {
			return loc
		}
	}
	h.t.Fatalf("no armed location left")
	return ""
}

// propose has the current scout send a two-player team to loc with the teammate as bodyguard.
func (h *harness) propose(loc string) (*internal.Player, *internal.Player) {
	h.t.Helper()
	scout := h.scout()
	mate := h.others(scout)[0]
	err := h.e.ProposeTeam(scout.ConnId, internal.ProposeTeamData{
		Team:        []string{scout.Id, mate.Id},
		Location:    loc,
		BodyguardID: mate.Id,
	})
	require.NoError(h.t, err)
	return scout, mate
}

// voteAll has every connected non-scout player cast the same vote.
func (h *harness) voteAll(yes bool) {
	h.t.Helper()
	scout := h.scout()
	for _, p := range h.others(scout) {
		if h.room().IsDisconnected(p.Id) {
			continue
		}
		require.NoError(h.t, h.e.SubmitVote(p.ConnId, internal.SubmitVoteData{Vote: yes}))
	}
}

// failRound rejects one proposal and lets the next scout phase open.
func (h *harness) failRound() {
	h.t.Helper()
	h.propose(h.armedLocation())
	h.voteAll(false)
	if h.state().Phase != internal.PhaseFinalTeamSelect {
		h.clock.Advance(h.cfg.RoundDelay)
	}
}

// enterFinal drains the team's health and opens the final accusation.
func (h *harness) enterFinal() {
	h.t.Helper()
	h.mutate(func(room *internal.Room, out *outbox) {
		room.State.Health = 0
		h.e.startFinalAccusation(room, out)
	})
	require.Equal(h.t, internal.PhaseFinalTeamSelect, h.state().Phase)
}

// fingerprint is a deep copy of everything authoritative in a room except connection identity.
type fingerprint struct {
	State     internal.GameState
	Players   []internal.Player
	Available []internal.Character
	Epoch     int
}

func snapshot(t *testing.T, room *internal.Room) fingerprint {
	t.Helper()
	fp := fingerprint{
		State:     *room.State,
		Available: room.AvailableCharacters,
		Epoch:     room.Epoch,
	}
	for _, p := range room.Players {
		cp := *p
		cp.ConnId = ""
		fp.Players = append(fp.Players, cp)
	}

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(fp))
	var out fingerprint
	require.NoError(t, gob.NewDecoder(&buf).Decode(&out))
	return out
}
