package game

import (
	"strings"
	"sync"
	"time"

	"github.com/scythe504/coral-backend/internal"
)

// =============================================================================
// ROOM MANAGEMENT
// =============================================================================

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Registry owns the live rooms and the connection -> room index.
// Lock order: mu, then a room's Mu, then connMu.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*internal.Room

	connMu sync.Mutex
	conns  map[string]string

	rng        *Random
	clock      Clock
	characters []internal.Character
}

func NewRegistry(rng *Random, clock Clock, characters []internal.Character) *Registry {
	return &Registry{
		rooms:      make(map[string]*internal.Room),
		conns:      make(map[string]string),
		rng:        rng,
		clock:      clock,
		characters: characters,
	}
}

// Create opens a LOBBY room hosted by hostConn under a fresh code.
func (r *Registry) Create(hostConn, hostToken string) *internal.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Retry on collision with a live room
	code := r.newCode()
	for r.rooms[code] != nil {
		code = r.newCode()
	}

	room := &internal.Room{
		Code:                code,
		HostConn:            hostConn,
		HostToken:           hostToken,
		Players:             make([]*internal.Player, 0),
		Disconnected:        make(map[string]string),
		AvailableCharacters: append([]internal.Character(nil), r.characters...),
		State:               internal.NewGameState(),
		Timers:              make(map[string]internal.Timer),
		LastActive:          r.clock.Now(),
	}
	r.rooms[code] = room
	r.Bind(hostConn, code)
	return room
}

func (r *Registry) newCode() string {
	var b strings.Builder
	for i := 0; i < internal.RoomCodeSize; i++ {
		b.WriteByte(roomCodeAlphabet[r.rng.Intn(len(roomCodeAlphabet))])
	}
	return b.String()
}

func (r *Registry) Lookup(code string) (*internal.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// RoomOf resolves the room a connection is attached to.
func (r *Registry) RoomOf(connID string) (*internal.Room, error) {
	r.connMu.Lock()
	code, ok := r.conns[connID]
	r.connMu.Unlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r.Lookup(code)
}

func (r *Registry) Bind(connID, code string) {
	r.connMu.Lock()
	r.conns[connID] = code
	r.connMu.Unlock()
}

func (r *Registry) Unbind(connID string) {
	r.connMu.Lock()
	delete(r.conns, connID)
	r.connMu.Unlock()
}

func (r *Registry) IsBound(connID string) bool {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	_, ok := r.conns[connID]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// AttachPlayer adds a new player to an open room. Caller holds room.Mu.
func (r *Registry) AttachPlayer(room *internal.Room, p *internal.Player) error {
	if !room.State.Phase.IsOpen() {
		return invalidJoin("game already in progress")
	}
	if len(room.Players) >= internal.MaxPlayersPerRoom {
		return invalidJoin("room is full")
	}
	for _, existing := range room.Players {
		if existing.NameMatches(p.Name) {
			return invalidJoin("a player with that name is already in the room")
		}
	}
	room.Players = append(room.Players, p)
	r.Bind(p.ConnId, room.Code)
	return nil
}

// RemovePlayer drops a player from an open room and frees their character. Caller holds room.Mu.
func (r *Registry) RemovePlayer(room *internal.Room, playerID string) (*internal.Player, error) {
	if !room.State.Phase.IsOpen() {
		return nil, illegal("players cannot leave a game in progress")
	}
	for i, p := range room.Players {
		if p.Id != playerID {
			continue
		}
		room.Players = append(room.Players[:i], room.Players[i+1:]...)
		delete(room.Disconnected, playerID)
		if p.ConnId != "" {
			r.Unbind(p.ConnId)
		}
		if p.Character != nil {
			p.Character = nil
			room.AvailableCharacters = r.availableFor(room)
		}
		return p, nil
	}
	return nil, illegal("player %s is not in room %s", playerID, room.Code)
}

// availableFor rebuilds the character pool as the complement of current selections, in catalog order.
func (r *Registry) availableFor(room *internal.Room) []internal.Character {
	taken := make(map[string]bool, len(room.Players))
	for _, p := range room.Players {
		if p.Character != nil {
			taken[p.Character.Name] = true
		}
	}
	pool := make([]internal.Character, 0, len(r.characters))
	for _, c := range r.characters {
		if !taken[c.Name] {
			pool = append(pool, c)
		}
	}
	return pool
}

// EvictIdle removes open rooms that have no live connection and were idle longer than grace.
// Rooms in play are never evicted; a paused game waits for its players.
func (r *Registry) EvictIdle(now time.Time, grace time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := make([]string, 0)
	for code, room := range r.rooms {
		room.Mu.Lock()
		idle := room.State.Phase.IsOpen() &&
			!room.HasLiveConnection() &&
			now.Sub(room.LastActive) > grace
		if idle {
			stopTimers(room)
			room.Epoch++
			for _, p := range room.Players {
				if p.ConnId != "" {
					r.Unbind(p.ConnId)
				}
			}
		}
		room.Mu.Unlock()

		if idle {
			delete(r.rooms, code)
			evicted = append(evicted, code)
		}
	}
	return evicted
}

// RoomSummary is the public lookup view of a room.
type RoomSummary struct {
	Code        string             `json:"code"`
	Phase       internal.GamePhase `json:"phase"`
	PlayerCount int                `json:"playerCount"`
	Joinable    bool               `json:"joinable"`
}

func (r *Registry) Summary(code string) (RoomSummary, error) {
	room, err := r.Lookup(code)
	if err != nil {
		return RoomSummary{}, err
	}
	room.Mu.Lock()
	defer room.Mu.Unlock()
	return RoomSummary{
		Code:        room.Code,
		Phase:       room.State.Phase,
		PlayerCount: len(room.Players),
		Joinable:    room.State.Phase.IsOpen() && len(room.Players) < internal.MaxPlayersPerRoom,
	}, nil
}
