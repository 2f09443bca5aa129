package internal

// Methods (Room Struct)
// Callers hold r.Mu.

func (r *Room) PlayerByID(id string) *Player {
	for _, p := range r.Players {
		if p.Id == id {
			return p
		}
	}
	return nil
}

func (r *Room) PlayerByConn(connID string) *Player {
	if connID == "" {
		return nil
	}
	for _, p := range r.Players {
		if p.ConnId == connID {
			return p
		}
	}
	return nil
}

func (r *Room) IsDisconnected(playerID string) bool {
	_, ok := r.Disconnected[playerID]
	return ok
}

// ActiveCount is the quorum denominator: total players minus disconnected ones.
func (r *Room) ActiveCount() int {
	return len(r.Players) - len(r.Disconnected)
}

func (r *Room) ActivePlayers() []*Player {
	active := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if !r.IsDisconnected(p.Id) {
			active = append(active, p)
		}
	}
	return active
}

func (r *Room) Scout() *Player {
	if len(r.Players) == 0 || r.State == nil {
		return nil
	}
	return r.Players[r.State.ScoutIndex%len(r.Players)]
}

func (r *Room) AdvanceScout() {
	if len(r.Players) == 0 {
		return
	}
	r.State.ScoutIndex = (r.State.ScoutIndex + 1) % len(r.Players)
}

func (r *Room) Ringleader() *Player {
	for _, p := range r.Players {
		if p.IsRingleader() {
			return p
		}
	}
	return nil
}

func (r *Room) AllHaveCharacters() bool {
	for _, p := range r.Players {
		if p.Character == nil {
			return false
		}
	}
	return true
}

// HasLiveConnection reports whether the host or any connected player still holds a socket.
func (r *Room) HasLiveConnection() bool {
	if r.HostConn != "" {
		return true
	}
	for _, p := range r.Players {
		if p.ConnId != "" && !r.IsDisconnected(p.Id) {
			return true
		}
	}
	return false
}

func (r *Room) Snapshots() []PlayerSnapshot {
	snaps := make([]PlayerSnapshot, 0, len(r.Players))
	for _, p := range r.Players {
		snaps = append(snaps, PlayerSnapshot{
			ID:        p.Id,
			Name:      p.Name,
			Character: p.Character,
			CardCount: len(p.Hand),
			HasVoted:  p.HasVoted,
			Connected: !r.IsDisconnected(p.Id),
		})
	}
	return snaps
}

func (r *Room) PlayerNames(ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if p := r.PlayerByID(id); p != nil {
			names = append(names, p.Name)
		}
	}
	return names
}

// CardCount totals every card the room knows about: hands, supply deck and discard pile.
func (r *Room) CardCount() int {
	total := len(r.State.SupplyDeck) + len(r.State.Discard)
	for _, p := range r.Players {
		total += len(p.Hand)
	}
	return total
}
