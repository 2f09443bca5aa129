package game

import (
	"github.com/scythe504/coral-backend/internal"
	"github.com/scythe504/coral-backend/internal/catalog"
)

// Generator produces the hidden state of a game: roles, plot, clue placement, deck and traps.
type Generator struct {
	cat *catalog.Catalog
	rng *Random
}

func NewGenerator(cat *catalog.Catalog, rng *Random) *Generator {
	return &Generator{cat: cat, rng: rng}
}

// AssignRoles deals roles by table row, shuffled, exactly one Ringleader.
func (g *Generator) AssignRoles(players []*internal.Player) {
	counts := g.cat.RoleCountFor(len(players))

	roles := make([]internal.Role, 0, len(players))
	for i := 0; i < counts.Friends; i++ {
		roles = append(roles, internal.RoleFriend)
	}
	for i := 0; i < counts.Accomplices; i++ {
		roles = append(roles, internal.RoleAccomplice)
	}
	roles = append(roles, internal.RoleRingleader)
	roles = Shuffle(g.rng, roles)

	for i, p := range players {
		// A fallback row shorter than the table pads with Friends
		if i < len(roles) {
			p.Role = roles[i]
		} else {
			p.Role = internal.RoleFriend
		}
	}

	// A fallback row longer than the table may have cut the Ringleader off
	for _, p := range players {
		if p.IsRingleader() {
			return
		}
	}
	if len(players) > 0 {
		players[g.rng.Intn(len(players))].Role = internal.RoleRingleader
	}
}

// PlotSetup is the secret plot plus the clue pair placed at every room square.
type PlotSetup struct {
	Plot       internal.Plot
	PublicClue string
	Clues      map[string]internal.ClueSet
}

// SetPlot picks the secret weapon and location, a public safe location,
// and assigns the remaining clue pools to the room squares in board order.
func (g *Generator) SetPlot() PlotSetup {
	locations := Shuffle(g.rng, g.cat.Locations())
	plotLocation, locations := pop(locations)
	publicClue, locations := pop(locations)
	locationPool := Shuffle(g.rng, withFillers(locations, g.cat.ClueFillers))

	weapons := Shuffle(g.rng, g.cat.Weapons)
	plotWeapon, weapons := pop(weapons)
	weaponPool := Shuffle(g.rng, withFillers(weapons, g.cat.ClueFillers))

	clues := make(map[string]internal.ClueSet)
	for i, loc := range g.cat.Locations() {
		clues[loc] = internal.ClueSet{Location: locationPool[i], Weapon: weaponPool[i]}
	}

	return PlotSetup{
		Plot:       internal.Plot{Weapon: plotWeapon, Location: plotLocation},
		PublicClue: publicClue,
		Clues:      clues,
	}
}

func (g *Generator) NewSupplyDeck() []internal.Card {
	deck := make([]internal.Card, 0, g.cat.DeckSize())
	for _, e := range g.cat.Deck {
		for i := 0; i < e.Count; i++ {
			deck = append(deck, internal.Card{Value: e.Value, Suit: e.Suit})
		}
	}
	return Shuffle(g.rng, deck)
}

// NewTrapTiles returns the shuffled tile set for the table size, one per room square.
func (g *Generator) NewTrapTiles(playerCount int) []internal.Trap {
	tiles := g.cat.Traps.Low
	if playerCount >= g.cat.Traps.HighThreshold {
		tiles = g.cat.Traps.High
	}
	out := Shuffle(g.rng, tiles)
	for i := range out {
		out[i].Disarmed = false
	}
	return out
}

// DrawUpTo moves cards from the top of the deck until the hand holds limit cards or the deck is empty.
func DrawUpTo(p *internal.Player, deck []internal.Card, limit int) []internal.Card {
	for len(p.Hand) < limit && len(deck) > 0 {
		var c internal.Card
		c, deck = pop(deck)
		p.Hand = append(p.Hand, c)
	}
	return deck
}

func pop[T any](items []T) (T, []T) {
	last := len(items) - 1
	return items[last], items[:last]
}

func withFillers(pool []string, n int) []string {
	out := append([]string(nil), pool...)
	for i := 0; i < n; i++ {
		out = append(out, internal.NoClueFound)
	}
	return out
}
