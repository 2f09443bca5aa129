package catalog

import (
	_ "embed"
	"fmt"

	"github.com/scythe504/coral-backend/internal"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type SquareType string

const (
	SquareRoom   SquareType = "room"
	SquareSupply SquareType = "supply"
	SquareStart  SquareType = "start"
)

type Square struct {
	ID   int        `yaml:"id" json:"id"`
	Name string     `yaml:"name" json:"name"`
	Type SquareType `yaml:"type" json:"type"`
}

type RoleCount struct {
	Friends     int `yaml:"friends"`
	Accomplices int `yaml:"accomplices"`
}

type DeckEntry struct {
	Value int           `yaml:"value"`
	Suit  internal.Suit `yaml:"suit"`
	Count int           `yaml:"count"`
}

type TrapSets struct {
	HighThreshold int             `yaml:"high_threshold"`
	Low           []internal.Trap `yaml:"low"`
	High          []internal.Trap `yaml:"high"`
}

type HandCap struct {
	CrowdedAt int `yaml:"crowded_at"`
	Crowded   int `yaml:"crowded"`
	Default   int `yaml:"default"`
}

// Catalog is the fixed reference data every room draws from. It is read-only after Load.
type Catalog struct {
	Characters        []internal.Character `yaml:"characters"`
	Weapons           []string             `yaml:"weapons"`
	Board             []Square             `yaml:"board"`
	Roles             map[int]RoleCount    `yaml:"roles"`
	FallbackRoleCount int                  `yaml:"fallback_role_count"`
	Deck              []DeckEntry          `yaml:"deck"`
	Traps             TrapSets             `yaml:"traps"`
	HandCap           HandCap              `yaml:"hand_cap"`
	ClueFillers       int                  `yaml:"clue_fillers"`

	locations []string
	start     int
	supply    int
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// MustLoad is Load for program start and tests.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	c.start, c.supply = -1, -1
	for _, sq := range c.Board {
		switch sq.Type {
		case SquareRoom:
			c.locations = append(c.locations, sq.Name)
		case SquareStart:
			c.start = sq.ID
		case SquareSupply:
			c.supply = sq.ID
		}
	}

	if c.start < 0 || c.supply < 0 {
		return fmt.Errorf("catalog board needs a start and a supply square")
	}
	if len(c.Traps.Low) != len(c.locations) || len(c.Traps.High) != len(c.locations) {
		return fmt.Errorf("catalog has %d rooms but %d/%d trap tiles", len(c.locations), len(c.Traps.Low), len(c.Traps.High))
	}
	// Each room square gets one pooled clue: all locations but the plot and public clue, plus fillers.
	if len(c.locations)-2+c.ClueFillers != len(c.locations) {
		return fmt.Errorf("catalog location clue pool does not cover %d rooms", len(c.locations))
	}
	if len(c.Weapons)-1+c.ClueFillers != len(c.locations) {
		return fmt.Errorf("catalog weapon clue pool does not cover %d rooms", len(c.locations))
	}
	if _, ok := c.Roles[c.FallbackRoleCount]; !ok {
		return fmt.Errorf("catalog fallback role row %d missing", c.FallbackRoleCount)
	}
	return nil
}

// Locations are the room squares in board order.
func (c *Catalog) Locations() []string {
	return append([]string(nil), c.locations...)
}

func (c *Catalog) CharacterNames() []string {
	names := make([]string, 0, len(c.Characters))
	for _, ch := range c.Characters {
		names = append(names, ch.Name)
	}
	return names
}

func (c *Catalog) Character(name string) (internal.Character, bool) {
	for _, ch := range c.Characters {
		if ch.Name == name {
			return ch, true
		}
	}
	return internal.Character{}, false
}

func (c *Catalog) StartSquare() int  { return c.start }
func (c *Catalog) SupplySquare() int { return c.supply }

func (c *Catalog) SquareOf(location string) (int, bool) {
	for _, sq := range c.Board {
		if sq.Type == SquareRoom && sq.Name == location {
			return sq.ID, true
		}
	}
	return 0, false
}

func (c *Catalog) IsLocation(name string) bool {
	return contains(c.locations, name)
}

func (c *Catalog) IsWeapon(name string) bool {
	return contains(c.Weapons, name)
}

func (c *Catalog) IsSuspect(name string) bool {
	_, ok := c.Character(name)
	return ok
}

// HandCapFor returns the number of cards each player holds at most.
func (c *Catalog) HandCapFor(players int) int {
	if players >= c.HandCap.CrowdedAt {
		return c.HandCap.Crowded
	}
	return c.HandCap.Default
}

// RoleCountFor returns the table row for the player count, or the fallback row.
func (c *Catalog) RoleCountFor(players int) RoleCount {
	if rc, ok := c.Roles[players]; ok {
		return rc
	}
	return c.Roles[c.FallbackRoleCount]
}

func (c *Catalog) DeckSize() int {
	total := 0
	for _, e := range c.Deck {
		total += e.Count
	}
	return total
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
