package internal

import (
	"sync"
	"time"
)

const (
	MinPlayersToStart = 3
	MaxPlayersPerRoom = 10
	StartingHealth    = 3
	MaxFailedVotes    = 3
	MaxFinalVoteFails = 3

	// Health at or below which a Ringleader bodyguard at the plot location wins outright.
	PlotExecutionHealth = 2

	NoClueFound  = "No Clue Found"
	NoOneVoted   = "No one voted"
	RoomCodeSize = 6
)

type GamePhase string

const (
	PhaseLobby           GamePhase = "LOBBY"
	PhaseScout           GamePhase = "SCOUT_PHASE"
	PhaseVote            GamePhase = "VOTE_PHASE"
	PhaseDisarm          GamePhase = "DISARM_PHASE"
	PhaseClue            GamePhase = "CLUE_PHASE"
	PhaseFinalTeamSelect GamePhase = "FINAL_ACCUSATION_TEAM_SELECT"
	PhaseFinalDeclare    GamePhase = "FINAL_ACCUSATION_DECLARE"
	PhaseFinalVote       GamePhase = "FINAL_ACCUSATION_VOTE"
	PhaseFinalTiebreak   GamePhase = "FINAL_ACCUSATION_TIEBREAK"
	PhaseGameOver        GamePhase = "GAME_OVER"
)

// IsOpen reports whether players may join or leave freely in this phase.
func (p GamePhase) IsOpen() bool {
	return p == PhaseLobby || p == PhaseGameOver
}

type Role string

const (
	RoleFriend     Role = "Friend"
	RoleAccomplice Role = "Conspiracy Accomplice"
	RoleRingleader Role = "Conspiracy Ringleader"
)

func (r Role) IsConspiracy() bool {
	return r == RoleAccomplice || r == RoleRingleader
}

type Team string

const (
	TeamFriends    Team = "Friends"
	TeamConspiracy Team = "Conspiracy"
)

type Suit string

const (
	SuitYellow  Suit = "yellow"
	SuitPink    Suit = "pink"
	SuitNeutral Suit = "neutral"
	SuitBoth    Suit = "both"
)

type Card struct {
	Value int  `json:"value" yaml:"value"`
	Suit  Suit `json:"suit" yaml:"suit"`
}

type Trap struct {
	Value    int  `json:"value" yaml:"value"`
	Suit     Suit `json:"suit" yaml:"suit"`
	Disarmed bool `json:"disarmed" yaml:"-"`
}

type Character struct {
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color" yaml:"color"`
}

type ClueSet struct {
	Location string `json:"location"`
	Weapon   string `json:"weapon"`
}

type Plot struct {
	Weapon   string `json:"weapon"`
	Location string `json:"location"`
}

type Declaration struct {
	BodyguardName    string `json:"bodyguardName"`
	DeclaredLocation string `json:"declaredLocation"`
	DeclaredWeapon   string `json:"declaredWeapon"`
}

type ClueType string

const (
	ClueLocation ClueType = "Location"
	ClueWeapon   ClueType = "Weapon"
)

type FinalClue struct {
	Type  ClueType `json:"type"`
	Value string   `json:"value"`
}

// Accusation is one suspect/weapon/location triple; also used for single final-vote ballots.
type Accusation struct {
	Suspect  string `json:"suspect,omitempty"`
	Weapon   string `json:"weapon,omitempty"`
	Location string `json:"location,omitempty"`
}

// Proposal is the team currently under consideration. Final proposals have no location or bodyguard.
type Proposal struct {
	Team      []string          `json:"team"`
	Location  string            `json:"location,omitempty"`
	Bodyguard string            `json:"bodyguard,omitempty"`
	Final     bool              `json:"final"`
	Votes     map[string]bool   `json:"votes"`
	Submitted map[string][]Card `json:"-"`
	Resolved  bool              `json:"resolved"`
}

func (p *Proposal) HasMember(playerID string) bool {
	for _, id := range p.Team {
		if id == playerID {
			return true
		}
	}
	return false
}

type GameState struct {
	Phase                  GamePhase `json:"phase"`
	ScoutIndex             int       `json:"scoutIndex"`
	Health                 int       `json:"health"`
	StormPosition          int       `json:"stormPosition"`
	ConsecutiveFailedVotes int       `json:"consecutiveFailedVotes"`
	FinalVoteFails         int       `json:"finalVoteFails"`

	PlayerPositions map[string]int     `json:"playerPositions"`
	Traps           map[string]*Trap   `json:"traps"`
	Clues           map[string]ClueSet `json:"-"`
	Plot            Plot               `json:"-"`
	PublicClue      string             `json:"publicClue"`
	Declarations    []Declaration      `json:"declarations"`
	Proposal        *Proposal          `json:"proposal"`

	FinalVotes      map[string]Accusation `json:"-"`
	FinalAccusation Accusation            `json:"finalAccusation"`
	Ties            map[string][]string   `json:"ties,omitempty"`
	FinalDeclared   map[string]bool       `json:"-"`

	SupplyDeck []Card    `json:"-"`
	Discard    []Card    `json:"-"`
	Log        []string  `json:"log"`
	Paused     bool      `json:"paused"`
	Pending    bool      `json:"pending"`
	Stalled    bool      `json:"stalled"`
	Winner     Team      `json:"winner,omitempty"`
	WinReason  string    `json:"winReason,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
}

// NewGameState returns the lobby state of a fresh room.
func NewGameState() *GameState {
	return &GameState{
		Phase:           PhaseLobby,
		Health:          StartingHealth,
		PlayerPositions: make(map[string]int),
		Traps:           make(map[string]*Trap),
		Clues:           make(map[string]ClueSet),
		Declarations:    make([]Declaration, 0),
		FinalVotes:      make(map[string]Accusation),
		FinalDeclared:   make(map[string]bool),
		Log:             make([]string, 0),
	}
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

type Room struct {
	Code      string
	HostConn  string
	HostToken string

	Players             []*Player
	Disconnected        map[string]string // player id -> display name
	AvailableCharacters []Character

	State *GameState

	// Epoch increments on every reset so stale timer callbacks can be ignored.
	Epoch      int
	Timers     map[string]Timer
	LastActive time.Time

	Mu sync.Mutex `json:"-"`
}

type Player struct {
	Id         string      `json:"id"`
	ConnId     string      `json:"-"`
	Name       string      `json:"name"`
	Character  *Character  `json:"character"`
	Role       Role        `json:"-"`
	Hand       []Card      `json:"-"`
	HasVoted   bool        `json:"hasVoted"`
	FinalClues []FinalClue `json:"-"`
}

// GameResult is the archived summary of a finished game.
type GameResult struct {
	ID          string         `json:"id"`
	RoomCode    string         `json:"roomCode"`
	WinningTeam Team           `json:"winningTeam"`
	Reason      string         `json:"reason"`
	Plot        Plot           `json:"plot"`
	Players     []PlayerReveal `json:"players"`
	StartedAt   time.Time      `json:"startedAt"`
	EndedAt     time.Time      `json:"endedAt"`
}

// Response wraps every HTTP reply with its server-side timing.
type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}
