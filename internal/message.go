package internal

import "encoding/json"

type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// InboundMessage defers decoding of Data until the type is known.
type InboundMessage = Message[json.RawMessage]

// Inbound intent types
const (
	MsgCreateRoom       = "create_room"
	MsgRejoinHost       = "rejoin_host"
	MsgJoinRoom         = "join_room"
	MsgSelectCharacter  = "select_character"
	MsgStartGame        = "start_game"
	MsgProposeTeam      = "propose_team"
	MsgProposeFinalTeam = "propose_final_team"
	MsgSubmitVote       = "submit_vote"
	MsgSubmitCards      = "submit_cards"
	MsgCollectClues     = "collect_clues"
	MsgDeclareClues     = "declare_clues"
	MsgFinalDeclaration = "submit_final_declaration"
	MsgSubmitFinalVote  = "submit_final_vote"
	MsgSubmitTieBreaker = "submit_tie_breaker"
	MsgPlayAgain        = "play_again"
)

// Outbound event types
const (
	EvtRoomCreated         = "room_created"
	EvtJoinSuccess         = "join_success"
	EvtJoinError           = "join_error"
	EvtLobbyUpdate         = "lobby_update"
	EvtYourRole            = "your_role"
	EvtScoutPhase          = "scout_phase"
	EvtShowProposal        = "show_proposal"
	EvtVoteOnProposal      = "vote_on_proposal"
	EvtVoteResult          = "vote_result"
	EvtDisarmPhase         = "disarm_phase"
	EvtTrapResult          = "trap_result"
	EvtCluePhase           = "clue_phase"
	EvtCluesRevealed       = "clues_revealed"
	EvtUpdateDeclared      = "update_declared_clues"
	EvtHandUpdate          = "hand_update"
	EvtFinalScoutPhase     = "final_scout_phase"
	EvtReceiveFinalClues   = "receive_final_clues"
	EvtStartAccusationVote = "start_accusation_vote"
	EvtResolveTie          = "resolve_tie"
	EvtGameOver            = "game_over"
	EvtReturnToLobby       = "return_to_lobby"
	EvtGamePaused          = "game_paused"
	EvtGameResumed         = "game_resumed"
	EvtUpdateGameState     = "update_game_state"
	EvtUpdateLog           = "update_log"
	EvtAnnouncement        = "announcement"
	EvtError               = "error"
)

// ===== INBOUND PAYLOADS =====

type JoinRoomData struct {
	DisplayName   string `json:"displayName"`
	RoomCode      string `json:"roomCode"`
	PriorPlayerID string `json:"priorPlayerId,omitempty"`
}

type RejoinHostData struct {
	RoomCode  string `json:"roomCode"`
	HostToken string `json:"hostToken"`
}

type SelectCharacterData struct {
	CharacterName string `json:"characterName"`
}

type ProposeTeamData struct {
	Team        []string `json:"team"`
	Location    string   `json:"location"`
	BodyguardID string   `json:"bodyguardId"`
}

type ProposeFinalTeamData struct {
	Team []string `json:"team"`
}

type SubmitVoteData struct {
	Vote bool `json:"vote"`
}

type SubmitCardsData struct {
	Cards []Card `json:"cards"`
}

type DeclareCluesData struct {
	DeclaredLocation string `json:"declaredLocation"`
	DeclaredWeapon   string `json:"declaredWeapon"`
}

type FinalDeclarationEntry struct {
	Type          ClueType `json:"type"`
	DeclaredValue string   `json:"declaredValue"`
}

type FinalDeclarationData struct {
	Declarations []FinalDeclarationEntry `json:"declarations"`
}

type TieBreakerData struct {
	Choices Accusation `json:"choices"`
}

// ===== OUTBOUND PAYLOADS =====

type RoomCreatedData struct {
	RoomCode  string `json:"roomCode"`
	HostToken string `json:"hostToken"`
}

type JoinSuccessData struct {
	RoomCode   string `json:"roomCode"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Rejoined   bool   `json:"rejoined"`
}

type LobbyUpdateData struct {
	Players             []PlayerSnapshot `json:"players"`
	AvailableCharacters []Character      `json:"availableCharacters"`
	Phase               GamePhase        `json:"phase"`
}

type TeammateInfo struct {
	Name          string `json:"name"`
	CharacterName string `json:"characterName"`
	Role          Role   `json:"role"`
}

type YourRoleData struct {
	Role                Role           `json:"role"`
	Character           *Character     `json:"character"`
	Hand                []Card         `json:"hand"`
	Plot                *Plot          `json:"plot,omitempty"`
	ConspiracyTeammates []TeammateInfo `json:"conspiracyTeammates,omitempty"`
}

type ScoutPhaseData struct {
	ScoutID   string           `json:"scoutId"`
	ScoutName string           `json:"scoutName"`
	Players   []PlayerSnapshot `json:"players"`
	Locations []string         `json:"locations,omitempty"`
	RoomCode  string           `json:"roomCode"`
}

type ProposalData struct {
	ScoutID       string   `json:"scoutId"`
	ScoutName     string   `json:"scoutName"`
	TeamNames     []string `json:"teamNames"`
	LocationName  string   `json:"locationName"`
	BodyguardName string   `json:"bodyguardName"`
	Final         bool     `json:"final"`
}

type VoteResultData struct {
	Passed   bool `json:"passed"`
	YesVotes int  `json:"yesVotes"`
	NoVotes  int  `json:"noVotes"`
	Final    bool `json:"final"`
}

type DisarmPhaseData struct {
	Location string `json:"location"`
	Trap     Trap   `json:"trap"`
	Hand     []Card `json:"hand"`
}

type TrapResultData struct {
	Location    string `json:"location"`
	Success     bool   `json:"success"`
	TotalValue  int    `json:"totalValue"`
	TrapValue   int    `json:"trapValue"`
	PlayedCards []Card `json:"playedCards"`
	Health      int    `json:"health"`
}

type CluePhaseData struct {
	Location   string   `json:"location"`
	Locations  []string `json:"locations"`
	Weapons    []string `json:"weapons"`
	PublicClue string   `json:"publicClue"`
}

type FinalScoutPhaseData struct {
	Players []PlayerSnapshot `json:"players"`
}

type FinalCluesData struct {
	Clues     []FinalClue `json:"clues"`
	Weapons   []string    `json:"weapons"`
	Locations []string    `json:"locations"`
}

type AccusationVoteData struct {
	Suspects     []string      `json:"suspects"`
	Weapons      []string      `json:"weapons"`
	Locations    []string      `json:"locations"`
	Declarations []Declaration `json:"declarations"`
	TimeoutMs    int64         `json:"timeoutMs"`
}

type ResolveTieData struct {
	Ties    map[string][]string `json:"ties"`
	Decided Accusation          `json:"decided"`
}

type GameOverData struct {
	WinningTeam Team           `json:"winningTeam"`
	Reason      string         `json:"reason"`
	Plot        Plot           `json:"plot"`
	Players     []PlayerReveal `json:"players"`
}

type PausedData struct {
	Message      string   `json:"message"`
	Disconnected []string `json:"disconnected"`
}

type AnnouncementData struct {
	Text string `json:"text"`
}

// PublicState is the host's view of GameState with every secret stripped.
type PublicState struct {
	Phase                  GamePhase        `json:"phase"`
	ScoutID                string           `json:"scoutId"`
	Health                 int              `json:"health"`
	StormPosition          int              `json:"stormPosition"`
	ConsecutiveFailedVotes int              `json:"consecutiveFailedVotes"`
	FinalVoteFails         int              `json:"finalVoteFails"`
	PlayerPositions        map[string]int   `json:"playerPositions"`
	Traps                  map[string]Trap  `json:"traps"`
	PublicClue             string           `json:"publicClue"`
	Declarations           []Declaration    `json:"declarations"`
	Proposal               *ProposalData    `json:"proposal,omitempty"`
	VotesCast              int              `json:"votesCast"`
	DeckSize               int              `json:"deckSize"`
	Players                []PlayerSnapshot `json:"players"`
	Paused                 bool             `json:"paused"`
}

type ErrorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
