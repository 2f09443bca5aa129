package internal

import "strings"

type PlayerSnapshot struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Character *Character `json:"character"`
	CardCount int        `json:"cardCount"`
	HasVoted  bool       `json:"hasVoted"`
	Connected bool       `json:"connected"`
}

// PlayerReveal is the end-of-game view of a player, role included.
type PlayerReveal struct {
	Name           string `json:"name"`
	CharacterName  string `json:"characterName"`
	CharacterColor string `json:"characterColor"`
	Role           Role   `json:"role"`
}

func (p *Player) ResetForLobby() {
	p.Character = nil
	p.Role = ""
	p.Hand = make([]Card, 0)
	p.HasVoted = false
	p.FinalClues = nil
}

func (p *Player) IsRingleader() bool {
	return p.Role == RoleRingleader
}

func (p *Player) NameMatches(name string) bool {
	return strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name))
}

// TakeCards removes cards from the hand as a multiset. Nothing is removed unless every card is present.
func (p *Player) TakeCards(cards []Card) bool {
	remaining := make([]Card, len(p.Hand))
	copy(remaining, p.Hand)
	for _, c := range cards {
		idx := -1
		for i, h := range remaining {
			if h == c {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false
		}
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	p.Hand = remaining
	return true
}

func (p *Player) Reveal() PlayerReveal {
	reveal := PlayerReveal{Name: p.Name, Role: p.Role}
	if p.Character != nil {
		reveal.CharacterName = p.Character.Name
		reveal.CharacterColor = p.Character.Color
	}
	return reveal
}
