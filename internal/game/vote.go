package game

import "github.com/scythe504/coral-backend/internal"

// Tally is a plurality counter accepting one vote per voter.
// Winners keep the order in which options first received a vote.
type Tally[K comparable] struct {
	votes  map[string]K
	counts map[K]int
	order  []K
}

type TallyResult[K comparable] struct {
	Winners  []K
	MaxCount int
}

func NewTally[K comparable]() *Tally[K] {
	return &Tally[K]{
		votes:  make(map[string]K),
		counts: make(map[K]int),
	}
}

func (t *Tally[K]) Cast(voter string, choice K) error {
	if _, ok := t.votes[voter]; ok {
		return ErrAlreadyVoted
	}
	t.votes[voter] = choice
	if t.counts[choice] == 0 {
		t.order = append(t.order, choice)
	}
	t.counts[choice]++
	return nil
}

func (t *Tally[K]) Voted(voter string) bool {
	_, ok := t.votes[voter]
	return ok
}

func (t *Tally[K]) Count(choice K) int { return t.counts[choice] }

func (t *Tally[K]) Len() int { return len(t.votes) }

func (t *Tally[K]) Result() TallyResult[K] {
	res := TallyResult[K]{Winners: make([]K, 0)}
	for _, k := range t.order {
		switch n := t.counts[k]; {
		case n > res.MaxCount:
			res.MaxCount = n
			res.Winners = append(res.Winners[:0], k)
		case n == res.MaxCount:
			res.Winners = append(res.Winners, k)
		}
	}
	return res
}

// Decided reports the winner when exactly one option holds the maximum.
func (r TallyResult[K]) Decided() (K, bool) {
	if len(r.Winners) == 1 {
		return r.Winners[0], true
	}
	var zero K
	return zero, false
}

// ProposalPassed is a strict majority; ties fail.
func ProposalPassed(yes, no int) bool {
	return yes > no
}

// CategoryOutcome is one resolved or tied final-vote category.
type CategoryOutcome struct {
	Value   string
	Options []string
}

func (c CategoryOutcome) Resolved() bool { return c.Value != "" }

// ResolveCategory decides one final-vote category. An empty ballot is unresolved
// and leaves only the "No one voted" sentinel to the tie-break.
func ResolveCategory(t *Tally[string]) CategoryOutcome {
	res := t.Result()
	if len(res.Winners) == 0 {
		return CategoryOutcome{Options: []string{internal.NoOneVoted}}
	}
	if v, ok := res.Decided(); ok {
		return CategoryOutcome{Value: v}
	}
	return CategoryOutcome{Options: res.Winners}
}
