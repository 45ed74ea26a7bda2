package votes

import (
	"time"

	"github.com/google/uuid"

	"Agora/internal/core/statements"
)

// Decision is a user's stance on a statement
type Decision string

const (
	DecisionAgree    Decision = "agree"
	DecisionNeutral  Decision = "neutral"
	DecisionDisagree Decision = "disagree"
)

// Decisions lists every valid decision in display order
var Decisions = []Decision{DecisionAgree, DecisionNeutral, DecisionDisagree}

// ParseDecision validates a raw decision value
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionAgree, DecisionNeutral, DecisionDisagree:
		return d, nil
	}
	return "", ErrInvalidDecision
}

// Vote is one user's decision on one statement.
// At most one vote exists per (StatementID, UserID); a re-vote updates it in place.
type Vote struct {
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
	UserID      string    `json:"-" db:"user_id"`
	Decision    Decision  `json:"decision" db:"decision"`
	Source      string    `json:"source" db:"source"`
	StatementID uuid.UUID `json:"statementId" db:"statement_id"`
	ID          uuid.UUID `json:"id" db:"id"`
}

// Transition describes what a recorded vote did to the ledger
type Transition string

const (
	TransitionCreated   Transition = "created"
	TransitionChanged   Transition = "changed"
	TransitionUnchanged Transition = "unchanged"
)

// UpsertResult is the committed outcome of a single upsert
type UpsertResult struct {
	Vote       *Vote
	Previous   Decision // empty when the vote was created
	Transition Transition
	Stats      statements.Stats // counters after the commit
}

// Delta returns the counter adjustment for moving a user's vote from prev to next.
// prev is empty for a first vote. Equal decisions produce a zero delta.
func Delta(prev, next Decision) statements.Stats {
	var d statements.Stats
	if prev == next {
		return d
	}
	if prev == "" {
		d.VotesTotal = 1
	} else {
		bump(&d, prev, -1)
	}
	bump(&d, next, 1)
	return d
}

func bump(s *statements.Stats, d Decision, by int64) {
	switch d {
	case DecisionAgree:
		s.VotesAgree += by
	case DecisionNeutral:
		s.VotesNeutral += by
	case DecisionDisagree:
		s.VotesDisagree += by
	}
}

// TransitionFor classifies an upsert from prev to next
func TransitionFor(prev, next Decision) Transition {
	switch {
	case prev == "":
		return TransitionCreated
	case prev == next:
		return TransitionUnchanged
	default:
		return TransitionChanged
	}
}
