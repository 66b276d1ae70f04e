package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	BracketGenerated  Type = "BRACKET_GENERATED"
	GroupsGenerated   Type = "GROUPS_GENERATED"
	GroupsClassified  Type = "GROUPS_CLASSIFIED"
	MatchUpdated      Type = "MATCH_UPDATED"
	PoolsGenerated    Type = "POOLS_GENERATED"
	RankingUpdated    Type = "RANKING_UPDATED"
	TournamentUpdated Type = "TOURNAMENT_UPDATED"
)

type Event struct {
	Type         Type      `json:"type"`
	TournamentID uuid.UUID `json:"tournament_id"`
	CategoryID   uuid.UUID `json:"category_id"`
	Payload      any       `json:"payload,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func New(t Type, tournamentID, categoryID uuid.UUID, payload any) Event {
	return Event{
		Type:         t,
		TournamentID: tournamentID,
		CategoryID:   categoryID,
		Payload:      payload,
		OccurredAt:   time.Now().UTC(),
	}
}

// Notifier delivers events after the state change is committed.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type nop struct{}

func (nop) Notify(context.Context, Event) error { return nil }

func Nop() Notifier {
	return nop{}
}
