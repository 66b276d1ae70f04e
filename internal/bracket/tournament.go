package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentDraft              TournamentStatus = "DRAFT"
	TournamentPublished          TournamentStatus = "PUBLISHED"
	TournamentRegistrationOpen   TournamentStatus = "REGISTRATION_OPEN"
	TournamentRegistrationClosed TournamentStatus = "REGISTRATION_CLOSED"
	TournamentInProgress         TournamentStatus = "IN_PROGRESS"
	TournamentCompleted          TournamentStatus = "COMPLETED"
	TournamentCancelled          TournamentStatus = "CANCELLED"
)

// Terminal statuses accept no further transitions.
func (s TournamentStatus) IsTerminal() bool {
	return s == TournamentCompleted || s == TournamentCancelled
}

type TournamentFormat string

const (
	SingleElimination     TournamentFormat = "SINGLE_ELIMINATION"
	DoubleElimination     TournamentFormat = "DOUBLE_ELIMINATION"
	RoundRobin            TournamentFormat = "ROUND_ROBIN"
	Swiss                 TournamentFormat = "SWISS"
	GroupStageElimination TournamentFormat = "GROUP_STAGE_ELIMINATION"
	Americano             TournamentFormat = "AMERICANO"
	AmericanoSocial       TournamentFormat = "AMERICANO_SOCIAL"
)

func (f TournamentFormat) Valid() bool {
	switch f {
	case SingleElimination, DoubleElimination, RoundRobin, Swiss, GroupStageElimination, Americano, AmericanoSocial:
		return true
	}
	return false
}

// UsesPools reports whether the format is played in rotating americano pools instead of team matches.
func (f TournamentFormat) UsesPools() bool {
	return f == Americano || f == AmericanoSocial
}

// UsesZones reports whether the format starts with a round-robin group phase.
func (f TournamentFormat) UsesZones() bool {
	return f == RoundRobin || f == GroupStageElimination
}

type Tournament struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	OwnerID         uuid.UUID        `db:"owner_id" json:"owner_id"`
	Name            string           `db:"name" json:"name"`
	Status          TournamentStatus `db:"status" json:"status"`
	Format          TournamentFormat `db:"format" json:"format"`
	SetsToWin       int              `db:"sets_to_win" json:"sets_to_win"`
	GamesToWinSet   int              `db:"games_to_win_set" json:"games_to_win_set"`
	TiebreakAt      int              `db:"tiebreak_at" json:"tiebreak_at"`
	GoldenPoint     bool             `db:"golden_point" json:"golden_point"`
	AmericanoRounds int              `db:"americano_rounds" json:"americano_rounds"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}

// ScoringRules describes how a set and a match are won.
type ScoringRules struct {
	SetsToWin     int
	GamesToWinSet int
	TiebreakAt    int
	GoldenPoint   bool
}

const (
	DefaultSetsToWin     = 2
	DefaultGamesToWinSet = 6
	DefaultTiebreakAt    = 6
)

func (t *Tournament) Rules() ScoringRules {
	rules := ScoringRules{
		SetsToWin:     t.SetsToWin,
		GamesToWinSet: t.GamesToWinSet,
		TiebreakAt:    t.TiebreakAt,
		GoldenPoint:   t.GoldenPoint,
	}
	if rules.SetsToWin <= 0 {
		rules.SetsToWin = DefaultSetsToWin
	}
	if rules.GamesToWinSet <= 0 {
		rules.GamesToWinSet = DefaultGamesToWinSet
	}
	if rules.TiebreakAt <= 0 {
		rules.TiebreakAt = rules.GamesToWinSet
	}
	return rules
}

// Category is an independently run division of a tournament. Generation is bumped
// by every bracket or pool (re)generation and doubles as the write lock for it.
type Category struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	Name         string    `db:"name" json:"name"`
	Generation   int       `db:"generation" json:"generation"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
