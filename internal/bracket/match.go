package bracket

import (
	"time"

	"github.com/AdamBeresnev/padel-tournament/internal/utils"
	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "SCHEDULED"
	MatchInProgress MatchStatus = "IN_PROGRESS"
	MatchCompleted  MatchStatus = "COMPLETED"
	MatchCancelled  MatchStatus = "CANCELLED"
	MatchWalkover   MatchStatus = "WALKOVER"
)

type Branch string

const (
	WinnersBranch Branch = "WINNERS"
	LosersBranch  Branch = "LOSERS"
	FinalsBranch  Branch = "FINALS"
	GroupBranch   Branch = "GROUP"
)

// EliminationStartRound is the round number of the first elimination round that
// follows a group phase. Group rounds always stay below it.
const EliminationStartRound = 100

type Match struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	CategoryID   uuid.UUID  `db:"category_id" json:"category_id"`
	ZoneID       *uuid.UUID `db:"zone_id" json:"zone_id,omitempty"`

	// Position in the bracket: successor is (RoundNumber+1, ceil(MatchNumber/2)) within the branch
	Branch      Branch `db:"branch" json:"branch"`
	RoundNumber int    `db:"round_number" json:"round_number"`
	MatchNumber int    `db:"match_number" json:"match_number"`

	Team1ID *uuid.UUID `db:"team_1_id" json:"team_1_id,omitempty"`
	Team2ID *uuid.UUID `db:"team_2_id" json:"team_2_id,omitempty"`

	Status       MatchStatus `db:"status" json:"status"`
	WinnerTeamID *uuid.UUID  `db:"winner_team_id" json:"winner_team_id,omitempty"`
	IsBye        bool        `db:"is_bye" json:"is_bye"`

	WinnerNextMatchID *uuid.UUID `db:"winner_next_match_id" json:"winner_next_match_id,omitempty"`
	WinnerNextSlot    *int       `db:"winner_next_slot" json:"winner_next_slot,omitempty"`

	LoserNextMatchID *uuid.UUID `db:"loser_next_match_id" json:"loser_next_match_id,omitempty"`
	LoserNextSlot    *int       `db:"loser_next_slot" json:"loser_next_slot,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Sets []Set `db:"-" json:"sets,omitempty"`
}

// Set holds the games of one set. Tiebreak points are only present for sets decided by a tiebreak.
type Set struct {
	MatchID       uuid.UUID `db:"match_id" json:"-"`
	SetNumber     int       `db:"set_number" json:"set_number"`
	Team1Games    int       `db:"team_1_games" json:"team_1_games"`
	Team2Games    int       `db:"team_2_games" json:"team_2_games"`
	Team1Tiebreak *int      `db:"team_1_tiebreak" json:"team_1_tiebreak,omitempty"`
	Team2Tiebreak *int      `db:"team_2_tiebreak" json:"team_2_tiebreak,omitempty"`
}

func (m *Match) IsDecided() bool {
	return m.Status == MatchCompleted || m.Status == MatchWalkover
}

func (m *Match) IsClosed() bool {
	return m.IsDecided() || m.Status == MatchCancelled
}

// Slot returns the team placed in slot 1 or 2.
func (m *Match) Slot(slot int) *uuid.UUID {
	if slot == 1 {
		return m.Team1ID
	}
	return m.Team2ID
}

func (m *Match) SetSlot(slot int, teamID *uuid.UUID) {
	if slot == 1 {
		m.Team1ID = teamID
	} else {
		m.Team2ID = teamID
	}
}

// SlotOf returns the slot the team plays in, or 0 if the team is not part of the match.
func (m *Match) SlotOf(teamID uuid.UUID) int {
	if utils.Is(m.Team1ID, teamID) {
		return 1
	}
	if utils.Is(m.Team2ID, teamID) {
		return 2
	}
	return 0
}

// Loser returns the opponent of the recorded winner.
func (m *Match) Loser() *uuid.UUID {
	if m.WinnerTeamID == nil {
		return nil
	}
	switch m.SlotOf(*m.WinnerTeamID) {
	case 1:
		return m.Team2ID
	case 2:
		return m.Team1ID
	}
	return nil
}

func (m *Match) IsWinner(teamID uuid.UUID) bool {
	return m.IsDecided() && utils.Is(m.WinnerTeamID, teamID)
}
