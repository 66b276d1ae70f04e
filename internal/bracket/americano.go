package bracket

import "github.com/google/uuid"

// Pool is a group of four players sharing a court for one americano round.
type Pool struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	CategoryID   uuid.UUID `db:"category_id" json:"category_id"`
	RoundNumber  int       `db:"round_number" json:"round_number"`
	PoolNumber   int       `db:"pool_number" json:"pool_number"`
	Player1ID    uuid.UUID `db:"player_1_id" json:"player_1_id"`
	Player2ID    uuid.UUID `db:"player_2_id" json:"player_2_id"`
	Player3ID    uuid.UUID `db:"player_3_id" json:"player_3_id"`
	Player4ID    uuid.UUID `db:"player_4_id" json:"player_4_id"`

	Matches []PoolMatch `db:"-" json:"matches"`
}

func (p *Pool) Players() [4]uuid.UUID {
	return [4]uuid.UUID{p.Player1ID, p.Player2ID, p.Player3ID, p.Player4ID}
}

type PoolMatch struct {
	ID             uuid.UUID   `db:"id" json:"id"`
	PoolID         uuid.UUID   `db:"pool_id" json:"pool_id"`
	TournamentID   uuid.UUID   `db:"tournament_id" json:"tournament_id"`
	CategoryID     uuid.UUID   `db:"category_id" json:"category_id"`
	RoundNumber    int         `db:"round_number" json:"round_number"`
	MatchNumber    int         `db:"match_number" json:"match_number"`
	TeamAPlayer1ID uuid.UUID   `db:"team_a_player_1_id" json:"team_a_player_1_id"`
	TeamAPlayer2ID uuid.UUID   `db:"team_a_player_2_id" json:"team_a_player_2_id"`
	TeamBPlayer1ID uuid.UUID   `db:"team_b_player_1_id" json:"team_b_player_1_id"`
	TeamBPlayer2ID uuid.UUID   `db:"team_b_player_2_id" json:"team_b_player_2_id"`
	TeamAScore     *int        `db:"team_a_score" json:"team_a_score,omitempty"`
	TeamBScore     *int        `db:"team_b_score" json:"team_b_score,omitempty"`
	Status         MatchStatus `db:"status" json:"status"`

	Sets []Set `db:"-" json:"sets,omitempty"`
}

func (m *PoolMatch) TeamA() [2]uuid.UUID {
	return [2]uuid.UUID{m.TeamAPlayer1ID, m.TeamAPlayer2ID}
}

func (m *PoolMatch) TeamB() [2]uuid.UUID {
	return [2]uuid.UUID{m.TeamBPlayer1ID, m.TeamBPlayer2ID}
}

// Ranking is a player's aggregated americano record across all rounds of a category.
type Ranking struct {
	TournamentID  uuid.UUID `db:"tournament_id" json:"tournament_id"`
	CategoryID    uuid.UUID `db:"category_id" json:"category_id"`
	PlayerID      uuid.UUID `db:"player_id" json:"player_id"`
	MatchesPlayed int       `db:"matches_played" json:"matches_played"`
	Wins          int       `db:"wins" json:"wins"`
	Losses        int       `db:"losses" json:"losses"`
	Draws         int       `db:"draws" json:"draws"`
	PointsFor     int       `db:"points_for" json:"points_for"`
	PointsAgainst int       `db:"points_against" json:"points_against"`
	Points        int       `db:"points" json:"points"`

	Rank int `db:"-" json:"rank"`
}

func (r Ranking) PointDiff() int {
	return r.PointsFor - r.PointsAgainst
}
