package bracket

import "github.com/google/uuid"

type Zone struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	CategoryID   uuid.UUID `db:"category_id" json:"category_id"`
	Name         string    `db:"name" json:"name"`
	Position     int       `db:"position" json:"position"`
}

// Standing is a team's accumulated record inside a zone. Position is the team's
// place in the zone's member list and is the last resort ordering between tied teams.
type Standing struct {
	ZoneID    uuid.UUID `db:"zone_id" json:"zone_id"`
	TeamID    uuid.UUID `db:"team_id" json:"team_id"`
	Position  int       `db:"position" json:"position"`
	Played    int       `db:"played" json:"played"`
	Wins      int       `db:"wins" json:"wins"`
	Losses    int       `db:"losses" json:"losses"`
	SetsWon   int       `db:"sets_won" json:"sets_won"`
	SetsLost  int       `db:"sets_lost" json:"sets_lost"`
	GamesWon  int       `db:"games_won" json:"games_won"`
	GamesLost int       `db:"games_lost" json:"games_lost"`
	Points    int       `db:"points" json:"points"`

	Rank int `db:"-" json:"rank"`
}

func (s Standing) SetDiff() int {
	return s.SetsWon - s.SetsLost
}

func (s Standing) GameDiff() int {
	return s.GamesWon - s.GamesLost
}
