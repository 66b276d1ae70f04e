package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TeamStatus string

const (
	TeamDraft     TeamStatus = "DRAFT"
	TeamConfirmed TeamStatus = "CONFIRMED"
	TeamCancelled TeamStatus = "CANCELLED"
)

type Team struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	CategoryID   uuid.UUID  `db:"category_id" json:"category_id"`
	Name         string     `db:"name" json:"name"`
	Player1ID    uuid.UUID  `db:"player_1_id" json:"player_1_id"`
	Player2ID    uuid.UUID  `db:"player_2_id" json:"player_2_id"`
	Status       TeamStatus `db:"status" json:"status"`
	Seed         *int       `db:"seed" json:"seed,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
