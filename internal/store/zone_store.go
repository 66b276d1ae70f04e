package store

import (
	"context"

	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ZoneStore struct {
	db *sqlx.DB
}

func NewZoneStore(db *sqlx.DB) *ZoneStore {
	return &ZoneStore{db: db}
}

func (s *ZoneStore) CreateZones(ctx context.Context, q Executor, zones []bracket.Zone) error {
	if len(zones) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, pick(q, s.db), `INSERT INTO zones (id, tournament_id, category_id, name, position)
		VALUES (:id, :tournament_id, :category_id, :name, :position)`, zones)
	return err
}

func (s *ZoneStore) AddTeams(ctx context.Context, q Executor, members []bracket.Standing) error {
	if len(members) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, pick(q, s.db), `INSERT INTO zone_teams (zone_id, team_id, position)
		VALUES (:zone_id, :team_id, :position)`, members)
	return err
}

func (s *ZoneStore) GetZone(ctx context.Context, q Executor, id uuid.UUID) (*bracket.Zone, error) {
	e := pick(q, s.db)
	var zone bracket.Zone
	if err := sqlx.GetContext(ctx, e, &zone, e.Rebind("SELECT * FROM zones WHERE id = ?"), id); err != nil {
		return nil, err
	}
	return &zone, nil
}

func (s *ZoneStore) GetZones(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) ([]bracket.Zone, error) {
	e := pick(q, s.db)
	var zones []bracket.Zone
	err := sqlx.SelectContext(ctx, e, &zones, e.Rebind("SELECT * FROM zones WHERE tournament_id = ? AND category_id = ? ORDER BY position"), tournamentID, categoryID)
	return zones, err
}

// GetMembers returns the zone's teams with their cached standings, in member order.
func (s *ZoneStore) GetMembers(ctx context.Context, q Executor, zoneID uuid.UUID) ([]bracket.Standing, error) {
	e := pick(q, s.db)
	var members []bracket.Standing
	err := sqlx.SelectContext(ctx, e, &members, e.Rebind("SELECT * FROM zone_teams WHERE zone_id = ? ORDER BY position"), zoneID)
	return members, err
}

func (s *ZoneStore) SaveStandings(ctx context.Context, q Executor, standings []bracket.Standing) error {
	e := pick(q, s.db)
	for i := range standings {
		res, err := sqlx.NamedExecContext(ctx, e, `UPDATE zone_teams SET played = :played, wins = :wins, losses = :losses,
			sets_won = :sets_won, sets_lost = :sets_lost, games_won = :games_won, games_lost = :games_lost, points = :points
			WHERE zone_id = :zone_id AND team_id = :team_id`, &standings[i])
		if err != nil {
			return err
		}
		if err := checkAffectedRows(res); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCategoryZones removes zones and memberships. Matches referencing the zones must be gone already.
func (s *ZoneStore) DeleteCategoryZones(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) error {
	e := pick(q, s.db)
	if _, err := e.ExecContext(ctx, e.Rebind(`DELETE FROM zone_teams WHERE zone_id IN
		(SELECT id FROM zones WHERE tournament_id = ? AND category_id = ?)`), tournamentID, categoryID); err != nil {
		return err
	}
	_, err := e.ExecContext(ctx, e.Rebind("DELETE FROM zones WHERE tournament_id = ? AND category_id = ?"), tournamentID, categoryID)
	return err
}
