package store

import (
	"context"
	"time"

	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) CreateTournament(ctx context.Context, q Executor, tournament *bracket.Tournament) error {
	if tournament.CreatedAt.IsZero() {
		tournament.CreatedAt = time.Now().UTC()
	}
	_, err := sqlx.NamedExecContext(ctx, pick(q, s.db), `INSERT INTO tournaments (id, owner_id, name, status, format, sets_to_win, games_to_win_set, tiebreak_at, golden_point, americano_rounds, created_at)
        VALUES (:id, :owner_id, :name, :status, :format, :sets_to_win, :games_to_win_set, :tiebreak_at, :golden_point, :americano_rounds, :created_at)`, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, q Executor, id uuid.UUID) (*bracket.Tournament, error) {
	e := pick(q, s.db)
	var tournament bracket.Tournament
	if err := sqlx.GetContext(ctx, e, &tournament, e.Rebind("SELECT * FROM tournaments WHERE id = ?"), id); err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentsByOwner(ctx context.Context, q Executor, ownerID uuid.UUID) ([]bracket.Tournament, error) {
	e := pick(q, s.db)
	var tournaments []bracket.Tournament
	err := sqlx.SelectContext(ctx, e, &tournaments, e.Rebind("SELECT * FROM tournaments WHERE owner_id = ? ORDER BY created_at DESC"), ownerID)
	return tournaments, err
}

func (s *TournamentStore) UpdateTournamentStatus(ctx context.Context, q Executor, id uuid.UUID, status bracket.TournamentStatus) error {
	e := pick(q, s.db)
	res, err := e.ExecContext(ctx, e.Rebind("UPDATE tournaments SET status = ? WHERE id = ?"), status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res)
}

func (s *TournamentStore) CreateCategory(ctx context.Context, q Executor, category *bracket.Category) error {
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	_, err := sqlx.NamedExecContext(ctx, pick(q, s.db), `INSERT INTO categories (id, tournament_id, name, generation, created_at)
        VALUES (:id, :tournament_id, :name, :generation, :created_at)`, category)
	return err
}

// GetCategory only finds the category inside the given tournament.
func (s *TournamentStore) GetCategory(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) (*bracket.Category, error) {
	e := pick(q, s.db)
	var category bracket.Category
	err := sqlx.GetContext(ctx, e, &category, e.Rebind("SELECT * FROM categories WHERE id = ? AND tournament_id = ?"), categoryID, tournamentID)
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *TournamentStore) GetCategories(ctx context.Context, q Executor, tournamentID uuid.UUID) ([]bracket.Category, error) {
	e := pick(q, s.db)
	var categories []bracket.Category
	err := sqlx.SelectContext(ctx, e, &categories, e.Rebind("SELECT * FROM categories WHERE tournament_id = ? ORDER BY created_at, name"), tournamentID)
	return categories, err
}

// BumpGeneration must be the first write of a generation transaction: it takes the
// category row lock, so concurrent regenerations of the same category queue up behind it.
func (s *TournamentStore) BumpGeneration(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) error {
	e := pick(q, s.db)
	res, err := e.ExecContext(ctx, e.Rebind("UPDATE categories SET generation = generation + 1 WHERE id = ? AND tournament_id = ?"), categoryID, tournamentID)
	if err != nil {
		return err
	}
	return checkAffectedRows(res)
}

func (s *TournamentStore) CreateTeam(ctx context.Context, q Executor, team *bracket.Team) error {
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now().UTC()
	}
	_, err := sqlx.NamedExecContext(ctx, pick(q, s.db), `INSERT INTO teams (id, tournament_id, category_id, name, player_1_id, player_2_id, status, seed, created_at)
        VALUES (:id, :tournament_id, :category_id, :name, :player_1_id, :player_2_id, :status, :seed, :created_at)`, team)
	return err
}

func (s *TournamentStore) GetTeam(ctx context.Context, q Executor, id uuid.UUID) (*bracket.Team, error) {
	e := pick(q, s.db)
	var team bracket.Team
	if err := sqlx.GetContext(ctx, e, &team, e.Rebind("SELECT * FROM teams WHERE id = ?"), id); err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *TournamentStore) UpdateTeamStatus(ctx context.Context, q Executor, id uuid.UUID, status bracket.TeamStatus) error {
	e := pick(q, s.db)
	res, err := e.ExecContext(ctx, e.Rebind("UPDATE teams SET status = ? WHERE id = ?"), status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(res)
}

// GetTeams lists the category's teams seeded first, then in registration order.
// A nil status returns every team.
func (s *TournamentStore) GetTeams(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID, status *bracket.TeamStatus) ([]bracket.Team, error) {
	e := pick(q, s.db)
	query := "SELECT * FROM teams WHERE tournament_id = ? AND category_id = ?"
	args := []any{tournamentID, categoryID}
	if status != nil {
		query += " AND status = ?"
		args = append(args, *status)
	}
	query += " ORDER BY CASE WHEN seed IS NULL THEN 1 ELSE 0 END, seed, created_at, id"

	var teams []bracket.Team
	err := sqlx.SelectContext(ctx, e, &teams, e.Rebind(query), args...)
	return teams, err
}
