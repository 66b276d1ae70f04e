package store

import (
	"context"
	"time"

	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchStore struct {
	db *sqlx.DB
}

func NewMatchStore(db *sqlx.DB) *MatchStore {
	return &MatchStore{db: db}
}

func (s *MatchStore) CreateMatches(ctx context.Context, q Executor, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range matches {
		if matches[i].CreatedAt.IsZero() {
			matches[i].CreatedAt = now
		}
	}
	_, err := sqlx.NamedExecContext(ctx, pick(q, s.db), `INSERT INTO matches (id, tournament_id, category_id, zone_id, branch, round_number, match_number, team_1_id, team_2_id, status, winner_team_id, is_bye, winner_next_match_id, winner_next_slot, loser_next_match_id, loser_next_slot, created_at)
		VALUES (:id, :tournament_id, :category_id, :zone_id, :branch, :round_number, :match_number, :team_1_id, :team_2_id, :status, :winner_team_id, :is_bye, :winner_next_match_id, :winner_next_slot, :loser_next_match_id, :loser_next_slot, :created_at)`, matches)
	return err
}

func (s *MatchStore) GetMatch(ctx context.Context, q Executor, id uuid.UUID) (*bracket.Match, error) {
	e := pick(q, s.db)
	var match bracket.Match
	if err := sqlx.GetContext(ctx, e, &match, e.Rebind("SELECT * FROM matches WHERE id = ?"), id); err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *MatchStore) GetMatches(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) ([]bracket.Match, error) {
	e := pick(q, s.db)
	var matches []bracket.Match
	err := sqlx.SelectContext(ctx, e, &matches, e.Rebind(`SELECT * FROM matches WHERE tournament_id = ? AND category_id = ?
		ORDER BY round_number ASC, match_number ASC`), tournamentID, categoryID)
	return matches, err
}

// FindByPosition locates a match through its (branch, round, number) coordinates.
func (s *MatchStore) FindByPosition(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID, branch bracket.Branch, round, number int) (*bracket.Match, error) {
	e := pick(q, s.db)
	var match bracket.Match
	err := sqlx.GetContext(ctx, e, &match, e.Rebind(`SELECT * FROM matches WHERE tournament_id = ? AND category_id = ?
		AND branch = ? AND round_number = ? AND match_number = ? AND zone_id IS NULL`), tournamentID, categoryID, branch, round, number)
	if err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *MatchStore) MaxRound(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID, branch bracket.Branch) (int, error) {
	e := pick(q, s.db)
	var max int
	err := sqlx.GetContext(ctx, e, &max, e.Rebind(`SELECT COALESCE(MAX(round_number), 0) FROM matches
		WHERE tournament_id = ? AND category_id = ? AND branch = ? AND zone_id IS NULL`), tournamentID, categoryID, branch)
	return max, err
}

func (s *MatchStore) GetZoneMatches(ctx context.Context, q Executor, zoneID uuid.UUID) ([]bracket.Match, error) {
	e := pick(q, s.db)
	var matches []bracket.Match
	err := sqlx.SelectContext(ctx, e, &matches, e.Rebind("SELECT * FROM matches WHERE zone_id = ? ORDER BY round_number, match_number"), zoneID)
	return matches, err
}

// UpdateMatch writes back teams, status, winner and bye flag. Routing columns never change after generation.
func (s *MatchStore) UpdateMatch(ctx context.Context, q Executor, match *bracket.Match) error {
	res, err := sqlx.NamedExecContext(ctx, pick(q, s.db), `UPDATE matches SET team_1_id = :team_1_id, team_2_id = :team_2_id,
		status = :status, winner_team_id = :winner_team_id, is_bye = :is_bye WHERE id = :id`, match)
	if err != nil {
		return err
	}
	return checkAffectedRows(res)
}

// SetSlot writes a single team slot. Sibling matches feeding the same successor
// touch different columns, so their writes never clobber each other.
func (s *MatchStore) SetSlot(ctx context.Context, q Executor, matchID uuid.UUID, slot int, teamID *uuid.UUID) error {
	e := pick(q, s.db)
	column := "team_1_id"
	if slot == 2 {
		column = "team_2_id"
	}
	res, err := e.ExecContext(ctx, e.Rebind("UPDATE matches SET "+column+" = ? WHERE id = ?"), teamID, matchID)
	if err != nil {
		return err
	}
	return checkAffectedRows(res)
}

func (s *MatchStore) CountOpenMatches(ctx context.Context, q Executor, tournamentID uuid.UUID) (int, error) {
	e := pick(q, s.db)
	var count int
	err := sqlx.GetContext(ctx, e, &count, e.Rebind("SELECT COUNT(*) FROM matches WHERE tournament_id = ? AND status IN (?, ?)"),
		tournamentID, bracket.MatchScheduled, bracket.MatchInProgress)
	return count, err
}

// HasResults reports whether any match of the category was actually played (byes excluded).
func (s *MatchStore) HasResults(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) (bool, error) {
	e := pick(q, s.db)
	var count int
	err := sqlx.GetContext(ctx, e, &count, e.Rebind(`SELECT COUNT(*) FROM matches WHERE tournament_id = ? AND category_id = ?
		AND status IN (?, ?) AND is_bye = ?`), tournamentID, categoryID, bracket.MatchCompleted, bracket.MatchWalkover, false)
	return count > 0, err
}

func (s *MatchStore) CountMatches(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) (int, error) {
	e := pick(q, s.db)
	var count int
	err := sqlx.GetContext(ctx, e, &count, e.Rebind("SELECT COUNT(*) FROM matches WHERE tournament_id = ? AND category_id = ?"), tournamentID, categoryID)
	return count, err
}

func (s *MatchStore) DeleteCategoryMatches(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) error {
	e := pick(q, s.db)
	if _, err := e.ExecContext(ctx, e.Rebind(`DELETE FROM match_sets WHERE match_id IN
		(SELECT id FROM matches WHERE tournament_id = ? AND category_id = ?)`), tournamentID, categoryID); err != nil {
		return err
	}
	_, err := e.ExecContext(ctx, e.Rebind("DELETE FROM matches WHERE tournament_id = ? AND category_id = ?"), tournamentID, categoryID)
	return err
}

// ReplaceSets swaps the stored sets of a match (elimination, group or pool match) for the given ones.
func (s *MatchStore) ReplaceSets(ctx context.Context, q Executor, matchID uuid.UUID, sets []bracket.Set) error {
	e := pick(q, s.db)
	if _, err := e.ExecContext(ctx, e.Rebind("DELETE FROM match_sets WHERE match_id = ?"), matchID); err != nil {
		return err
	}
	if len(sets) == 0 {
		return nil
	}
	rows := make([]bracket.Set, len(sets))
	for i, set := range sets {
		set.MatchID = matchID
		set.SetNumber = i + 1
		rows[i] = set
	}
	_, err := sqlx.NamedExecContext(ctx, e, `INSERT INTO match_sets (match_id, set_number, team_1_games, team_2_games, team_1_tiebreak, team_2_tiebreak)
		VALUES (:match_id, :set_number, :team_1_games, :team_2_games, :team_1_tiebreak, :team_2_tiebreak)`, rows)
	return err
}

// GetSets returns the sets of the given matches grouped by match id.
func (s *MatchStore) GetSets(ctx context.Context, q Executor, matchIDs []uuid.UUID) (map[uuid.UUID][]bracket.Set, error) {
	out := make(map[uuid.UUID][]bracket.Set)
	if len(matchIDs) == 0 {
		return out, nil
	}

	e := pick(q, s.db)
	query, args, err := sqlx.In("SELECT * FROM match_sets WHERE match_id IN (?) ORDER BY match_id, set_number", matchIDs)
	if err != nil {
		return nil, err
	}

	var sets []bracket.Set
	if err := sqlx.SelectContext(ctx, e, &sets, e.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, set := range sets {
		out[set.MatchID] = append(out[set.MatchID], set)
	}
	return out, nil
}
