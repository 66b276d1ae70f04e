package store

import (
	"context"

	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AmericanoStore struct {
	db *sqlx.DB
}

func NewAmericanoStore(db *sqlx.DB) *AmericanoStore {
	return &AmericanoStore{db: db}
}

func (s *AmericanoStore) CreatePools(ctx context.Context, q Executor, pools []bracket.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, pick(q, s.db), `INSERT INTO americano_pools (id, tournament_id, category_id, round_number, pool_number, player_1_id, player_2_id, player_3_id, player_4_id)
		VALUES (:id, :tournament_id, :category_id, :round_number, :pool_number, :player_1_id, :player_2_id, :player_3_id, :player_4_id)`, pools)
	return err
}

func (s *AmericanoStore) CreatePoolMatches(ctx context.Context, q Executor, matches []bracket.PoolMatch) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := sqlx.NamedExecContext(ctx, pick(q, s.db), `INSERT INTO americano_pool_matches (id, pool_id, tournament_id, category_id, round_number, match_number,
			team_a_player_1_id, team_a_player_2_id, team_b_player_1_id, team_b_player_2_id, team_a_score, team_b_score, status)
		VALUES (:id, :pool_id, :tournament_id, :category_id, :round_number, :match_number,
			:team_a_player_1_id, :team_a_player_2_id, :team_b_player_1_id, :team_b_player_2_id, :team_a_score, :team_b_score, :status)`, matches)
	return err
}

func (s *AmericanoStore) GetPools(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) ([]bracket.Pool, error) {
	e := pick(q, s.db)
	var pools []bracket.Pool
	err := sqlx.SelectContext(ctx, e, &pools, e.Rebind(`SELECT * FROM americano_pools WHERE tournament_id = ? AND category_id = ?
		ORDER BY round_number, pool_number`), tournamentID, categoryID)
	return pools, err
}

func (s *AmericanoStore) CountPools(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) (int, error) {
	e := pick(q, s.db)
	var count int
	err := sqlx.GetContext(ctx, e, &count, e.Rebind("SELECT COUNT(*) FROM americano_pools WHERE tournament_id = ? AND category_id = ?"), tournamentID, categoryID)
	return count, err
}

func (s *AmericanoStore) GetPoolMatches(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) ([]bracket.PoolMatch, error) {
	e := pick(q, s.db)
	var matches []bracket.PoolMatch
	err := sqlx.SelectContext(ctx, e, &matches, e.Rebind(`SELECT m.* FROM americano_pool_matches m
		JOIN americano_pools p ON p.id = m.pool_id
		WHERE m.tournament_id = ? AND m.category_id = ?
		ORDER BY m.round_number, p.pool_number, m.match_number`), tournamentID, categoryID)
	return matches, err
}

func (s *AmericanoStore) GetPoolMatch(ctx context.Context, q Executor, id uuid.UUID) (*bracket.PoolMatch, error) {
	e := pick(q, s.db)
	var match bracket.PoolMatch
	if err := sqlx.GetContext(ctx, e, &match, e.Rebind("SELECT * FROM americano_pool_matches WHERE id = ?"), id); err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *AmericanoStore) UpdatePoolMatchResult(ctx context.Context, q Executor, match *bracket.PoolMatch) error {
	res, err := sqlx.NamedExecContext(ctx, pick(q, s.db), `UPDATE americano_pool_matches SET team_a_score = :team_a_score,
		team_b_score = :team_b_score, status = :status WHERE id = :id`, match)
	if err != nil {
		return err
	}
	return checkAffectedRows(res)
}

// CountOpenPoolMatches counts the pool matches of the whole tournament still waiting for a result.
func (s *AmericanoStore) CountOpenPoolMatches(ctx context.Context, q Executor, tournamentID uuid.UUID) (int, error) {
	e := pick(q, s.db)
	var count int
	err := sqlx.GetContext(ctx, e, &count, e.Rebind("SELECT COUNT(*) FROM americano_pool_matches WHERE tournament_id = ? AND status IN (?, ?)"),
		tournamentID, bracket.MatchScheduled, bracket.MatchInProgress)
	return count, err
}

func (s *AmericanoStore) GetRankings(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) ([]bracket.Ranking, error) {
	e := pick(q, s.db)
	var rankings []bracket.Ranking
	err := sqlx.SelectContext(ctx, e, &rankings, e.Rebind(`SELECT * FROM americano_rankings WHERE tournament_id = ? AND category_id = ?
		ORDER BY points DESC, wins DESC, (points_for - points_against) DESC, player_id`), tournamentID, categoryID)
	return rankings, err
}

func (s *AmericanoStore) GetRanking(ctx context.Context, q Executor, categoryID, playerID uuid.UUID) (*bracket.Ranking, error) {
	e := pick(q, s.db)
	var ranking bracket.Ranking
	err := sqlx.GetContext(ctx, e, &ranking, e.Rebind("SELECT * FROM americano_rankings WHERE category_id = ? AND player_id = ?"), categoryID, playerID)
	if err != nil {
		return nil, err
	}
	return &ranking, nil
}

func (s *AmericanoStore) UpsertRanking(ctx context.Context, q Executor, ranking *bracket.Ranking) error {
	_, err := sqlx.NamedExecContext(ctx, pick(q, s.db), `INSERT INTO americano_rankings
			(tournament_id, category_id, player_id, matches_played, wins, losses, draws, points_for, points_against, points)
		VALUES (:tournament_id, :category_id, :player_id, :matches_played, :wins, :losses, :draws, :points_for, :points_against, :points)
		ON CONFLICT (category_id, player_id) DO UPDATE SET
			matches_played = excluded.matches_played, wins = excluded.wins, losses = excluded.losses, draws = excluded.draws,
			points_for = excluded.points_for, points_against = excluded.points_against, points = excluded.points`, ranking)
	return err
}

func (s *AmericanoStore) DeleteRankings(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) error {
	e := pick(q, s.db)
	_, err := e.ExecContext(ctx, e.Rebind("DELETE FROM americano_rankings WHERE tournament_id = ? AND category_id = ?"), tournamentID, categoryID)
	return err
}

// DeleteCategoryPools clears pools, their matches and sets, and the category ranking.
func (s *AmericanoStore) DeleteCategoryPools(ctx context.Context, q Executor, tournamentID, categoryID uuid.UUID) error {
	e := pick(q, s.db)
	statements := []string{
		`DELETE FROM match_sets WHERE match_id IN
			(SELECT id FROM americano_pool_matches WHERE tournament_id = ? AND category_id = ?)`,
		"DELETE FROM americano_pool_matches WHERE tournament_id = ? AND category_id = ?",
		"DELETE FROM americano_pools WHERE tournament_id = ? AND category_id = ?",
		"DELETE FROM americano_rankings WHERE tournament_id = ? AND category_id = ?",
	}
	for _, stmt := range statements {
		if _, err := e.ExecContext(ctx, e.Rebind(stmt), tournamentID, categoryID); err != nil {
			return err
		}
	}
	return nil
}
