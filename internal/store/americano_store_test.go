package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolsAndRankings(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewAmericanoStore(db)
	ctx := context.Background()
	tournament, category := createFixture(t, db)

	players := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	pool := bracket.Pool{
		ID: uuid.New(), TournamentID: tournament.ID, CategoryID: category.ID, RoundNumber: 1, PoolNumber: 1,
		Player1ID: players[0], Player2ID: players[1], Player3ID: players[2], Player4ID: players[3],
	}
	match := bracket.PoolMatch{
		ID: uuid.New(), PoolID: pool.ID, TournamentID: tournament.ID, CategoryID: category.ID, RoundNumber: 1, MatchNumber: 1,
		TeamAPlayer1ID: players[0], TeamAPlayer2ID: players[1], TeamBPlayer1ID: players[2], TeamBPlayer2ID: players[3],
		Status: bracket.MatchScheduled,
	}

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreatePools(ctx, tx, []bracket.Pool{pool}))
	require.NoError(t, store.CreatePoolMatches(ctx, tx, []bracket.PoolMatch{match}))
	require.NoError(t, tx.Commit())

	count, err := store.CountPools(ctx, nil, tournament.ID, category.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	open, err := store.CountOpenPoolMatches(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	match.TeamAScore = utils.Ptr(21)
	match.TeamBScore = utils.Ptr(15)
	match.Status = bracket.MatchCompleted
	require.NoError(t, store.UpdatePoolMatchResult(ctx, nil, &match))

	fetched, err := store.GetPoolMatch(ctx, nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 21, *fetched.TeamAScore)
	assert.Equal(t, bracket.MatchCompleted, fetched.Status)

	open, err = store.CountOpenPoolMatches(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Zero(t, open)

	ranking := &bracket.Ranking{TournamentID: tournament.ID, CategoryID: category.ID, PlayerID: players[0], MatchesPlayed: 1, Wins: 1, PointsFor: 21, PointsAgainst: 15, Points: 21}
	require.NoError(t, store.UpsertRanking(ctx, nil, ranking))
	ranking.Points = 30
	require.NoError(t, store.UpsertRanking(ctx, nil, ranking))

	stored, err := store.GetRanking(ctx, nil, category.ID, players[0])
	require.NoError(t, err)
	assert.Equal(t, 30, stored.Points)

	_, err = store.GetRanking(ctx, nil, category.ID, players[1])
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, store.DeleteCategoryPools(ctx, nil, tournament.ID, category.ID))
	pools, err := store.GetPools(ctx, nil, tournament.ID, category.ID)
	require.NoError(t, err)
	assert.Empty(t, pools)
	rankings, err := store.GetRankings(ctx, nil, tournament.ID, category.ID)
	require.NoError(t, err)
	assert.Empty(t, rankings)
}
