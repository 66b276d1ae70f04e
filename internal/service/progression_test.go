package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/padel-tournament/internal/apperr"
	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bracketOf creates a tournament of the given format with n confirmed teams and generates its bracket.
func bracketOf(t *testing.T, format bracket.TournamentFormat, n int) (Deps, services, *bracket.Tournament, *bracket.Category, []uuid.UUID) {
	t.Helper()
	deps := testDeps(t)
	svc := newServices(deps)

	tournament, category := createScope(t, svc, format)
	teams := addTeams(t, svc, tournament.ID, category.ID, n)
	require.NoError(t, svc.brackets.GenerateBracket(context.Background(), tournament.ID, category.ID, GenerateOptions{}))
	return deps, svc, tournament, category, teams
}

func TestRecordResultProgressesWinner(t *testing.T) {
	deps, svc, tournament, category, teams := bracketOf(t, bracket.SingleElimination, 4)
	ctx := context.Background()

	first := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 1)
	assert.Equal(t, teams[0], *first.Team1ID)
	assert.Equal(t, teams[3], *first.Team2ID)

	decided, err := svc.matches.RecordResult(ctx, first.ID, straightSets(1))
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, decided.Status)
	assert.Equal(t, teams[0], *decided.WinnerTeamID)

	final := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 2, 1)
	require.NotNil(t, final.Team1ID)
	assert.Equal(t, teams[0], *final.Team1ID)
	assert.Nil(t, final.Team2ID)

	stored, err := svc.matches.GetMatch(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Sets, 2)

	current, err := svc.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentInProgress, current.Status)

	for i := 0; i < 2; i++ {
		require.NoError(t, svc.matches.ProgressWinner(ctx, first.ID, teams[0], decided.Loser()))
	}
	again := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 2, 1)
	assert.Equal(t, final, again, "progressing twice writes the same slot")
}

func TestProgressWinnerRejectsBadInput(t *testing.T) {
	deps, svc, tournament, category, teams := bracketOf(t, bracket.SingleElimination, 4)
	ctx := context.Background()
	first := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 1)

	err := svc.matches.ProgressWinner(ctx, first.ID, teams[0], nil)
	assert.True(t, apperr.Is(err, apperr.CodeState), "match is not decided yet")

	_, err = svc.matches.RecordResult(ctx, first.ID, straightSets(1))
	require.NoError(t, err)

	err = svc.matches.ProgressWinner(ctx, first.ID, teams[1], nil)
	assert.True(t, apperr.Is(err, apperr.CodeValidation), "team did not play the match")

	err = svc.matches.ProgressWinner(ctx, uuid.New(), teams[0], nil)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestRecordResultRejectsInvalidSets(t *testing.T) {
	deps, svc, tournament, category, _ := bracketOf(t, bracket.SingleElimination, 4)
	ctx := context.Background()
	first := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 1)

	testCases := map[string][]bracket.Set{
		"no sets":            nil,
		"unfinished match":   {set(6, 2)},
		"set without winner": {set(6, 6), set(6, 2)},
	}
	for name, sets := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.matches.RecordResult(ctx, first.ID, sets)
			assert.True(t, apperr.Is(err, apperr.CodeValidation))
		})
	}

	stored, err := svc.matches.GetMatch(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchScheduled, stored.Status)
	assert.Nil(t, stored.WinnerTeamID)
	assert.Empty(t, stored.Sets)

	_, err = svc.matches.RecordResult(ctx, first.ID, straightSets(2))
	require.NoError(t, err)
	_, err = svc.matches.RecordResult(ctx, first.ID, straightSets(1))
	assert.True(t, apperr.Is(err, apperr.CodeState), "a decided match has to be reopened first")
}

func TestRecordWalkover(t *testing.T) {
	deps, svc, tournament, category, teams := bracketOf(t, bracket.SingleElimination, 4)
	ctx := context.Background()
	second := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 2)

	_, err := svc.matches.RecordWalkover(ctx, second.ID, teams[0])
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	decided, err := svc.matches.RecordWalkover(ctx, second.ID, teams[2])
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchWalkover, decided.Status)

	final := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 2, 1)
	require.NotNil(t, final.Team2ID)
	assert.Equal(t, teams[2], *final.Team2ID)
}

func TestReopenMatchKeepsDownstreamSlots(t *testing.T) {
	deps, svc, tournament, category, teams := bracketOf(t, bracket.SingleElimination, 4)
	ctx := context.Background()
	first := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 1)

	_, err := svc.matches.RecordResult(ctx, first.ID, straightSets(1))
	require.NoError(t, err)

	reopened, err := svc.matches.ReopenMatch(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchScheduled, reopened.Status)
	assert.Nil(t, reopened.WinnerTeamID)

	stored, err := svc.matches.GetMatch(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Sets)

	final := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 2, 1)
	assert.Equal(t, teams[0], *final.Team1ID, "the previous winner stays until a new result is recorded")

	_, err = svc.matches.RecordResult(ctx, first.ID, straightSets(2))
	require.NoError(t, err)
	final = matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 2, 1)
	assert.Equal(t, teams[3], *final.Team1ID)
}

func TestStartAndCancelMatch(t *testing.T) {
	deps, svc, tournament, category, _ := bracketOf(t, bracket.SingleElimination, 4)
	ctx := context.Background()
	first := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 1)
	second := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 2)
	final := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 2, 1)

	started, err := svc.matches.StartMatch(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchInProgress, started.Status)

	_, err = svc.matches.StartMatch(ctx, final.ID)
	assert.True(t, apperr.Is(err, apperr.CodeState), "teams are not known yet")

	cancelled, err := svc.matches.CancelMatch(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCancelled, cancelled.Status)

	_, err = svc.matches.RecordResult(ctx, second.ID, straightSets(1))
	assert.True(t, apperr.Is(err, apperr.CodeState))

	_, err = svc.matches.ReopenMatch(ctx, first.ID)
	assert.True(t, apperr.Is(err, apperr.CodeState), "only decided matches can be reopened")
}

func TestFinalCompletesTournament(t *testing.T) {
	deps, svc, tournament, category, teams := bracketOf(t, bracket.SingleElimination, 2)
	ctx := context.Background()
	final := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 1)

	_, err := svc.matches.RecordResult(ctx, final.ID, straightSets(2))
	require.NoError(t, err)

	current, err := svc.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, current.Status)

	_, err = svc.matches.ReopenMatch(ctx, final.ID)
	assert.True(t, apperr.Is(err, apperr.CodeState), "a completed tournament is frozen")

	stored, err := svc.matches.GetMatch(ctx, final.ID)
	require.NoError(t, err)
	assert.Equal(t, teams[1], *stored.WinnerTeamID)
}

func TestCategoriesCompleteIndependently(t *testing.T) {
	deps := testDeps(t)
	recorded := &recorder{}
	deps.Notifier = recorded
	svc := newServices(deps)
	ctx := context.Background()

	tournament, first := createScope(t, svc, bracket.SingleElimination)
	second, err := svc.tournaments.CreateCategory(ctx, tournament.ID, "Open B")
	require.NoError(t, err)
	addTeams(t, svc, tournament.ID, first.ID, 2)
	addTeams(t, svc, tournament.ID, second.ID, 2)

	require.NoError(t, svc.brackets.GenerateBracket(ctx, tournament.ID, first.ID, GenerateOptions{}))
	final := matchAt(t, deps, tournament.ID, first.ID, bracket.WinnersBranch, 1, 1)
	_, err = svc.matches.RecordResult(ctx, final.ID, straightSets(1))
	require.NoError(t, err)

	current, err := svc.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentInProgress, current.Status, "Open B has not been drawn yet")
	assert.Zero(t, recorded.count(events.TournamentUpdated))

	require.NoError(t, svc.brackets.GenerateBracket(ctx, tournament.ID, second.ID, GenerateOptions{}))
	other := matchAt(t, deps, tournament.ID, second.ID, bracket.WinnersBranch, 1, 1)
	_, err = svc.matches.RecordResult(ctx, other.ID, straightSets(2))
	require.NoError(t, err)

	current, err = svc.tournaments.GetTournament(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.TournamentCompleted, current.Status)
	assert.Equal(t, 1, recorded.count(events.TournamentUpdated))
}

func TestCorrectedResultReplacesByeWinner(t *testing.T) {
	deps, svc, tournament, category, teams := bracketOf(t, bracket.DoubleElimination, 5)
	ctx := context.Background()
	played := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 2)

	_, err := svc.matches.RecordResult(ctx, played.ID, straightSets(1))
	require.NoError(t, err)
	bye := matchAt(t, deps, tournament.ID, category.ID, bracket.LosersBranch, 1, 1)
	require.NotNil(t, bye.WinnerTeamID)
	assert.Equal(t, teams[4], *bye.WinnerTeamID)

	_, err = svc.matches.ReopenMatch(ctx, played.ID)
	require.NoError(t, err)
	_, err = svc.matches.RecordResult(ctx, played.ID, straightSets(2))
	require.NoError(t, err)

	winners := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 2, 1)
	require.NotNil(t, winners.Team2ID)
	assert.Equal(t, teams[4], *winners.Team2ID)

	bye = matchAt(t, deps, tournament.ID, category.ID, bracket.LosersBranch, 1, 1)
	assert.Equal(t, bracket.MatchCompleted, bye.Status)
	require.NotNil(t, bye.WinnerTeamID)
	assert.Equal(t, teams[3], *bye.WinnerTeamID)
	assert.Equal(t, 2, bye.SlotOf(teams[3]))

	losers := matchAt(t, deps, tournament.ID, category.ID, bracket.LosersBranch, 2, 1)
	require.NotNil(t, losers.Team1ID)
	assert.Equal(t, teams[3], *losers.Team1ID, "the corrected loser replaces the old one")
}

func TestByeWinnerMeetsFirstRoundWinner(t *testing.T) {
	deps, svc, tournament, category, teams := bracketOf(t, bracket.SingleElimination, 5)
	ctx := context.Background()

	semi := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 2, 1)
	assert.Equal(t, teams[0], *semi.Team1ID, "the top seed is through on a bye")
	assert.Nil(t, semi.Team2ID)

	played := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 2)
	_, err := svc.matches.RecordResult(ctx, played.ID, straightSets(2))
	require.NoError(t, err)

	semi = matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 2, 1)
	require.NotNil(t, semi.Team2ID)
	assert.Equal(t, teams[4], *semi.Team2ID)
}

func TestDoubleEliminationLoserDropsDown(t *testing.T) {
	deps, svc, tournament, category, teams := bracketOf(t, bracket.DoubleElimination, 4)
	ctx := context.Background()

	first := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 1)
	_, err := svc.matches.RecordResult(ctx, first.ID, straightSets(1))
	require.NoError(t, err)

	next := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 2, 1)
	assert.Equal(t, teams[0], *next.Team1ID)

	losers := matchAt(t, deps, tournament.ID, category.ID, bracket.LosersBranch, 1, 1)
	require.NotNil(t, losers.Team1ID)
	assert.Equal(t, teams[3], *losers.Team1ID)
	assert.Nil(t, losers.Team2ID)
}

func TestDoubleEliminationLosersBye(t *testing.T) {
	deps, svc, tournament, category, teams := bracketOf(t, bracket.DoubleElimination, 5)
	ctx := context.Background()

	played := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 2)
	_, err := svc.matches.RecordResult(ctx, played.ID, straightSets(1))
	require.NoError(t, err)

	bye := matchAt(t, deps, tournament.ID, category.ID, bracket.LosersBranch, 1, 1)
	assert.Equal(t, bracket.MatchCompleted, bye.Status, "the only loser walks through the bye")
	require.NotNil(t, bye.WinnerTeamID)
	assert.Equal(t, teams[4], *bye.WinnerTeamID)

	next := matchAt(t, deps, tournament.ID, category.ID, bracket.LosersBranch, 2, 1)
	require.NotNil(t, next.Team1ID)
	assert.Equal(t, teams[4], *next.Team1ID)
}

func TestGrandFinal(t *testing.T) {
	play := func(t *testing.T) (Deps, services, *bracket.Tournament, *bracket.Category, []uuid.UUID, *bracket.Match) {
		deps, svc, tournament, category, teams := bracketOf(t, bracket.DoubleElimination, 2)
		ctx := context.Background()

		first := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 1)
		_, err := svc.matches.RecordResult(ctx, first.ID, straightSets(1))
		require.NoError(t, err)

		final := matchAt(t, deps, tournament.ID, category.ID, bracket.FinalsBranch, 1, 1)
		require.NotNil(t, final.Team1ID)
		require.NotNil(t, final.Team2ID)
		assert.Equal(t, teams[0], *final.Team1ID)
		assert.Equal(t, teams[1], *final.Team2ID)
		return deps, svc, tournament, category, teams, final
	}

	t.Run("winners champion takes the title", func(t *testing.T) {
		deps, svc, tournament, category, _, final := play(t)
		ctx := context.Background()

		_, err := svc.matches.RecordResult(ctx, final.ID, straightSets(1))
		require.NoError(t, err)

		reset := matchAt(t, deps, tournament.ID, category.ID, bracket.FinalsBranch, 2, 1)
		assert.Equal(t, bracket.MatchCancelled, reset.Status)

		current, err := svc.tournaments.GetTournament(ctx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, bracket.TournamentCompleted, current.Status)
	})

	t.Run("losers champion forces a reset", func(t *testing.T) {
		deps, svc, tournament, category, teams, final := play(t)
		ctx := context.Background()

		_, err := svc.matches.RecordResult(ctx, final.ID, straightSets(2))
		require.NoError(t, err)

		reset := matchAt(t, deps, tournament.ID, category.ID, bracket.FinalsBranch, 2, 1)
		assert.Equal(t, bracket.MatchScheduled, reset.Status)
		assert.Equal(t, teams[1], *reset.Team1ID)
		assert.Equal(t, teams[0], *reset.Team2ID)

		current, err := svc.tournaments.GetTournament(ctx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, bracket.TournamentInProgress, current.Status)

		_, err = svc.matches.RecordResult(ctx, reset.ID, straightSets(2))
		require.NoError(t, err)
		current, err = svc.tournaments.GetTournament(ctx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, bracket.TournamentCompleted, current.Status)
	})
}

func TestProgressionFailureKeepsResult(t *testing.T) {
	deps, svc, tournament, category, _ := bracketOf(t, bracket.SingleElimination, 4)
	ctx := context.Background()

	first := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 1)
	final := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 2, 1)
	_, err := deps.DB.ExecContext(ctx, "DELETE FROM matches WHERE id = ?", final.ID)
	require.NoError(t, err)

	decided, err := svc.matches.RecordResult(ctx, first.ID, straightSets(1))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeProgression, apperr.CodeOf(err))
	require.NotNil(t, decided)
	assert.Equal(t, bracket.MatchCompleted, decided.Status)

	stored, err := svc.matches.GetMatch(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.MatchCompleted, stored.Status, "the result is committed before progression")
	assert.Len(t, stored.Sets, 2)
}

func TestGetBracket(t *testing.T) {
	deps, svc, tournament, category, _ := bracketOf(t, bracket.DoubleElimination, 4)
	ctx := context.Background()

	first := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 1)
	_, err := svc.matches.RecordResult(ctx, first.ID, straightSets(1))
	require.NoError(t, err)

	view, err := svc.brackets.GetBracket(ctx, tournament.ID, category.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, view.TotalMatches)
	assert.Equal(t, []int{1, 2}, view.Branches[bracket.WinnersBranch].RoundNumbers)
	assert.Equal(t, []int{1, 2}, view.Branches[bracket.LosersBranch].RoundNumbers)
	assert.Equal(t, []int{1, 2}, view.Branches[bracket.FinalsBranch].RoundNumbers)
	assert.Equal(t, 6, view.TotalRounds)
	assert.Len(t, view.RoundsByNumber[1], 2)

	for _, m := range view.RoundsByNumber[1] {
		if m.ID == first.ID {
			assert.Len(t, m.Sets, 2)
		}
	}
}

func TestGenerateBracketGuards(t *testing.T) {
	deps, svc, tournament, category, _ := bracketOf(t, bracket.SingleElimination, 4)
	ctx := context.Background()

	first := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 1)
	_, err := svc.matches.RecordResult(ctx, first.ID, straightSets(1))
	require.NoError(t, err)

	err = svc.brackets.GenerateBracket(ctx, tournament.ID, category.ID, GenerateOptions{})
	assert.True(t, apperr.Is(err, apperr.CodeConflict), "results exist")

	require.NoError(t, svc.brackets.GenerateBracket(ctx, tournament.ID, category.ID, GenerateOptions{Force: true}))
	count, err := deps.Stores.Matches.CountMatches(ctx, nil, tournament.ID, category.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	fresh := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, 1, 1)
	assert.Equal(t, bracket.MatchScheduled, fresh.Status)

	lonely, lonelyCategory := createScope(t, svc, bracket.SingleElimination)
	addTeams(t, svc, lonely.ID, lonelyCategory.ID, 1)
	err = svc.brackets.GenerateBracket(ctx, lonely.ID, lonelyCategory.ID, GenerateOptions{})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	swiss, swissCategory := createScope(t, svc, bracket.Swiss)
	addTeams(t, svc, swiss.ID, swissCategory.ID, 4)
	err = svc.brackets.GenerateBracket(ctx, swiss.ID, swissCategory.ID, GenerateOptions{})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}
