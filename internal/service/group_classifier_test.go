package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/padel-tournament/internal/apperr"
	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateOptimalGroupConfiguration(t *testing.T) {
	testCases := []struct {
		teams    int
		expected GroupConfiguration
	}{
		{3, GroupConfiguration{NumGroups: 1, GroupSizes: []int{3}, QualifiedPerGroup: 2, TotalClassified: 2}},
		{5, GroupConfiguration{NumGroups: 1, GroupSizes: []int{5}, QualifiedPerGroup: 2, TotalClassified: 2}},
		{6, GroupConfiguration{NumGroups: 2, GroupSizes: []int{3, 3}, QualifiedPerGroup: 2, TotalClassified: 4}},
		{7, GroupConfiguration{NumGroups: 2, GroupSizes: []int{4, 3}, QualifiedPerGroup: 2, TotalClassified: 4}},
		{8, GroupConfiguration{NumGroups: 2, GroupSizes: []int{4, 4}, QualifiedPerGroup: 2, TotalClassified: 4}},
		{9, GroupConfiguration{NumGroups: 3, GroupSizes: []int{3, 3, 3}, QualifiedPerGroup: 2, BestThirdPlace: true, BestThirdCount: 2, TotalClassified: 8}},
		{10, GroupConfiguration{NumGroups: 3, GroupSizes: []int{4, 3, 3}, QualifiedPerGroup: 2, BestThirdPlace: true, BestThirdCount: 2, TotalClassified: 8}},
		{12, GroupConfiguration{NumGroups: 3, GroupSizes: []int{4, 4, 4}, QualifiedPerGroup: 2, BestThirdPlace: true, BestThirdCount: 2, TotalClassified: 8}},
		{16, GroupConfiguration{NumGroups: 4, GroupSizes: []int{4, 4, 4, 4}, QualifiedPerGroup: 2, TotalClassified: 8}},
		{20, GroupConfiguration{NumGroups: 5, GroupSizes: []int{4, 4, 4, 4, 4}, QualifiedPerGroup: 2, TotalClassified: 10}},
		{24, GroupConfiguration{NumGroups: 6, GroupSizes: []int{4, 4, 4, 4, 4, 4}, QualifiedPerGroup: 2, BestThirdPlace: true, BestThirdCount: 4, TotalClassified: 16}},
	}

	for _, tc := range testCases {
		cfg, err := CalculateOptimalGroupConfiguration(tc.teams)
		require.NoError(t, err, "%d teams", tc.teams)
		assert.Equal(t, tc.expected, cfg, "%d teams", tc.teams)
	}

	_, err := CalculateOptimalGroupConfiguration(2)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestSnakeDistribute(t *testing.T) {
	ids := teamIDs(12)
	groups := snakeDistribute(ids, []int{4, 4, 4})
	assert.Equal(t, []uuid.UUID{ids[0], ids[5], ids[6], ids[11]}, groups[0])
	assert.Equal(t, []uuid.UUID{ids[1], ids[4], ids[7], ids[10]}, groups[1])
	assert.Equal(t, []uuid.UUID{ids[2], ids[3], ids[8], ids[9]}, groups[2])

	ids = teamIDs(10)
	groups = snakeDistribute(ids, []int{4, 3, 3})
	assert.Equal(t, []uuid.UUID{ids[0], ids[5], ids[6], ids[9]}, groups[0], "full groups are skipped")
	assert.Len(t, groups[1], 3)
	assert.Len(t, groups[2], 3)
}

func TestZoneName(t *testing.T) {
	assert.Equal(t, "A", zoneName(0))
	assert.Equal(t, "C", zoneName(2))
	assert.Equal(t, "Z", zoneName(25))
	assert.Equal(t, "AA", zoneName(26))
}

func TestRoundRobinRounds(t *testing.T) {
	for n := 2; n <= 7; n++ {
		teams := teamIDs(n)
		rounds := roundRobinRounds(teams)

		expectedRounds := n - 1
		if n%2 != 0 {
			expectedRounds = n
		}
		assert.Len(t, rounds, expectedRounds, "%d teams", n)

		met := make(map[[2]uuid.UUID]int)
		for _, pairs := range rounds {
			busy := make(map[uuid.UUID]bool)
			for _, p := range pairs {
				assert.False(t, busy[p[0]] || busy[p[1]], "a team plays twice in one round")
				busy[p[0]], busy[p[1]] = true, true

				key := p
				if key[0].String() > key[1].String() {
					key[0], key[1] = key[1], key[0]
				}
				met[key]++
			}
		}
		assert.Len(t, met, n*(n-1)/2, "%d teams meet every opponent", n)
		for _, count := range met {
			assert.Equal(t, 1, count)
		}
	}
}

func standing(team uuid.UUID, wins, setsWon, setsLost, gamesWon, gamesLost int) bracket.Standing {
	return bracket.Standing{TeamID: team, Wins: wins, SetsWon: setsWon, SetsLost: setsLost, GamesWon: gamesWon, GamesLost: gamesLost}
}

func TestSelectClassifiedBestThirds(t *testing.T) {
	zones := []bracket.Zone{{ID: uuid.New(), Name: "A"}, {ID: uuid.New(), Name: "B"}, {ID: uuid.New(), Name: "C"}}
	ids := teamIDs(12)

	tables := [][]bracket.Standing{
		{standing(ids[0], 3, 6, 1, 38, 20), standing(ids[1], 2, 4, 2, 30, 25), standing(ids[2], 1, 2, 4, 25, 30), standing(ids[3], 0, 1, 6, 20, 38)},
		{standing(ids[4], 3, 6, 0, 36, 10), standing(ids[5], 2, 4, 3, 33, 30), standing(ids[6], 1, 3, 4, 28, 30), standing(ids[7], 0, 0, 6, 10, 36)},
		{standing(ids[8], 3, 6, 2, 40, 30), standing(ids[9], 2, 5, 2, 35, 25), standing(ids[10], 1, 2, 5, 30, 36), standing(ids[11], 0, 1, 6, 25, 40)},
	}

	cfg, err := CalculateOptimalGroupConfiguration(12)
	require.NoError(t, err)

	classified, err := selectClassified(zones, tables, cfg)
	require.NoError(t, err)
	require.Len(t, classified, 8)

	var order []uuid.UUID
	for i, c := range classified {
		order = append(order, c.TeamID)
		assert.Equal(t, i+1, c.Seed)
	}
	assert.Equal(t, []uuid.UUID{
		ids[4], ids[0], ids[8], // winners by set difference
		ids[9], ids[1], ids[5], // runners-up
		ids[6], ids[2], // thirds by set difference
	}, order)

	thirds := 0
	for _, c := range classified {
		if c.GroupRank == 3 {
			thirds++
		}
	}
	assert.Equal(t, 2, thirds)
}

func TestSelectClassifiedShortfall(t *testing.T) {
	zones := []bracket.Zone{{ID: uuid.New(), Name: "A"}, {ID: uuid.New(), Name: "B"}}
	ids := teamIDs(5)
	tables := [][]bracket.Standing{
		{standing(ids[0], 2, 4, 0, 24, 8), standing(ids[1], 1, 2, 2, 16, 16), standing(ids[2], 0, 0, 4, 8, 24)},
		{standing(ids[3], 1, 2, 0, 12, 4)},
	}
	cfg := GroupConfiguration{NumGroups: 2, GroupSizes: []int{3, 3}, QualifiedPerGroup: 2, TotalClassified: 4}

	_, err := selectClassified(zones, tables, cfg)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeState))
	assert.Contains(t, err.Error(), "only 3 teams")
}

func TestPlaceClassifiedKeepsGroupsApart(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	ids := teamIDs(4)
	classified := []ClassifiedTeam{
		{TeamID: ids[0], ZoneID: b, GroupRank: 1},
		{TeamID: ids[1], ZoneID: a, GroupRank: 1},
		{TeamID: ids[2], ZoneID: a, GroupRank: 2},
		{TeamID: ids[3], ZoneID: b, GroupRank: 2},
	}

	slots := placeClassified(classified, 4)
	require.Len(t, slots, 2)
	assert.Equal(t, ids[0], *slots[0][0])
	assert.Equal(t, ids[2], *slots[0][1])
	assert.Equal(t, ids[1], *slots[1][0])
	assert.Equal(t, ids[3], *slots[1][1])
}

// playGroups decides every group match for the team registered first.
func playGroups(t *testing.T, deps Deps, svc services, tournamentID, categoryID uuid.UUID, teams []uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	order := make(map[uuid.UUID]int, len(teams))
	for i, id := range teams {
		order[id] = i
	}

	matches, err := deps.Stores.Matches.GetMatches(ctx, nil, tournamentID, categoryID)
	require.NoError(t, err)
	for _, m := range matches {
		if m.ZoneID == nil {
			continue
		}
		slot := 1
		if order[*m.Team2ID] < order[*m.Team1ID] {
			slot = 2
		}
		_, err := svc.matches.RecordResult(ctx, m.ID, straightSets(slot))
		require.NoError(t, err)
	}
}

func TestGroupStageToElimination(t *testing.T) {
	deps := testDeps(t)
	svc := newServices(deps)
	ctx := context.Background()

	tournament, category := createScope(t, svc, bracket.GroupStageElimination)
	teams := addTeams(t, svc, tournament.ID, category.ID, 12)
	require.NoError(t, svc.brackets.GenerateBracket(ctx, tournament.ID, category.ID, GenerateOptions{}))

	zones, err := deps.Stores.Zones.GetZones(ctx, nil, tournament.ID, category.ID)
	require.NoError(t, err)
	require.Len(t, zones, 3)
	assert.Equal(t, "A", zones[0].Name)

	matches, err := deps.Stores.Matches.GetMatches(ctx, nil, tournament.ID, category.ID)
	require.NoError(t, err)
	counts := countBy(matches)
	group := 0
	for _, c := range counts[bracket.GroupBranch] {
		group += c
	}
	assert.Equal(t, 18, group, "three round robins of four")
	assert.Equal(t, 4, counts[bracket.WinnersBranch][bracket.EliminationStartRound])
	assert.Equal(t, 2, counts[bracket.WinnersBranch][bracket.EliminationStartRound+1])
	assert.Equal(t, 1, counts[bracket.WinnersBranch][bracket.EliminationStartRound+2])

	_, err = svc.groups.ClassifyTeamsToEliminationPhase(ctx, tournament.ID, category.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeState), "groups are not finished")

	playGroups(t, deps, svc, tournament.ID, category.ID, teams)

	classified, err := svc.groups.ClassifyTeamsToEliminationPhase(ctx, tournament.ID, category.ID)
	require.NoError(t, err)
	require.Len(t, classified, 8)

	var thirds []uuid.UUID
	for _, c := range classified {
		if c.GroupRank == 3 {
			thirds = append(thirds, c.TeamID)
		}
	}
	// all thirds finish level, so the earlier groups win the tie
	assert.Equal(t, []uuid.UUID{teams[6], teams[7]}, thirds)

	zoneOf := make(map[uuid.UUID]uuid.UUID)
	for _, c := range classified {
		zoneOf[c.TeamID] = c.ZoneID
	}
	expected := [][2]uuid.UUID{
		{teams[0], teams[3]},
		{teams[5], teams[4]},
		{teams[1], teams[6]},
		{teams[2], teams[7]},
	}
	for i, pair := range expected {
		m := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, bracket.EliminationStartRound, i+1)
		require.NotNil(t, m.Team1ID)
		require.NotNil(t, m.Team2ID)
		assert.Equal(t, pair[0], *m.Team1ID, "match %d", i+1)
		assert.Equal(t, pair[1], *m.Team2ID, "match %d", i+1)
		assert.NotEqual(t, zoneOf[*m.Team1ID], zoneOf[*m.Team2ID], "no group rematch in match %d", i+1)
	}

	first := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, bracket.EliminationStartRound, 1)
	_, err = svc.matches.RecordResult(ctx, first.ID, straightSets(1))
	require.NoError(t, err)
	semi := matchAt(t, deps, tournament.ID, category.ID, bracket.WinnersBranch, bracket.EliminationStartRound+1, 1)
	assert.Equal(t, teams[0], *semi.Team1ID)

	_, err = svc.groups.ClassifyTeamsToEliminationPhase(ctx, tournament.ID, category.ID)
	assert.True(t, apperr.Is(err, apperr.CodeConflict), "classification is locked once the elimination phase started")
}

func TestClassifyRequiresGroupFormat(t *testing.T) {
	deps := testDeps(t)
	svc := newServices(deps)

	tournament, category := createScope(t, svc, bracket.SingleElimination)
	_, err := svc.groups.ClassifyTeamsToEliminationPhase(context.Background(), tournament.ID, category.ID)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}
