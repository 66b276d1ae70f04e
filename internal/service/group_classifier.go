package service

import (
	"context"
	"sort"

	"github.com/AdamBeresnev/padel-tournament/internal/apperr"
	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/events"
	"github.com/AdamBeresnev/padel-tournament/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	minGroupSize       = 3
	preferredGroupSize = 4
	qualifiedPerGroup  = 2
)

// GroupConfiguration describes how a number of teams is split into groups and how many of
// them reach the elimination phase.
type GroupConfiguration struct {
	NumGroups         int   `json:"num_groups"`
	GroupSizes        []int `json:"group_sizes"`
	QualifiedPerGroup int   `json:"qualified_per_group"`
	BestThirdPlace    bool  `json:"best_third_place"`
	BestThirdCount    int   `json:"best_third_count"`
	TotalClassified   int   `json:"total_classified"`
}

// CalculateOptimalGroupConfiguration splits teamCount teams into groups of four where possible
// and never below three, sizes as even as possible with the larger groups first. The top two of
// every group qualify; best third placed teams top the field up to a power of two when that
// takes no more than one third per group. Otherwise the bracket is padded with byes.
func CalculateOptimalGroupConfiguration(teamCount int) (GroupConfiguration, error) {
	if teamCount < minGroupSize {
		return GroupConfiguration{}, apperr.Validation("a group stage needs at least %d teams, got %d", minGroupSize, teamCount)
	}

	groups := (teamCount + preferredGroupSize - 1) / preferredGroupSize
	for groups > 1 && teamCount/groups < minGroupSize {
		groups--
	}

	sizes := make([]int, groups)
	for i := range sizes {
		sizes[i] = teamCount / groups
		if i < teamCount%groups {
			sizes[i]++
		}
	}

	cfg := GroupConfiguration{
		NumGroups:         groups,
		GroupSizes:        sizes,
		QualifiedPerGroup: qualifiedPerGroup,
		TotalClassified:   groups * qualifiedPerGroup,
	}

	direct := cfg.TotalClassified
	if target := calcBracketSize(direct); target != direct {
		if needed := target - direct; needed <= groups {
			cfg.BestThirdPlace = true
			cfg.BestThirdCount = needed
			cfg.TotalClassified = target
		}
	}

	return cfg, nil
}

type GroupService struct {
	Deps
	standings *StandingsService
}

func NewGroupService(deps Deps, standings *StandingsService) *GroupService {
	return &GroupService{Deps: deps.withDefaults(), standings: standings}
}

// GenerateGroupStage replaces the category's matches with zones playing a round robin.
// GROUP_STAGE_ELIMINATION also gets an empty elimination tree, filled by classification.
func (s *GroupService) GenerateGroupStage(ctx context.Context, tournamentID, categoryID uuid.UUID, opts GenerateOptions) error {
	tournament, _, err := s.loadScope(ctx, nil, tournamentID, categoryID)
	if err != nil {
		return err
	}
	if err := ensureNotFinished(tournament, "generate groups"); err != nil {
		return err
	}
	if !tournament.Format.UsesZones() {
		return apperr.Validation("tournament %s uses the %s format, which has no group stage", tournamentID, tournament.Format)
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return internal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := s.lockCategory(ctx, tx, tournamentID, categoryID); err != nil {
		return err
	}
	if err := s.clearCategory(ctx, tx, tournamentID, categoryID, opts); err != nil {
		return err
	}

	teamIDs, err := s.confirmedTeamIDs(ctx, tx, tournamentID, categoryID)
	if err != nil {
		return err
	}

	var sizes []int
	eliminationSize := 0
	if tournament.Format == bracket.RoundRobin {
		if len(teamIDs) < 2 {
			return apperr.Validation("at least 2 confirmed teams are required for a round robin, category %s has %d", categoryID, len(teamIDs))
		}
		sizes = []int{len(teamIDs)}
	} else {
		cfg, err := CalculateOptimalGroupConfiguration(len(teamIDs))
		if err != nil {
			return err
		}
		sizes = cfg.GroupSizes
		eliminationSize = calcBracketSize(cfg.TotalClassified)
	}

	plan := snakeDistribute(teamIDs, sizes)

	zones := make([]bracket.Zone, len(plan))
	var members []bracket.Standing
	for i, teams := range plan {
		zones[i] = bracket.Zone{
			ID:           uuid.New(),
			TournamentID: tournamentID,
			CategoryID:   categoryID,
			Name:         zoneName(i),
			Position:     i + 1,
		}
		for j, teamID := range teams {
			members = append(members, bracket.Standing{ZoneID: zones[i].ID, TeamID: teamID, Position: j + 1})
		}
	}

	matches := buildGroupMatches(tournamentID, categoryID, zones, plan)
	if eliminationSize > 0 {
		t := newTree(tournamentID, categoryID)
		t.addWinnersTree(eliminationSize, bracket.EliminationStartRound)
		matches = append(matches, t.matches...)
	}

	if err := s.Stores.Zones.CreateZones(ctx, tx, zones); err != nil {
		return internal(err, "failed to create zones for category %s", categoryID)
	}
	if err := s.Stores.Zones.AddTeams(ctx, tx, members); err != nil {
		return internal(err, "failed to add teams to zones of category %s", categoryID)
	}
	if err := s.Stores.Matches.CreateMatches(ctx, tx, matches); err != nil {
		return internal(err, "failed to create group matches for category %s", categoryID)
	}

	if err := tx.Commit(); err != nil {
		return internal(err, "failed to commit group stage of category %s", categoryID)
	}

	s.Log.Info("group stage generated",
		"tournament_id", tournamentID,
		"category_id", categoryID,
		"zones", len(zones),
		"teams", len(teamIDs),
		"matches", len(matches),
	)
	s.notify(ctx, events.New(events.GroupsGenerated, tournamentID, categoryID, map[string]any{
		"zones":   len(zones),
		"matches": len(matches),
	}))
	return nil
}

// snakeDistribute deals teams in seed order over the groups A, B, C, C, B, A, A, ...
// skipping groups that are already full.
func snakeDistribute(teamIDs []uuid.UUID, sizes []int) [][]uuid.UUID {
	groups := make([][]uuid.UUID, len(sizes))
	if len(sizes) == 0 {
		return groups
	}

	g, step := 0, 1
	next := func() {
		if n := g + step; n >= 0 && n < len(sizes) {
			g = n
			return
		}
		step = -step
	}

	for _, id := range teamIDs {
		for len(groups[g]) >= sizes[g] {
			next()
		}
		groups[g] = append(groups[g], id)
		next()
	}
	return groups
}

func zoneName(i int) string {
	name := ""
	for i >= 0 {
		name = string(rune('A'+i%26)) + name
		i = i/26 - 1
	}
	return name
}

// buildGroupMatches schedules a round robin inside every zone with the circle method.
// Match numbers run across zones within a round.
func buildGroupMatches(tournamentID, categoryID uuid.UUID, zones []bracket.Zone, plan [][]uuid.UUID) []bracket.Match {
	var matches []bracket.Match
	numbers := make(map[int]int)

	for i, teams := range plan {
		for round, pairs := range roundRobinRounds(teams) {
			for _, pair := range pairs {
				numbers[round+1]++
				matches = append(matches, bracket.Match{
					ID:           uuid.New(),
					TournamentID: tournamentID,
					CategoryID:   categoryID,
					ZoneID:       utils.Ptr(zones[i].ID),
					Branch:       bracket.GroupBranch,
					RoundNumber:  round + 1,
					MatchNumber:  numbers[round+1],
					Team1ID:      utils.Ptr(pair[0]),
					Team2ID:      utils.Ptr(pair[1]),
					Status:       bracket.MatchScheduled,
				})
			}
		}
	}
	return matches
}

// roundRobinRounds pairs every team with every other team exactly once. The first team stays
// fixed while the others rotate; with an odd count one team sits out each round.
func roundRobinRounds(teams []uuid.UUID) [][][2]uuid.UUID {
	if len(teams) < 2 {
		return nil
	}

	circle := make([]*uuid.UUID, 0, len(teams)+1)
	for i := range teams {
		circle = append(circle, &teams[i])
	}
	if len(circle)%2 != 0 {
		circle = append(circle, nil)
	}

	n := len(circle)
	rounds := make([][][2]uuid.UUID, 0, n-1)
	for r := 0; r < n-1; r++ {
		var pairs [][2]uuid.UUID
		for i := 0; i < n/2; i++ {
			a, b := circle[i], circle[n-1-i]
			if a != nil && b != nil {
				pairs = append(pairs, [2]uuid.UUID{*a, *b})
			}
		}
		rounds = append(rounds, pairs)

		last := circle[n-1]
		copy(circle[2:], circle[1:n-1])
		circle[1] = last
	}
	return rounds
}

// ClassifiedTeam is a team that reached the elimination phase.
type ClassifiedTeam struct {
	TeamID    uuid.UUID `json:"team_id"`
	ZoneID    uuid.UUID `json:"zone_id"`
	GroupRank int       `json:"group_rank"`
	Seed      int       `json:"seed"`

	standing bracket.Standing
}

// ClassifyTeamsToEliminationPhase fills the first elimination round from the final group standings.
// Group winners are seeded first, then runners-up, then the best third placed teams.
func (s *GroupService) ClassifyTeamsToEliminationPhase(ctx context.Context, tournamentID, categoryID uuid.UUID) ([]ClassifiedTeam, error) {
	tournament, _, err := s.loadScope(ctx, nil, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	if err := ensureNotFinished(tournament, "classify teams"); err != nil {
		return nil, err
	}
	if tournament.Format != bracket.GroupStageElimination {
		return nil, apperr.Validation("tournament %s uses the %s format, which has no elimination phase after the groups", tournamentID, tournament.Format)
	}

	zones, err := s.Stores.Zones.GetZones(ctx, nil, tournamentID, categoryID)
	if err != nil {
		return nil, internal(err, "failed to load zones of category %s", categoryID)
	}
	if len(zones) == 0 {
		return nil, apperr.State("category %s has no groups, generate the group stage first", categoryID)
	}

	tables, err := s.zoneTables(ctx, zones)
	if err != nil {
		return nil, err
	}

	teamCount := 0
	for _, table := range tables {
		teamCount += len(table)
	}
	cfg, err := CalculateOptimalGroupConfiguration(teamCount)
	if err != nil {
		return nil, err
	}

	classified, err := selectClassified(zones, tables, cfg)
	if err != nil {
		return nil, err
	}

	size := calcBracketSize(cfg.TotalClassified)
	slots := placeClassified(classified, size)

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := s.lockCategory(ctx, tx, tournamentID, categoryID); err != nil {
		return nil, err
	}

	all, err := s.Stores.Matches.GetMatches(ctx, tx, tournamentID, categoryID)
	if err != nil {
		return nil, internal(err, "failed to load matches of category %s", categoryID)
	}
	var elimination []bracket.Match
	for _, m := range all {
		if m.ZoneID == nil && m.RoundNumber >= bracket.EliminationStartRound {
			elimination = append(elimination, m)
		}
	}
	if len(elimination) != size-1 {
		return nil, apperr.State("elimination phase of category %s has %d matches, expected %d for %d classified teams; regenerate the group stage",
			categoryID, len(elimination), size-1, cfg.TotalClassified)
	}

	for i := range elimination {
		m := &elimination[i]
		if m.IsDecided() && !m.IsBye {
			return nil, apperr.Conflict("elimination phase of category %s already has results", categoryID)
		}
		m.Team1ID, m.Team2ID, m.WinnerTeamID = nil, nil, nil
		m.Status = bracket.MatchScheduled
		m.IsBye = false
		if m.RoundNumber == bracket.EliminationStartRound {
			pair := slots[m.MatchNumber-1]
			m.Team1ID, m.Team2ID = pair[0], pair[1]
		}
	}
	resolveByes(elimination)

	for i := range elimination {
		if err := s.Stores.Matches.UpdateMatch(ctx, tx, &elimination[i]); err != nil {
			return nil, internal(err, "failed to update elimination match %s", elimination[i].ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit classification of category %s", categoryID)
	}

	s.Log.Info("teams classified",
		"tournament_id", tournamentID,
		"category_id", categoryID,
		"classified", len(classified),
		"best_thirds", cfg.BestThirdCount,
	)
	s.notify(ctx, events.New(events.GroupsClassified, tournamentID, categoryID, classified))
	return classified, nil
}

// zoneTables computes the final standings of every zone concurrently. All group matches must be closed.
func (s *GroupService) zoneTables(ctx context.Context, zones []bracket.Zone) ([][]bracket.Standing, error) {
	tables := make([][]bracket.Standing, len(zones))

	g, gctx := errgroup.WithContext(ctx)
	for i, zone := range zones {
		g.Go(func() error {
			matches, err := s.Stores.Matches.GetZoneMatches(gctx, nil, zone.ID)
			if err != nil {
				return internal(err, "failed to load matches of zone %s", zone.Name)
			}
			open := 0
			for _, m := range matches {
				if !m.IsClosed() {
					open++
				}
			}
			if open > 0 {
				return apperr.State("group %s still has %d of %d matches to play", zone.Name, open, len(matches))
			}

			table, err := s.standings.CalculateGroupStandings(gctx, zone.ID)
			if err != nil {
				return err
			}
			tables[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// selectClassified picks the qualifiers in seed order.
func selectClassified(zones []bracket.Zone, tables [][]bracket.Standing, cfg GroupConfiguration) ([]ClassifiedTeam, error) {
	var winners, runnersUp, thirds []ClassifiedTeam
	for i, table := range tables {
		for rank, row := range table {
			team := ClassifiedTeam{TeamID: row.TeamID, ZoneID: zones[i].ID, GroupRank: rank + 1, standing: row}
			switch rank {
			case 0:
				winners = append(winners, team)
			case 1:
				runnersUp = append(runnersUp, team)
			case 2:
				thirds = append(thirds, team)
			}
		}
	}

	rankClassified(winners)
	rankClassified(runnersUp)
	rankClassified(thirds)

	if cfg.BestThirdPlace && len(thirds) > cfg.BestThirdCount {
		thirds = thirds[:cfg.BestThirdCount]
	}
	if !cfg.BestThirdPlace {
		thirds = nil
	}

	classified := make([]ClassifiedTeam, 0, cfg.TotalClassified)
	classified = append(classified, winners...)
	classified = append(classified, runnersUp...)
	classified = append(classified, thirds...)

	if len(classified) < cfg.TotalClassified {
		return nil, apperr.State("only %d teams can be classified (%d winners, %d runners-up, %d thirds), the elimination phase needs %d",
			len(classified), len(winners), len(runnersUp), len(thirds), cfg.TotalClassified)
	}

	for i := range classified {
		classified[i].Seed = i + 1
	}
	return classified, nil
}

// rankClassified orders teams of the same group rank by the standings order. Ties keep group order.
func rankClassified(teams []ClassifiedTeam) {
	sort.SliceStable(teams, func(i, j int) bool {
		return standingLess(teams[i].standing, teams[j].standing)
	})
}

// placeClassified returns the first round slots of a bracket of the given size. Teams of the
// same group are kept apart in the first round whenever another match allows a swap.
func placeClassified(classified []ClassifiedTeam, size int) [][2]*uuid.UUID {
	pairs := generateRound1Pairs(size)
	slots := make([][2]*ClassifiedTeam, len(pairs))
	for i, pair := range pairs {
		for k := 0; k < 2; k++ {
			if pair[k] < len(classified) {
				slots[i][k] = &classified[pair[k]]
			}
		}
	}

	sameZone := func(a, b *ClassifiedTeam) bool {
		return a != nil && b != nil && a.ZoneID == b.ZoneID
	}
	for i := range slots {
		if !sameZone(slots[i][0], slots[i][1]) {
			continue
		}
		for j := range slots {
			if j == i {
				continue
			}
			if !sameZone(slots[i][0], slots[j][1]) && !sameZone(slots[j][0], slots[i][1]) {
				slots[i][1], slots[j][1] = slots[j][1], slots[i][1]
				break
			}
		}
	}

	out := make([][2]*uuid.UUID, len(slots))
	for i, pair := range slots {
		for k := 0; k < 2; k++ {
			if pair[k] != nil {
				out[i][k] = utils.Ptr(pair[k].TeamID)
			}
		}
	}
	return out
}
