package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/padel-tournament/internal/apperr"
	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/events"
	"github.com/AdamBeresnev/padel-tournament/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	PoolSize = 4

	// DefaultExhaustiveLimit caps the 3-player combinations searched per pool before the
	// generator switches to picking one player at a time.
	DefaultExhaustiveLimit = 200000

	// MaxAmericanoRounds bounds any requested round count, whatever the roster size.
	MaxAmericanoRounds = 64
)

type AmericanoService struct {
	Deps
	exhaustiveLimit int
}

func NewAmericanoService(deps Deps, exhaustiveLimit int) *AmericanoService {
	if exhaustiveLimit <= 0 {
		exhaustiveLimit = DefaultExhaustiveLimit
	}
	return &AmericanoService{Deps: deps.withDefaults(), exhaustiveLimit: exhaustiveLimit}
}

// RoundsRecommendation bounds the number of americano rounds worth playing for a roster.
type RoundsRecommendation struct {
	Min     int `json:"min"`
	Optimal int `json:"optimal"`
	Max     int `json:"max"`
}

// CalculateMaxRoundsWithoutRepetition is the number of rounds below which pools can be drawn
// without two players meeting twice. Past it repeats are unavoidable and only minimized.
func CalculateMaxRoundsWithoutRepetition(playerCount int) int {
	return max(1, playerCount/PoolSize-1)
}

// CalculateOptimalRounds recommends a round count. Max is the number of rounds a player needs
// to share a pool with everybody else at least once.
func CalculateOptimalRounds(playerCount int) RoundsRecommendation {
	optimal := CalculateMaxRoundsWithoutRepetition(playerCount)
	meetAll := 1
	if playerCount > 1 {
		meetAll = (playerCount - 1 + PoolSize - 2) / (PoolSize - 1)
	}
	return RoundsRecommendation{Min: 1, Optimal: optimal, Max: max(optimal, meetAll)}
}

// roundsLimit is the largest round count accepted for a roster: twice the recommended maximum,
// never above MaxAmericanoRounds.
func roundsLimit(playerCount int) int {
	return min(MaxAmericanoRounds, 2*CalculateOptimalRounds(playerCount).Max)
}

func validateRoster(players []uuid.UUID) error {
	n := len(players)
	if n < PoolSize {
		return apperr.Validation("americano needs at least %d players, got %d: add %d more", PoolSize, n, PoolSize-n)
	}
	if rest := n % PoolSize; rest != 0 {
		return apperr.Validation("americano needs a multiple of %d players, got %d: add %d more or remove %d", PoolSize, n, PoolSize-rest, rest)
	}

	seen := make(map[uuid.UUID]bool, n)
	for _, id := range players {
		if id == uuid.Nil {
			return apperr.Validation("player id must not be empty")
		}
		if seen[id] {
			return apperr.Validation("player %s is listed twice", id)
		}
		seen[id] = true
	}
	return nil
}

// GenerateAmericanoSocialPools draws pools of four for every round, keeping players who already
// shared a pool apart as far as possible, and creates the three partner rotations of each pool.
// rounds == 0 uses the tournament setting, or the optimal count when that is unset too.
func (s *AmericanoService) GenerateAmericanoSocialPools(ctx context.Context, tournamentID, categoryID uuid.UUID, players []uuid.UUID, rounds int, opts GenerateOptions) ([]bracket.Pool, error) {
	tournament, _, err := s.loadScope(ctx, nil, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	if err := ensureNotFinished(tournament, "generate pools"); err != nil {
		return nil, err
	}
	if !tournament.Format.UsesPools() {
		return nil, apperr.Validation("tournament %s uses the %s format, pools are only played in americano", tournamentID, tournament.Format)
	}
	if err := validateRoster(players); err != nil {
		return nil, err
	}
	if rounds < 0 {
		return nil, apperr.Validation("number of rounds must not be negative, got %d", rounds)
	}
	if rounds == 0 {
		rounds = tournament.AmericanoRounds
	}
	if rounds == 0 {
		rounds = CalculateOptimalRounds(len(players)).Optimal
	}
	if limit := roundsLimit(len(players)); rounds > limit {
		return nil, apperr.Validation("%d rounds requested for %d players, at most %d are allowed", rounds, len(players), limit)
	}

	plan := planPools(len(players), rounds, s.exhaustiveLimit)
	pools, matches := buildPools(tournamentID, categoryID, players, plan)

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := s.lockCategory(ctx, tx, tournamentID, categoryID); err != nil {
		return nil, err
	}

	existing, err := s.Stores.Americano.CountPools(ctx, tx, tournamentID, categoryID)
	if err != nil {
		return nil, internal(err, "failed to count pools of category %s", categoryID)
	}
	if existing > 0 && !opts.Force {
		return nil, apperr.Conflict("category %s already has %d pools, regenerate with force to replace them", categoryID, existing)
	}
	if err := s.Stores.Americano.DeleteCategoryPools(ctx, tx, tournamentID, categoryID); err != nil {
		return nil, internal(err, "failed to delete pools of category %s", categoryID)
	}

	if err := s.Stores.Americano.CreatePools(ctx, tx, pools); err != nil {
		return nil, internal(err, "failed to create pools for category %s", categoryID)
	}
	if err := s.Stores.Americano.CreatePoolMatches(ctx, tx, matches); err != nil {
		return nil, internal(err, "failed to create pool matches for category %s", categoryID)
	}
	for _, player := range players {
		row := &bracket.Ranking{TournamentID: tournamentID, CategoryID: categoryID, PlayerID: player}
		if err := s.Stores.Americano.UpsertRanking(ctx, tx, row); err != nil {
			return nil, internal(err, "failed to seed ranking of player %s", player)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit pools of category %s", categoryID)
	}

	s.Log.Info("americano pools generated",
		"tournament_id", tournamentID,
		"category_id", categoryID,
		"players", len(players),
		"rounds", rounds,
		"repeats", countRepeats(plan),
	)
	s.notify(ctx, events.New(events.PoolsGenerated, tournamentID, categoryID, map[string]any{
		"rounds": rounds,
		"pools":  len(pools),
	}))

	byPool := make(map[uuid.UUID][]bracket.PoolMatch, len(pools))
	for _, m := range matches {
		byPool[m.PoolID] = append(byPool[m.PoolID], m)
	}
	for i := range pools {
		pools[i].Matches = byPool[pools[i].ID]
	}
	return pools, nil
}

// planPools returns, per round, the pools as indexes into the roster.
//
// Every pool starts from the first player not yet placed in the round and adds the three
// remaining players whose pairwise meeting count with the pool is lowest, the first such
// combination in roster order winning ties. When the number of candidate combinations passes
// limit the three players are chosen one at a time instead.
func planPools(playerCount, rounds, limit int) [][][PoolSize]int {
	met := make([][]int, playerCount)
	for i := range met {
		met[i] = make([]int, playerCount)
	}

	plan := make([][][PoolSize]int, 0, rounds)
	for r := 0; r < rounds; r++ {
		remaining := make([]int, playerCount)
		for i := range remaining {
			remaining[i] = i
		}

		pools := make([][PoolSize]int, 0, playerCount/PoolSize)
		for len(remaining) >= PoolSize {
			anchor, rest := remaining[0], remaining[1:]

			var picked [3]int
			if combinations(len(rest)) <= limit {
				picked = bestTriple(met, anchor, rest)
			} else {
				picked = greedyTriple(met, anchor, rest)
			}

			pool := [PoolSize]int{anchor, rest[picked[0]], rest[picked[1]], rest[picked[2]]}
			for i := 0; i < PoolSize; i++ {
				for j := i + 1; j < PoolSize; j++ {
					met[pool[i]][pool[j]]++
					met[pool[j]][pool[i]]++
				}
			}
			pools = append(pools, pool)

			next := make([]int, 0, len(rest)-3)
			for i, p := range rest {
				if i != picked[0] && i != picked[1] && i != picked[2] {
					next = append(next, p)
				}
			}
			remaining = next
		}
		plan = append(plan, pools)
	}
	return plan
}

func combinations(n int) int {
	if n < 3 {
		return 0
	}
	return n * (n - 1) * (n - 2) / 6
}

// bestTriple searches every combination of three players from rest and returns their positions.
func bestTriple(met [][]int, anchor int, rest []int) [3]int {
	best := [3]int{0, 1, 2}
	bestCost := -1
	for a := 0; a < len(rest); a++ {
		ca := met[anchor][rest[a]]
		if bestCost >= 0 && ca >= bestCost {
			continue
		}
		for b := a + 1; b < len(rest); b++ {
			cb := ca + met[anchor][rest[b]] + met[rest[a]][rest[b]]
			if bestCost >= 0 && cb >= bestCost {
				continue
			}
			for c := b + 1; c < len(rest); c++ {
				cost := cb + met[anchor][rest[c]] + met[rest[a]][rest[c]] + met[rest[b]][rest[c]]
				if bestCost < 0 || cost < bestCost {
					best, bestCost = [3]int{a, b, c}, cost
					if cost == 0 {
						return best
					}
				}
			}
		}
	}
	return best
}

// greedyTriple adds one player at a time, each time the one who met the pool so far the least.
func greedyTriple(met [][]int, anchor int, rest []int) [3]int {
	pool := []int{anchor}
	var picked [3]int
	used := make(map[int]bool, 3)
	for k := 0; k < 3; k++ {
		best, bestCost := -1, 0
		for i, p := range rest {
			if used[i] {
				continue
			}
			cost := 0
			for _, q := range pool {
				cost += met[p][q]
			}
			if best < 0 || cost < bestCost {
				best, bestCost = i, cost
			}
		}
		used[best] = true
		picked[k] = best
		pool = append(pool, rest[best])
	}
	return picked
}

// countRepeats counts player pairs sharing a pool more often than once over the whole plan.
func countRepeats(plan [][][PoolSize]int) int {
	seen := make(map[[2]int]int)
	repeats := 0
	for _, pools := range plan {
		for _, pool := range pools {
			for i := 0; i < PoolSize; i++ {
				for j := i + 1; j < PoolSize; j++ {
					a, b := min(pool[i], pool[j]), max(pool[i], pool[j])
					seen[[2]int{a, b}]++
					if seen[[2]int{a, b}] > 1 {
						repeats++
					}
				}
			}
		}
	}
	return repeats
}

// poolRotations lists the three ways to split a pool into two pairs: AB-CD, AC-BD, AD-BC.
var poolRotations = [3][2][2]int{
	{{0, 1}, {2, 3}},
	{{0, 2}, {1, 3}},
	{{0, 3}, {1, 2}},
}

func buildPools(tournamentID, categoryID uuid.UUID, players []uuid.UUID, plan [][][PoolSize]int) ([]bracket.Pool, []bracket.PoolMatch) {
	var (
		pools   []bracket.Pool
		matches []bracket.PoolMatch
	)
	for r, round := range plan {
		for p, idx := range round {
			pool := bracket.Pool{
				ID:           uuid.New(),
				TournamentID: tournamentID,
				CategoryID:   categoryID,
				RoundNumber:  r + 1,
				PoolNumber:   p + 1,
				Player1ID:    players[idx[0]],
				Player2ID:    players[idx[1]],
				Player3ID:    players[idx[2]],
				Player4ID:    players[idx[3]],
			}
			pools = append(pools, pool)

			members := pool.Players()
			for m, rot := range poolRotations {
				matches = append(matches, bracket.PoolMatch{
					ID:             uuid.New(),
					PoolID:         pool.ID,
					TournamentID:   tournamentID,
					CategoryID:     categoryID,
					RoundNumber:    r + 1,
					MatchNumber:    m + 1,
					TeamAPlayer1ID: members[rot[0][0]],
					TeamAPlayer2ID: members[rot[0][1]],
					TeamBPlayer1ID: members[rot[1][0]],
					TeamBPlayer2ID: members[rot[1][1]],
					Status:         bracket.MatchScheduled,
				})
			}
		}
	}
	return pools, matches
}

// UpdateMatchResult records the score of a pool match and moves the four players' rankings.
// Recording a match again replaces its earlier contribution.
func (s *AmericanoService) UpdateMatchResult(ctx context.Context, matchID uuid.UUID, teamAScore, teamBScore int, sets []bracket.Set) (*bracket.PoolMatch, error) {
	if teamAScore < 0 || teamBScore < 0 {
		return nil, apperr.Validation("scores must not be negative, got %d-%d", teamAScore, teamBScore)
	}
	for i, set := range sets {
		if set.Team1Games < 0 || set.Team2Games < 0 {
			return nil, apperr.Validation("set %d has a negative game count", i+1)
		}
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	match, err := s.Stores.Americano.GetPoolMatch(ctx, tx, matchID)
	if err != nil {
		return nil, lookupErr(err, "pool match", matchID)
	}
	tournament, err := s.Stores.Tournaments.GetTournament(ctx, tx, match.TournamentID)
	if err != nil {
		return nil, lookupErr(err, "tournament", match.TournamentID)
	}
	if err := ensureNotFinished(tournament, "record a result"); err != nil {
		return nil, err
	}
	if match.Status == bracket.MatchCancelled {
		return nil, apperr.State("pool match %s is cancelled", matchID)
	}

	teamA, teamB := match.TeamA(), match.TeamB()
	rows := make(map[uuid.UUID]*bracket.Ranking, PoolSize)
	for _, player := range append(teamA[:], teamB[:]...) {
		row, err := s.Stores.Americano.GetRanking(ctx, tx, match.CategoryID, player)
		if errors.Is(err, sql.ErrNoRows) {
			row = &bracket.Ranking{TournamentID: match.TournamentID, CategoryID: match.CategoryID, PlayerID: player}
		} else if err != nil {
			return nil, internal(err, "failed to load ranking of player %s", player)
		}
		rows[player] = row
	}

	if match.Status == bracket.MatchCompleted && match.TeamAScore != nil && match.TeamBScore != nil {
		applyPoolResult(rows, match, *match.TeamAScore, *match.TeamBScore, -1)
	}
	applyPoolResult(rows, match, teamAScore, teamBScore, 1)

	for _, row := range rows {
		if err := s.Stores.Americano.UpsertRanking(ctx, tx, row); err != nil {
			return nil, internal(err, "failed to update ranking of player %s", row.PlayerID)
		}
	}

	match.TeamAScore = utils.Ptr(teamAScore)
	match.TeamBScore = utils.Ptr(teamBScore)
	match.Status = bracket.MatchCompleted
	if err := s.Stores.Americano.UpdatePoolMatchResult(ctx, tx, match); err != nil {
		return nil, internal(err, "failed to update pool match %s", matchID)
	}
	if err := s.Stores.Matches.ReplaceSets(ctx, tx, matchID, sets); err != nil {
		return nil, internal(err, "failed to store sets of pool match %s", matchID)
	}
	match.Sets = sets

	if err := s.markInProgress(ctx, tx, tournament); err != nil {
		return nil, err
	}
	completed, err := s.completeIfDone(ctx, tx, match.TournamentID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit result of pool match %s", matchID)
	}
	if completed {
		s.announceCompleted(ctx, match.TournamentID)
	}

	s.Log.Info("pool match recorded", "match_id", matchID, "team_a_score", teamAScore, "team_b_score", teamBScore)
	s.notify(ctx, events.New(events.MatchUpdated, match.TournamentID, match.CategoryID, match))
	s.notify(ctx, events.New(events.RankingUpdated, match.TournamentID, match.CategoryID, nil))
	return match, nil
}

// applyPoolResult adds (sign 1) or removes (sign -1) one result from the rankings of its players.
func applyPoolResult(rows map[uuid.UUID]*bracket.Ranking, match *bracket.PoolMatch, teamAScore, teamBScore, sign int) {
	for _, p := range match.TeamA() {
		addScore(rows[p], teamAScore, teamBScore, sign)
	}
	for _, p := range match.TeamB() {
		addScore(rows[p], teamBScore, teamAScore, sign)
	}
}

func addScore(row *bracket.Ranking, own, other, sign int) {
	row.MatchesPlayed += sign
	row.PointsFor += sign * own
	row.PointsAgainst += sign * other
	row.Points += sign * own
	switch {
	case own > other:
		row.Wins += sign
	case own < other:
		row.Losses += sign
	default:
		row.Draws += sign
	}
}

// RecalculateGlobalRanking rebuilds the category ranking from every completed pool match.
func (s *AmericanoService) RecalculateGlobalRanking(ctx context.Context, tournamentID, categoryID uuid.UUID) ([]bracket.Ranking, error) {
	if _, _, err := s.loadScope(ctx, nil, tournamentID, categoryID); err != nil {
		return nil, err
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := s.lockCategory(ctx, tx, tournamentID, categoryID); err != nil {
		return nil, err
	}

	pools, err := s.Stores.Americano.GetPools(ctx, tx, tournamentID, categoryID)
	if err != nil {
		return nil, internal(err, "failed to load pools of category %s", categoryID)
	}
	matches, err := s.Stores.Americano.GetPoolMatches(ctx, tx, tournamentID, categoryID)
	if err != nil {
		return nil, internal(err, "failed to load pool matches of category %s", categoryID)
	}

	rows := make(map[uuid.UUID]*bracket.Ranking)
	for _, pool := range pools {
		for _, player := range pool.Players() {
			if _, ok := rows[player]; !ok {
				rows[player] = &bracket.Ranking{TournamentID: tournamentID, CategoryID: categoryID, PlayerID: player}
			}
		}
	}
	for i := range matches {
		m := &matches[i]
		if m.Status != bracket.MatchCompleted || m.TeamAScore == nil || m.TeamBScore == nil {
			continue
		}
		applyPoolResult(rows, m, *m.TeamAScore, *m.TeamBScore, 1)
	}

	if err := s.Stores.Americano.DeleteRankings(ctx, tx, tournamentID, categoryID); err != nil {
		return nil, internal(err, "failed to clear ranking of category %s", categoryID)
	}
	for _, row := range rows {
		if err := s.Stores.Americano.UpsertRanking(ctx, tx, row); err != nil {
			return nil, internal(err, "failed to store ranking of player %s", row.PlayerID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit ranking of category %s", categoryID)
	}

	s.notify(ctx, events.New(events.RankingUpdated, tournamentID, categoryID, nil))
	return s.GetGlobalRanking(ctx, tournamentID, categoryID)
}

// GetPools returns every pool of the category in round order with its matches and their sets.
func (s *AmericanoService) GetPools(ctx context.Context, tournamentID, categoryID uuid.UUID) ([]bracket.Pool, error) {
	if _, _, err := s.loadScope(ctx, nil, tournamentID, categoryID); err != nil {
		return nil, err
	}

	var (
		pools   []bracket.Pool
		matches []bracket.PoolMatch
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pools, err = s.Stores.Americano.GetPools(gctx, nil, tournamentID, categoryID)
		if err != nil {
			return internal(err, "failed to load pools of category %s", categoryID)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		matches, err = s.Stores.Americano.GetPoolMatches(gctx, nil, tournamentID, categoryID)
		if err != nil {
			return internal(err, "failed to load pool matches of category %s", categoryID)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		if m.Status == bracket.MatchCompleted {
			ids = append(ids, m.ID)
		}
	}
	sets, err := s.Stores.Matches.GetSets(ctx, nil, ids)
	if err != nil {
		return nil, internal(err, "failed to load pool match sets of category %s", categoryID)
	}

	byPool := make(map[uuid.UUID][]bracket.PoolMatch, len(pools))
	for _, m := range matches {
		m.Sets = sets[m.ID]
		byPool[m.PoolID] = append(byPool[m.PoolID], m)
	}
	for i := range pools {
		pools[i].Matches = byPool[pools[i].ID]
	}
	if pools == nil {
		pools = []bracket.Pool{}
	}
	return pools, nil
}

// GetGlobalRanking lists the category ranking: points, then wins, then point difference.
func (s *AmericanoService) GetGlobalRanking(ctx context.Context, tournamentID, categoryID uuid.UUID) ([]bracket.Ranking, error) {
	if _, _, err := s.loadScope(ctx, nil, tournamentID, categoryID); err != nil {
		return nil, err
	}
	rankings, err := s.Stores.Americano.GetRankings(ctx, nil, tournamentID, categoryID)
	if err != nil {
		return nil, internal(err, "failed to load ranking of category %s", categoryID)
	}
	for i := range rankings {
		rankings[i].Rank = i + 1
	}
	if rankings == nil {
		rankings = []bracket.Ranking{}
	}
	return rankings, nil
}
