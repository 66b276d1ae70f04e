package service

import (
	"math"
	"sort"

	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/utils"
	"github.com/google/uuid"
)

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

func totalRounds(bracketSize int) int {
	if bracketSize < 2 {
		return 0
	}
	return int(math.Log2(float64(bracketSize)))
}

// generateRound1Pairs returns the seed indexes meeting in each first round match, in match order.
// Seed 0 meets the last seed, and the top two seeds can only meet in the final.
func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		pairs = append(pairs, [2]int{rounds[i], rounds[i+1]})
	}

	return pairs
}

// successorSlot is the slot a match feeds in the next round: odd match numbers take slot 1.
func successorSlot(matchNumber int) int {
	if matchNumber%2 != 0 {
		return 1
	}
	return 2
}

type treePos struct {
	branch bracket.Branch
	round  int
	number int
}

// tree collects the matches of one generated bracket, addressable by position.
type tree struct {
	tournamentID uuid.UUID
	categoryID   uuid.UUID
	matches      []bracket.Match
	byPos        map[treePos]int
}

func newTree(tournamentID, categoryID uuid.UUID) *tree {
	return &tree{tournamentID: tournamentID, categoryID: categoryID, byPos: make(map[treePos]int)}
}

func (t *tree) addRound(branch bracket.Branch, round, count int) {
	for n := 1; n <= count; n++ {
		t.byPos[treePos{branch, round, n}] = len(t.matches)
		t.matches = append(t.matches, bracket.Match{
			ID:           uuid.New(),
			TournamentID: t.tournamentID,
			CategoryID:   t.categoryID,
			Branch:       branch,
			RoundNumber:  round,
			MatchNumber:  n,
			Status:       bracket.MatchScheduled,
		})
	}
}

func (t *tree) at(branch bracket.Branch, round, number int) *bracket.Match {
	i, ok := t.byPos[treePos{branch, round, number}]
	if !ok {
		return nil
	}
	return &t.matches[i]
}

func (t *tree) routeWinner(from, to *bracket.Match, slot int) {
	from.WinnerNextMatchID = utils.Ptr(to.ID)
	from.WinnerNextSlot = utils.Ptr(slot)
}

func (t *tree) routeLoser(from, to *bracket.Match, slot int) {
	from.LoserNextMatchID = utils.Ptr(to.ID)
	from.LoserNextSlot = utils.Ptr(slot)
}

// addWinnersTree adds a single elimination tree for bracketSize slots whose rounds are
// numbered from firstRound. Winners of (r, n) play in (r+1, ceil(n/2)).
func (t *tree) addWinnersTree(bracketSize, firstRound int) {
	rounds := totalRounds(bracketSize)
	for k := 0; k < rounds; k++ {
		t.addRound(bracket.WinnersBranch, firstRound+k, bracketSize>>(k+1))
	}

	for k := 0; k < rounds-1; k++ {
		round := firstRound + k
		for n := 1; n <= bracketSize>>(k+1); n++ {
			t.routeWinner(t.at(bracket.WinnersBranch, round, n), t.at(bracket.WinnersBranch, round+1, (n+1)/2), successorSlot(n))
		}
	}
}

// addLosersBranch adds the losers bracket and the finals to a double elimination tree whose
// winners bracket was already added with firstRound 1.
//
// Losers round 2k-1 plays off the survivors, losers round 2k takes the losers of winners
// round k+1, fed in reverse order on odd k so a team does not meet the one that just beat it.
// The grand final is finals round 1, its reset finals round 2.
func (t *tree) addLosersBranch(bracketSize int) {
	rounds := totalRounds(bracketSize)
	wbFinal := t.at(bracket.WinnersBranch, rounds, 1)

	t.addRound(bracket.FinalsBranch, 1, 1)
	t.addRound(bracket.FinalsBranch, 2, 1)
	grandFinal := t.at(bracket.FinalsBranch, 1, 1)
	reset := t.at(bracket.FinalsBranch, 2, 1)

	t.routeWinner(wbFinal, grandFinal, 1)
	t.routeWinner(grandFinal, reset, 1)
	t.routeLoser(grandFinal, reset, 2)

	if rounds == 1 {
		t.routeLoser(wbFinal, grandFinal, 2)
		return
	}

	for k := 1; k <= rounds-1; k++ {
		count := bracketSize >> (k + 1)
		t.addRound(bracket.LosersBranch, 2*k-1, count)
		t.addRound(bracket.LosersBranch, 2*k, count)
	}

	for n := 1; n <= bracketSize/2; n++ {
		t.routeLoser(t.at(bracket.WinnersBranch, 1, n), t.at(bracket.LosersBranch, 1, (n+1)/2), successorSlot(n))
	}

	for k := 1; k <= rounds-1; k++ {
		count := bracketSize >> (k + 1)
		for j := 1; j <= count; j++ {
			t.routeWinner(t.at(bracket.LosersBranch, 2*k-1, j), t.at(bracket.LosersBranch, 2*k, j), 1)

			m := j
			if k%2 == 1 {
				m = count - j + 1
			}
			t.routeLoser(t.at(bracket.WinnersBranch, k+1, m), t.at(bracket.LosersBranch, 2*k, j), 2)

			if k < rounds-1 {
				t.routeWinner(t.at(bracket.LosersBranch, 2*k, j), t.at(bracket.LosersBranch, 2*k+1, (j+1)/2), successorSlot(j))
			}
		}
	}

	t.routeWinner(t.at(bracket.LosersBranch, 2*(rounds-1), 1), grandFinal, 2)
}

// placeTeams fills the first round of the winners tree starting at firstRound with the
// teams in seed order. Seeds without a team leave their slot empty.
func (t *tree) placeTeams(teamIDs []uuid.UUID, bracketSize, firstRound int) {
	for i, pair := range generateRound1Pairs(bracketSize) {
		m := t.at(bracket.WinnersBranch, firstRound, i+1)
		if pair[0] < len(teamIDs) {
			m.Team1ID = utils.Ptr(teamIDs[pair[0]])
		}
		if pair[1] < len(teamIDs) {
			m.Team2ID = utils.Ptr(teamIDs[pair[1]])
		}
	}
}

// buildSingleElimination lays out a complete single elimination bracket: bracketSize-1 matches.
func buildSingleElimination(tournamentID, categoryID uuid.UUID, teamIDs []uuid.UUID) []bracket.Match {
	size := calcBracketSize(len(teamIDs))
	t := newTree(tournamentID, categoryID)
	t.addWinnersTree(size, 1)
	t.placeTeams(teamIDs, size, 1)
	resolveByes(t.matches)
	return t.matches
}

// buildDoubleElimination lays out winners, losers and finals: 2*bracketSize-1 matches.
func buildDoubleElimination(tournamentID, categoryID uuid.UUID, teamIDs []uuid.UUID) []bracket.Match {
	size := calcBracketSize(len(teamIDs))
	t := newTree(tournamentID, categoryID)
	t.addWinnersTree(size, 1)
	t.addLosersBranch(size)
	t.placeTeams(teamIDs, size, 1)
	resolveByes(t.matches)
	return t.matches
}

type slotState int

const (
	slotPending slotState = iota
	slotKnown
	slotDead
)

type slotRef struct {
	matchID uuid.UUID
	slot    int
}

type feeder struct {
	from  int
	loser bool
}

func branchOrder(b bracket.Branch) int {
	switch b {
	case bracket.WinnersBranch:
		return 0
	case bracket.LosersBranch:
		return 1
	case bracket.FinalsBranch:
		return 2
	}
	return 3
}

// resolveByes marks every match that can never have two teams as a bye.
//
// A slot is dead when nothing can ever arrive in it: empty without a feeder, fed by the
// winner of a match with two dead slots, or fed by the loser of a bye. One dead slot makes the
// match a bye that is completed right away when the other team is known, and otherwise stays
// SCHEDULED until progression delivers it. Two dead slots cancel the match.
func resolveByes(matches []bracket.Match) {
	byID := make(map[uuid.UUID]int, len(matches))
	for i := range matches {
		byID[matches[i].ID] = i
	}

	feeders := make(map[slotRef]feeder)
	for i, m := range matches {
		if m.WinnerNextMatchID != nil && m.WinnerNextSlot != nil {
			feeders[slotRef{*m.WinnerNextMatchID, *m.WinnerNextSlot}] = feeder{from: i}
		}
		if m.LoserNextMatchID != nil && m.LoserNextSlot != nil {
			feeders[slotRef{*m.LoserNextMatchID, *m.LoserNextSlot}] = feeder{from: i, loser: true}
		}
	}

	order := make([]int, len(matches))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ma, mb := matches[order[a]], matches[order[b]]
		if branchOrder(ma.Branch) != branchOrder(mb.Branch) {
			return branchOrder(ma.Branch) < branchOrder(mb.Branch)
		}
		if ma.RoundNumber != mb.RoundNumber {
			return ma.RoundNumber < mb.RoundNumber
		}
		return ma.MatchNumber < mb.MatchNumber
	})

	// outcome is slotKnown when the winner already moved on, slotDead when there is none
	outcome := make([]slotState, len(matches))

	stateOf := func(m *bracket.Match, slot int) slotState {
		f, ok := feeders[slotRef{m.ID, slot}]
		if !ok {
			if m.Slot(slot) != nil {
				return slotKnown
			}
			return slotDead
		}
		if f.loser {
			if matches[f.from].IsBye {
				return slotDead
			}
			return slotPending
		}
		return outcome[f.from]
	}

	for _, i := range order {
		m := &matches[i]
		s1, s2 := stateOf(m, 1), stateOf(m, 2)

		switch {
		case s1 == slotDead && s2 == slotDead:
			m.IsBye = true
			m.Status = bracket.MatchCancelled
			outcome[i] = slotDead
		case s1 == slotDead || s2 == slotDead:
			m.IsBye = true
			live, liveState := 1, s1
			if s1 == slotDead {
				live, liveState = 2, s2
			}
			if liveState != slotKnown {
				outcome[i] = slotPending
				continue
			}

			winner := *m.Slot(live)
			m.Status = bracket.MatchCompleted
			m.WinnerTeamID = utils.Ptr(winner)
			outcome[i] = slotKnown
			if m.WinnerNextMatchID != nil && m.WinnerNextSlot != nil {
				if next, ok := byID[*m.WinnerNextMatchID]; ok {
					matches[next].SetSlot(*m.WinnerNextSlot, utils.Ptr(winner))
				}
			}
		default:
			outcome[i] = slotPending
		}
	}
}
