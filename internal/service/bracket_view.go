package service

import (
	"context"
	"sort"

	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BranchRounds is one branch of a bracket split into its rounds.
type BranchRounds struct {
	Rounds       map[int][]bracket.Match `json:"rounds"`
	RoundNumbers []int                   `json:"round_numbers"`
}

type BracketView struct {
	Matches []bracket.Match `json:"matches"`
	Zones   []bracket.Zone  `json:"zones,omitempty"`

	// RoundsByNumber is the winners branch, the main line of any elimination bracket
	RoundsByNumber map[int][]bracket.Match          `json:"rounds_by_number"`
	Branches       map[bracket.Branch]BranchRounds `json:"branches"`

	// TotalRounds counts rounds over all branches
	TotalRounds  int `json:"total_rounds"`
	TotalMatches int `json:"total_matches"`
}

// GetBracket returns every match of the category, with sets, grouped by branch and round.
func (s *BracketService) GetBracket(ctx context.Context, tournamentID, categoryID uuid.UUID) (*BracketView, error) {
	if _, _, err := s.loadScope(ctx, nil, tournamentID, categoryID); err != nil {
		return nil, err
	}

	var (
		matches []bracket.Match
		zones   []bracket.Zone
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		matches, err = s.Stores.Matches.GetMatches(gctx, nil, tournamentID, categoryID)
		if err != nil {
			return internal(err, "failed to load matches of category %s", categoryID)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		zones, err = s.Stores.Zones.GetZones(gctx, nil, tournamentID, categoryID)
		if err != nil {
			return internal(err, "failed to load zones of category %s", categoryID)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.attachSets(ctx, matches); err != nil {
		return nil, err
	}

	view := prepareBracketView(matches)
	view.Zones = zones
	return view, nil
}

func (s *BracketService) attachSets(ctx context.Context, matches []bracket.Match) error {
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		if m.IsDecided() && !m.IsBye {
			ids = append(ids, m.ID)
		}
	}
	sets, err := s.Stores.Matches.GetSets(ctx, nil, ids)
	if err != nil {
		return internal(err, "failed to load sets")
	}
	for i := range matches {
		matches[i].Sets = sets[matches[i].ID]
	}
	return nil
}

func prepareBracketView(matches []bracket.Match) *BracketView {
	branches := make(map[bracket.Branch]BranchRounds)

	for _, m := range matches {
		br, ok := branches[m.Branch]
		if !ok {
			br = BranchRounds{Rounds: make(map[int][]bracket.Match)}
		}
		if _, exists := br.Rounds[m.RoundNumber]; !exists {
			br.RoundNumbers = append(br.RoundNumbers, m.RoundNumber)
		}
		br.Rounds[m.RoundNumber] = append(br.Rounds[m.RoundNumber], m)
		branches[m.Branch] = br
	}

	total := 0
	for branch, br := range branches {
		sort.Ints(br.RoundNumbers)
		sortRounds(br.Rounds, br.RoundNumbers)
		branches[branch] = br
		total += len(br.RoundNumbers)
	}

	rounds := make(map[int][]bracket.Match)
	if wb, ok := branches[bracket.WinnersBranch]; ok {
		rounds = wb.Rounds
	}

	if matches == nil {
		matches = []bracket.Match{}
	}
	return &BracketView{
		Matches:        matches,
		RoundsByNumber: rounds,
		Branches:       branches,
		TotalRounds:    total,
		TotalMatches:   len(matches),
	}
}

func sortRounds(rounds map[int][]bracket.Match, roundNums []int) {
	for _, r := range roundNums {
		sort.Slice(rounds[r], func(i, j int) bool {
			return rounds[r][i].MatchNumber < rounds[r][j].MatchNumber
		})
	}
}
