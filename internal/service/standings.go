package service

import (
	"context"
	"sort"

	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/store"
	"github.com/google/uuid"
)

// PointsPerWin is what a group win is worth in the standings table. Losses score nothing.
const PointsPerWin = 3

type StandingsService struct {
	Deps
}

func NewStandingsService(deps Deps) *StandingsService {
	return &StandingsService{Deps: deps.withDefaults()}
}

// CalculateGroupStandings ranks the zone's teams from its decided matches. Nothing is written.
func (s *StandingsService) CalculateGroupStandings(ctx context.Context, zoneID uuid.UUID) ([]bracket.Standing, error) {
	return s.calculate(ctx, nil, zoneID)
}

// RefreshZoneStandings recomputes the zone and caches the result on the zone members.
func (s *StandingsService) RefreshZoneStandings(ctx context.Context, q store.Executor, zoneID uuid.UUID) ([]bracket.Standing, error) {
	standings, err := s.calculate(ctx, q, zoneID)
	if err != nil {
		return nil, err
	}
	if err := s.Stores.Zones.SaveStandings(ctx, q, standings); err != nil {
		return nil, internal(err, "failed to save standings of zone %s", zoneID)
	}
	return standings, nil
}

func (s *StandingsService) calculate(ctx context.Context, q store.Executor, zoneID uuid.UUID) ([]bracket.Standing, error) {
	if _, err := s.Stores.Zones.GetZone(ctx, q, zoneID); err != nil {
		return nil, lookupErr(err, "zone", zoneID)
	}

	members, err := s.Stores.Zones.GetMembers(ctx, q, zoneID)
	if err != nil {
		return nil, internal(err, "failed to load members of zone %s", zoneID)
	}

	matches, err := s.Stores.Matches.GetZoneMatches(ctx, q, zoneID)
	if err != nil {
		return nil, internal(err, "failed to load matches of zone %s", zoneID)
	}

	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		if m.IsDecided() {
			ids = append(ids, m.ID)
		}
	}
	sets, err := s.Stores.Matches.GetSets(ctx, q, ids)
	if err != nil {
		return nil, internal(err, "failed to load sets of zone %s", zoneID)
	}

	return ComputeStandings(members, matches, sets), nil
}

// ComputeStandings accumulates every COMPLETED or WALKOVER match between members and
// returns the members ranked. Sets are credited to whoever won more games in them.
func ComputeStandings(members []bracket.Standing, matches []bracket.Match, sets map[uuid.UUID][]bracket.Set) []bracket.Standing {
	rows := make([]bracket.Standing, len(members))
	index := make(map[uuid.UUID]int, len(members))
	for i, m := range members {
		rows[i] = bracket.Standing{ZoneID: m.ZoneID, TeamID: m.TeamID, Position: m.Position}
		index[m.TeamID] = i
	}

	for _, m := range matches {
		if !m.IsDecided() || m.Team1ID == nil || m.Team2ID == nil || m.WinnerTeamID == nil {
			continue
		}
		i1, ok1 := index[*m.Team1ID]
		i2, ok2 := index[*m.Team2ID]
		if !ok1 || !ok2 {
			continue
		}

		t1, t2 := &rows[i1], &rows[i2]
		t1.Played++
		t2.Played++
		if *m.WinnerTeamID == *m.Team1ID {
			t1.Wins++
			t2.Losses++
		} else {
			t2.Wins++
			t1.Losses++
		}

		for _, set := range sets[m.ID] {
			t1.GamesWon += set.Team1Games
			t1.GamesLost += set.Team2Games
			t2.GamesWon += set.Team2Games
			t2.GamesLost += set.Team1Games
			switch {
			case set.Team1Games > set.Team2Games:
				t1.SetsWon++
				t2.SetsLost++
			case set.Team2Games > set.Team1Games:
				t2.SetsWon++
				t1.SetsLost++
			}
		}
	}

	for i := range rows {
		rows[i].Points = rows[i].Wins * PointsPerWin
	}

	SortStandings(rows)
	return rows
}

// SortStandings orders by wins, then set difference, then game difference, all descending.
// Teams still level keep their incoming order.
func SortStandings(rows []bracket.Standing) {
	sort.SliceStable(rows, func(i, j int) bool {
		return standingLess(rows[i], rows[j])
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
}

func standingLess(a, b bracket.Standing) bool {
	if a.Wins != b.Wins {
		return a.Wins > b.Wins
	}
	if a.SetDiff() != b.SetDiff() {
		return a.SetDiff() > b.SetDiff()
	}
	return a.GameDiff() > b.GameDiff()
}
