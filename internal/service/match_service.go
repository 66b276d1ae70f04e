package service

import (
	"context"

	"github.com/AdamBeresnev/padel-tournament/internal/apperr"
	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/events"
	"github.com/AdamBeresnev/padel-tournament/internal/utils"
	"github.com/google/uuid"
)

type MatchService struct {
	Deps
	standings *StandingsService
}

func NewMatchService(deps Deps, standings *StandingsService) *MatchService {
	return &MatchService{Deps: deps.withDefaults(), standings: standings}
}

var matchTransitions = map[bracket.MatchStatus][]bracket.MatchStatus{
	bracket.MatchScheduled:  {bracket.MatchInProgress, bracket.MatchCompleted, bracket.MatchCancelled, bracket.MatchWalkover},
	bracket.MatchInProgress: {bracket.MatchCompleted, bracket.MatchCancelled, bracket.MatchWalkover},
	bracket.MatchCompleted:  {bracket.MatchScheduled},
	bracket.MatchWalkover:   {bracket.MatchScheduled},
}

func canTransition(from, to bracket.MatchStatus) bool {
	for _, s := range matchTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// GetMatch returns a match with its sets.
func (s *MatchService) GetMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	match, err := s.Stores.Matches.GetMatch(ctx, nil, matchID)
	if err != nil {
		return nil, lookupErr(err, "match", matchID)
	}
	sets, err := s.Stores.Matches.GetSets(ctx, nil, []uuid.UUID{matchID})
	if err != nil {
		return nil, internal(err, "failed to load sets of match %s", matchID)
	}
	match.Sets = sets[matchID]
	return match, nil
}

func (s *MatchService) StartMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	return s.transition(ctx, matchID, bracket.MatchInProgress, func(m *bracket.Match) error {
		if m.Team1ID == nil || m.Team2ID == nil {
			return apperr.State("match %s cannot start before both teams are known", m.ID)
		}
		if m.IsBye {
			return apperr.State("match %s is a bye", m.ID)
		}
		return nil
	})
}

func (s *MatchService) CancelMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	return s.transition(ctx, matchID, bracket.MatchCancelled, nil)
}

// ReopenMatch puts a decided match back to SCHEDULED and clears its result for correction.
// Teams already moved forward by the old result stay where they are.
func (s *MatchService) ReopenMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	match, err := s.transition(ctx, matchID, bracket.MatchScheduled, func(m *bracket.Match) error {
		if m.IsBye {
			return apperr.State("match %s is a bye and cannot be reopened", m.ID)
		}
		m.WinnerTeamID = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	if match.ZoneID == nil && (match.WinnerNextMatchID != nil || match.LoserNextMatchID != nil) {
		s.Log.Warn("match reopened, downstream slots keep the previous result",
			"match_id", match.ID,
			"winner_next_match_id", match.WinnerNextMatchID,
			"loser_next_match_id", match.LoserNextMatchID,
		)
	}
	return match, nil
}

// transition applies a status change inside one transaction. check may veto or adjust the match.
func (s *MatchService) transition(ctx context.Context, matchID uuid.UUID, to bracket.MatchStatus, check func(*bracket.Match) error) (*bracket.Match, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	match, err := s.Stores.Matches.GetMatch(ctx, tx, matchID)
	if err != nil {
		return nil, lookupErr(err, "match", matchID)
	}
	tournament, err := s.Stores.Tournaments.GetTournament(ctx, tx, match.TournamentID)
	if err != nil {
		return nil, lookupErr(err, "tournament", match.TournamentID)
	}
	if err := ensureNotFinished(tournament, "change match"); err != nil {
		return nil, err
	}
	if !canTransition(match.Status, to) {
		return nil, apperr.State("match %s cannot go from %s to %s", matchID, match.Status, to)
	}
	if check != nil {
		if err := check(match); err != nil {
			return nil, err
		}
	}

	match.Status = to
	if err := s.Stores.Matches.UpdateMatch(ctx, tx, match); err != nil {
		return nil, internal(err, "failed to update match %s", matchID)
	}
	if to == bracket.MatchScheduled {
		if err := s.Stores.Matches.ReplaceSets(ctx, tx, matchID, nil); err != nil {
			return nil, internal(err, "failed to clear sets of match %s", matchID)
		}
	}
	if to == bracket.MatchInProgress {
		if err := s.markInProgress(ctx, tx, tournament); err != nil {
			return nil, err
		}
	}
	if match.ZoneID != nil {
		if _, err := s.standings.RefreshZoneStandings(ctx, tx, *match.ZoneID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit match %s", matchID)
	}

	s.Log.Info("match status changed", "match_id", matchID, "status", to)
	s.notify(ctx, events.New(events.MatchUpdated, match.TournamentID, match.CategoryID, match))
	return match, nil
}

// RecordResult stores the sets of a match, decides the winner under the tournament's scoring
// rules and then progresses it. The result is committed before progression runs: if progression
// fails the returned error has code PROGRESSION and the match is still returned.
func (s *MatchService) RecordResult(ctx context.Context, matchID uuid.UUID, sets []bracket.Set) (*bracket.Match, error) {
	return s.decide(ctx, matchID, bracket.MatchCompleted, func(m *bracket.Match, rules bracket.ScoringRules) (uuid.UUID, error) {
		side, err := ValidateSets(rules, sets)
		if err != nil {
			return uuid.Nil, err
		}
		m.Sets = sets
		return *m.Slot(side), nil
	})
}

// RecordWalkover decides the match for winnerID without play.
func (s *MatchService) RecordWalkover(ctx context.Context, matchID, winnerID uuid.UUID) (*bracket.Match, error) {
	return s.decide(ctx, matchID, bracket.MatchWalkover, func(m *bracket.Match, _ bracket.ScoringRules) (uuid.UUID, error) {
		if m.SlotOf(winnerID) == 0 {
			return uuid.Nil, apperr.Validation("team %s does not play match %s", winnerID, m.ID)
		}
		m.Sets = nil
		return winnerID, nil
	})
}

func (s *MatchService) decide(ctx context.Context, matchID uuid.UUID, status bracket.MatchStatus, winnerOf func(*bracket.Match, bracket.ScoringRules) (uuid.UUID, error)) (*bracket.Match, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	match, err := s.Stores.Matches.GetMatch(ctx, tx, matchID)
	if err != nil {
		return nil, lookupErr(err, "match", matchID)
	}
	tournament, err := s.Stores.Tournaments.GetTournament(ctx, tx, match.TournamentID)
	if err != nil {
		return nil, lookupErr(err, "tournament", match.TournamentID)
	}
	if err := ensureNotFinished(tournament, "record a result"); err != nil {
		return nil, err
	}
	if !canTransition(match.Status, status) || match.Status == bracket.MatchCompleted || match.Status == bracket.MatchWalkover {
		return nil, apperr.State("match %s is %s, reopen it before recording a new result", matchID, match.Status)
	}
	if match.IsBye {
		return nil, apperr.State("match %s is a bye", matchID)
	}
	if match.Team1ID == nil || match.Team2ID == nil {
		return nil, apperr.State("match %s is still waiting for its teams", matchID)
	}

	winnerID, err := winnerOf(match, tournament.Rules())
	if err != nil {
		return nil, err
	}

	match.Status = status
	match.WinnerTeamID = utils.Ptr(winnerID)
	if err := s.Stores.Matches.UpdateMatch(ctx, tx, match); err != nil {
		return nil, internal(err, "failed to update match %s", matchID)
	}
	if err := s.Stores.Matches.ReplaceSets(ctx, tx, matchID, match.Sets); err != nil {
		return nil, internal(err, "failed to store sets of match %s", matchID)
	}
	if err := s.markInProgress(ctx, tx, tournament); err != nil {
		return nil, err
	}
	completed := false
	if match.ZoneID != nil {
		if _, err := s.standings.RefreshZoneStandings(ctx, tx, *match.ZoneID); err != nil {
			return nil, err
		}
		if completed, err = s.completeIfDone(ctx, tx, match.TournamentID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit result of match %s", matchID)
	}
	if completed {
		s.announceCompleted(ctx, match.TournamentID)
	}

	s.Log.Info("match decided", "match_id", matchID, "status", status, "winner_team_id", winnerID)

	var progressErr error
	if match.ZoneID == nil {
		if err := s.ProgressWinner(ctx, matchID, winnerID, match.Loser()); err != nil {
			s.Log.Error("progression failed, result kept",
				"match_id", matchID,
				"winner_team_id", winnerID,
				"error", err,
			)
			progressErr = apperr.Progression(err, "result of match %s recorded, but the bracket could not be advanced", matchID)
		}
	}

	s.notify(ctx, events.New(events.MatchUpdated, match.TournamentID, match.CategoryID, match))
	return match, progressErr
}
