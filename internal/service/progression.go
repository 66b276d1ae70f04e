package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/padel-tournament/internal/apperr"
	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/events"
	"github.com/AdamBeresnev/padel-tournament/internal/store"
	"github.com/AdamBeresnev/padel-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ProgressWinner moves the winner of a decided match into its successor and, when a loser is
// given and the match routes losers, the loser into the losers bracket. Repeating the call
// writes the same slots again. Group matches have no successor and are left alone.
func (s *MatchService) ProgressWinner(ctx context.Context, matchID, winnerID uuid.UUID, loserID *uuid.UUID) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return internal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	match, err := s.Stores.Matches.GetMatch(ctx, tx, matchID)
	if err != nil {
		return lookupErr(err, "match", matchID)
	}
	if !match.IsDecided() {
		return apperr.State("match %s is %s, only decided matches progress", matchID, match.Status)
	}
	if match.SlotOf(winnerID) == 0 {
		return apperr.Validation("team %s did not play match %s", winnerID, matchID)
	}
	if loserID != nil && match.SlotOf(*loserID) == 0 {
		return apperr.Validation("team %s did not play match %s", *loserID, matchID)
	}
	if match.ZoneID != nil {
		return nil
	}

	if err := s.progress(ctx, tx, match, winnerID, loserID); err != nil {
		return err
	}
	completed, err := s.completeIfDone(ctx, tx, match.TournamentID)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return internal(err, "failed to commit progression of match %s", matchID)
	}
	if completed {
		s.announceCompleted(ctx, match.TournamentID)
	}
	return nil
}

func (s *MatchService) progress(ctx context.Context, tx *sqlx.Tx, match *bracket.Match, winnerID uuid.UUID, loserID *uuid.UUID) error {
	if match.Branch == bracket.FinalsBranch && match.RoundNumber == 1 {
		return s.progressGrandFinal(ctx, tx, match, winnerID)
	}

	next, slot, err := s.successor(ctx, tx, match)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	if err := s.place(ctx, tx, next, slot, winnerID); err != nil {
		return err
	}

	if loserID != nil && match.LoserNextMatchID != nil && match.LoserNextSlot != nil {
		target, err := s.Stores.Matches.GetMatch(ctx, tx, *match.LoserNextMatchID)
		if err != nil {
			return apperr.Progression(err, "losers bracket match %s of match %s not found", *match.LoserNextMatchID, match.ID)
		}
		if err := s.place(ctx, tx, target, *match.LoserNextSlot, *loserID); err != nil {
			return err
		}
	}
	return nil
}

// successor finds where the winner plays next: the stored route, or for the winners branch the
// match at (round+1, ceil(number/2)). A nil match means the match was a final.
func (s *MatchService) successor(ctx context.Context, tx *sqlx.Tx, match *bracket.Match) (*bracket.Match, int, error) {
	if match.WinnerNextMatchID != nil && match.WinnerNextSlot != nil {
		next, err := s.Stores.Matches.GetMatch(ctx, tx, *match.WinnerNextMatchID)
		if err != nil {
			return nil, 0, apperr.Progression(err, "successor %s of match %s not found", *match.WinnerNextMatchID, match.ID)
		}
		return next, *match.WinnerNextSlot, nil
	}

	if match.Branch != bracket.WinnersBranch {
		return nil, 0, nil
	}

	last, err := s.Stores.Matches.MaxRound(ctx, tx, match.TournamentID, match.CategoryID, bracket.WinnersBranch)
	if err != nil {
		return nil, 0, internal(err, "failed to load rounds of category %s", match.CategoryID)
	}
	if match.RoundNumber >= last {
		return nil, 0, nil
	}

	number := (match.MatchNumber + 1) / 2
	next, err := s.Stores.Matches.FindByPosition(ctx, tx, match.TournamentID, match.CategoryID, bracket.WinnersBranch, match.RoundNumber+1, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, apperr.Progression(err, "no successor at round %d match %d for match %s", match.RoundNumber+1, number, match.ID)
		}
		return nil, 0, internal(err, "failed to locate successor of match %s", match.ID)
	}
	return next, successorSlot(match.MatchNumber), nil
}

// progressGrandFinal ends the bracket when the winners bracket champion (slot 1) wins the grand
// final. Otherwise both finalists meet again in the reset.
func (s *MatchService) progressGrandFinal(ctx context.Context, tx *sqlx.Tx, final *bracket.Match, winnerID uuid.UUID) error {
	if final.WinnerNextMatchID == nil {
		return nil
	}
	reset, err := s.Stores.Matches.GetMatch(ctx, tx, *final.WinnerNextMatchID)
	if err != nil {
		return apperr.Progression(err, "reset %s of grand final %s not found", *final.WinnerNextMatchID, final.ID)
	}

	if final.SlotOf(winnerID) == 1 {
		reset.Team1ID, reset.Team2ID, reset.WinnerTeamID = nil, nil, nil
		reset.Status = bracket.MatchCancelled
		if err := s.Stores.Matches.UpdateMatch(ctx, tx, reset); err != nil {
			return internal(err, "failed to cancel reset %s", reset.ID)
		}
		return nil
	}

	reset.Team1ID = utils.Ptr(winnerID)
	reset.Team2ID = final.Team1ID
	if reset.Status == bracket.MatchCancelled {
		reset.Status = bracket.MatchScheduled
	}
	if err := s.Stores.Matches.UpdateMatch(ctx, tx, reset); err != nil {
		return internal(err, "failed to fill reset %s", reset.ID)
	}
	return nil
}

// place writes a team into a slot. A bye waiting for this team is completed on the spot and its
// winner moves on in turn. A bye that already let another team through is handed to the new
// arrival, which then replaces that team downstream.
func (s *MatchService) place(ctx context.Context, tx *sqlx.Tx, target *bracket.Match, slot int, teamID uuid.UUID) error {
	if err := s.Stores.Matches.SetSlot(ctx, tx, target.ID, slot, utils.Ptr(teamID)); err != nil {
		return internal(err, "failed to write slot %d of match %s", slot, target.ID)
	}
	target.SetSlot(slot, utils.Ptr(teamID))

	if !target.IsBye || utils.Is(target.WinnerTeamID, teamID) {
		return nil
	}
	if target.IsClosed() && !target.IsDecided() {
		return nil
	}

	previous := target.WinnerTeamID
	target.Status = bracket.MatchCompleted
	target.WinnerTeamID = utils.Ptr(teamID)
	if err := s.Stores.Matches.UpdateMatch(ctx, tx, target); err != nil {
		return internal(err, "failed to complete bye %s", target.ID)
	}
	if previous != nil {
		s.Log.Warn("bye winner replaced", "match_id", target.ID, "previous_team_id", *previous, "team_id", teamID)
	} else {
		s.Log.Debug("bye completed", "match_id", target.ID, "team_id", teamID)
	}

	return s.progress(ctx, tx, target, teamID, nil)
}

// completeIfDone closes the tournament once every category has its bracket or pools generated
// and none of their matches is left open. It reports whether the tournament was closed.
func (d Deps) completeIfDone(ctx context.Context, q store.Executor, tournamentID uuid.UUID) (bool, error) {
	categories, err := d.Stores.Tournaments.GetCategories(ctx, q, tournamentID)
	if err != nil {
		return false, internal(err, "failed to load categories of tournament %s", tournamentID)
	}
	for _, category := range categories {
		matches, err := d.Stores.Matches.CountMatches(ctx, q, tournamentID, category.ID)
		if err != nil {
			return false, internal(err, "failed to count matches of category %s", category.ID)
		}
		pools, err := d.Stores.Americano.CountPools(ctx, q, tournamentID, category.ID)
		if err != nil {
			return false, internal(err, "failed to count pools of category %s", category.ID)
		}
		if matches == 0 && pools == 0 {
			return false, nil
		}
	}

	open, err := d.Stores.Matches.CountOpenMatches(ctx, q, tournamentID)
	if err != nil {
		return false, internal(err, "failed to count open matches of tournament %s", tournamentID)
	}
	openPool, err := d.Stores.Americano.CountOpenPoolMatches(ctx, q, tournamentID)
	if err != nil {
		return false, internal(err, "failed to count open pool matches of tournament %s", tournamentID)
	}
	if open+openPool > 0 {
		return false, nil
	}

	if err := d.Stores.Tournaments.UpdateTournamentStatus(ctx, q, tournamentID, bracket.TournamentCompleted); err != nil {
		return false, internal(err, "failed to complete tournament %s", tournamentID)
	}
	d.Log.Info("tournament completed", "tournament_id", tournamentID)
	return true, nil
}

// announceCompleted tells subscribers about an automatic completion. Call it after commit.
func (d Deps) announceCompleted(ctx context.Context, tournamentID uuid.UUID) {
	d.notify(ctx, events.New(events.TournamentUpdated, tournamentID, uuid.Nil, map[string]any{"status": bracket.TournamentCompleted}))
}
