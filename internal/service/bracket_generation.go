package service

import (
	"context"

	"github.com/AdamBeresnev/padel-tournament/internal/apperr"
	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/events"
	"github.com/AdamBeresnev/padel-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BracketService struct {
	Deps
	groups *GroupService
}

func NewBracketService(deps Deps, groups *GroupService) *BracketService {
	return &BracketService{Deps: deps.withDefaults(), groups: groups}
}

// GenerateOptions controls regeneration. Force must be set to replace a bracket that already has results.
type GenerateOptions struct {
	Force bool
}

// GenerateBracket replaces every match of the category with a fresh bracket for its confirmed teams.
// Group formats are delegated to the group stage generator.
func (s *BracketService) GenerateBracket(ctx context.Context, tournamentID, categoryID uuid.UUID, opts GenerateOptions) error {
	tournament, _, err := s.loadScope(ctx, nil, tournamentID, categoryID)
	if err != nil {
		return err
	}
	if err := ensureNotFinished(tournament, "generate bracket"); err != nil {
		return err
	}

	switch tournament.Format {
	case bracket.SingleElimination, bracket.DoubleElimination:
	case bracket.RoundRobin, bracket.GroupStageElimination:
		return s.groups.GenerateGroupStage(ctx, tournamentID, categoryID, opts)
	case bracket.Swiss:
		return apperr.Validation("tournament %s uses the SWISS format, which has no generated bracket", tournamentID)
	default:
		return apperr.Validation("tournament %s uses the %s format, generate americano pools instead", tournamentID, tournament.Format)
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
	if len(teamIDs) < 2 {
		return apperr.Validation("at least 2 confirmed teams are required to generate a bracket, category %s has %d", categoryID, len(teamIDs))
	}

	var matches []bracket.Match
	if tournament.Format == bracket.DoubleElimination {
		matches = buildDoubleElimination(tournamentID, categoryID, teamIDs)
	} else {
		matches = buildSingleElimination(tournamentID, categoryID, teamIDs)
	}

	if err := s.Stores.Matches.CreateMatches(ctx, tx, matches); err != nil {
		return internal(err, "failed to create matches for category %s", categoryID)
	}

	if err := tx.Commit(); err != nil {
		return internal(err, "failed to commit bracket of category %s", categoryID)
	}

	s.Log.Info("bracket generated",
		"tournament_id", tournamentID,
		"category_id", categoryID,
		"format", tournament.Format,
		"teams", len(teamIDs),
		"matches", len(matches),
	)
	s.notify(ctx, events.New(events.BracketGenerated, tournamentID, categoryID, map[string]any{
		"teams":   len(teamIDs),
		"matches": len(matches),
	}))
	return nil
}

// clearCategory deletes the category's matches and zones. Played results are only discarded with force.
func (d Deps) clearCategory(ctx context.Context, tx *sqlx.Tx, tournamentID, categoryID uuid.UUID, opts GenerateOptions) error {
	played, err := d.Stores.Matches.HasResults(ctx, tx, tournamentID, categoryID)
	if err != nil {
		return internal(err, "failed to check results of category %s", categoryID)
	}
	if played && !opts.Force {
		return apperr.Conflict("category %s already has played matches, regenerate with force to discard them", categoryID)
	}

	if err := d.Stores.Matches.DeleteCategoryMatches(ctx, tx, tournamentID, categoryID); err != nil {
		return internal(err, "failed to delete matches of category %s", categoryID)
	}
	if err := d.Stores.Zones.DeleteCategoryZones(ctx, tx, tournamentID, categoryID); err != nil {
		return internal(err, "failed to delete zones of category %s", categoryID)
	}
	return nil
}

// confirmedTeamIDs returns the confirmed teams in seed order: seeded by seed, the rest by registration.
func (d Deps) confirmedTeamIDs(ctx context.Context, tx *sqlx.Tx, tournamentID, categoryID uuid.UUID) ([]uuid.UUID, error) {
	teams, err := d.Stores.Tournaments.GetTeams(ctx, tx, tournamentID, categoryID, utils.Ptr(bracket.TeamConfirmed))
	if err != nil {
		return nil, internal(err, "failed to load teams of category %s", categoryID)
	}
	ids := make([]uuid.UUID, len(teams))
	for i, team := range teams {
		ids[i] = team.ID
	}
	return ids, nil
}
