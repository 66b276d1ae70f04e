package service

import (
	"context"
	"strings"
	"time"

	"github.com/AdamBeresnev/padel-tournament/internal/apperr"
	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/events"
	"github.com/AdamBeresnev/padel-tournament/internal/middleware"
	"github.com/google/uuid"
)

type TournamentService struct {
	Deps
}

func NewTournamentService(deps Deps) *TournamentService {
	return &TournamentService{Deps: deps.withDefaults()}
}

type TournamentInput struct {
	Name            string                   `json:"name"`
	Format          bracket.TournamentFormat `json:"format"`
	SetsToWin       int                      `json:"sets_to_win"`
	GamesToWinSet   int                      `json:"games_to_win_set"`
	TiebreakAt      int                      `json:"tiebreak_at"`
	GoldenPoint     bool                     `json:"golden_point"`
	AmericanoRounds int                      `json:"americano_rounds"`
}

func (in TournamentInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("tournament name is required")
	}
	if !in.Format.Valid() {
		return apperr.Validation("unknown tournament format %q", in.Format)
	}
	if in.SetsToWin < 0 || in.GamesToWinSet < 0 || in.TiebreakAt < 0 || in.AmericanoRounds < 0 {
		return apperr.Validation("scoring settings must not be negative")
	}
	if in.AmericanoRounds > MaxAmericanoRounds {
		return apperr.Validation("americano rounds must be at most %d, got %d", MaxAmericanoRounds, in.AmericanoRounds)
	}
	if in.GamesToWinSet > 0 && in.TiebreakAt > in.GamesToWinSet {
		return apperr.Validation("tiebreak_at (%d) must not exceed games_to_win_set (%d)", in.TiebreakAt, in.GamesToWinSet)
	}
	return nil
}

// CreateTournament stores a DRAFT tournament owned by the calling user. Unset scoring
// settings fall back to best of three sets to six games with a tiebreak at 6-6.
func (s *TournamentService) CreateTournament(ctx context.Context, in TournamentInput) (*bracket.Tournament, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ownerID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, apperr.Validation("acting user is required to create a tournament")
	}

	tournament := &bracket.Tournament{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		Name:            strings.TrimSpace(in.Name),
		Status:          bracket.TournamentDraft,
		Format:          in.Format,
		SetsToWin:       in.SetsToWin,
		GamesToWinSet:   in.GamesToWinSet,
		TiebreakAt:      in.TiebreakAt,
		GoldenPoint:     in.GoldenPoint,
		AmericanoRounds: in.AmericanoRounds,
		CreatedAt:       time.Now().UTC(),
	}
	rules := tournament.Rules()
	tournament.SetsToWin, tournament.GamesToWinSet, tournament.TiebreakAt = rules.SetsToWin, rules.GamesToWinSet, rules.TiebreakAt

	if err := s.Stores.Tournaments.CreateTournament(ctx, nil, tournament); err != nil {
		return nil, internal(err, "failed to create tournament")
	}
	s.Log.Info("tournament created", "tournament_id", tournament.ID, "format", tournament.Format, "owner_id", ownerID)
	return tournament, nil
}

func (s *TournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	tournament, err := s.Stores.Tournaments.GetTournament(ctx, nil, id)
	if err != nil {
		return nil, lookupErr(err, "tournament", id)
	}
	return tournament, nil
}

// GetTournamentsForUser lists the tournaments owned by the calling user.
func (s *TournamentService) GetTournamentsForUser(ctx context.Context) ([]bracket.Tournament, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, apperr.Validation("acting user is required")
	}
	tournaments, err := s.Stores.Tournaments.GetTournamentsByOwner(ctx, nil, userID)
	if err != nil {
		return nil, internal(err, "failed to list tournaments of user %s", userID)
	}
	if tournaments == nil {
		tournaments = []bracket.Tournament{}
	}
	return tournaments, nil
}

var tournamentTransitions = map[bracket.TournamentStatus][]bracket.TournamentStatus{
	bracket.TournamentDraft:              {bracket.TournamentPublished, bracket.TournamentCancelled},
	bracket.TournamentPublished:          {bracket.TournamentRegistrationOpen, bracket.TournamentCancelled},
	bracket.TournamentRegistrationOpen:   {bracket.TournamentRegistrationClosed, bracket.TournamentCancelled},
	bracket.TournamentRegistrationClosed: {bracket.TournamentInProgress, bracket.TournamentRegistrationOpen, bracket.TournamentCancelled},
	bracket.TournamentInProgress:         {bracket.TournamentCompleted, bracket.TournamentCancelled},
}

func isValidStatusTransition(from, to bracket.TournamentStatus) bool {
	for _, s := range tournamentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionStatus moves the tournament through its lifecycle. Asking for the current status is a no-op.
func (s *TournamentService) TransitionStatus(ctx context.Context, id uuid.UUID, next bracket.TournamentStatus) (*bracket.Tournament, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, internal(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	tournament, err := s.Stores.Tournaments.GetTournament(ctx, tx, id)
	if err != nil {
		return nil, lookupErr(err, "tournament", id)
	}
	if tournament.Status == next {
		return tournament, nil
	}
	if !isValidStatusTransition(tournament.Status, next) {
		return nil, apperr.State("tournament %s cannot go from %s to %s", id, tournament.Status, next)
	}

	if err := s.Stores.Tournaments.UpdateTournamentStatus(ctx, tx, id, next); err != nil {
		return nil, internal(err, "failed to update status of tournament %s", id)
	}
	if err := tx.Commit(); err != nil {
		return nil, internal(err, "failed to commit status of tournament %s", id)
	}

	s.Log.Info("tournament status changed", "tournament_id", id, "from", tournament.Status, "to", next)
	tournament.Status = next
	s.notify(ctx, events.New(events.TournamentUpdated, id, uuid.Nil, map[string]any{"status": next}))
	return tournament, nil
}

func (s *TournamentService) CreateCategory(ctx context.Context, tournamentID uuid.UUID, name string) (*bracket.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("category name is required")
	}
	tournament, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := ensureNotFinished(tournament, "add a category"); err != nil {
		return nil, err
	}

	category := &bracket.Category{ID: uuid.New(), TournamentID: tournamentID, Name: name, CreatedAt: time.Now().UTC()}
	if err := s.Stores.Tournaments.CreateCategory(ctx, nil, category); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConflict, "category "+name+" could not be created, names are unique per tournament")
	}
	return category, nil
}

func (s *TournamentService) ListCategories(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Category, error) {
	if _, err := s.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	categories, err := s.Stores.Tournaments.GetCategories(ctx, nil, tournamentID)
	if err != nil {
		return nil, internal(err, "failed to list categories of tournament %s", tournamentID)
	}
	if categories == nil {
		categories = []bracket.Category{}
	}
	return categories, nil
}

type TeamInput struct {
	Name      string    `json:"name"`
	Player1ID uuid.UUID `json:"player_1_id"`
	Player2ID uuid.UUID `json:"player_2_id"`
	Seed      *int      `json:"seed,omitempty"`
}

// RegisterTeam adds a DRAFT team to the category. Only confirmed teams are placed in brackets.
func (s *TournamentService) RegisterTeam(ctx context.Context, tournamentID, categoryID uuid.UUID, in TeamInput) (*bracket.Team, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("team name is required")
	}
	if in.Player1ID == uuid.Nil || in.Player2ID == uuid.Nil {
		return nil, apperr.Validation("a team needs two players")
	}
	if in.Player1ID == in.Player2ID {
		return nil, apperr.Validation("a team needs two different players")
	}
	if in.Seed != nil && *in.Seed < 1 {
		return nil, apperr.Validation("seed must be at least 1, got %d", *in.Seed)
	}

	tournament, _, err := s.loadScope(ctx, nil, tournamentID, categoryID)
	if err != nil {
		return nil, err
	}
	if err := ensureNotFinished(tournament, "register a team"); err != nil {
		return nil, err
	}

	team := &bracket.Team{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		CategoryID:   categoryID,
		Name:         strings.TrimSpace(in.Name),
		Player1ID:    in.Player1ID,
		Player2ID:    in.Player2ID,
		Status:       bracket.TeamDraft,
		Seed:         in.Seed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Stores.Tournaments.CreateTeam(ctx, nil, team); err != nil {
		return nil, internal(err, "failed to register team %s", team.Name)
	}
	return team, nil
}

func (s *TournamentService) ConfirmTeam(ctx context.Context, teamID uuid.UUID) (*bracket.Team, error) {
	return s.setTeamStatus(ctx, teamID, bracket.TeamConfirmed)
}

func (s *TournamentService) CancelTeam(ctx context.Context, teamID uuid.UUID) (*bracket.Team, error) {
	return s.setTeamStatus(ctx, teamID, bracket.TeamCancelled)
}

func (s *TournamentService) setTeamStatus(ctx context.Context, teamID uuid.UUID, status bracket.TeamStatus) (*bracket.Team, error) {
	team, err := s.Stores.Tournaments.GetTeam(ctx, nil, teamID)
	if err != nil {
		return nil, lookupErr(err, "team", teamID)
	}
	if team.Status == status {
		return team, nil
	}
	if team.Status == bracket.TeamCancelled {
		return nil, apperr.State("team %s is cancelled", teamID)
	}
	if err := s.Stores.Tournaments.UpdateTeamStatus(ctx, nil, teamID, status); err != nil {
		return nil, lookupErr(err, "team", teamID)
	}
	team.Status = status
	return team, nil
}

// ListTeams lists the category's teams in seed order. A nil status lists all of them.
func (s *TournamentService) ListTeams(ctx context.Context, tournamentID, categoryID uuid.UUID, status *bracket.TeamStatus) ([]bracket.Team, error) {
	if _, _, err := s.loadScope(ctx, nil, tournamentID, categoryID); err != nil {
		return nil, err
	}
	teams, err := s.Stores.Tournaments.GetTeams(ctx, nil, tournamentID, categoryID, status)
	if err != nil {
		return nil, internal(err, "failed to list teams of category %s", categoryID)
	}
	if teams == nil {
		teams = []bracket.Team{}
	}
	return teams, nil
}
