package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/padel-tournament/internal/apperr"
	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/events"
	"github.com/AdamBeresnev/padel-tournament/internal/logger"
	"github.com/AdamBeresnev/padel-tournament/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Stores groups the persistence layer every service works against.
type Stores struct {
	Tournaments *store.TournamentStore
	Matches     *store.MatchStore
	Zones       *store.ZoneStore
	Americano   *store.AmericanoStore
}

func NewStores(db *sqlx.DB) Stores {
	return Stores{
		Tournaments: store.NewTournamentStore(db),
		Matches:     store.NewMatchStore(db),
		Zones:       store.NewZoneStore(db),
		Americano:   store.NewAmericanoStore(db),
	}
}

// Deps are the collaborators shared by all services.
type Deps struct {
	DB       *sqlx.DB
	Stores   Stores
	Log      *logger.Logger
	Notifier events.Notifier
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Notifier == nil {
		d.Notifier = events.Nop()
	}
	return d
}

// notify runs after commit; delivery problems are logged, never returned.
func (d Deps) notify(ctx context.Context, event events.Event) {
	if err := d.Notifier.Notify(ctx, event); err != nil {
		d.Log.Warn("notification failed", "type", event.Type, "tournament_id", event.TournamentID, "error", err)
	}
}

// lookupErr turns a missing row into a NOT_FOUND error naming the entity.
func lookupErr(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Wrap(err, apperr.CodeNotFound, fmt.Sprintf("%s %s not found", entity, id))
	}
	return apperr.Internal(err, fmt.Sprintf("failed to load %s %s", entity, id))
}

func internal(err error, format string, args ...any) error {
	return apperr.Internal(err, fmt.Sprintf(format, args...))
}

// loadScope fetches the tournament and checks the category belongs to it.
func (d Deps) loadScope(ctx context.Context, q store.Executor, tournamentID, categoryID uuid.UUID) (*bracket.Tournament, *bracket.Category, error) {
	tournament, err := d.Stores.Tournaments.GetTournament(ctx, q, tournamentID)
	if err != nil {
		return nil, nil, lookupErr(err, "tournament", tournamentID)
	}
	category, err := d.Stores.Tournaments.GetCategory(ctx, q, tournamentID, categoryID)
	if err != nil {
		return nil, nil, lookupErr(err, "category", categoryID)
	}
	return tournament, category, nil
}

// lockCategory starts the generation critical section for (tournament, category).
func (d Deps) lockCategory(ctx context.Context, tx *sqlx.Tx, tournamentID, categoryID uuid.UUID) error {
	if err := d.Stores.Tournaments.BumpGeneration(ctx, tx, tournamentID, categoryID); err != nil {
		return lookupErr(err, "category", categoryID)
	}
	return nil
}

// markInProgress moves a tournament that is still before play into IN_PROGRESS.
func (d Deps) markInProgress(ctx context.Context, q store.Executor, tournament *bracket.Tournament) error {
	if tournament.Status == bracket.TournamentInProgress || tournament.Status.IsTerminal() {
		return nil
	}
	if err := d.Stores.Tournaments.UpdateTournamentStatus(ctx, q, tournament.ID, bracket.TournamentInProgress); err != nil {
		return internal(err, "failed to start tournament %s", tournament.ID)
	}
	tournament.Status = bracket.TournamentInProgress
	return nil
}

func ensureNotFinished(tournament *bracket.Tournament, action string) error {
	if tournament.Status.IsTerminal() {
		return apperr.State("cannot %s: tournament %s is %s", action, tournament.ID, tournament.Status)
	}
	return nil
}
