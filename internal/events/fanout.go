package events

import (
	"context"

	"github.com/AdamBeresnev/padel-tournament/internal/logger"
)

// Fanout forwards each event to every sink. A failing sink is logged and skipped,
// it never fails the caller.
type Fanout struct {
	sinks []Notifier
	log   *logger.Logger
}

func NewFanout(log *logger.Logger, sinks ...Notifier) *Fanout {
	return &Fanout{sinks: sinks, log: log}
}

func (f *Fanout) Notify(ctx context.Context, event Event) error {
	for _, sink := range f.sinks {
		if err := sink.Notify(ctx, event); err != nil {
			f.log.Warn("event delivery failed",
				"type", event.Type,
				"tournament_id", event.TournamentID,
				"error", err,
			)
		}
	}
	return nil
}
