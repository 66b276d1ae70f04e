package main

import (
	"context"
	"net/http"
	"strconv"

	"github.com/AdamBeresnev/padel-tournament/internal/apperr"
	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/httputil"
	"github.com/AdamBeresnev/padel-tournament/internal/live"
	"github.com/AdamBeresnev/padel-tournament/internal/logger"
	"github.com/AdamBeresnev/padel-tournament/internal/middleware"
	"github.com/AdamBeresnev/padel-tournament/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type application struct {
	log *logger.Logger
	hub *live.Hub

	tournaments *service.TournamentService
	standings   *service.StandingsService
	groups      *service.GroupService
	brackets    *service.BracketService
	matches     *service.MatchService
	americano   *service.AmericanoService
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origins are already enforced by the CORS layer
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (app *application) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(app.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.UserIDHeader},
		MaxAge:         300,
	}))
	r.Use(middleware.LoadActor)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/group-configuration", func(w http.ResponseWriter, r *http.Request) {
		teams, ok := app.intQuery(w, r, "teams")
		if !ok {
			return
		}
		cfg, err := service.CalculateOptimalGroupConfiguration(teams)
		if err != nil {
			httputil.Error(w, app.log, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, cfg)
	})

	r.Get("/americano/rounds", func(w http.ResponseWriter, r *http.Request) {
		players, ok := app.intQuery(w, r, "players")
		if !ok {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, service.CalculateOptimalRounds(players))
	})

	r.Route("/tournaments", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var in service.TournamentInput
			if err := httputil.DecodeJSON(w, r, &in); err != nil {
				httputil.BadRequest(w, app.log, err.Error(), err)
				return
			}
			tournament, err := app.tournaments.CreateTournament(r.Context(), in)
			app.respond(w, http.StatusCreated, tournament, err)
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			tournaments, err := app.tournaments.GetTournamentsForUser(r.Context())
			app.respond(w, http.StatusOK, tournaments, err)
		})

		r.Route("/{tournamentID}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				tournamentID, ok := app.idParam(w, r, "tournamentID")
				if !ok {
					return
				}
				tournament, err := app.tournaments.GetTournament(r.Context(), tournamentID)
				app.respond(w, http.StatusOK, tournament, err)
			})

			r.Post("/status", func(w http.ResponseWriter, r *http.Request) {
				tournamentID, ok := app.idParam(w, r, "tournamentID")
				if !ok {
					return
				}
				var body struct {
					Status bracket.TournamentStatus `json:"status"`
				}
				if err := httputil.DecodeJSON(w, r, &body); err != nil {
					httputil.BadRequest(w, app.log, err.Error(), err)
					return
				}
				tournament, err := app.tournaments.TransitionStatus(r.Context(), tournamentID, body.Status)
				app.respond(w, http.StatusOK, tournament, err)
			})

			r.Post("/categories", func(w http.ResponseWriter, r *http.Request) {
				tournamentID, ok := app.idParam(w, r, "tournamentID")
				if !ok {
					return
				}
				var body struct {
					Name string `json:"name"`
				}
				if err := httputil.DecodeJSON(w, r, &body); err != nil {
					httputil.BadRequest(w, app.log, err.Error(), err)
					return
				}
				category, err := app.tournaments.CreateCategory(r.Context(), tournamentID, body.Name)
				app.respond(w, http.StatusCreated, category, err)
			})

			r.Get("/categories", func(w http.ResponseWriter, r *http.Request) {
				tournamentID, ok := app.idParam(w, r, "tournamentID")
				if !ok {
					return
				}
				categories, err := app.tournaments.ListCategories(r.Context(), tournamentID)
				app.respond(w, http.StatusOK, categories, err)
			})

			r.Route("/categories/{categoryID}", app.categoryRoutes)
		})
	})

	r.Route("/teams/{teamID}", func(r chi.Router) {
		r.Post("/confirm", func(w http.ResponseWriter, r *http.Request) {
			teamID, ok := app.idParam(w, r, "teamID")
			if !ok {
				return
			}
			team, err := app.tournaments.ConfirmTeam(r.Context(), teamID)
			app.respond(w, http.StatusOK, team, err)
		})
		r.Post("/cancel", func(w http.ResponseWriter, r *http.Request) {
			teamID, ok := app.idParam(w, r, "teamID")
			if !ok {
				return
			}
			team, err := app.tournaments.CancelTeam(r.Context(), teamID)
			app.respond(w, http.StatusOK, team, err)
		})
	})

	r.Get("/zones/{zoneID}/standings", func(w http.ResponseWriter, r *http.Request) {
		zoneID, ok := app.idParam(w, r, "zoneID")
		if !ok {
			return
		}
		standings, err := app.standings.CalculateGroupStandings(r.Context(), zoneID)
		app.respond(w, http.StatusOK, standings, err)
	})

	r.Route("/matches/{matchID}", app.matchRoutes)

	r.Put("/pool-matches/{matchID}/result", func(w http.ResponseWriter, r *http.Request) {
		matchID, ok := app.idParam(w, r, "matchID")
		if !ok {
			return
		}
		var body struct {
			TeamAScore int           `json:"team_a_score"`
			TeamBScore int           `json:"team_b_score"`
			Sets       []bracket.Set `json:"sets"`
		}
		if err := httputil.DecodeJSON(w, r, &body); err != nil {
			httputil.BadRequest(w, app.log, err.Error(), err)
			return
		}
		match, err := app.americano.UpdateMatchResult(r.Context(), matchID, body.TeamAScore, body.TeamBScore, body.Sets)
		app.respond(w, http.StatusOK, match, err)
	})

	r.Get("/ws/tournaments/{tournamentID}", func(w http.ResponseWriter, r *http.Request) {
		tournamentID, ok := app.idParam(w, r, "tournamentID")
		if !ok {
			return
		}
		if _, err := app.tournaments.GetTournament(r.Context(), tournamentID); err != nil {
			httputil.Error(w, app.log, err)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied to the client
			app.log.Warn("websocket upgrade failed", "tournament_id", tournamentID, "error", err)
			return
		}
		app.hub.Serve(conn, live.RoomFor(tournamentID))
	})

	return r
}

func (app *application) categoryRoutes(r chi.Router) {
	r.Post("/teams", func(w http.ResponseWriter, r *http.Request) {
		tournamentID, categoryID, ok := app.scopeParams(w, r)
		if !ok {
			return
		}
		var in service.TeamInput
		if err := httputil.DecodeJSON(w, r, &in); err != nil {
			httputil.BadRequest(w, app.log, err.Error(), err)
			return
		}
		team, err := app.tournaments.RegisterTeam(r.Context(), tournamentID, categoryID, in)
		app.respond(w, http.StatusCreated, team, err)
	})

	r.Get("/teams", func(w http.ResponseWriter, r *http.Request) {
		tournamentID, categoryID, ok := app.scopeParams(w, r)
		if !ok {
			return
		}
		var status *bracket.TeamStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			s := bracket.TeamStatus(raw)
			status = &s
		}
		teams, err := app.tournaments.ListTeams(r.Context(), tournamentID, categoryID, status)
		app.respond(w, http.StatusOK, teams, err)
	})

	r.Post("/bracket", func(w http.ResponseWriter, r *http.Request) {
		tournamentID, categoryID, ok := app.scopeParams(w, r)
		if !ok {
			return
		}
		opts := service.GenerateOptions{Force: r.URL.Query().Get("force") == "true"}
		if err := app.brackets.GenerateBracket(r.Context(), tournamentID, categoryID, opts); err != nil {
			httputil.Error(w, app.log, err)
			return
		}
		view, err := app.brackets.GetBracket(r.Context(), tournamentID, categoryID)
		app.respond(w, http.StatusCreated, view, err)
	})

	r.Get("/bracket", func(w http.ResponseWriter, r *http.Request) {
		tournamentID, categoryID, ok := app.scopeParams(w, r)
		if !ok {
			return
		}
		view, err := app.brackets.GetBracket(r.Context(), tournamentID, categoryID)
		app.respond(w, http.StatusOK, view, err)
	})

	r.Post("/classification", func(w http.ResponseWriter, r *http.Request) {
		tournamentID, categoryID, ok := app.scopeParams(w, r)
		if !ok {
			return
		}
		classified, err := app.groups.ClassifyTeamsToEliminationPhase(r.Context(), tournamentID, categoryID)
		app.respond(w, http.StatusOK, classified, err)
	})

	r.Post("/pools", func(w http.ResponseWriter, r *http.Request) {
		tournamentID, categoryID, ok := app.scopeParams(w, r)
		if !ok {
			return
		}
		var body struct {
			Players []uuid.UUID `json:"players"`
			Rounds  int         `json:"rounds"`
			Force   bool        `json:"force"`
		}
		if err := httputil.DecodeJSON(w, r, &body); err != nil {
			httputil.BadRequest(w, app.log, err.Error(), err)
			return
		}
		pools, err := app.americano.GenerateAmericanoSocialPools(r.Context(), tournamentID, categoryID, body.Players, body.Rounds,
			service.GenerateOptions{Force: body.Force})
		app.respond(w, http.StatusCreated, pools, err)
	})

	r.Get("/pools", func(w http.ResponseWriter, r *http.Request) {
		tournamentID, categoryID, ok := app.scopeParams(w, r)
		if !ok {
			return
		}
		pools, err := app.americano.GetPools(r.Context(), tournamentID, categoryID)
		app.respond(w, http.StatusOK, pools, err)
	})

	r.Get("/ranking", func(w http.ResponseWriter, r *http.Request) {
		tournamentID, categoryID, ok := app.scopeParams(w, r)
		if !ok {
			return
		}
		ranking, err := app.americano.GetGlobalRanking(r.Context(), tournamentID, categoryID)
		app.respond(w, http.StatusOK, ranking, err)
	})

	r.Post("/ranking/recalculate", func(w http.ResponseWriter, r *http.Request) {
		tournamentID, categoryID, ok := app.scopeParams(w, r)
		if !ok {
			return
		}
		ranking, err := app.americano.RecalculateGlobalRanking(r.Context(), tournamentID, categoryID)
		app.respond(w, http.StatusOK, ranking, err)
	})
}

func (app *application) matchRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		matchID, ok := app.idParam(w, r, "matchID")
		if !ok {
			return
		}
		match, err := app.matches.GetMatch(r.Context(), matchID)
		app.respond(w, http.StatusOK, match, err)
	})

	r.Post("/start", app.matchAction(app.matches.StartMatch))
	r.Post("/cancel", app.matchAction(app.matches.CancelMatch))
	r.Post("/reopen", app.matchAction(app.matches.ReopenMatch))

	r.Post("/result", func(w http.ResponseWriter, r *http.Request) {
		matchID, ok := app.idParam(w, r, "matchID")
		if !ok {
			return
		}
		var body struct {
			Sets []bracket.Set `json:"sets"`
		}
		if err := httputil.DecodeJSON(w, r, &body); err != nil {
			httputil.BadRequest(w, app.log, err.Error(), err)
			return
		}
		match, err := app.matches.RecordResult(r.Context(), matchID, body.Sets)
		app.respondDecided(w, match, err)
	})

	r.Post("/walkover", func(w http.ResponseWriter, r *http.Request) {
		matchID, ok := app.idParam(w, r, "matchID")
		if !ok {
			return
		}
		var body struct {
			WinnerTeamID uuid.UUID `json:"winner_team_id"`
		}
		if err := httputil.DecodeJSON(w, r, &body); err != nil {
			httputil.BadRequest(w, app.log, err.Error(), err)
			return
		}
		match, err := app.matches.RecordWalkover(r.Context(), matchID, body.WinnerTeamID)
		app.respondDecided(w, match, err)
	})

	// progress re-runs progression for a decided match, e.g. after a PROGRESSION error was fixed
	r.Post("/progress", func(w http.ResponseWriter, r *http.Request) {
		matchID, ok := app.idParam(w, r, "matchID")
		if !ok {
			return
		}
		var body struct {
			WinnerTeamID uuid.UUID  `json:"winner_team_id"`
			LoserTeamID  *uuid.UUID `json:"loser_team_id,omitempty"`
		}
		if err := httputil.DecodeJSON(w, r, &body); err != nil {
			httputil.BadRequest(w, app.log, err.Error(), err)
			return
		}
		if err := app.matches.ProgressWinner(r.Context(), matchID, body.WinnerTeamID, body.LoserTeamID); err != nil {
			httputil.Error(w, app.log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (app *application) matchAction(action func(context.Context, uuid.UUID) (*bracket.Match, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID, ok := app.idParam(w, r, "matchID")
		if !ok {
			return
		}
		match, err := action(r.Context(), matchID)
		app.respond(w, http.StatusOK, match, err)
	}
}

// respondDecided answers a recorded result. A failed progression still returns the stored match.
func (app *application) respondDecided(w http.ResponseWriter, match *bracket.Match, err error) {
	if err != nil && apperr.Is(err, apperr.CodeProgression) && match != nil {
		app.log.Warn("result recorded without progression", "match_id", match.ID, "error", err)
		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"match":   match,
			"code":    apperr.CodeProgression,
			"message": apperr.MessageOf(err),
		})
		return
	}
	app.respond(w, http.StatusOK, match, err)
}

func (app *application) respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		httputil.Error(w, app.log, err)
		return
	}
	httputil.WriteJSON(w, status, v)
}

func (app *application) idParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, app.log, "invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func (app *application) scopeParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	tournamentID, ok := app.idParam(w, r, "tournamentID")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	categoryID, ok := app.idParam(w, r, "categoryID")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return tournamentID, categoryID, true
}

func (app *application) intQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		httputil.BadRequest(w, app.log, "query parameter "+name+" must be a number", err)
		return 0, false
	}
	return n, true
}
