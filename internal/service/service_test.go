package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/AdamBeresnev/padel-tournament/internal/bracket"
	"github.com/AdamBeresnev/padel-tournament/internal/config"
	"github.com/AdamBeresnev/padel-tournament/internal/db"
	"github.com/AdamBeresnev/padel-tournament/internal/events"
	"github.com/AdamBeresnev/padel-tournament/internal/middleware"
	"github.com/AdamBeresnev/padel-tournament/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

const testOwnerID = "00000000-0000-0000-0000-000000000001"

// setupTestDB creates a throwaway SQLite database file and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	database, err := db.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: dsn})
	require.NoError(t, err, "Failed to open test DB")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database, "file://../../migrations"), "Failed to apply migrations")
	return database
}

func testDeps(t *testing.T) Deps {
	conn := setupTestDB(t)
	return Deps{DB: conn, Stores: NewStores(conn)}.withDefaults()
}

// recorder keeps every event it is notified of.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Notify(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) count(t events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// services wires every service the way cmd/web does.
type services struct {
	tournaments *TournamentService
	standings   *StandingsService
	groups      *GroupService
	brackets    *BracketService
	matches     *MatchService
	americano   *AmericanoService
}

func newServices(deps Deps) services {
	standings := NewStandingsService(deps)
	groups := NewGroupService(deps, standings)
	return services{
		tournaments: NewTournamentService(deps),
		standings:   standings,
		groups:      groups,
		brackets:    NewBracketService(deps, groups),
		matches:     NewMatchService(deps, standings),
		americano:   NewAmericanoService(deps, 0),
	}
}

func ownerContext() context.Context {
	return middleware.WithUserID(context.Background(), uuid.MustParse(testOwnerID))
}

func createScope(t *testing.T, svc services, format bracket.TournamentFormat) (*bracket.Tournament, *bracket.Category) {
	t.Helper()
	ctx := ownerContext()

	tournament, err := svc.tournaments.CreateTournament(ctx, TournamentInput{Name: "Club Open", Format: format})
	require.NoError(t, err)
	category, err := svc.tournaments.CreateCategory(ctx, tournament.ID, "Open A")
	require.NoError(t, err)
	return tournament, category
}

// addTeams registers and confirms n teams seeded 1..n, returned in seed order.
func addTeams(t *testing.T, svc services, tournamentID, categoryID uuid.UUID, n int) []uuid.UUID {
	t.Helper()
	ctx := ownerContext()

	ids := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		team, err := svc.tournaments.RegisterTeam(ctx, tournamentID, categoryID, TeamInput{
			Name:      fmt.Sprintf("Team %d", i+1),
			Player1ID: uuid.New(),
			Player2ID: uuid.New(),
			Seed:      utils.Ptr(i + 1),
		})
		require.NoError(t, err)
		_, err = svc.tournaments.ConfirmTeam(ctx, team.ID)
		require.NoError(t, err)
		ids[i] = team.ID
	}
	return ids
}

func matchAt(t *testing.T, deps Deps, tournamentID, categoryID uuid.UUID, branch bracket.Branch, round, number int) *bracket.Match {
	t.Helper()
	m, err := deps.Stores.Matches.FindByPosition(context.Background(), nil, tournamentID, categoryID, branch, round, number)
	require.NoError(t, err, "no match at %s round %d number %d", branch, round, number)
	return m
}

// straightSets wins a best of three for the given slot.
func straightSets(slot int) []bracket.Set {
	if slot == 1 {
		return []bracket.Set{set(6, 2), set(6, 3)}
	}
	return []bracket.Set{set(2, 6), set(3, 6)}
}

// countBy counts matches per (branch, round).
func countBy(matches []bracket.Match) map[bracket.Branch]map[int]int {
	out := make(map[bracket.Branch]map[int]int)
	for _, m := range matches {
		if out[m.Branch] == nil {
			out[m.Branch] = make(map[int]int)
		}
		out[m.Branch][m.RoundNumber]++
	}
	return out
}
