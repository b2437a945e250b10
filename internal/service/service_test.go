package service

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"stint/backend/internal/db"
	"stint/backend/internal/events"
	"stint/backend/internal/model"
	"stint/backend/internal/repository"
)

// fakeClock makes accounting deterministic: every service in the fixture
// reads the same controllable instant.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc      *StintService
	projects *ProjectService
	users    *repository.UserRepository
	stints   *repository.StintRepository
	bus      *events.Bus
	clock    *fakeClock
	userID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	require.NoError(t, db.RunMigrations(database, migrationsDir))

	userRepo := repository.NewUserRepository(database)
	projectRepo := repository.NewProjectRepository(database)
	stintRepo := repository.NewStintRepository(database)

	clock := newFakeClock()
	bus := events.NewBus()

	svc := NewStintService(stintRepo, projectRepo, userRepo, bus)
	svc.now = clock.Now

	projects := NewProjectService(projectRepo)
	projects.now = clock.Now

	f := &fixture{
		svc:      svc,
		projects: projects,
		users:    userRepo,
		stints:   stintRepo,
		bus:      bus,
		clock:    clock,
	}
	f.userID = f.createUser(t, "owner@example.com")
	return f
}

func (f *fixture) createUser(t *testing.T, email string) string {
	t.Helper()
	now := f.clock.Now()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.users.Create(context.Background(), &user))
	require.NoError(t, f.users.CreateVersion(context.Background(), user.ID))
	return user.ID
}

func (f *fixture) createProject(t *testing.T, userID string, customMinutes *int) string {
	t.Helper()
	project, apiErr := f.projects.Create(context.Background(), userID, CreateProjectInput{
		Name:            "deep work",
		DurationMinutes: customMinutes,
	})
	require.Nil(t, apiErr)
	return project.ID
}

func (f *fixture) start(t *testing.T, userID, projectID string, minutes *int) *StintView {
	t.Helper()
	view, apiErr := f.svc.Start(context.Background(), userID, StartInput{
		ProjectID:       projectID,
		DurationMinutes: minutes,
	})
	require.Nil(t, apiErr)
	return view
}
