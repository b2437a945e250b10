package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"stint/backend/internal/db"
	"stint/backend/internal/events"
	"stint/backend/internal/handler"
	"stint/backend/internal/repository"
	"stint/backend/internal/router"
	"stint/backend/internal/service"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type projectEnvelope struct {
	Project struct {
		ID string `json:"id"`
	} `json:"project"`
}

type stintEnvelope struct {
	Stint struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		PlannedDuration  int    `json:"plannedDuration"`
		PausedDuration   int    `json:"pausedDuration"`
		RemainingSeconds int    `json:"remainingSeconds"`
		CompletionType   string `json:"completionType"`
		Version          int    `json:"version"`
	} `json:"stint"`
}

type syncEnvelope struct {
	Sync struct {
		Status           string `json:"status"`
		RemainingSeconds int    `json:"remainingSeconds"`
		CorrectionNeeded bool   `json:"correctionNeeded"`
	} `json:"sync"`
}

type historyEnvelope struct {
	Stints []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"stints"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Stint struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"stint"`
		} `json:"details"`
	} `json:"error"`
}

func TestStintLifecycleOverHTTP(t *testing.T) {
	engine := setupTestEngine(t)

	user := registerUser(t, engine, "user1@example.com", "123456")
	projectID := createProject(t, engine, user.Token, "thesis", 25)

	// Start a 25 minute stint.
	status, body := requestJSON(t, engine, http.MethodPost, "/api/stints/start", user.Token, map[string]interface{}{
		"projectId": projectID,
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on start, got %d: %s", status, string(body))
	}
	var started stintEnvelope
	if err := json.Unmarshal(body, &started); err != nil {
		t.Fatalf("unmarshal start response: %v", err)
	}
	if started.Stint.Status != "active" {
		t.Fatalf("expected active stint, got %s", started.Stint.Status)
	}
	if started.Stint.PlannedDuration != 25 {
		t.Fatalf("expected planned duration 25, got %d", started.Stint.PlannedDuration)
	}

	// A second start conflicts and names the running stint.
	status, body = requestJSON(t, engine, http.MethodPost, "/api/stints/start", user.Token, map[string]interface{}{
		"projectId": projectID,
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 on second start, got %d", status)
	}
	var conflict apiErrorEnvelope
	if err := json.Unmarshal(body, &conflict); err != nil {
		t.Fatalf("unmarshal conflict response: %v", err)
	}
	if conflict.Error.Code != "stint_conflict" {
		t.Fatalf("expected stint_conflict, got %s", conflict.Error.Code)
	}
	if conflict.Error.Details.Stint.ID != started.Stint.ID {
		t.Fatalf("conflict details should carry the running stint")
	}

	// Sync: a client estimate within the threshold needs no correction.
	status, body = requestJSON(t, engine, http.MethodPost, "/api/stints/"+started.Stint.ID+"/sync", user.Token, map[string]int{
		"remainingSeconds": started.Stint.RemainingSeconds,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on sync, got %d: %s", status, string(body))
	}
	var sync syncEnvelope
	if err := json.Unmarshal(body, &sync); err != nil {
		t.Fatalf("unmarshal sync response: %v", err)
	}
	if sync.Sync.Status != "active" {
		t.Fatalf("expected active status from sync, got %s", sync.Sync.Status)
	}
	if sync.Sync.CorrectionNeeded {
		t.Fatal("expected no correction for a fresh estimate")
	}

	// A wildly stale estimate needs correction.
	status, body = requestJSON(t, engine, http.MethodPost, "/api/stints/"+started.Stint.ID+"/sync", user.Token, map[string]int{
		"remainingSeconds": started.Stint.RemainingSeconds - 120,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on sync, got %d", status)
	}
	if err := json.Unmarshal(body, &sync); err != nil {
		t.Fatalf("unmarshal sync response: %v", err)
	}
	if !sync.Sync.CorrectionNeeded {
		t.Fatal("expected correction for a stale estimate")
	}

	// Pause, then start another stint on the same project: paused does not
	// block new starts.
	status, body = requestJSON(t, engine, http.MethodPost, "/api/stints/"+started.Stint.ID+"/pause", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on pause, got %d: %s", status, string(body))
	}
	var pausedResp stintEnvelope
	if err := json.Unmarshal(body, &pausedResp); err != nil {
		t.Fatalf("unmarshal pause response: %v", err)
	}
	if pausedResp.Stint.Status != "paused" {
		t.Fatalf("expected paused stint, got %s", pausedResp.Stint.Status)
	}

	status, body = requestJSON(t, engine, http.MethodPost, "/api/stints/start", user.Token, map[string]interface{}{
		"projectId":       projectID,
		"durationMinutes": 30,
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 starting while paused, got %d: %s", status, string(body))
	}
	var second stintEnvelope
	if err := json.Unmarshal(body, &second); err != nil {
		t.Fatalf("unmarshal second start response: %v", err)
	}

	// Complete the second, resume and interrupt the first.
	status, body = requestJSON(t, engine, http.MethodPost, "/api/stints/"+second.Stint.ID+"/complete", user.Token, map[string]string{
		"notes": "wrapped up early",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on complete, got %d: %s", status, string(body))
	}
	var completed stintEnvelope
	if err := json.Unmarshal(body, &completed); err != nil {
		t.Fatalf("unmarshal complete response: %v", err)
	}
	if completed.Stint.Status != "completed" || completed.Stint.CompletionType != "manual" {
		t.Fatalf("expected manual completion, got %s/%s", completed.Stint.Status, completed.Stint.CompletionType)
	}

	status, body = requestJSON(t, engine, http.MethodPost, "/api/stints/"+started.Stint.ID+"/resume", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on resume, got %d: %s", status, string(body))
	}

	status, body = requestJSON(t, engine, http.MethodPost, "/api/stints/"+started.Stint.ID+"/interrupt", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on interrupt, got %d: %s", status, string(body))
	}
	var interrupted stintEnvelope
	if err := json.Unmarshal(body, &interrupted); err != nil {
		t.Fatalf("unmarshal interrupt response: %v", err)
	}
	if interrupted.Stint.Status != "interrupted" {
		t.Fatalf("expected interrupted stint, got %s", interrupted.Stint.Status)
	}

	// Completing a terminal stint is rejected, never double-applied.
	status, body = requestJSON(t, engine, http.MethodPost, "/api/stints/"+started.Stint.ID+"/complete", user.Token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 completing terminal stint, got %d", status)
	}
	var terminalErr apiErrorEnvelope
	if err := json.Unmarshal(body, &terminalErr); err != nil {
		t.Fatalf("unmarshal terminal error: %v", err)
	}
	if terminalErr.Error.Code != "not_active_or_paused" {
		t.Fatalf("expected not_active_or_paused, got %s", terminalErr.Error.Code)
	}

	// History holds both stints; another user sees nothing.
	status, body = requestJSON(t, engine, http.MethodGet, "/api/stints/history?limit=10", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for history, got %d", status)
	}
	var history historyEnvelope
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(history.Stints) != 2 {
		t.Fatalf("expected 2 stints in history, got %d", len(history.Stints))
	}

	stranger := registerUser(t, engine, "user2@example.com", "123456")
	status, body = requestJSON(t, engine, http.MethodGet, "/api/stints/history?limit=10", stranger.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for stranger history, got %d", status)
	}
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("unmarshal stranger history: %v", err)
	}
	if len(history.Stints) != 0 {
		t.Fatalf("expected empty history for stranger, got %d", len(history.Stints))
	}
}

func TestArchivedProjectRefusesStart(t *testing.T) {
	engine := setupTestEngine(t)
	user := registerUser(t, engine, "user@example.com", "123456")
	projectID := createProject(t, engine, user.Token, "old project", 0)

	status, _ := requestJSON(t, engine, http.MethodPost, "/api/projects/"+projectID+"/archive", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on archive, got %d", status)
	}

	status, body := requestJSON(t, engine, http.MethodPost, "/api/stints/start", user.Token, map[string]interface{}{
		"projectId": projectID,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for archived project, got %d", status)
	}
	var resp apiErrorEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if resp.Error.Code != "project_archived" {
		t.Fatalf("expected project_archived, got %s", resp.Error.Code)
	}
}

func TestSweepEndpointReportsCounts(t *testing.T) {
	engine := setupTestEngine(t)

	status, body := requestJSON(t, engine, http.MethodPost, "/internal/sweep", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on sweep, got %d: %s", status, string(body))
	}

	var resp struct {
		Sweep struct {
			Scanned   int `json:"scanned"`
			Completed int `json:"completed"`
			Errored   int `json:"errored"`
		} `json:"sweep"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal sweep response: %v", err)
	}
	if resp.Sweep.Completed != 0 || resp.Sweep.Errored != 0 {
		t.Fatalf("expected empty sweep, got %+v", resp.Sweep)
	}
}

func TestStintRoutesRequireAuth(t *testing.T) {
	engine := setupTestEngine(t)

	status, _ := requestJSON(t, engine, http.MethodGet, "/api/stints/current", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
}

func TestCORSPreflight(t *testing.T) {
	engine := setupTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func setupTestEngine(t *testing.T) http.Handler {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if err := db.RunMigrations(database, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	userRepo := repository.NewUserRepository(database)
	projectRepo := repository.NewProjectRepository(database)
	stintRepo := repository.NewStintRepository(database)

	bus := events.NewBus()
	authService := service.NewAuthService(userRepo, "test-secret", 24*time.Hour)
	projectService := service.NewProjectService(projectRepo)
	stintService := service.NewStintService(stintRepo, projectRepo, userRepo, bus)

	authHandler := handler.NewAuthHandler(authService)
	projectHandler := handler.NewProjectHandler(projectService)
	stintHandler := handler.NewStintHandler(stintService, bus)
	sweepHandler := handler.NewSweepHandler(stintService)

	return router.New(authService, authHandler, projectHandler, stintHandler, sweepHandler, []string{"http://localhost:5173"})
}

func registerUser(t *testing.T, server http.Handler, email, password string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func createProject(t *testing.T, server http.Handler, token, name string, durationMinutes int) string {
	t.Helper()
	payload := map[string]interface{}{"name": name}
	if durationMinutes > 0 {
		payload["durationMinutes"] = durationMinutes
	}
	status, body := requestJSON(t, server, http.MethodPost, "/api/projects", token, payload)
	if status != http.StatusCreated {
		t.Fatalf("create project failed with status %d: %s", status, string(body))
	}
	var resp projectEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal project response: %v", err)
	}
	return resp.Project.ID
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
