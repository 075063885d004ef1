package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quietriver/waveplan/internal/plan"
	"github.com/quietriver/waveplan/internal/shared"
	tu "github.com/quietriver/waveplan/internal/testing"
)

// savePlan persists a small plan snapshot and returns its path.
func savePlan(t *testing.T) string {
	t.Helper()

	p := plan.New()
	done := plan.NewItem(plan.TypeTrack, "t1", "Done Song")
	done.MarkStarted()
	done.MarkCompleted("music/a/done.mp3")
	if err := p.Add(done); err != nil {
		t.Fatal(err)
	}
	if err := p.Add(plan.NewItem(plan.TypeTrack, "t2", "Queued Song")); err != nil {
		t.Fatal(err)
	}
	p.SetPhase("executing_tracks")

	path := filepath.Join(t.TempDir(), "plan.json")
	if err := p.Save(path); err != nil {
		t.Fatalf("failed to save plan: %v", err)
	}
	return path
}

func newTestServer(t *testing.T, planPath string) *httptest.Server {
	t.Helper()

	router := NewBasicRouter()
	router.Use(LoggingMiddleware(shared.NewLogger(nil)))
	router.Handler(NewStatusHandler(planPath, shared.NewLogger(nil)))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestStatusHandler(t *testing.T) {
	t.Run("Health", func(t *testing.T) {
		srv := newTestServer(t, savePlan(t))

		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		defer tu.DiscardBody(t, resp.Body)

		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
	})

	t.Run("Plan", func(t *testing.T) {
		srv := newTestServer(t, savePlan(t))

		resp, err := http.Get(srv.URL + "/api/plan")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}

		var body struct {
			Items    []json.RawMessage `json:"items"`
			Metadata map[string]any    `json:"metadata"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(body.Items) != 2 {
			t.Errorf("expected 2 items, got %d", len(body.Items))
		}
		if body.Metadata["phase"] != "executing_tracks" {
			t.Errorf("phase = %v", body.Metadata["phase"])
		}
	})

	t.Run("PlanStats", func(t *testing.T) {
		srv := newTestServer(t, savePlan(t))

		resp, err := http.Get(srv.URL + "/api/plan/stats")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var body struct {
			Stats struct {
				Completed int `json:"completed"`
				Pending   int `json:"pending"`
				Total     int `json:"total"`
			} `json:"stats"`
			Phase string `json:"phase"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if body.Stats.Completed != 1 || body.Stats.Pending != 1 || body.Stats.Total != 2 {
			t.Errorf("unexpected tally: %+v", body.Stats)
		}
		if body.Phase != "executing_tracks" {
			t.Errorf("phase = %q", body.Phase)
		}
	})

	t.Run("MissingPlanReturns404", func(t *testing.T) {
		srv := newTestServer(t, filepath.Join(t.TempDir(), "absent.json"))

		for _, path := range []string{"/api/plan", "/api/plan/stats"} {
			resp, err := http.Get(srv.URL + path)
			if err != nil {
				t.Fatal(err)
			}
			tu.DiscardBody(t, resp.Body)

			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("%s: status = %d, want 404", path, resp.StatusCode)
			}
		}
	})

	t.Run("CorruptPlanReturns500", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plan.json")
		tu.MustWriteFile(t, path, "{not json")
		srv := newTestServer(t, path)

		resp, err := http.Get(srv.URL + "/api/plan")
		if err != nil {
			t.Fatal(err)
		}
		tu.DiscardBody(t, resp.Body)

		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", resp.StatusCode)
		}
	})

	t.Run("RejectsNonGET", func(t *testing.T) {
		srv := newTestServer(t, savePlan(t))

		resp, err := http.Post(srv.URL+"/api/plan", "application/json", strings.NewReader("{}"))
		if err != nil {
			t.Fatal(err)
		}
		tu.DiscardBody(t, resp.Body)

		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", resp.StatusCode)
		}
	})

	t.Run("UnknownPath", func(t *testing.T) {
		srv := newTestServer(t, savePlan(t))

		resp, err := http.Get(srv.URL + "/api/nope")
		if err != nil {
			t.Fatal(err)
		}
		tu.DiscardBody(t, resp.Body)

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}
