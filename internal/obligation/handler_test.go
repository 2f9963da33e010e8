package obligation

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hearthledger/hearthledger/internal/period"
	"github.com/hearthledger/hearthledger/internal/shared"
)

func newTestRouter(svc *Service) chi.Router {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	r.Route("/obligations", h.MountRoutes)
	return r
}

func authed(req *http.Request, ownerID string) *http.Request {
	return req.WithContext(shared.ContextWithCaller(req.Context(), shared.Caller{OwnerID: ownerID, Role: "owner"}))
}

func TestCreateObligationEndpoint(t *testing.T) {
	svc, _, _ := newFixture(&recordingNotifier{})
	router := newTestRouter(svc)

	body := `{"kind":"outflow","name":"Mortgage","amount":1500,"frequency":"MONTHLY","firstDate":"2026-01-15"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/obligations", strings.NewReader(body)), "owner-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created Obligation
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated obligation id")
	}
	if created.OwnerID != "owner-1" {
		t.Fatalf("expected caller owner id, got %q", created.OwnerID)
	}
	if created.LastGeneratedPeriodID == "" {
		t.Fatal("expected generation bookkeeping on response")
	}
}

func TestCreateObligationRejectsUnknownFrequency(t *testing.T) {
	svc, repo, _ := newFixture(&recordingNotifier{})
	router := newTestRouter(svc)

	body := `{"kind":"outflow","name":"Mortgage","amount":1500,"frequency":"DAILY","firstDate":"2026-01-15"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/obligations", strings.NewReader(body)), "owner-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if repo.creates != 0 {
		t.Fatal("invalid request must not persist")
	}
}

func TestCreateObligationRequiresCaller(t *testing.T) {
	svc, _, _ := newFixture(&recordingNotifier{})
	router := newTestRouter(svc)

	body := `{"kind":"outflow","name":"Mortgage","amount":1500,"frequency":"MONTHLY","firstDate":"2026-01-15"}`
	req := httptest.NewRequest(http.MethodPost, "/obligations", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestGetObligationScopedToOwner(t *testing.T) {
	svc, repo, _ := newFixture(&recordingNotifier{})
	router := newTestRouter(svc)
	repo.obligations["ob-1"] = &Obligation{ID: "ob-1", OwnerID: "owner-1", Kind: period.KindOutflow, Name: "Mortgage", IsActive: true}

	req := authed(httptest.NewRequest(http.MethodGet, "/obligations/ob-1", nil), "owner-2")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign owner, got %d", rr.Code)
	}
}

func TestDeactivateObligationEndpoint(t *testing.T) {
	svc, repo, store := newFixture(&recordingNotifier{})
	router := newTestRouter(svc)
	repo.obligations["ob-1"] = &Obligation{ID: "ob-1", OwnerID: "owner-1", Kind: period.KindOutflow, Name: "Mortgage", IsActive: true}

	req := authed(httptest.NewRequest(http.MethodDelete, "/obligations/ob-1", nil), "owner-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if repo.obligations["ob-1"].IsActive {
		t.Fatal("expected obligation deactivated")
	}
	if len(store.deactivated) != 1 {
		t.Fatal("expected instance deactivation cascade")
	}
}
