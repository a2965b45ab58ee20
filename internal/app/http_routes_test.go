package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if parseBody(t, rr)["ok"] != true {
		t.Fatalf("expected ok true, got %s", rr.Body.String())
	}
}

func TestReadyReportsDatabaseFailure(t *testing.T) {
	fs := &fakeStore{
		pingFn: func(context.Context) error {
			return errors.New("connection refused")
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseBody(t, rr)
	if payload["status"] != "not_ready" {
		t.Fatalf("expected not_ready, got %v", payload["status"])
	}
}

func TestOptionsRequestShortCircuits(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "https://app.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/api/listings", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected CORS origin header, got %q", got)
	}
	if got := rr.Header().Get("X-Request-ID"); got == "" {
		t.Fatalf("expected X-Request-ID header")
	}
}

func TestPublicListingFeedIsBareArray(t *testing.T) {
	fs := &fakeStore{
		listApprovedListingsFn: func(context.Context) ([]store.Listing, error) {
			return []store.Listing{confidentialListing("approved")}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var items []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &items); err != nil {
		t.Fatalf("expected a bare array, got %s", rr.Body.String())
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(items))
	}
	if items[0]["businessUrl"] != nil {
		t.Fatalf("expected businessUrl null in feed, got %v", items[0]["businessUrl"])
	}
}

func TestListingDetailAppliesBearerGating(t *testing.T) {
	fs := &fakeStore{
		getListingFn: func(context.Context, string) (store.Listing, error) {
			return confidentialListing("approved"), nil
		},
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, DisplayName: "Blair Buyer", Role: "buyer"}, nil
		},
		hasSignedNDAFn: func(context.Context, string, string) (bool, error) {
			return true, nil
		},
		getBuyerProfileFn: func(context.Context, string) (store.BuyerProfile, error) {
			return store.BuyerProfile{UserID: "usr_buyer", VerificationStatus: "verified"}, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	handler := server.Handler()

	// Anonymous read succeeds but stays gated.
	req := httptest.NewRequest(http.MethodGet, "/api/listings/lst_1", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if parseBody(t, rr)["businessUrl"] != nil {
		t.Fatalf("expected businessUrl null for anonymous read, got %s", rr.Body.String())
	}

	// A verified NDA-signed buyer's bearer token unlocks the fields.
	session, err := svc.SessionForUser(context.Background(), store.User{ID: "usr_buyer", DisplayName: "Blair Buyer", Role: "buyer"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/listings/lst_1", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if parseBody(t, rr)["businessUrl"] != "https://example-analytics.com" {
		t.Fatalf("expected businessUrl for verified NDA buyer, got %s", rr.Body.String())
	}
}

func TestSearchRejectsNonIntegerLimit(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=saas&limit=plenty", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if parseBody(t, rr)["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %s", rr.Body.String())
	}
}

func TestSearchAcceptsTypeFilter(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=saas&type=listing", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if _, ok := parseBody(t, rr)["results"]; !ok {
		t.Fatalf("expected results array, got %s", rr.Body.String())
	}
}

func TestUnknownAuthedRouteReturnsNotFound(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, id string) (store.User, error) {
			return store.User{ID: id, DisplayName: "Blair Buyer", Role: "buyer"}, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	session, err := svc.SessionForUser(context.Background(), store.User{ID: "usr_1", DisplayName: "Blair Buyer", Role: "buyer"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d body=%s", rr.Code, rr.Body.String())
	}
	if parseBody(t, rr)["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", rr.Body.String())
	}
}
