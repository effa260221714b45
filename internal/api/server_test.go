package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"payon-market/internal/domain"
	"payon-market/internal/query"
	"payon-market/internal/refresh"
	"payon-market/internal/storage/memory"
	"payon-market/internal/upstream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// emptySource satisfies refresh.Source without any upstream data.
type emptySource struct{}

func (emptySource) ItemHistory(context.Context, int) (*upstream.ItemHistory, error) {
	return &upstream.ItemHistory{}, nil
}

func (emptySource) ItemHistoryDetails(context.Context, int) ([]upstream.ListingRecord, error) {
	return nil, nil
}

func testServer(t *testing.T) (*Server, *memory.HistoryStore, *memory.SnapshotStore) {
	t.Helper()

	histories := memory.NewHistoryStore()
	snapshots := memory.NewSnapshotStore()
	index := memory.NewItemIndexStore()
	logger := log.New(io.Discard, "", 0)

	runner := refresh.NewRunner(refresh.Options{
		Source:    emptySource{},
		Names:     upstream.StaticNames{},
		Histories: histories,
		Snapshots: snapshots,
		Index:     index,
		Delay:     time.Nanosecond,
		Logger:    logger,
	})
	queries := query.NewService(query.Options{
		Histories: histories,
		Snapshots: snapshots,
	})

	server := NewServer(Options{
		Query:       queries,
		Runner:      runner,
		IconBaseURL: "https://icons.example.com",
		Logger:      logger,
	})
	return server, histories, snapshots
}

func seedHistoryRow(t *testing.T, store *memory.HistoryStore, itemID int) {
	t.Helper()
	row := &domain.VariantHistory{
		ItemID: itemID,
		Name:   "Test Item",
		SellEvents: []domain.PricePoint{
			{Timestamp: time.Now().Add(-time.Hour), Price: 100},
		},
		CreatedAt: time.Now(),
	}
	if err := store.InsertBulk(context.Background(), []*domain.VariantHistory{row}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func doRequest(t *testing.T, server *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	server, _, _ := testServer(t)

	rec := doRequest(t, server, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestGetItems(t *testing.T) {
	server, histories, _ := testServer(t)
	seedHistoryRow(t, histories, 2301)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/items")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Items []struct {
			ItemID  int    `json:"itemId"`
			Name    string `json:"name"`
			IconURL string `json:"iconUrl"`
		} `json:"items"`
		HasMore bool `json:"hasMore"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 || body.HasMore {
		t.Fatalf("expected 1 item without more pages, got %+v", body)
	}
	if body.Items[0].ItemID != 2301 || body.Items[0].Name != "Test Item" {
		t.Errorf("unexpected item %+v", body.Items[0])
	}
	if body.Items[0].IconURL != "https://icons.example.com/2301.png" {
		t.Errorf("unexpected icon url %q", body.Items[0].IconURL)
	}
}

func TestGetItems_Pagination(t *testing.T) {
	server, histories, _ := testServer(t)
	seedHistoryRow(t, histories, 100)
	seedHistoryRow(t, histories, 200)
	seedHistoryRow(t, histories, 300)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/items?offset=0&take=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Items   []json.RawMessage `json:"items"`
		HasMore bool              `json:"hasMore"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 2 || !body.HasMore {
		t.Errorf("expected 2 items with more pages, got %d (hasMore %v)", len(body.Items), body.HasMore)
	}
}

func TestGetItems_BadParams(t *testing.T) {
	server, _, _ := testServer(t)

	for _, target := range []string{
		"/api/v1/items?offset=-1",
		"/api/v1/items?offset=abc",
		"/api/v1/items?take=0",
		"/api/v1/items?take=xyz",
	} {
		rec := doRequest(t, server, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestGetItem(t *testing.T) {
	server, histories, _ := testServer(t)
	seedHistoryRow(t, histories, 2301)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/items/2301")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Items []struct {
			ItemID int `json:"itemId"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].ItemID != 2301 {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestGetItem_InvalidID(t *testing.T) {
	server, _, _ := testServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/v1/items/banana")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetVending(t *testing.T) {
	server, _, snapshots := testServer(t)

	row := &domain.VariantSnapshot{
		ItemID: 501,
		Listings: []domain.Listing{
			{Price: 90, Amount: 2, Coordinates: domain.Coordinates{Map: "payon", X: 1, Y: 2}},
		},
		CreatedAt: time.Now(),
	}
	if err := snapshots.InsertBulk(context.Background(), []*domain.VariantSnapshot{row}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doRequest(t, server, http.MethodGet, "/api/v1/vending")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Items []struct {
			ItemID  int `json:"itemId"`
			Summary struct {
				LowestPrice   int `json:"lp"`
				TotalQuantity int `json:"qty"`
			} `json:"summary"`
			Indicators map[string]struct {
				Percentage float64 `json:"percentage"`
				Value      bool    `json:"value"`
			} `json:"indicators"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(body.Items))
	}
	item := body.Items[0]
	if item.ItemID != 501 || item.Summary.LowestPrice != 90 || item.Summary.TotalQuantity != 2 {
		t.Errorf("unexpected item %+v", item)
	}
	if len(item.Indicators) != 6 {
		t.Errorf("expected 6 indicator entries, got %d", len(item.Indicators))
	}
}

func TestPostRefreshHistory(t *testing.T) {
	server, _, _ := testServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/refresh/history?full=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result refresh.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.CycleID == "" {
		t.Error("expected a cycle id in the response")
	}
}

func TestPostRefreshHistory_BadSliceParams(t *testing.T) {
	server, _, _ := testServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/refresh/history?offset=-2")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, server, http.MethodPost, "/api/v1/refresh/history?limit=0")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestPostRefreshVending(t *testing.T) {
	server, _, _ := testServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/refresh/vending")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPostRefreshIndex(t *testing.T) {
	server, _, _ := testServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/refresh/index")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
