package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestItemHistory_ParsesBatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("id"); got != "2301" {
			t.Errorf("expected id=2301, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"sellHistory": [
				{"x": "2024-01-10", "y": [1000, 2000], "filter": [null, {"r": 7, "c0": 4001, "c1": 0, "c2": 0, "c3": 0}]}
			],
			"vendHistory": [
				{"x": "2024-01-11", "y": [1500], "filter": [{"r": 0, "c0": 0, "c1": 0, "c2": 0, "c3": 0}]}
			],
			"lastUpdated": 1704931200
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	history, err := client.ItemHistory(context.Background(), 2301)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(history.SellHistory) != 1 || len(history.VendHistory) != 1 {
		t.Fatalf("expected 1 sell / 1 vend batch, got %d / %d",
			len(history.SellHistory), len(history.VendHistory))
	}

	sell := history.SellHistory[0]
	if sell.Date != "2024-01-10" {
		t.Errorf("expected date 2024-01-10, got %q", sell.Date)
	}
	if len(sell.Prices) != 2 || sell.Prices[0] != 1000 || sell.Prices[1] != 2000 {
		t.Errorf("expected prices [1000 2000], got %v", sell.Prices)
	}
	if len(sell.Filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(sell.Filters))
	}
	if sell.Filters[0] != nil {
		t.Errorf("expected nil legacy filter, got %+v", sell.Filters[0])
	}
	if sell.Filters[1] == nil || sell.Filters[1].Refinement != 7 || sell.Filters[1].SubItemIDs != [4]int{4001, 0, 0, 0} {
		t.Errorf("expected filter r=7 c0=4001, got %+v", sell.Filters[1])
	}
}

func TestItemHistory_ResponseLevelError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": "item not tracked"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	history, err := client.ItemHistory(context.Background(), 2301)
	if err != nil {
		t.Fatalf("expected no Go error for upstream-reported error, got %v", err)
	}
	if len(history.SellHistory) != 0 || len(history.VendHistory) != 0 {
		t.Errorf("expected empty history, got %+v", history)
	}
}

func TestItemHistory_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if _, err := client.ItemHistory(context.Background(), 2301); err == nil {
		t.Error("expected an error for HTTP 502")
	}
}

func TestItemHistoryDetails_ParsesRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/historyDetails" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"id": 1, "time": "2024-01-10 08:30:00", "shop_name": "Cheap Stuff", "amount": 3,
				 "price": 5000, "refine": 7, "card0": 4001, "card1": 0, "card2": 0, "card3": 0,
				 "map": "prontera", "x": 150, "y": 180}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	records, err := client.ItemHistoryDetails(context.Background(), 2301)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Refinement != 7 || rec.SubItemIDs != [4]int{4001, 0, 0, 0} {
		t.Errorf("expected refine 7 card0 4001, got %+v", rec)
	}
	l := rec.Listing
	if l.ShopName != "Cheap Stuff" || l.Amount != 3 || l.Price != 5000 {
		t.Errorf("unexpected listing %+v", l)
	}
	if l.Coordinates.Map != "prontera" || l.Coordinates.X != 150 || l.Coordinates.Y != 180 {
		t.Errorf("unexpected coordinates %+v", l.Coordinates)
	}
	wantTS := time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC)
	if !l.ListedAt.Equal(wantTS) {
		t.Errorf("expected listed-at %v, got %v", wantTS, l.ListedAt)
	}
}

func TestItemHistoryDetails_BadTimeDegradesToZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [{"id": 1, "time": "whenever", "shop_name": "s", "amount": 1, "price": 10}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	records, err := client.ItemHistoryDetails(context.Background(), 2301)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !records[0].Listing.ListedAt.IsZero() {
		t.Errorf("expected zero listed-at for unparseable time, got %v", records[0].Listing.ListedAt)
	}
}
