package weather

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/roofdocs/nexus/internal/config"
	"github.com/roofdocs/nexus/internal/db/queries"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	_, err = d.Exec(`CREATE TABLE weather_events (
		id TEXT PRIMARY KEY, user_id TEXT NOT NULL, claim_date TEXT NOT NULL,
		latitude REAL NOT NULL, longitude REAL NOT NULL,
		verified BOOLEAN NOT NULL, confidence REAL NOT NULL,
		events TEXT NOT NULL DEFAULT '[]', created_at TIMESTAMP NOT NULL)`)
	require.NoError(t, err)
	return d
}

func newTestClient(t *testing.T, events []StormEvent) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "storm-events", r.URL.Query().Get("dataset"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(events)
	}))
	t.Cleanup(srv.Close)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Weather.NOAABaseURL = srv.URL

	return NewClient(cfg)
}

func TestHaversineMiles(t *testing.T) {
	// Richmond VA to Washington DC is roughly 96 miles.
	d := haversineMiles(37.5407, -77.4360, 38.9072, -77.0369)
	assert.InDelta(t, 96, d, 5)

	assert.InDelta(t, 0, haversineMiles(39.0, -77.0, 39.0, -77.0), 0.001)
}

func TestVerifyStormFindsNearbyEvent(t *testing.T) {
	d := newTestDB(t)
	c := newTestClient(t, []StormEvent{
		{
			EventID: "e1", EventType: "Hail", Date: "2026-03-15",
			Latitude: 38.91, Longitude: -77.04, Magnitude: 175,
		},
	})

	v, err := c.VerifyStorm(context.Background(), d, "u1", "2026-03-14", 38.9072, -77.0369, "Hail")
	require.NoError(t, err)

	assert.True(t, v.Verified)
	assert.Equal(t, 1, v.EventCount)
	require.NotNil(t, v.BestMatch)
	assert.Equal(t, "e1", v.BestMatch.EventID)
	assert.Equal(t, 1, v.BestMatch.DateDifferenceDays)
	assert.Less(t, v.BestMatch.DistanceMiles, 1.0)
	assert.Greater(t, v.Confidence, 0.5)
	assert.Contains(t, v.Narrative, "Weather event verified")
}

func TestVerifyStormFiltersByDistanceAndDate(t *testing.T) {
	d := newTestDB(t)
	c := newTestClient(t, []StormEvent{
		// Too far: Richmond is ~96 miles from DC.
		{EventID: "far", EventType: "Hail", Date: "2026-03-14", Latitude: 37.5407, Longitude: -77.4360, Magnitude: 200},
		// Too old relative to the claim date.
		{EventID: "stale", EventType: "Hail", Date: "2026-03-01", Latitude: 38.91, Longitude: -77.04, Magnitude: 200},
	})

	v, err := c.VerifyStorm(context.Background(), d, "u1", "2026-03-14", 38.9072, -77.0369, "")
	require.NoError(t, err)

	assert.False(t, v.Verified)
	assert.Equal(t, 0, v.EventCount)
	assert.Contains(t, v.Narrative, "No verified weather events")
}

func TestVerifyStormPicksHighestConfidence(t *testing.T) {
	d := newTestDB(t)
	c := newTestClient(t, []StormEvent{
		{EventID: "weak", EventType: "Wind", Date: "2026-03-11", Latitude: 39.1, Longitude: -77.3, Magnitude: 20},
		{EventID: "strong", EventType: "Hail", Date: "2026-03-14", Latitude: 38.91, Longitude: -77.04, Magnitude: 150},
	})

	v, err := c.VerifyStorm(context.Background(), d, "u1", "2026-03-14", 38.9072, -77.0369, "")
	require.NoError(t, err)

	require.NotNil(t, v.BestMatch)
	assert.Equal(t, "strong", v.BestMatch.EventID)
	assert.Equal(t, 2, v.EventCount)
}

func TestVerifyStormRecordsLookup(t *testing.T) {
	d := newTestDB(t)
	c := newTestClient(t, []StormEvent{
		{EventID: "e1", EventType: "Hail", Date: "2026-03-14", Latitude: 38.91, Longitude: -77.04, Magnitude: 100},
	})

	_, err := c.VerifyStorm(context.Background(), d, "u1", "2026-03-14", 38.9072, -77.0369, "")
	require.NoError(t, err)

	history, err := queries.ListWeatherEvents(d, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2026-03-14", history[0].ClaimDate)
	assert.True(t, history[0].Verified)
}

func TestVerifyStormRejectsBadDate(t *testing.T) {
	d := newTestDB(t)
	c := newTestClient(t, nil)

	_, err := c.VerifyStorm(context.Background(), d, "u1", "03/14/2026", 38.9, -77.0, "")
	assert.Error(t, err)
}

func TestMatchConfidenceWeights(t *testing.T) {
	perfect := matchConfidence(MatchedEvent{
		StormEvent:         StormEvent{Magnitude: 100},
		DateDifferenceDays: 0,
		DistanceMiles:      0,
	})
	assert.InDelta(t, 1.0, perfect, 0.001)

	distant := matchConfidence(MatchedEvent{
		StormEvent:         StormEvent{Magnitude: 100},
		DateDifferenceDays: 3,
		DistanceMiles:      25,
	})
	assert.Less(t, distant, 0.2)
	assert.Greater(t, distant, 0.0)
}
