package weather

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/roofdocs/nexus/internal/config"
	"github.com/roofdocs/nexus/internal/db"
	"github.com/roofdocs/nexus/internal/db/queries"
	"github.com/roofdocs/nexus/pkg/logger"
)

const (
	// Search window around the claim date; storm reports often lag a few
	// days behind the event.
	searchWindowDays = 3
	// Default search radius in miles around the property.
	defaultRadiusMiles = 25.0
	// Earth radius for the haversine distance, in miles.
	earthRadiusMiles = 3956.0

	dateLayout = "2006-01-02"
)

// Client queries the NOAA storm events dataset to verify weather claims.
type Client struct {
	cfg        *config.Config
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:        cfg,
		baseURL:    cfg.Weather.NOAABaseURL,
		token:      cfg.Weather.NOAAToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// StormEvent is one row from the storm events dataset.
type StormEvent struct {
	EventID   string  `json:"event_id"`
	EventType string  `json:"event_type"`
	Date      string  `json:"date"`
	State     string  `json:"state"`
	County    string  `json:"county"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Magnitude float64 `json:"magnitude"`
	Narrative string  `json:"narrative,omitempty"`
}

// MatchedEvent is a storm event scored against the claim.
type MatchedEvent struct {
	StormEvent
	DateDifferenceDays int     `json:"date_difference_days"`
	DistanceMiles      float64 `json:"distance_miles"`
	Confidence         float64 `json:"confidence"`
}

// Verification is the outcome of a storm lookup for a claim.
type Verification struct {
	Verified   bool           `json:"verified"`
	ClaimDate  string         `json:"claim_date"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Events     []MatchedEvent `json:"matching_events"`
	EventCount int            `json:"event_count"`
	Confidence float64        `json:"confidence"`
	BestMatch  *MatchedEvent  `json:"best_match,omitempty"`
	Narrative  string         `json:"narrative"`
}

// VerifyStorm checks the storm events dataset for activity near a property
// around the claim date, scores the matches, and records the lookup.
func (c *Client) VerifyStorm(ctx context.Context, d *sql.DB, userID, claimDate string, lat, lon float64, eventType string) (*Verification, error) {
	date, err := time.Parse(dateLayout, claimDate)
	if err != nil {
		return nil, fmt.Errorf("claim date must be YYYY-MM-DD: %w", err)
	}

	start := date.AddDate(0, 0, -searchWindowDays)
	end := date.AddDate(0, 0, searchWindowDays)

	events, err := c.queryStormEvents(ctx, start, end, eventType)
	if err != nil {
		return nil, err
	}

	var matches []MatchedEvent
	for _, ev := range events {
		evDate, err := time.Parse(dateLayout, ev.Date)
		if err != nil {
			continue
		}
		dateDiff := int(math.Abs(evDate.Sub(date).Hours() / 24))
		if dateDiff > searchWindowDays {
			continue
		}

		distance := haversineMiles(lat, lon, ev.Latitude, ev.Longitude)
		if distance > defaultRadiusMiles {
			continue
		}

		m := MatchedEvent{
			StormEvent:         ev,
			DateDifferenceDays: dateDiff,
			DistanceMiles:      distance,
		}
		m.Confidence = matchConfidence(m)
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	v := &Verification{
		ClaimDate:  claimDate,
		Latitude:   lat,
		Longitude:  lon,
		Events:     matches,
		EventCount: len(matches),
	}
	if len(matches) > 0 {
		v.Confidence = matches[0].Confidence
		v.BestMatch = &matches[0]
		// A match below this confidence is reported but not treated as
		// verification of the loss.
		v.Verified = v.Confidence >= 0.5
	}
	v.Narrative = buildNarrative(v)

	if err := c.record(d, userID, v); err != nil {
		logger.Warn("Failed to record weather lookup", "error", err)
	}

	logger.Info("Storm verification completed",
		"claim_date", claimDate, "events", v.EventCount,
		"verified", v.Verified, "confidence", fmt.Sprintf("%.2f", v.Confidence))

	return v, nil
}

// queryStormEvents fetches storm events from the NOAA access service for a
// date range.
func (c *Client) queryStormEvents(ctx context.Context, start, end time.Time, eventType string) ([]StormEvent, error) {
	params := url.Values{}
	params.Set("dataset", "storm-events")
	params.Set("startDate", start.Format(dateLayout))
	params.Set("endDate", end.Format(dateLayout))
	params.Set("format", "json")
	if eventType != "" {
		params.Set("eventType", eventType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("token", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storm events query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storm events query returned HTTP %d", resp.StatusCode)
	}

	var events []StormEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to decode storm events: %w", err)
	}
	return events, nil
}

// History returns the caller's previous storm lookups.
func (c *Client) History(d *sql.DB, userID string, limit int) ([]*db.WeatherEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	return queries.ListWeatherEvents(d, userID, limit)
}

func (c *Client) record(d *sql.DB, userID string, v *Verification) error {
	eventsJSON, err := json.Marshal(v.Events)
	if err != nil {
		return err
	}
	return queries.CreateWeatherEvent(d, &db.WeatherEvent{
		UserID:     userID,
		ClaimDate:  v.ClaimDate,
		Latitude:   v.Latitude,
		Longitude:  v.Longitude,
		Verified:   v.Verified,
		Confidence: v.Confidence,
		Events:     string(eventsJSON),
	})
}

// matchConfidence scores a match by date proximity, distance, and reported
// magnitude. Each factor contributes a floor plus a proportional component so
// a weak factor dampens rather than zeroes the score.
func matchConfidence(m MatchedEvent) float64 {
	score := 1.0

	dateScore := math.Max(0, 1-float64(m.DateDifferenceDays)/float64(searchWindowDays))
	score *= 0.4 + 0.6*dateScore

	distanceScore := math.Max(0, 1-m.DistanceMiles/defaultRadiusMiles)
	score *= 0.3 + 0.7*distanceScore

	if m.Magnitude > 0 {
		magnitudeScore := math.Min(1, m.Magnitude/100)
		score *= 0.3 + 0.7*magnitudeScore
	}

	return score
}

// haversineMiles is the great-circle distance between two coordinates.
func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dlat := rad(lat2 - lat1)
	dlon := rad(lon2 - lon1)
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}

func buildNarrative(v *Verification) string {
	if !v.Verified || v.BestMatch == nil {
		return fmt.Sprintf(
			"No verified weather events found within %d days of %s at the searched location.",
			searchWindowDays, v.ClaimDate)
	}
	b := v.BestMatch
	return fmt.Sprintf(
		"Weather event verified: %s occurred on %s, %.1f miles from the property. Event magnitude: %.0f. Verification confidence: %.0f%%.",
		b.EventType, b.Date, b.DistanceMiles, b.Magnitude, v.Confidence*100)
}
