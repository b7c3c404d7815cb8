package queries

import (
	"database/sql"
	"time"

	"github.com/roofdocs/nexus/internal/db"
)

// RecordAIRequest logs one provider call, successful or not.
func RecordAIRequest(d *sql.DB, r *db.AIRequest) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := d.Exec(`INSERT INTO ai_requests
		(id, user_id, provider, model, feature, tokens_used, cost, latency_ms, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Provider, r.Model, r.Feature, r.TokensUsed, r.Cost,
		r.LatencyMs, r.Success, r.Error, r.CreatedAt)
	return err
}

// LogActivity records a user action for the analytics trail.
func LogActivity(d *sql.DB, userID, action, detail string) error {
	var det sql.NullString
	if detail != "" {
		det = sql.NullString{String: detail, Valid: true}
	}
	_, err := d.Exec(`INSERT INTO activity_logs (id, user_id, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		generateUUID(), userID, action, det, time.Now().UTC())
	return err
}

// BumpFeatureUsage increments a per-user feature counter.
func BumpFeatureUsage(d *sql.DB, userID, feature string) error {
	now := time.Now().UTC()
	_, err := d.Exec(`INSERT INTO feature_usage (user_id, feature, count, last_used)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(user_id, feature) DO UPDATE SET
			count = feature_usage.count + 1, last_used = excluded.last_used`,
		userID, feature, now)
	return err
}

// UsageTotals aggregates request volume over a window.
type UsageTotals struct {
	TotalRequests int     `json:"total_requests"`
	TotalTokens   int     `json:"total_tokens"`
	TotalCost     float64 `json:"total_cost"`
	SuccessRate   float64 `json:"success_rate"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
}

func GetUsageTotals(d *sql.DB, since time.Time) (*UsageTotals, error) {
	t := &UsageTotals{}
	err := d.QueryRow(`SELECT COUNT(*),
			COALESCE(SUM(tokens_used), 0),
			COALESCE(SUM(cost), 0),
			COALESCE(AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END), 1.0) * 100,
			COALESCE(AVG(latency_ms), 0)
		FROM ai_requests WHERE created_at >= ?`, since).
		Scan(&t.TotalRequests, &t.TotalTokens, &t.TotalCost, &t.SuccessRate, &t.AvgLatencyMs)
	return t, err
}

// CountSum is a generic label/count/cost aggregate row.
type CountSum struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Cost  float64 `json:"cost"`
}

func groupCounts(d *sql.DB, column string, since time.Time) ([]*CountSum, error) {
	rows, err := d.Query(`SELECT `+column+`, COUNT(*), COALESCE(SUM(cost), 0)
		FROM ai_requests WHERE created_at >= ?
		GROUP BY `+column+` ORDER BY COUNT(*) DESC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CountSum
	for rows.Next() {
		c := &CountSum{}
		if err := rows.Scan(&c.Label, &c.Count, &c.Cost); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func UsageByFeature(d *sql.DB, since time.Time) ([]*CountSum, error) {
	return groupCounts(d, "feature", since)
}

func UsageByProvider(d *sql.DB, since time.Time) ([]*CountSum, error) {
	return groupCounts(d, "provider", since)
}

// UsageByDay returns per-day request counts and cost over a window.
func UsageByDay(d *sql.DB, since time.Time) ([]*CountSum, error) {
	rows, err := d.Query(`SELECT DATE(created_at), COUNT(*), COALESCE(SUM(cost), 0)
		FROM ai_requests WHERE created_at >= ?
		GROUP BY DATE(created_at) ORDER BY DATE(created_at)`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CountSum
	for rows.Next() {
		c := &CountSum{}
		if err := rows.Scan(&c.Label, &c.Count, &c.Cost); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CostToday sums today's AI spend.
func CostToday(d *sql.DB) (float64, error) {
	var cost float64
	err := d.QueryRow(`SELECT COALESCE(SUM(cost), 0) FROM ai_requests
		WHERE DATE(created_at) = DATE('now')`).Scan(&cost)
	return cost, err
}

// FeatureUsageForUsers returns per-feature counters for analytics.
func FeatureUsageTotals(d *sql.DB, since time.Time) ([]*CountSum, error) {
	rows, err := d.Query(`SELECT feature, SUM(count), 0
		FROM feature_usage WHERE last_used >= ?
		GROUP BY feature ORDER BY SUM(count) DESC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CountSum
	for rows.Next() {
		c := &CountSum{}
		if err := rows.Scan(&c.Label, &c.Count, &c.Cost); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DailyActiveUsers counts distinct users with logged activity per day.
func DailyActiveUsers(d *sql.DB, since time.Time) ([]*CountSum, error) {
	rows, err := d.Query(`SELECT DATE(created_at), COUNT(DISTINCT user_id), 0
		FROM activity_logs WHERE created_at >= ?
		GROUP BY DATE(created_at) ORDER BY DATE(created_at)`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CountSum
	for rows.Next() {
		c := &CountSum{}
		if err := rows.Scan(&c.Label, &c.Count, &c.Cost); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
