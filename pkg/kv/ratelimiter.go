package kv

import (
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/starskey-io/starskey"
)

// RequestWindow holds the request timestamps (unix seconds) seen for one
// identifier within the last hour. Minute and hour counts are derived from it.
type RequestWindow struct {
	Requests []int64 `json:"requests"`
}

// StarskeyWindowStore is a sliding-window rate limiter store backed by
// Starskey. It implements Echo's middleware.RateLimiterStore interface.
//
// Two windows are enforced per identifier: perMinute over the last 60s and
// perHour over the last 3600s. Store errors fail open: a client is never
// blocked because the limiter backend is unhealthy.
type StarskeyWindowStore struct {
	db        *starskey.Starskey
	perMinute int
	perHour   int
	stopClean chan struct{}
	nowFn     func() time.Time
}

// NewStarskeyWindowStore creates a sliding-window rate limiter store at dbPath.
func NewStarskeyWindowStore(dbPath string, perMinute, perHour int) (*StarskeyWindowStore, error) {
	db, err := starskey.Open(&starskey.Config{
		Permission:        0755,
		Directory:         dbPath,
		FlushThreshold:    64 * 1024 * 1024,
		MaxLevel:          3,
		SizeFactor:        10,
		BloomFilter:       true,  // Enable for faster lookups
		SuRF:              false, // No need for range queries in rate limiting
		Logging:           true,
		Compression:       true,
		CompressionOption: starskey.SnappyCompression,
	})
	if err != nil {
		return nil, err
	}

	log.Info("Initialized rate limiter with Starskey backend",
		"path", dbPath,
		"per_minute", perMinute,
		"per_hour", perHour)

	store := &StarskeyWindowStore{
		db:        db,
		perMinute: perMinute,
		perHour:   perHour,
		stopClean: make(chan struct{}),
		nowFn:     time.Now,
	}

	go store.startCleanup()

	return store, nil
}

// Allow records a request for identifier and reports whether it is within
// both windows. Backend errors are logged and the request is allowed.
func (s *StarskeyWindowStore) Allow(identifier string) (bool, error) {
	allowed := true

	err := s.db.Update(func(txn *starskey.Txn) error {
		now := s.nowFn().Unix()
		key := []byte(identifier)

		var window RequestWindow
		value, err := txn.Get(key)
		if err == nil && value != nil {
			if err := json.Unmarshal(value, &window); err != nil {
				// Corrupted entry, start a fresh window
				window = RequestWindow{}
			}
		}

		window.Requests = pruneOlderThan(window.Requests, now-3600)

		minuteCount := countSince(window.Requests, now-60)
		hourCount := len(window.Requests)

		if minuteCount >= s.perMinute || hourCount >= s.perHour {
			allowed = false
			log.Debug("Request blocked (rate limited)",
				"id", identifier,
				"minute", minuteCount,
				"hour", hourCount)
			return nil
		}

		window.Requests = append(window.Requests, now)
		data, err := json.Marshal(window)
		if err != nil {
			return err
		}

		// txn.Put doesn't return a value in Starskey; errors surface at the
		// transaction level
		txn.Put(key, data)
		return nil
	})
	if err != nil {
		// Fail open: limiter trouble must not take the API down
		log.Warn("Rate limiter store error, allowing request", "id", identifier, "error", err)
		return true, nil
	}

	return allowed, nil
}

// RetryAfter returns the seconds until the identifier's next request would be
// admitted. Zero means the identifier is not currently limited.
func (s *StarskeyWindowStore) RetryAfter(identifier string) int {
	value, err := s.db.Get([]byte(identifier))
	if err != nil || value == nil {
		return 0
	}

	var window RequestWindow
	if err := json.Unmarshal(value, &window); err != nil {
		return 0
	}

	now := s.nowFn().Unix()
	window.Requests = pruneOlderThan(window.Requests, now-3600)

	minute := windowRequests(window.Requests, now-60)
	if len(minute) >= s.perMinute {
		// Wait until the oldest request in the minute window ages out
		wait := minute[0] + 60 - now
		if wait < 1 {
			wait = 1
		}
		return int(wait)
	}

	if len(window.Requests) >= s.perHour {
		wait := window.Requests[0] + 3600 - now
		if wait < 1 {
			wait = 1
		}
		return int(wait)
	}

	return 0
}

// Reset drops the window for an identifier.
func (s *StarskeyWindowStore) Reset(identifier string) (bool, error) {
	err := s.db.Delete([]byte(identifier))
	return err == nil, err
}

// startCleanup prunes identifiers whose whole window has aged out, every 5 minutes.
func (s *StarskeyWindowStore) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupStale()
		case <-s.stopClean:
			log.Debug("Stopping rate limiter cleanup")
			return
		}
	}
}

func (s *StarskeyWindowStore) cleanupStale() {
	cutoff := s.nowFn().Unix() - 3600

	results, err := s.db.FilterKeys(func(key []byte) bool {
		return true // Examine all keys and filter ourselves
	})
	if err != nil {
		log.Error("Failed to scan rate limiter entries", "error", err)
		return
	}

	removed := 0
	// Results alternate key, value
	for i := 0; i+1 < len(results); i += 2 {
		key := results[i]
		var window RequestWindow
		if err := json.Unmarshal(results[i+1], &window); err != nil {
			continue
		}
		if len(pruneOlderThan(window.Requests, cutoff)) == 0 {
			if err := s.db.Delete(key); err == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		log.Debug("Pruned stale rate limiter entries", "count", removed)
	}
}

// Close closes the underlying Starskey database and stops the cleanup goroutine.
func (s *StarskeyWindowStore) Close() error {
	log.Debug("Closing rate limiter store")
	close(s.stopClean)
	return s.db.Close()
}

// pruneOlderThan drops timestamps at or before cutoff. Timestamps are appended
// in order, so the slice stays sorted.
func pruneOlderThan(ts []int64, cutoff int64) []int64 {
	idx := 0
	for idx < len(ts) && ts[idx] <= cutoff {
		idx++
	}
	return ts[idx:]
}

func countSince(ts []int64, cutoff int64) int {
	return len(windowRequests(ts, cutoff))
}

func windowRequests(ts []int64, cutoff int64) []int64 {
	return pruneOlderThan(ts, cutoff)
}
