package server

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/roofdocs/nexus/internal/db/queries"
)

// StartSessionCleaner expires idle training sessions at regular intervals.
func (a *App) StartSessionCleaner() {
	if a.sessionCleanerStop != nil {
		return
	}
	a.sessionCleanerStop = make(chan struct{})
	timeout := time.Duration(a.Config.Training.SessionTimeoutMin) * time.Minute

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-a.sessionCleanerStop:
				return
			case <-ticker.C:
				n, err := queries.ExpireStaleSessions(a.DB, timeout)
				if err != nil {
					log.Error("Failed to expire stale training sessions", "error", err)
					continue
				}
				if n > 0 {
					log.Debug("Expired stale training sessions", "count", n)
				}
			}
		}
	}()
}

func (a *App) StopSessionCleaner() {
	if a.sessionCleanerStop != nil {
		close(a.sessionCleanerStop)
		a.sessionCleanerStop = nil
	}
}
