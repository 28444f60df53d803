// Package progress computes read-only training statistics for a user.
package progress

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/meltforce/freecoach/internal/apperr"
	"github.com/meltforce/freecoach/internal/models"
	"github.com/meltforce/freecoach/internal/storage"
)

const (
	DefaultWindowDays = 30
	MaxWindowDays     = 365
	// RecentLimit caps the reports echoed back in a summary.
	RecentLimit = 10
)

// Summary is a user's activity over the trailing window.
type Summary struct {
	UserID        int64                  `json:"user_id"`
	WindowDays    int                    `json:"window_days"`
	TotalSessions int                    `json:"total_sessions"`
	AvgRPE        float64                `json:"avg_rpe"`
	SuccessRate   float64                `json:"success_rate"`
	RecentReports []models.SessionReport `json:"recent_reports"`
}

// Aggregator reads reports from the store.
type Aggregator struct {
	store storage.Store
	now   func() time.Time
}

// New creates an Aggregator.
func New(store storage.Store) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// Progress summarizes userID's reports dated within the last windowDays.
// Zero windowDays means DefaultWindowDays.
func (a *Aggregator) Progress(ctx context.Context, userID int64, windowDays int) (*Summary, error) {
	if windowDays == 0 {
		windowDays = DefaultWindowDays
	}
	if windowDays < 1 || windowDays > MaxWindowDays {
		return nil, apperr.Invalid("days", "must be between 1 and %d", MaxWindowDays)
	}

	since := a.now().UTC().AddDate(0, 0, -windowDays)
	var reports []models.SessionReport
	err := a.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		reports, err = tx.ReportsSince(ctx, userID, since)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Missing("user %d not found", userID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Persistence, "reading progress", err)
	}

	return Summarize(userID, windowDays, reports), nil
}

// Summarize builds a Summary from reports ordered newest first.
func Summarize(userID int64, windowDays int, reports []models.SessionReport) *Summary {
	s := &Summary{
		UserID:        userID,
		WindowDays:    windowDays,
		TotalSessions: len(reports),
		RecentReports: []models.SessionReport{},
	}
	if len(reports) == 0 {
		return s
	}

	var rpe, success float64
	for _, r := range reports {
		rpe += r.RPE
		if r.Success {
			success++
		}
	}
	n := float64(len(reports))
	s.AvgRPE = round2(rpe / n)
	s.SuccessRate = round2(success / n)
	s.RecentReports = reports[:min(len(reports), RecentLimit)]
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
