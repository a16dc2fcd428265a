package utils

import (
	"context"
	"fmt"
	"log"
	"time"

	"coursebridge/metrics"
	"coursebridge/services/progress"

	"github.com/robfig/cron/v3"
)

// Expirer closes overdue progress.
type Expirer interface {
	ExpireOverdue(ctx context.Context, at time.Time) (progress.ExpiryResult, error)
}

// logScheduler logs scheduler events with timestamp
func logScheduler(message string) {
	log.Printf("[EXPIRY-SCHEDULER %s] %s", time.Now().Format(time.RFC3339), message)
}

// RunExpiry runs one expiry pass and records what it changed
func RunExpiry(ctx context.Context, e Expirer, now time.Time) (progress.ExpiryResult, error) {
	res, err := e.ExpireOverdue(ctx, now)
	if err != nil {
		logScheduler("Error expiring progress: " + err.Error())
		return res, err
	}
	metrics.ProgressExpired.WithLabelValues("record").Add(float64(res.Records))
	metrics.ProgressExpired.WithLabelValues("element").Add(float64(res.Elements))
	if res.Records > 0 || res.Elements > 0 {
		logScheduler(fmt.Sprintf("Expired %d progress records and %d elements", res.Records, res.Elements))
	}
	return res, nil
}

// StartExpiryScheduler registers the expiry pass on spec
func StartExpiryScheduler(c *cron.Cron, spec string, e Expirer) error {
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		RunExpiry(ctx, e, time.Now().UTC())
	})
	if err != nil {
		return fmt.Errorf("schedule expiry %q: %w", spec, err)
	}
	logScheduler("Progress expiry scheduler started - runs on " + spec)
	return nil
}

// InitializeExpiryScheduler creates, registers and starts the cron scheduler
func InitializeExpiryScheduler(spec string, e Expirer) (*cron.Cron, error) {
	logScheduler("Initializing expiry scheduler...")

	c := cron.New(cron.WithLocation(time.UTC))
	if err := StartExpiryScheduler(c, spec, e); err != nil {
		return nil, err
	}
	c.Start()

	logScheduler("Expiry scheduler initialized successfully")
	return c, nil
}
