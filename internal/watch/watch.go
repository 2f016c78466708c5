// Package watch polls the catalog for newly added practices and announces
// them to every known user.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"jarqyn_support_bot/internal/domain"
	"jarqyn_support_bot/internal/logging"
	"jarqyn_support_bot/internal/texts"
)

// practiceLister is the catalog slice the job polls.
type practiceLister interface {
	Practices(ctx context.Context) ([]domain.Practice, error)
}

// Notifier delivers an announcement to every known user.
type Notifier interface {
	NotifyUsers(ctx context.Context, text string) error
}

// Job polls the practice collection on an interval and announces ids it has
// not seen before. The first successful poll only establishes the baseline,
// so a restart never replays the whole catalog as "new".
type Job struct {
	catalog  practiceLister
	notifier Notifier
	texts    *texts.Table
	logger   *logrus.Entry
	interval time.Duration

	known  map[int]struct{}
	primed bool
}

// NewJob constructs a Job. interval must be positive.
func NewJob(catalog practiceLister, notifier Notifier, table *texts.Table, interval time.Duration, logger *logrus.Entry) *Job {
	if table == nil {
		table = texts.Default()
	}
	if logger == nil {
		logger = logging.Logger()
	}
	return &Job{
		catalog:  catalog,
		notifier: notifier,
		texts:    table,
		logger:   logger,
		interval: interval,
		known:    make(map[int]struct{}),
	}
}

// RunOnce performs a single poll. A fetch or delivery failure aborts the run
// and leaves the baseline untouched, so nothing is ever silently marked as
// seen.
func (j *Job) RunOnce(ctx context.Context) error {
	practices, err := j.catalog.Practices(ctx)
	if err != nil {
		return fmt.Errorf("poll practices: %w", err)
	}

	if !j.primed {
		j.rebuildBaseline(practices)
		j.primed = true
		j.logger.WithFields(logging.Fields{
			"event": "watch_primed",
			"count": len(j.known),
		}).Info("practice baseline established")
		return nil
	}

	var added []domain.Practice
	for _, p := range practices {
		if _, ok := j.known[p.ID]; !ok {
			added = append(added, p)
		}
	}

	if len(added) > 0 {
		var b strings.Builder
		b.WriteString(j.texts.Get(texts.NewPractices))
		for i, p := range added {
			fmt.Fprintf(&b, "%d. %s", i+1, p.Name)
			if p.Description != "" {
				fmt.Fprintf(&b, " — %s", p.Description)
			}
			b.WriteString("\n")
		}

		if err := j.notifier.NotifyUsers(ctx, b.String()); err != nil {
			return fmt.Errorf("announce practices: %w", err)
		}

		j.logger.WithFields(logging.Fields{
			"event": "practices_announced",
			"count": len(added),
		}).Info("announced new practices")
	}

	// Removed ids drop out of the baseline without any announcement.
	j.rebuildBaseline(practices)
	return nil
}

// Start polls on the configured interval until ctx is cancelled. Poll
// failures are logged and retried on the next tick.
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.WithFields(logging.Fields{
		"event":    "watch_started",
		"interval": j.interval.String(),
	}).Info("practice watch running")

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("practice watch stopped")
			return
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				j.logger.WithError(err).Warn("practice poll failed")
			}
		}
	}
}

func (j *Job) rebuildBaseline(practices []domain.Practice) {
	next := make(map[int]struct{}, len(practices))
	for _, p := range practices {
		next[p.ID] = struct{}{}
	}
	j.known = next
}
