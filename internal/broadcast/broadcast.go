// Package broadcast fans an admin announcement out to every known user.
package broadcast

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"jarqyn_support_bot/internal/domain"
	"jarqyn_support_bot/internal/logging"
)

// Content is one announcement. PhotoID and VideoID are Telegram file ids;
// at most one of them is set.
type Content struct {
	Text    string
	PhotoID string
	VideoID string
}

// Sender delivers one announcement to one chat.
type Sender interface {
	SendBroadcast(ctx context.Context, chatID int64, content Content) error
}

// audience is the catalog slice the dispatcher needs: the recipient list and
// the admin allow-list.
type audience interface {
	Users(ctx context.Context) ([]int64, error)
	IsAdmin(ctx context.Context, chatID int64) (bool, error)
}

// Result summarizes one fan-out.
type Result struct {
	Delivered int
	Failed    int
}

// Dispatcher gates announcements behind the admin allow-list and fans them
// out concurrently. A failed delivery never stops the rest of the fan-out.
type Dispatcher struct {
	catalog audience
	sender  Sender
	logger  *logrus.Entry
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(catalog audience, sender Sender, logger *logrus.Entry) *Dispatcher {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Dispatcher{
		catalog: catalog,
		sender:  sender,
		logger:  logger,
	}
}

// Dispatch sends content to every known user on behalf of adminID. A chat
// not on the admin allow-list gets ErrPermissionDenied and nothing is sent.
func (d *Dispatcher) Dispatch(ctx context.Context, adminID int64, content Content) (Result, error) {
	ok, err := d.catalog.IsAdmin(ctx, adminID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, fmt.Errorf("%w: chat %d is not an admin", domain.ErrPermissionDenied, adminID)
	}

	users, err := d.catalog.Users(ctx)
	if err != nil {
		return Result{}, err
	}

	broadcastID := uuid.NewString()
	logger := d.logger.WithFields(logging.Fields{
		"broadcast_id": broadcastID,
		"admin_id":     adminID,
		"recipients":   len(users),
	})
	logger.Info("broadcast started")

	var delivered, failed atomic.Int64
	wg := conc.NewWaitGroup()
	for _, chatID := range users {
		chatID := chatID // per-iteration copy; required while building with Go < 1.22
		wg.Go(func() {
			if err := d.sender.SendBroadcast(ctx, chatID, content); err != nil {
				failed.Add(1)
				logger.WithFields(logging.Fields{
					"chat_id": chatID,
				}).WithError(err).Warn("broadcast delivery failed")
				return
			}
			delivered.Add(1)
		})
	}
	wg.Wait()

	result := Result{
		Delivered: int(delivered.Load()),
		Failed:    int(failed.Load()),
	}

	logger.WithFields(logging.Fields{
		"delivered": result.Delivered,
		"failed":    result.Failed,
	}).Info("broadcast finished")

	return result, nil
}
