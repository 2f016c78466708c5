// Package store provides access to the remote JSON document that backs the
// entire bot, with a time-boxed read cache in front of it.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"jarqyn_support_bot/internal/config"
	"jarqyn_support_bot/internal/domain"
	"jarqyn_support_bot/internal/logging"
)

const requestTimeout = 10 * time.Second

// httpDoer captures the subset of http.Client behavior we rely on to allow
// lightweight stubbing in tests without a live endpoint.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DocumentStore reads and writes the single remote document. The read path is
// cached for the configured TTL; the write path replaces the whole document
// and deliberately leaves the cache alone, so a read shortly after a write
// may observe pre-write data until the TTL expires. There is no cross-process
// locking: concurrent writers race and the last full-document write wins.
type DocumentStore struct {
	url    string
	ttl    time.Duration
	client httpDoer
	logger *logrus.Entry

	mu        sync.Mutex
	cached    domain.Document
	fetchedAt time.Time

	now func() time.Time // overridable for tests
}

// New constructs a DocumentStore for the configured URL and cache TTL.
func New(cfg config.Config, logger *logrus.Entry) *DocumentStore {
	if logger == nil {
		logger = logging.Logger()
	}

	return &DocumentStore{
		url:    cfg.StoreURL,
		ttl:    cfg.CacheTTL,
		client: &http.Client{Timeout: requestTimeout},
		logger: logger,
		now:    time.Now,
	}
}

// Fetch returns the cached document while it is younger than the TTL, and
// performs a remote read otherwise. A failed remote read never falls back to
// the stale cache; callers must handle domain.ErrStoreUnavailable.
func (s *DocumentStore) Fetch(ctx context.Context) (domain.Document, error) {
	if ctx == nil {
		return domain.Document{}, errors.New("context is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fetchedAt.IsZero() && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.cached.Clone(), nil
	}

	doc, err := s.remoteRead(ctx)
	if err != nil {
		return domain.Document{}, err
	}

	s.cached = doc
	s.fetchedAt = s.now()

	s.logger.WithFields(logging.Fields{
		"event":      "store_fetch",
		"users":      len(doc.Users),
		"practices":  len(doc.BotInfo.Practices),
		"categories": "bot_info",
	}).Debug("refreshed document from remote store")

	return doc.Clone(), nil
}

// Commit writes the full document to the remote store and returns the
// server's acknowledged representation. The read cache is not updated.
func (s *DocumentStore) Commit(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if ctx == nil {
		return domain.Document{}, errors.New("context is required")
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: encode document: %w", domain.ErrStoreUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: build request: %w", domain.ErrStoreUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	acked, err := s.roundTrip(req)
	if err != nil {
		return domain.Document{}, err
	}

	s.logger.WithField("event", "store_commit").Debug("committed document to remote store")

	return acked, nil
}

// Ping verifies the remote store is reachable. It goes through Fetch, so a
// warm cache answers without a network round trip.
func (s *DocumentStore) Ping(ctx context.Context) error {
	_, err := s.Fetch(ctx)
	return err
}

func (s *DocumentStore) remoteRead(ctx context.Context) (domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: build request: %w", domain.ErrStoreUnavailable, err)
	}

	return s.roundTrip(req)
}

func (s *DocumentStore) roundTrip(req *http.Request) (domain.Document, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %s %s: %w", domain.ErrStoreUnavailable, req.Method, "remote document", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Document{}, fmt.Errorf("%w: unexpected status %d", domain.ErrStoreUnavailable, resp.StatusCode)
	}

	var doc domain.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return domain.Document{}, fmt.Errorf("%w: decode document: %w", domain.ErrStoreUnavailable, err)
	}

	return doc, nil
}
