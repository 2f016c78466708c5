package broadcast

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"jarqyn_support_bot/internal/domain"
)

type fakeAudience struct {
	users  []int64
	admins map[int64]bool
	err    error
}

func (f *fakeAudience) Users(context.Context) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users, nil
}

func (f *fakeAudience) IsAdmin(_ context.Context, chatID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.admins[chatID], nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []int64
	failFor map[int64]error
}

func (f *fakeSender) SendBroadcast(_ context.Context, chatID int64, _ Content) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[chatID]; ok {
		return err
	}
	f.sent = append(f.sent, chatID)
	return nil
}

func newTestDispatcher(aud *fakeAudience, sender *fakeSender) *Dispatcher {
	hookLogger, _ := logtest.NewNullLogger()
	return NewDispatcher(aud, sender, logrus.NewEntry(hookLogger))
}

func TestDispatchSendsToEveryUser(t *testing.T) {
	aud := &fakeAudience{users: []int64{1, 2, 3}, admins: map[int64]bool{42: true}}
	sender := &fakeSender{}
	d := newTestDispatcher(aud, sender)

	result, err := d.Dispatch(context.Background(), 42, Content{Text: "Новая акция"})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	if result.Delivered != 3 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}

	sort.Slice(sender.sent, func(i, j int) bool { return sender.sent[i] < sender.sent[j] })
	if len(sender.sent) != 3 || sender.sent[0] != 1 || sender.sent[2] != 3 {
		t.Fatalf("unexpected recipients: %v", sender.sent)
	}
}

func TestDispatchRejectsNonAdmin(t *testing.T) {
	aud := &fakeAudience{users: []int64{1}, admins: map[int64]bool{}}
	sender := &fakeSender{}
	d := newTestDispatcher(aud, sender)

	_, err := d.Dispatch(context.Background(), 7, Content{Text: "x"})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected nothing sent, got %v", sender.sent)
	}
}

func TestDispatchIsolatesPerChatFailures(t *testing.T) {
	aud := &fakeAudience{users: []int64{1, 2, 3}, admins: map[int64]bool{42: true}}
	sender := &fakeSender{failFor: map[int64]error{2: errors.New("blocked by user")}}
	d := newTestDispatcher(aud, sender)

	result, err := d.Dispatch(context.Background(), 42, Content{Text: "x"})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	if result.Delivered != 2 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDispatchPropagatesCatalogErrors(t *testing.T) {
	aud := &fakeAudience{err: domain.ErrStoreUnavailable}
	d := newTestDispatcher(aud, &fakeSender{})

	_, err := d.Dispatch(context.Background(), 42, Content{Text: "x"})
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
