package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/medflow/shift-timer/internal/timer/domain"
	"github.com/medflow/shift-timer/pkg/session"
)

// clock is a settable time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeUsers struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (*domain.User, error)
}

func (f *fakeUsers) GetUser(ctx context.Context, userID int) (*domain.User, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.fn(call)
}

func (f *fakeUsers) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEntries struct {
	mu      sync.Mutex
	entries []domain.TimeEntry
	err     error
	queries []domain.EntryQuery
	tokens  []string
}

func (f *fakeEntries) ListEntries(ctx context.Context, q domain.EntryQuery) ([]domain.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	f.tokens = append(f.tokens, session.Token(ctx))
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.TimeEntry(nil), f.entries...), nil
}

func (f *fakeEntries) Set(entries ...domain.TimeEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
}

func (f *fakeEntries) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeEntries) LastToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tokens) == 0 {
		return ""
	}
	return f.tokens[len(f.tokens)-1]
}

type fakeLeaves struct {
	requests []domain.LeaveRequest
	err      error
}

func (f *fakeLeaves) LeaveRequestsOn(ctx context.Context, userID int, date time.Time) ([]domain.LeaveRequest, error) {
	return f.requests, f.err
}

type fakeNotifier struct {
	mu    sync.Mutex
	users []int
}

func (f *fakeNotifier) ScheduleMissing(ctx context.Context, user *domain.User, timezone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, user.ID)
	return nil
}

func (f *fakeNotifier) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}
