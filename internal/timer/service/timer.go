package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/medflow/shift-timer/internal/reconcile"
	"github.com/medflow/shift-timer/internal/timer/domain"
	"github.com/medflow/shift-timer/pkg/errors"
	"github.com/medflow/shift-timer/pkg/logger"
	"github.com/medflow/shift-timer/pkg/session"
	"golang.org/x/sync/singleflight"
)

type sessionKey struct {
	userID   int
	timezone string
}

func (k sessionKey) String() string {
	return fmt.Sprintf("%d/%s", k.userID, k.timezone)
}

// TimerService owns the live sessions, one per user and display zone
type TimerService struct {
	sources  Sources
	notifier Notifier
	opts     Options
	logger   *logger.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*Session

	// concurrent first opens of one key share a single load
	opening singleflight.Group
}

// NewTimerService creates a new timer service
func NewTimerService(sources Sources, notifier Notifier, opts Options, log *logger.Logger) *TimerService {
	if log == nil {
		log = logger.Nop()
	}
	return &TimerService{
		sources:  sources,
		notifier: notifier,
		opts:     opts.withDefaults(),
		logger:   log.WithComponent("timer-service"),
		sessions: make(map[sessionKey]*Session),
	}
}

// zone canonicalizes a timezone name, applying the default for ""
func (s *TimerService) zone(timezone string) (string, error) {
	loc, err := reconcile.LoadZone(timezone, s.opts.DefaultTimezone)
	if err != nil {
		return "", errors.Validation(map[string]string{"timezone": "unknown timezone"})
	}
	return loc.String(), nil
}

// Open returns the running session for userID in timezone, starting one
// if needed. A session that fails its first load is not kept.
func (s *TimerService) Open(ctx context.Context, userID int, timezone string) (*Session, error) {
	tz, err := s.zone(timezone)
	if err != nil {
		return nil, err
	}
	key := sessionKey{userID: userID, timezone: tz}

	s.mu.Lock()
	existing, ok := s.sessions[key]
	s.mu.Unlock()
	if ok {
		return existing, nil
	}

	v, err, _ := s.opening.Do(key.String(), func() (interface{}, error) {
		return s.open(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (s *TimerService) open(ctx context.Context, key sessionKey) (*Session, error) {
	s.mu.Lock()
	existing, ok := s.sessions[key]
	s.mu.Unlock()
	if ok {
		return existing, nil
	}

	userID, tz := key.userID, key.timezone
	owner, _ := session.FromContext(ctx)
	sess, err := NewSession(userID, tz, owner, s.sources, s.notifier, s.opts, s.logger)
	if err != nil {
		return nil, err
	}
	if err := sess.Start(ctx); err != nil {
		sess.Close()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A timezone change may have moved a session onto this key meanwhile
	if existing, ok := s.sessions[key]; ok {
		go sess.Close()
		return existing, nil
	}
	s.sessions[key] = sess

	s.logger.Info().
		Int("user_id", userID).
		Str("timezone", tz).
		Msg("timer session opened")

	return sess, nil
}

// Status opens or reuses the session and returns its snapshot
func (s *TimerService) Status(ctx context.Context, userID int, timezone string) (Status, error) {
	sess, err := s.Open(ctx, userID, timezone)
	if err != nil {
		return Status{}, err
	}
	return sess.Status(), nil
}

// Get returns the running session without opening one
func (s *TimerService) Get(userID int, timezone string) (*Session, bool) {
	tz, err := s.zone(timezone)
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionKey{userID: userID, timezone: tz}]
	return sess, ok
}

// SetTimezone moves a session to another display zone and refetches
// everything. When the target zone already has a session the source one is
// closed and the target is refreshed instead.
func (s *TimerService) SetTimezone(ctx context.Context, userID int, from, to string) (*Session, error) {
	fromTZ, err := s.zone(from)
	if err != nil {
		return nil, err
	}
	toTZ, err := s.zone(to)
	if err != nil {
		return nil, err
	}
	fromKey := sessionKey{userID: userID, timezone: fromTZ}
	toKey := sessionKey{userID: userID, timezone: toTZ}

	s.mu.Lock()
	sess, ok := s.sessions[fromKey]
	if !ok {
		s.mu.Unlock()
		return nil, errors.NotFound("timer session")
	}
	if fromKey == toKey {
		s.mu.Unlock()
		return sess, sess.Refresh(ctx)
	}
	if target, ok := s.sessions[toKey]; ok {
		delete(s.sessions, fromKey)
		s.mu.Unlock()
		sess.Close()
		return target, target.Refresh(ctx)
	}
	delete(s.sessions, fromKey)
	s.sessions[toKey] = sess
	s.mu.Unlock()

	return sess, sess.SetTimezone(ctx, toTZ)
}

// Close tears down one session. It reports whether there was one.
func (s *TimerService) Close(userID int, timezone string) bool {
	tz, err := s.zone(timezone)
	if err != nil {
		return false
	}
	key := sessionKey{userID: userID, timezone: tz}

	s.mu.Lock()
	sess, ok := s.sessions[key]
	delete(s.sessions, key)
	s.mu.Unlock()

	if ok {
		sess.Close()
		s.logger.Info().Int("user_id", userID).Str("timezone", tz).Msg("timer session closed")
	}
	return ok
}

// CloseAll tears down every session, e.g. on shutdown
func (s *TimerService) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[sessionKey]*Session)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			sess.Close()
		}(sess)
	}
	wg.Wait()

	s.logger.Info().Int("count", len(sessions)).Msg("all timer sessions closed")
}

// Count returns the number of live sessions
func (s *TimerService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *TimerService) sessionsFor(userID int) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Session
	for key, sess := range s.sessions {
		if userID == 0 || key.userID == userID {
			out = append(out, sess)
		}
	}
	return out
}

// EntriesChanged forwards a pushed entry event to the sessions of userID,
// or to every session when userID is 0. It returns how many were notified.
func (s *TimerService) EntriesChanged(ctx context.Context, userID int) int {
	sessions := s.sessionsFor(userID)
	for _, sess := range sessions {
		if err := sess.EntriesChanged(ctx); err != nil {
			s.logger.Warn().Err(err).Int("user_id", sess.UserID()).Msg("entry refresh failed")
		}
	}
	return len(sessions)
}

// RefreshEntries refetches the entries of every session of userID right
// away, bypassing any debounce
func (s *TimerService) RefreshEntries(ctx context.Context, userID int) (int, error) {
	sessions := s.sessionsFor(userID)
	if len(sessions) == 0 {
		return 0, errors.NotFound("timer session")
	}
	for _, sess := range sessions {
		if err := sess.RefreshEntries(ctx); err != nil {
			return 0, errors.Unavailable("entries backend", err)
		}
	}
	return len(sessions), nil
}

// HoursReport is the worked time of a user over a date range
type HoursReport struct {
	UserID     int                `json:"user_id"`
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
	TotalHours float64            `json:"total_hours"`
	Hours      string             `json:"hours"`
	Entries    []domain.TimeEntry `json:"entries"`
}

// Hours totals the closed entries of userID that started between the
// calendar dates start and end inclusive
func (s *TimerService) Hours(ctx context.Context, userID int, start, end time.Time) (*HoursReport, error) {
	if end.Before(start) {
		return nil, errors.Validation(map[string]string{"end": "must not be before start"})
	}

	entries, err := s.sources.Entries.ListEntries(ctx, domain.EntryQuery{
		UserID:    userID,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return nil, err
	}

	total := reconcile.SumHoursForUser(entries, userID)
	return &HoursReport{
		UserID:     userID,
		Start:      start,
		End:        end,
		TotalHours: total,
		Hours:      reconcile.FormatHours(total),
		Entries:    entries,
	}, nil
}
