package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/medflow/shift-timer/internal/reconcile"
	"github.com/medflow/shift-timer/internal/timer/domain"
	"github.com/medflow/shift-timer/pkg/config"
	"github.com/medflow/shift-timer/pkg/logger"
	"github.com/medflow/shift-timer/pkg/session"
	"golang.org/x/sync/errgroup"
)

// UserSource loads a user with its weekly schedule
type UserSource interface {
	GetUser(ctx context.Context, userID int) (*domain.User, error)
}

// EntrySource lists time entries for a date range
type EntrySource interface {
	ListEntries(ctx context.Context, q domain.EntryQuery) ([]domain.TimeEntry, error)
}

// LeaveSource lists leave requests covering a date
type LeaveSource interface {
	LeaveRequestsOn(ctx context.Context, userID int, date time.Time) ([]domain.LeaveRequest, error)
}

// Notifier tells someone that a user has no schedule at all
type Notifier interface {
	ScheduleMissing(ctx context.Context, user *domain.User, timezone string) error
}

// Sources bundles the collaborators a session reads from
type Sources struct {
	Users   UserSource
	Entries EntrySource
	Leaves  LeaveSource
}

// idleElapsed is what the live timer shows when nothing is clocked in
const idleElapsed = "00:00:00"

// Options tune a session
type Options struct {
	DefaultTimezone string
	TickInterval    time.Duration
	Grace           time.Duration
	EntryRange      string
	RefreshDebounce time.Duration

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// OptionsFromConfig maps the timer config section onto session options
func OptionsFromConfig(cfg *config.TimerConfig) Options {
	return Options{
		DefaultTimezone: cfg.DefaultTimezone,
		TickInterval:    cfg.TickInterval,
		Grace:           cfg.GraceWindow,
		EntryRange:      cfg.EntryRange,
		RefreshDebounce: cfg.RefreshDebounce,
	}
}

func (o Options) withDefaults() Options {
	if o.DefaultTimezone == "" {
		o.DefaultTimezone = "UTC"
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.EntryRange == "" {
		o.EntryRange = reconcile.RangeDay
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Status is a point-in-time snapshot of a session
type Status struct {
	UserID          int                  `json:"user_id"`
	Timezone        string               `json:"timezone"`
	Started         string               `json:"started"`
	TimeRef         string               `json:"time_ref,omitempty"`
	EntryStatus     *int                 `json:"status"`
	TotalHours      string               `json:"total_hours"`
	Classification  reconcile.State      `json:"classification"`
	Initializing    bool                 `json:"initializing"`
	JustInTime      bool                 `json:"just_in_time"`
	StartedEarly    bool                 `json:"started_early"`
	ValidStartLocal *time.Time           `json:"valid_start_local,omitempty"`
	ValidEndLocal   *time.Time           `json:"valid_end_local,omitempty"`
	EntryStartLocal *time.Time           `json:"entry_start_local,omitempty"`
	HasLeaveRequest bool                 `json:"has_leave_request"`
	LeaveRequest    *domain.LeaveRequest `json:"leave_request,omitempty"`
	User            *domain.User         `json:"user,omitempty"`
	EntriesLoaded   bool                 `json:"entries_loaded"`
	RefreshedAt     *time.Time           `json:"refreshed_at,omitempty"`
}

// Session reconciles one user's schedule and entries in one display zone.
// All state is guarded by mu; the tick, refresh and debounce goroutines
// run concurrently.
type Session struct {
	userID   int
	owner    session.Session
	sources  Sources
	notifier Notifier
	opts     Options
	logger   *logger.Logger

	// lifetime of the session; cancelled by Close
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	started     bool
	closed      bool
	gen         uint64
	timezone    string
	loc         *time.Location
	user        *domain.User
	window      *reconcile.Window
	entries     []domain.TimeEntry
	loaded      bool
	leave       *domain.LeaveRequest
	classifier  *reconcile.Classifier
	elapsed     string
	timeRef     string
	notified    bool
	refreshedAt time.Time
	debounce    *time.Timer
}

// NewSession creates a session for userID. owner is the login context the
// session acts under when it refreshes outside of a request. An empty
// timezone falls back to the configured default.
func NewSession(userID int, timezone string, owner session.Session, sources Sources, notifier Notifier, opts Options, log *logger.Logger) (*Session, error) {
	opts = opts.withDefaults()
	if timezone == "" {
		timezone = opts.DefaultTimezone
	}
	loc, err := reconcile.LoadZone(timezone, opts.DefaultTimezone)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		userID:     userID,
		owner:      owner,
		sources:    sources,
		notifier:   notifier,
		opts:       opts,
		logger:     log.WithComponent("timer-session").WithUserID(userID).WithTimezone(timezone),
		ctx:        ctx,
		cancel:     cancel,
		timezone:   timezone,
		loc:        loc,
		classifier: reconcile.NewClassifier(opts.Grace),
		elapsed:    idleElapsed,
	}, nil
}

// UserID returns the user the session tracks
func (s *Session) UserID() int { return s.userID }

// Timezone returns the current display zone
func (s *Session) Timezone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timezone
}

// Start loads everything once and starts the tick. Calling it twice is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session for user %d is closed", s.userID)
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.run()
	return nil
}

func (s *Session) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Tick(s.opts.Now())
		}
	}
}

// Refresh refetches the user and, when that succeeds, the leave requests,
// today's window and the entries in parallel.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	gen, loc, tz := s.gen, s.loc, s.timezone
	s.mu.Unlock()

	return s.refresh(ctx, gen, loc, tz)
}

func (s *Session) refresh(ctx context.Context, gen uint64, loc *time.Location, tz string) error {
	ctx = s.authorize(ctx)
	now := s.opts.Now()

	user, err := s.sources.Users.GetUser(ctx, s.userID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch user")
		s.apply(gen, func() {
			s.user = nil
			s.window = nil
		})
		return fmt.Errorf("fetch user %d: %w", s.userID, err)
	}

	var (
		leave     *domain.LeaveRequest
		window    *reconcile.Window
		entries   []domain.TimeEntry
		entriesOK bool
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		leave = s.fetchLeave(gctx, now)
		return nil
	})

	g.Go(func() error {
		window, _ = reconcile.Match(user.Schedules(), now, loc)
		return nil
	})

	g.Go(func() error {
		entries, entriesOK = s.fetchEntries(gctx, now)
		return nil
	})

	_ = g.Wait()

	applied := s.apply(gen, func() {
		s.user = user
		s.window = window
		s.leave = leave
		if entriesOK {
			s.entries = entries
			s.loaded = true
		}
		s.refreshedAt = now
	})
	if !applied {
		return nil
	}

	s.notifyMissingSchedule(ctx, user, tz)
	return nil
}

// apply runs fn under the lock unless a timezone change has superseded the
// refresh that produced its data, then re-evaluates the tick
func (s *Session) apply(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if gen != s.gen {
		s.logger.Debug().Uint64("generation", gen).Msg("discarding stale refresh")
		return false
	}

	fn()
	s.tickLocked(s.opts.Now())
	return true
}

// authorize makes sure collaborator calls carry a login. Calls triggered
// by push events have none of their own and borrow the owner's.
func (s *Session) authorize(ctx context.Context) context.Context {
	if _, err := session.FromContext(ctx); err == nil {
		return ctx
	}
	return session.WithSession(ctx, s.owner)
}

func (s *Session) caller(ctx context.Context) session.Session {
	if sess, err := session.FromContext(ctx); err == nil {
		return sess
	}
	return s.owner
}

func (s *Session) fetchLeave(ctx context.Context, now time.Time) *domain.LeaveRequest {
	if s.sources.Leaves == nil {
		return nil
	}
	requests, err := s.sources.Leaves.LeaveRequestsOn(ctx, s.userID, now)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch leave requests")
		return nil
	}
	if len(requests) == 0 {
		return nil
	}
	return &requests[0]
}

func (s *Session) fetchEntries(ctx context.Context, now time.Time) ([]domain.TimeEntry, bool) {
	start, end := reconcile.EntryRange(now, s.opts.EntryRange)
	entries, err := s.sources.Entries.ListEntries(ctx, domain.EntryQuery{
		UserID:    s.userID,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to fetch entries")
		return nil, false
	}
	return entries, true
}

func (s *Session) notifyMissingSchedule(ctx context.Context, user *domain.User, tz string) {
	if user.Employee == nil || len(user.Employee.Schedule) > 0 || s.notifier == nil {
		return
	}

	s.mu.Lock()
	if s.notified {
		s.mu.Unlock()
		return
	}
	s.notified = true
	s.mu.Unlock()

	if err := s.notifier.ScheduleMissing(ctx, user, tz); err != nil {
		s.logger.Error().Err(err).Msg("failed to send schedule missing notice")
	}
}

// SetTimezone switches the display zone and refetches everything. Any
// refresh still in flight for the old zone is discarded when it lands.
func (s *Session) SetTimezone(ctx context.Context, timezone string) error {
	loc, err := reconcile.LoadZone(timezone, s.opts.DefaultTimezone)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session for user %d is closed", s.userID)
	}
	s.gen++
	gen, tz := s.gen, loc.String()
	s.timezone = tz
	s.loc = loc
	s.window = nil
	s.classifier.Reset()
	s.mu.Unlock()

	s.logger.Info().Str("timezone", tz).Msg("timezone changed")
	return s.refresh(ctx, gen, loc, tz)
}

// EntriesChanged reacts to a pushed entry event. With a debounce
// configured, a burst of events triggers one refetch after the quiet period.
func (s *Session) EntriesChanged(ctx context.Context) error {
	if s.opts.RefreshDebounce <= 0 {
		return s.RefreshEntries(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if s.debounce != nil {
		s.debounce.Stop()
	}

	caller := s.caller(ctx)
	var timer *time.Timer
	timer = time.AfterFunc(s.opts.RefreshDebounce, func() {
		s.mu.Lock()
		if s.debounce == timer {
			s.debounce = nil
		}
		s.mu.Unlock()

		if err := s.RefreshEntries(session.WithSession(s.ctx, caller)); err != nil {
			s.logger.Warn().Err(err).Msg("debounced entry refresh failed")
		}
	})
	s.debounce = timer
	return nil
}

// RefreshEntries refetches only the entries. It does nothing until a user
// has been loaded.
func (s *Session) RefreshEntries(ctx context.Context) error {
	s.mu.Lock()
	gen, user, closed := s.gen, s.user, s.closed
	s.mu.Unlock()

	if user == nil || closed {
		return nil
	}

	entries, ok := s.fetchEntries(s.authorize(ctx), s.opts.Now())
	if !ok {
		return fmt.Errorf("fetch entries for user %d failed", s.userID)
	}

	s.apply(gen, func() {
		s.entries = entries
		s.loaded = true
	})
	return nil
}

// Tick re-runs the classifier and the live timer for now
func (s *Session) Tick(now time.Time) reconcile.Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickLocked(now)
}

func (s *Session) tickLocked(now time.Time) reconcile.Transition {
	open := reconcile.OpenEntry(s.entries, s.userID)

	tr := s.classifier.Step(now, s.window, open != nil)
	if tr.Changed() {
		s.logger.Debug().
			Str("from", tr.From.String()).
			Str("to", tr.To.String()).
			Msg("classification changed")
	}

	if open != nil {
		s.elapsed = reconcile.LiveElapsed(open.StartTime, now)
		s.timeRef = reconcile.TimeAgoLabel(s.elapsed)
	} else {
		s.elapsed = idleElapsed
		s.timeRef = ""
	}

	return tr
}

// Status returns a snapshot of the session
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		UserID:          s.userID,
		Timezone:        s.timezone,
		Started:         s.elapsed,
		TimeRef:         s.timeRef,
		TotalHours:      reconcile.FormatHours(reconcile.SumHoursForUser(s.entries, s.userID)),
		Classification:  s.classifier.State(),
		Initializing:    s.classifier.Initializing(),
		JustInTime:      s.classifier.JustInTime(),
		HasLeaveRequest: s.leave != nil,
		EntriesLoaded:   s.loaded,
	}

	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	if s.leave != nil {
		l := *s.leave
		st.LeaveRequest = &l
	}
	if !s.refreshedAt.IsZero() {
		at := s.refreshedAt
		st.RefreshedAt = &at
	}

	var validStart *time.Time
	if s.window != nil {
		start, startLocal, endLocal := s.window.Start, s.window.StartLocal, s.window.EndLocal
		validStart = &start
		st.ValidStartLocal = &startLocal
		st.ValidEndLocal = &endLocal
	}

	if open := reconcile.OpenEntry(s.entries, s.userID); open != nil {
		status := open.Status
		st.EntryStatus = &status

		entryStart := reconcile.UTCClock(open.StartTime)
		local := reconcile.UTCToLocal(entryStart, s.loc)
		st.EntryStartLocal = &local
		st.StartedEarly = reconcile.StartedEarly(&entryStart, validStart)
	}

	return st
}

// Close stops the tick and any pending debounced refresh. It is safe to
// call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Debug().Msg("session closed")
}

// Done is closed when the session is torn down
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}
