package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medflow/shift-timer/internal/reconcile"
	"github.com/medflow/shift-timer/internal/timer/domain"
	"github.com/medflow/shift-timer/internal/timer/service"
	"github.com/medflow/shift-timer/pkg/session"
	"github.com/medflow/shift-timer/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-03-04 is a Monday
func mondayAt(h, m int) time.Time {
	return time.Date(2024, 3, 4, h, m, 0, 0, time.UTC)
}

var owner = session.Session{UserID: 1, Role: session.AdminRole, Token: "owner-token"}

type harness struct {
	clock    *clock
	users    *fakeUsers
	entries  *fakeEntries
	leaves   *fakeLeaves
	notifier *fakeNotifier
	opts     service.Options
}

func newHarness(now time.Time, user *domain.User) *harness {
	c := newClock(now)
	return &harness{
		clock: c,
		users: &fakeUsers{fn: func(int) (*domain.User, error) {
			u := *user
			return &u, nil
		}},
		entries:  &fakeEntries{},
		leaves:   &fakeLeaves{},
		notifier: &fakeNotifier{},
		opts: service.Options{
			DefaultTimezone: "America/Caracas",
			TickInterval:    time.Hour,
			Grace:           5 * time.Minute,
			EntryRange:      reconcile.RangeDay,
			Now:             c.Now,
		},
	}
}

func (h *harness) sources() service.Sources {
	return service.Sources{Users: h.users, Entries: h.entries, Leaves: h.leaves}
}

func (h *harness) session(t *testing.T, userID int, tz string) *service.Session {
	t.Helper()
	sess, err := service.NewSession(userID, tz, owner, h.sources(), h.notifier, h.opts, nil)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

func mondayUser() *domain.User {
	return testutil.NewFixtureFactory().User(
		testutil.WithName("Ana", "Pérez"),
		testutil.WithSchedules(testutil.ScheduleOn("09:00:00", "17:00:00", 1)),
	)
}

func TestSession_Start(t *testing.T) {
	user := mondayUser()
	h := newHarness(mondayAt(9, 3), user)
	h.entries.Set(
		testutil.ClosedEntry(user.ID, mondayAt(7, 0), 90*time.Minute),
		testutil.OpenEntry(user.ID, mondayAt(9, 0)),
		testutil.ClosedEntry(user.ID+1, mondayAt(7, 0), 8*time.Hour),
	)
	h.leaves.requests = []domain.LeaveRequest{{ID: 3, UserID: user.ID, LeaveType: "vacation"}}

	sess := h.session(t, user.ID, "America/Caracas")
	require.NoError(t, sess.Start(context.Background()))

	st := sess.Status()
	assert.Equal(t, "America/Caracas", st.Timezone)
	assert.Equal(t, reconcile.JustInTime, st.Classification)
	assert.True(t, st.Initializing)
	assert.True(t, st.JustInTime)
	assert.Equal(t, "00:03:00", st.Started)
	assert.Equal(t, reconcile.LabelMinutes, st.TimeRef)
	assert.Equal(t, "01:30:00", st.TotalHours)
	require.NotNil(t, st.EntryStatus)
	assert.Equal(t, domain.EntryStatusOpen, *st.EntryStatus)
	assert.True(t, st.StartedEarly)
	assert.True(t, st.EntriesLoaded)

	require.NotNil(t, st.ValidStartLocal)
	assert.Equal(t, mondayAt(5, 0), *st.ValidStartLocal)
	require.NotNil(t, st.ValidEndLocal)
	assert.Equal(t, mondayAt(13, 0), *st.ValidEndLocal)
	require.NotNil(t, st.EntryStartLocal)
	assert.Equal(t, mondayAt(5, 0), *st.EntryStartLocal)

	assert.True(t, st.HasLeaveRequest)
	require.NotNil(t, st.LeaveRequest)
	assert.Equal(t, "vacation", st.LeaveRequest.LeaveType)
	require.NotNil(t, st.User)
	assert.Equal(t, "Ana Pérez", st.User.FullName())

	require.Len(t, h.entries.queries, 1)
	q := h.entries.queries[0]
	assert.Equal(t, user.ID, q.UserID)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), q.StartTime)
	assert.Equal(t, q.StartTime, q.EndTime)

	// Starting twice does not refetch
	require.NoError(t, sess.Start(context.Background()))
	assert.Equal(t, 1, h.users.Calls())
}

func TestSession_MondayShiftEndToEnd(t *testing.T) {
	user := mondayUser()
	h := newHarness(mondayAt(9, 3), user)
	h.entries.Set(testutil.OpenEntry(user.ID, mondayAt(9, 0)))

	sess := h.session(t, user.ID, "UTC")
	require.NoError(t, sess.Start(context.Background()))
	assert.Equal(t, reconcile.JustInTime, sess.Status().Classification)

	sess.Tick(mondayAt(9, 5))
	st := sess.Status()
	assert.Equal(t, "00:05:00", st.Started)
	assert.Equal(t, reconcile.LabelMinutes, st.TimeRef)

	tr := sess.Tick(mondayAt(9, 10))
	assert.True(t, tr.Changed())
	assert.Equal(t, reconcile.InWindow, tr.To)
	// still clocked in, so the flags stay
	assert.True(t, sess.Status().Initializing)

	h.clock.Set(mondayAt(10, 0))
	closed := testutil.ClosedEntry(user.ID, mondayAt(9, 0), time.Hour)
	h.entries.Set(closed)
	require.NoError(t, sess.RefreshEntries(context.Background()))

	st = sess.Status()
	assert.Equal(t, reconcile.InWindow, st.Classification)
	assert.False(t, st.Initializing)
	assert.False(t, st.JustInTime)
	assert.Equal(t, "00:00:00", st.Started)
	assert.Empty(t, st.TimeRef)
	assert.Nil(t, st.EntryStatus)
	assert.Equal(t, "01:00:00", st.TotalHours)

	sess.Tick(mondayAt(17, 30))
	assert.Equal(t, reconcile.Idle, sess.Status().Classification)
}

func TestSession_NoScheduleToday(t *testing.T) {
	user := mondayUser()
	saturday := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	h := newHarness(saturday, user)

	sess := h.session(t, user.ID, "")
	require.NoError(t, sess.Start(context.Background()))

	st := sess.Status()
	assert.Equal(t, "America/Caracas", st.Timezone)
	assert.Equal(t, reconcile.Idle, st.Classification)
	assert.Nil(t, st.ValidStartLocal)
	assert.False(t, st.StartedEarly)
	assert.Equal(t, 0, h.notifier.Count())
}

func TestSession_FetchFailures(t *testing.T) {
	t.Run("user failure fails the load", func(t *testing.T) {
		h := newHarness(mondayAt(9, 3), mondayUser())
		h.users.fn = func(int) (*domain.User, error) { return nil, errors.New("boom") }

		sess := h.session(t, 1, "UTC")
		err := sess.Start(context.Background())
		require.Error(t, err)

		st := sess.Status()
		assert.Nil(t, st.User)
		assert.Nil(t, st.ValidStartLocal)
		assert.Equal(t, 0, h.entries.Calls())
	})

	t.Run("user failure on refresh clears the window", func(t *testing.T) {
		user := mondayUser()
		h := newHarness(mondayAt(9, 3), user)
		sess := h.session(t, user.ID, "UTC")
		require.NoError(t, sess.Start(context.Background()))
		require.NotNil(t, sess.Status().ValidStartLocal)

		h.users.fn = func(int) (*domain.User, error) { return nil, errors.New("boom") }
		require.Error(t, sess.Refresh(context.Background()))

		st := sess.Status()
		assert.Nil(t, st.User)
		assert.Nil(t, st.ValidStartLocal)
		assert.Equal(t, reconcile.Idle, st.Classification)
	})

	t.Run("leave and entry failures leave defaults", func(t *testing.T) {
		user := mondayUser()
		h := newHarness(mondayAt(9, 3), user)
		h.leaves.err = errors.New("leave backend down")
		h.entries.err = errors.New("entries backend down")

		sess := h.session(t, user.ID, "UTC")
		require.NoError(t, sess.Start(context.Background()))

		st := sess.Status()
		assert.NotNil(t, st.User)
		assert.False(t, st.HasLeaveRequest)
		assert.False(t, st.EntriesLoaded)
		assert.Equal(t, "00:00:00", st.TotalHours)
		assert.Equal(t, reconcile.JustInTime, st.Classification)
	})
}

func TestSession_ScheduleMissingNotifiesOnce(t *testing.T) {
	user := testutil.NewFixtureFactory().User(testutil.WithSchedules())
	h := newHarness(mondayAt(9, 3), user)

	sess := h.session(t, user.ID, "UTC")
	require.NoError(t, sess.Start(context.Background()))
	require.NoError(t, sess.Refresh(context.Background()))
	require.NoError(t, sess.SetTimezone(context.Background(), "Europe/Madrid"))

	assert.Equal(t, 1, h.notifier.Count())
	assert.Equal(t, reconcile.Idle, sess.Status().Classification)
}

func TestSession_NonEmployeeIsNotNotified(t *testing.T) {
	user := testutil.NewFixtureFactory().User(testutil.WithoutEmployee())
	h := newHarness(mondayAt(9, 3), user)

	sess := h.session(t, user.ID, "UTC")
	require.NoError(t, sess.Start(context.Background()))
	assert.Equal(t, 0, h.notifier.Count())
}

func TestSession_SetTimezoneDiscardsStaleRefresh(t *testing.T) {
	user := mondayUser()
	h := newHarness(mondayAt(9, 3), user)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.users.fn = func(call int) (*domain.User, error) {
		u := *user
		if call == 1 {
			close(entered)
			<-release
			u.Name = "Stale"
			return &u, nil
		}
		u.Name = "Fresh"
		return &u, nil
	}

	sess := h.session(t, user.ID, "America/Caracas")

	done := make(chan error, 1)
	go func() { done <- sess.Refresh(context.Background()) }()
	<-entered

	require.NoError(t, sess.SetTimezone(context.Background(), "Europe/Madrid"))
	close(release)
	require.NoError(t, <-done)

	st := sess.Status()
	assert.Equal(t, "Europe/Madrid", st.Timezone)
	require.NotNil(t, st.User)
	assert.Equal(t, "Fresh", st.User.Name)
	require.NotNil(t, st.ValidStartLocal)
	assert.Equal(t, mondayAt(10, 0), *st.ValidStartLocal)
}

func TestSession_SetTimezoneRejectsUnknownZone(t *testing.T) {
	h := newHarness(mondayAt(9, 3), mondayUser())
	sess := h.session(t, 1, "UTC")

	require.Error(t, sess.SetTimezone(context.Background(), "Mars/Olympus"))
	assert.Equal(t, "UTC", sess.Timezone())
}

func TestSession_EntriesChanged(t *testing.T) {
	t.Run("borrows the owner's token outside a request", func(t *testing.T) {
		user := mondayUser()
		h := newHarness(mondayAt(9, 3), user)
		sess := h.session(t, user.ID, "UTC")
		require.NoError(t, sess.Start(context.Background()))

		require.NoError(t, sess.EntriesChanged(context.Background()))
		assert.Equal(t, 2, h.entries.Calls())
		assert.Equal(t, "owner-token", h.entries.LastToken())

		caller := session.WithSession(context.Background(), session.Session{UserID: 9, Token: "caller-token"})
		require.NoError(t, sess.EntriesChanged(caller))
		assert.Equal(t, "caller-token", h.entries.LastToken())
	})

	t.Run("debounces bursts", func(t *testing.T) {
		user := mondayUser()
		h := newHarness(mondayAt(9, 3), user)
		h.opts.RefreshDebounce = 30 * time.Millisecond
		sess := h.session(t, user.ID, "UTC")
		require.NoError(t, sess.Start(context.Background()))

		for i := 0; i < 5; i++ {
			require.NoError(t, sess.EntriesChanged(context.Background()))
		}

		assert.Eventually(t, func() bool { return h.entries.Calls() == 2 }, time.Second, 5*time.Millisecond)
		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, 2, h.entries.Calls())
		assert.Equal(t, "owner-token", h.entries.LastToken())
	})

	t.Run("close drops a pending debounced refresh", func(t *testing.T) {
		user := mondayUser()
		h := newHarness(mondayAt(9, 3), user)
		h.opts.RefreshDebounce = 30 * time.Millisecond
		sess := h.session(t, user.ID, "UTC")
		require.NoError(t, sess.Start(context.Background()))

		for i := 0; i < 3; i++ {
			require.NoError(t, sess.EntriesChanged(context.Background()))
			time.Sleep(10 * time.Millisecond)
		}
		sess.Close()

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 1, h.entries.Calls())
	})

	t.Run("no-op before the user is known", func(t *testing.T) {
		h := newHarness(mondayAt(9, 3), mondayUser())
		sess := h.session(t, 1, "UTC")

		require.NoError(t, sess.EntriesChanged(context.Background()))
		assert.Equal(t, 0, h.entries.Calls())
	})
}

func TestSession_Close(t *testing.T) {
	user := mondayUser()
	h := newHarness(mondayAt(9, 3), user)
	h.opts.TickInterval = 10 * time.Millisecond

	sess, err := service.NewSession(user.ID, "UTC", owner, h.sources(), h.notifier, h.opts, nil)
	require.NoError(t, err)
	require.NoError(t, sess.Start(context.Background()))

	sess.Close()
	sess.Close()

	select {
	case <-sess.Done():
	default:
		t.Fatal("session not done after Close")
	}

	calls := h.entries.Calls()
	require.NoError(t, sess.EntriesChanged(context.Background()))
	assert.Equal(t, calls, h.entries.Calls())
	assert.Error(t, sess.Start(context.Background()))
	assert.Error(t, sess.SetTimezone(context.Background(), "Europe/Madrid"))
}

func TestSession_WeekRange(t *testing.T) {
	user := mondayUser()
	wednesday := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	h := newHarness(wednesday, user)
	h.opts.EntryRange = reconcile.RangeWeek

	sess := h.session(t, user.ID, "UTC")
	require.NoError(t, sess.Start(context.Background()))

	require.Len(t, h.entries.queries, 1)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), h.entries.queries[0].StartTime)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), h.entries.queries[0].EndTime)
}
