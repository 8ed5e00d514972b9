package reconcile

import "time"

// DefaultGrace is how long after the window opens a start still counts as on time
const DefaultGrace = 5 * time.Minute

// State is the on-time classification of a timer
type State int

const (
	Unstarted State = iota
	JustInTime
	InWindow
	Idle
	// Late is never entered. Escalating to it is a product decision that
	// has not been made; see Classifier.Step.
	Late
)

var stateNames = map[State]string{
	Unstarted:  "unstarted",
	JustInTime: "just_in_time",
	InWindow:   "in_window",
	Idle:       "idle",
	Late:       "late",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the state by name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition is the result of one classifier step
type Transition struct {
	From State
	To   State
}

// Changed reports whether the step moved the machine
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Classifier is the on-time state machine. It is not safe for concurrent
// use; the owning session serializes calls.
type Classifier struct {
	grace        time.Duration
	state        State
	initializing bool
	justInTime   bool
}

// NewClassifier creates a classifier in the Unstarted state. A non-positive
// grace falls back to DefaultGrace.
func NewClassifier(grace time.Duration) *Classifier {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Classifier{grace: grace, state: Unstarted}
}

// Step evaluates one tick.
//
//   - no window: Idle until the next schedule fetch
//   - outside [Start, End]: Idle, flags clear
//   - within the grace period: JustInTime, flags set
//   - past grace: InWindow; flags clear only when nothing is clocked in
//
// Being past grace without an open entry is where a "late" escalation
// would go. It is deliberately a no-op.
func (c *Classifier) Step(now time.Time, w *Window, hasOpenEntry bool) Transition {
	from := c.state
	now = UTCClock(now)

	switch {
	case w == nil:
		c.state = Idle
		c.clearFlags()

	case !w.Contains(now):
		c.state = Idle
		c.clearFlags()

	case !now.After(w.Start.Add(c.grace)):
		c.state = JustInTime
		if !c.initializing {
			c.initializing = true
			c.justInTime = true
		}

	default:
		c.state = InWindow
		if !hasOpenEntry && c.justInTime {
			c.clearFlags()
		}
	}

	return Transition{From: from, To: c.state}
}

func (c *Classifier) clearFlags() {
	c.initializing = false
	c.justInTime = false
}

// State returns the current classification
func (c *Classifier) State() State { return c.state }

// Initializing reports the UI "initializing" flag
func (c *Classifier) Initializing() bool { return c.initializing }

// JustInTime reports whether the user entered the window within grace
func (c *Classifier) JustInTime() bool { return c.justInTime }

// Reset returns the machine to Unstarted, e.g. after a timezone change
func (c *Classifier) Reset() {
	c.state = Unstarted
	c.clearFlags()
}
