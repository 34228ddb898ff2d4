package api

// TaskState is the scheduler-side lifecycle of a submitted task. Submission
// itself is transient; the first observable state is Blocked or Ready.
//
// Transitions: Blocked -> Ready -> Running -> Completed|Failed, with two
// shortcuts: Blocked -> Failed (an input failed, the task never runs) and
// Ready -> Failed (cancelled while queued).
type TaskState uint8

const (
	TaskBlocked   TaskState = iota + 1 // waiting on unresolved inputs
	TaskReady                          // inputs terminal, queued for a slot
	TaskRunning                        // assigned to a worker slot
	TaskCompleted                      // finished, value stored
	TaskFailed                         // finished with error (own, upstream or cancel)
)

func (s TaskState) String() string {
	switch s {
	case TaskBlocked:
		return "blocked"
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is final.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

func (s TaskState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EntryStatus is the lifecycle of one value-store entry. Entries are created
// Pending and move exactly once to Ready or Failed.
type EntryStatus uint8

const (
	StatusPending EntryStatus = iota
	StatusReady
	StatusFailed
)

func (s EntryStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the entry will never change again.
func (s EntryStatus) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

func (s EntryStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
