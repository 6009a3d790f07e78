package script

// Status is the lifecycle state of a script as a whole.
type Status int

const (
	StatusError      Status = -1
	StatusNotStarted Status = 0
	StatusQueued     Status = 1
	StatusInProgress Status = 2
	StatusSuccess    Status = 3
)

var statusTransitions = map[Status][]Status{
	StatusNotStarted: {StatusQueued, StatusInProgress},
	StatusQueued:     {StatusInProgress, StatusNotStarted},
	StatusInProgress: {StatusSuccess, StatusError},
	StatusSuccess:    {StatusQueued, StatusInProgress},
	StatusError:      {StatusQueued, StatusInProgress},
}

func (s Status) CanTransition(to Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusNotStarted:
		return "not_started"
	case StatusQueued:
		return "queued"
	case StatusInProgress:
		return "in_progress"
	case StatusSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// LogStatus is the state of one execution attempt. InProgress moves to
// Success or Error exactly once.
type LogStatus int

const (
	LogError      LogStatus = -1
	LogInProgress LogStatus = 1
	LogSuccess    LogStatus = 2
)

func (s LogStatus) Terminal() bool {
	return s == LogSuccess || s == LogError
}

func (s LogStatus) String() string {
	switch s {
	case LogError:
		return "error"
	case LogInProgress:
		return "in_progress"
	case LogSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// HistoryStatus is the outcome stored in the compacted execution history.
type HistoryStatus int

const (
	HistoryError   HistoryStatus = -1
	HistorySuccess HistoryStatus = 0
)
