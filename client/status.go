package client

// Status is the lifecycle state of a Handle. Values are ordered: a handle
// may only move to a status of strictly higher rank than its current one.
type Status int

const (
	StatusInitialized Status = iota
	StatusAcquiring
	StatusAcquired
	StatusFreeing
	StatusFreed
	StatusCanceled
	StatusTimeout
	StatusFailed
)

var statusNames = [...]string{
	StatusInitialized: "initialized",
	StatusAcquiring:   "acquiring",
	StatusAcquired:    "acquired",
	StatusFreeing:     "freeing",
	StatusFreed:       "freed",
	StatusCanceled:    "canceled",
	StatusTimeout:     "timeout",
	StatusFailed:      "failed",
}

// String returns the lowercase name of the status.
func (s Status) String() string {
	if !s.IsValid() {
		return "unknown"
	}
	return statusNames[s]
}

// IsValid reports whether s is one of the declared statuses.
func (s Status) IsValid() bool {
	return s >= StatusInitialized && s <= StatusFailed
}

// IsTerminal reports whether s is absorbing: freed, canceled, timeout or failed.
func (s Status) IsTerminal() bool {
	return s >= StatusFreed && s <= StatusFailed
}
