package domain

// FetchOutcome is the result of one sync attempt. The set of variants is
// closed: Success, DatabaseOnly, NetworkError and Error.
type FetchOutcome interface {
	isFetchOutcome()
	String() string
}

// Success means the remote catalog was fetched and merged into the store.
type Success struct {
	Fetched  int // Records received from the remote
	Inserted int // Records not present before the sync
}

// DatabaseOnly means the fetch failed or was unusable but cached records exist.
type DatabaseOnly struct {
	Cached int
	Reason string
}

// NetworkError means the remote was unreachable and nothing is cached.
type NetworkError struct{}

// Error means the fetch failed for another reason and nothing is cached.
type Error struct {
	Message string
}

func (Success) isFetchOutcome()      {}
func (DatabaseOnly) isFetchOutcome() {}
func (NetworkError) isFetchOutcome() {}
func (Error) isFetchOutcome()        {}

func (Success) String() string      { return "success" }
func (DatabaseOnly) String() string { return "database_only" }
func (NetworkError) String() string { return "network_error" }
func (e Error) String() string      { return "error: " + e.Message }

// IsOffline reports whether the outcome should show the stale-data indicator.
func IsOffline(o FetchOutcome) bool {
	_, ok := o.(DatabaseOnly)
	return ok
}

// OutcomeMessage returns the user-facing message for hard failures, or "".
func OutcomeMessage(o FetchOutcome) string {
	switch v := o.(type) {
	case NetworkError:
		return "Network error. Please check your connection."
	case Error:
		return v.Message
	default:
		return ""
	}
}
