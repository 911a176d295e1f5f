package lifecycle

import "time"

// EdgeFailure records one edge whose evaluation could not complete. The
// batch keeps going; the failure is reported instead of logged and lost.
type EdgeFailure struct {
	EdgeID int64  `json:"edge_id"`
	Kind   string `json:"kind"` // snapshots | patch
	Err    string `json:"error"`
}

// Report summarizes one UpdateEdges pass.
type Report struct {
	Evaluated int           `json:"evaluated"`
	Kept      int           `json:"kept"`
	Faded     int           `json:"faded"`
	Expired   int           `json:"expired"`
	Failed    []EdgeFailure `json:"failed,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// CleanupReport summarizes one retention pass.
type CleanupReport struct {
	Archived  int    `json:"archived"`
	Deleted   int64  `json:"deleted"`
	ObjectKey string `json:"object_key,omitempty"`
}
