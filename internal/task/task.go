package task

import (
	"time"
)

// Release task lifecycle statuses. The status triple persisted in the store
// doubles as the mutual-exclusion token: only the holder of the transition
// from StatusNotStarted to StatusPreparing may run the release.
const (
	StatusNotStarted = "http://kanselarij.vo.data.gift/release-task-statuses/not-started"
	StatusPreparing  = "http://kanselarij.vo.data.gift/release-task-statuses/preparing-release"
	StatusReady      = "http://kanselarij.vo.data.gift/release-task-statuses/ready-for-release"
	StatusFailed     = "http://kanselarij.vo.data.gift/release-task-statuses/failed"
)

// ReleaseTask is one unit of staging-to-canonical synchronization work. Tasks
// live in the triplestore, not in memory, so every instance of the service
// observes the same queue.
type ReleaseTask struct {
	URI     string
	Source  string // staging graph holding the data to release
	Created time.Time
	Status  string
}

// StatusLabel returns the short name of a lifecycle status URI for logs and
// notifications.
func StatusLabel(status string) string {
	switch status {
	case StatusNotStarted:
		return "not-started"
	case StatusPreparing:
		return "preparing-release"
	case StatusReady:
		return "ready-for-release"
	case StatusFailed:
		return "failed"
	default:
		return status
	}
}
