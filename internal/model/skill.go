// Package model defines the core skill and sync data types.
package model

import "time"

// Skill is the locally cached metadata for one registry skill.
type Skill struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ContentHash string    `json:"content_hash"`
	Version     string    `json:"version,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	SyncedAt    time.Time `json:"synced_at"`
}

// Frequency values for the sync schedule.
const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
	FrequencyManual = "manual"
)

// ValidFrequencies are the allowed sync frequencies.
var ValidFrequencies = map[string]bool{
	FrequencyDaily:  true,
	FrequencyWeekly: true,
	FrequencyManual: true,
}

// IntervalForFrequency maps a frequency to its sync interval.
// Manual frequency has no interval (zero) and is never due.
func IntervalForFrequency(freq string) time.Duration {
	switch freq {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// SyncConfig is the singleton scheduling configuration.
type SyncConfig struct {
	Enabled    bool       `json:"enabled"`
	Frequency  string     `json:"frequency"`
	IntervalMS int64      `json:"interval_ms"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// Sync run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusPartial = "partial"
)

// SyncRun is one append-only entry in the sync history log.
type SyncRun struct {
	RunID        string     `json:"run_id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	Added        int        `json:"added"`
	Updated      int        `json:"updated"`
	Unchanged    int        `json:"unchanged"`
	Failed       int        `json:"failed"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// SyncResult is the outcome of one reconciliation pass.
type SyncResult struct {
	Success         bool   `json:"success"`
	Completed       bool   `json:"completed"` // all pages fetched and applied
	SkillsAdded     int    `json:"skills_added"`
	SkillsUpdated   int    `json:"skills_updated"`
	SkillsUnchanged int    `json:"skills_unchanged"`
	SkillsRemoved   int    `json:"skills_removed"`
	SkillsFailed    int    `json:"skills_failed"`
	DurationMS      int64  `json:"duration_ms"`
	Err             string `json:"error,omitempty"`
}
