// Package runlog keeps a local history of release runs. The triplestore only
// holds the current status of each task; the run log records when a release
// ran, what triggered it, and how it ended, so operators can answer "what
// happened last night" without store access.
package runlog

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Run trigger sources
const (
	TriggerDelta   = "delta"
	TriggerStartup = "startup"
	TriggerManual  = "manual"
)

// Run outcome statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunSession records one release run of a single task
type RunSession struct {
	ID           string     `json:"id"`
	TaskURI      string     `json:"task_uri"`
	Graph        string     `json:"graph"`
	Trigger      string     `json:"trigger"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Duration     int64      `json:"duration_ms"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// DailySummary aggregates the runs of one day
type DailySummary struct {
	Date          string       `json:"date"`
	TotalRuns     int          `json:"total_runs"`
	CompletedRuns int          `json:"completed_runs"`
	FailedRuns    int          `json:"failed_runs"`
	AvgDuration   int64        `json:"avg_duration_ms"`
	Runs          []RunSession `json:"runs"`
}

// RunLog persists run sessions as JSON files under the data directory.
// Finished runs are folded into per-day summary files guarded by a file
// lock, so several service processes may share one data directory.
type RunLog struct {
	dataDir     string
	sessionsDir string
	archiveDir  string

	mu     sync.RWMutex
	active map[string]*RunSession
}

// New creates a run log rooted at dataDir
func New(dataDir string) (*RunLog, error) {
	runsDir := filepath.Join(dataDir, "runs")
	sessionsDir := filepath.Join(runsDir, "sessions")
	archiveDir := filepath.Join(runsDir, "archive")

	if err := os.MkdirAll(sessionsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	if err := os.MkdirAll(archiveDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &RunLog{
		dataDir:     runsDir,
		sessionsDir: sessionsDir,
		archiveDir:  archiveDir,
		active:      make(map[string]*RunSession),
	}, nil
}

// Start records the beginning of a release run
func (rl *RunLog) Start(taskURI, graph, trigger string) (*RunSession, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	session := &RunSession{
		ID:        uuid.NewString(),
		TaskURI:   taskURI,
		Graph:     graph,
		Trigger:   trigger,
		StartTime: time.Now(),
		Status:    StatusRunning,
	}
	rl.active[session.ID] = session

	if err := rl.saveSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Complete finishes a run successfully
func (rl *RunLog) Complete(sessionID string) error {
	return rl.finish(sessionID, StatusCompleted, "")
}

// Fail finishes a run with an error message
func (rl *RunLog) Fail(sessionID, errorMessage string) error {
	return rl.finish(sessionID, StatusFailed, errorMessage)
}

func (rl *RunLog) finish(sessionID, status, errorMessage string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	session, ok := rl.active[sessionID]
	if !ok {
		return fmt.Errorf("run session %s not found", sessionID)
	}

	now := time.Now()
	session.EndTime = &now
	session.Duration = now.Sub(session.StartTime).Milliseconds()
	session.Status = status
	session.ErrorMessage = errorMessage

	if err := rl.saveSession(session); err != nil {
		return err
	}
	if err := rl.addToDailySummary(session); err != nil {
		return err
	}

	delete(rl.active, sessionID)
	return nil
}

// Get retrieves a run session by ID, from memory or from disk
func (rl *RunLog) Get(sessionID string) (*RunSession, error) {
	rl.mu.RLock()
	if session, ok := rl.active[sessionID]; ok {
		rl.mu.RUnlock()
		return session, nil
	}
	rl.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(rl.sessionsDir, sessionID+".json"))
	if err != nil {
		return nil, fmt.Errorf("run session not found: %w", err)
	}

	var session RunSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse run session: %w", err)
	}
	return &session, nil
}

// Active returns the runs currently in progress, newest first
func (rl *RunLog) Active() []*RunSession {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	sessions := make([]*RunSession, 0, len(rl.active))
	for _, session := range rl.active {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	return sessions
}

// Summary retrieves the daily summary for a date in 2006-01-02 form. A date
// without runs yields an empty summary.
func (rl *RunLog) Summary(date string) (*DailySummary, error) {
	data, err := os.ReadFile(rl.summaryFile(date))
	if err != nil {
		if os.IsNotExist(err) {
			return &DailySummary{Date: date, Runs: []RunSession{}}, nil
		}
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	var summary DailySummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return &summary, nil
}

// Range returns all finished runs between two dates, inclusive
func (rl *RunLog) Range(startDate, endDate time.Time) ([]RunSession, error) {
	runs := make([]RunSession, 0)
	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		summary, err := rl.Summary(d.Format("2006-01-02"))
		if err != nil {
			continue
		}
		runs = append(runs, summary.Runs...)
	}
	return runs, nil
}

func (rl *RunLog) summaryFile(date string) string {
	return filepath.Join(rl.dataDir, fmt.Sprintf("runs_%s.json", date))
}

// saveSession writes a session file atomically via a temp file rename
func (rl *RunLog) saveSession(session *RunSession) error {
	sessionFile := filepath.Join(rl.sessionsDir, session.ID+".json")
	tempFile := sessionFile + ".tmp"

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run session: %w", err)
	}
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, sessionFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (rl *RunLog) addToDailySummary(session *RunSession) error {
	date := session.StartTime.Format("2006-01-02")
	lock := flock.New(filepath.Join(rl.dataDir, ".runs.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	summary, err := rl.Summary(date)
	if err != nil {
		return err
	}

	summary.Runs = append(summary.Runs, *session)
	summary.TotalRuns++
	switch session.Status {
	case StatusCompleted:
		summary.CompletedRuns++
	case StatusFailed:
		summary.FailedRuns++
	}

	var totalDuration int64
	for _, run := range summary.Runs {
		totalDuration += run.Duration
	}
	summary.AvgDuration = totalDuration / int64(len(summary.Runs))

	summaryFile := rl.summaryFile(date)
	tempFile := summaryFile + ".tmp"
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, summaryFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Rotate compresses daily summaries older than a week into weekly tar.gz
// archives and removes archives older than four weeks.
func (rl *RunLog) Rotate() error {
	now := time.Now()
	sevenDaysAgo := now.AddDate(0, 0, -7)
	fourWeeksAgo := now.AddDate(0, 0, -28)

	files, err := filepath.Glob(filepath.Join(rl.dataDir, "runs_*.json"))
	if err != nil {
		return fmt.Errorf("failed to list summary files: %w", err)
	}

	weekly := make(map[string][]string)
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		modified := info.ModTime()
		if modified.Before(sevenDaysAgo) && modified.After(fourWeeksAgo) {
			year, week := modified.ISOWeek()
			key := fmt.Sprintf("%d-W%02d", year, week)
			weekly[key] = append(weekly[key], file)
		}
	}

	for week, dailyFiles := range weekly {
		archive := filepath.Join(rl.archiveDir, fmt.Sprintf("runs_%s.tar.gz", week))
		if err := compressFiles(archive, dailyFiles); err != nil {
			return fmt.Errorf("failed to archive week %s: %w", week, err)
		}
		for _, file := range dailyFiles {
			os.Remove(file)
		}
	}

	archives, err := filepath.Glob(filepath.Join(rl.archiveDir, "runs_*-W*.tar.gz"))
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}
	for _, archive := range archives {
		info, err := os.Stat(archive)
		if err != nil {
			continue
		}
		if info.ModTime().Before(fourWeeksAgo) {
			os.Remove(archive)
		}
	}

	return nil
}

func compressFiles(archivePath string, files []string) error {
	outFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer outFile.Close()

	gzWriter := gzip.NewWriter(outFile)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	for _, file := range files {
		if err := addFileToTar(tarWriter, file); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", file, err)
		}
	}
	return nil
}

func addFileToTar(tarWriter *tar.Writer, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.Base(filename)

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tarWriter, file)
	return err
}
