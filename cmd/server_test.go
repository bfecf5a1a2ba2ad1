package cmd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"evalgo.org/releaseservice/auth"
	"evalgo.org/releaseservice/internal/rdf"
	"evalgo.org/releaseservice/internal/runlog"
	"evalgo.org/releaseservice/internal/sparql"
	"evalgo.org/releaseservice/internal/task"
)

const testTaskGraph = "http://mu.semte.ch/graphs/publication-tasks"

type releaseRecord struct {
	uri     string
	source  string
	created time.Time
	status  string
	token   string
}

// releaseStore emulates the task queue triples behind the HTTP handlers.
// Handlers kick queue runs in the background, so the store stays tolerant:
// queries it does not recognize get an empty answer instead of a test
// failure.
type releaseStore struct {
	mu      sync.Mutex
	tasks   map[string]*releaseRecord
	selects []string
	updates []string
}

var (
	taskStatusRe = regexp.MustCompile(`<([^>]+)> <http://www\.w3\.org/ns/adms#status> (\?status|<[^>]+>)`)
	taskTokenRe  = regexp.MustCompile(`<([^>]+)> <http://mu\.semte\.ch/vocabularies/ext/lockToken> "([^"]*)"`)
)

func newReleaseStore(records ...releaseRecord) *releaseStore {
	store := &releaseStore{tasks: map[string]*releaseRecord{}}
	for i := range records {
		record := records[i]
		store.tasks[record.uri] = &record
	}
	return store
}

func (s *releaseStore) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/test-repo", s.handleSelect)
	mux.HandleFunc("/repositories/test-repo/statements", s.handleUpdate)
	return httptest.NewServer(mux)
}

func (s *releaseStore) ordered() []*releaseRecord {
	records := make([]*releaseRecord, 0, len(s.tasks))
	for _, record := range s.tasks {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].created.Before(records[j].created) })
	return records
}

func (s *releaseStore) handleSelect(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	query := string(body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selects = append(s.selects, query)

	bindings := []rdf.Binding{}
	switch {
	case strings.Contains(query, "FILTER NOT EXISTS"):
		blocked := false
		for _, record := range s.tasks {
			if record.status == task.StatusFailed {
				blocked = true
			}
		}
		if !blocked {
			for _, record := range s.ordered() {
				if record.status == task.StatusNotStarted {
					bindings = append(bindings, recordBinding(record, false))
					break
				}
			}
		}

	case strings.Contains(query, "?task") && strings.Contains(query, "?status"):
		for _, record := range s.ordered() {
			bindings = append(bindings, recordBinding(record, true))
		}

	case strings.Contains(query, "?task"):
		for _, record := range s.ordered() {
			if record.status == task.StatusPreparing {
				bindings = append(bindings, recordBinding(record, false))
			}
		}

	case strings.Contains(query, "?token"):
		if matches := taskStatusRe.FindStringSubmatch(query); matches != nil {
			if record, ok := s.tasks[matches[1]]; ok && record.status == task.StatusPreparing && record.token != "" {
				bindings = append(bindings, rdf.Binding{
					"token": rdf.BoundTerm{Type: "literal", Value: record.token},
				})
			}
		}
	}

	w.Header().Set("Content-Type", "application/sparql-results+json")
	_ = json.NewEncoder(w).Encode(rdf.QueryResult{
		Results: rdf.ResultResults{Bindings: bindings},
	})
}

func (s *releaseStore) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	update := string(body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)

	if strings.Contains(update, "?task") {
		for _, record := range s.tasks {
			if record.status == task.StatusFailed {
				record.status = task.StatusNotStarted
			}
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	matches := taskStatusRe.FindAllStringSubmatch(update, -1)
	if len(matches) == 3 {
		if record, ok := s.tasks[matches[0][1]]; ok {
			insert := strings.Trim(matches[1][2], "<>")
			guard := matches[2][2]
			if guard == "?status" || record.status == strings.Trim(guard, "<>") {
				record.status = insert
				if tokenMatch := taskTokenRe.FindStringSubmatch(update); tokenMatch != nil {
					record.token = tokenMatch[2]
				} else {
					record.token = ""
				}
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *releaseStore) status(uri string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tasks[uri]
	if !ok {
		return ""
	}
	return record.status
}

func (s *releaseStore) sawSelect(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, query := range s.selects {
		if strings.Contains(query, substr) {
			return true
		}
	}
	return false
}

func (s *releaseStore) selectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selects)
}

func (s *releaseStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func recordBinding(record *releaseRecord, withStatus bool) rdf.Binding {
	binding := rdf.Binding{
		"task":   rdf.BoundTerm{Type: "uri", Value: record.uri},
		"source": rdf.BoundTerm{Type: "uri", Value: record.source},
		"created": rdf.BoundTerm{
			Type:     "typed-literal",
			Datatype: rdf.XSDDateTime,
			Value:    record.created.Format(time.RFC3339),
		},
	}
	if withStatus {
		binding["status"] = rdf.BoundTerm{Type: "uri", Value: record.status}
	}
	return binding
}

// noopPipeline satisfies the queue's mapper and renamer without touching
// any store.
type noopPipeline struct{}

func (noopPipeline) RemapRoleHolders(ctx context.Context, graph string) error { return nil }

func (noopPipeline) RenameGraph(ctx context.Context, graph string) error { return nil }

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("service", "test")
}

func newTestServer(t *testing.T, storeURL string) *server {
	t.Helper()

	logger := testLogger()
	client := sparql.NewClient(sparql.Config{URL: storeURL, Repository: "test-repo"}, logger)
	queue := task.NewQueue(client, testTaskGraph, noopPipeline{}, noopPipeline{}, nil, logger)

	runs, err := runlog.New(t.TempDir())
	if err != nil {
		t.Fatalf("runlog.New() failed: %v", err)
	}

	return &server{
		config: &serviceConfig{
			AuthMode:            auth.AuthModeNone,
			JWTSecret:           "test-secret",
			SessionTimeoutHours: 24,
		},
		queue:  queue,
		runs:   runs,
		logger: logger,
	}
}

// waitFor polls a condition until it holds or the deadline passes. Handlers
// that answer before the queue run finishes are checked through it.
func waitFor(t *testing.T, message string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", message)
}
