package sparql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"evalgo.org/releaseservice/internal/domain"
	"evalgo.org/releaseservice/internal/rdf"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("service", "test")
}

func testClient(t *testing.T, serverURL string, batchSize int) *Client {
	t.Helper()
	return NewClient(Config{
		URL:        serverURL,
		Repository: "test-repo",
		BatchSize:  batchSize,
	}, testLogger())
}

func writeBindings(w http.ResponseWriter, vars []string, bindings []rdf.Binding) {
	w.Header().Set("Content-Type", "application/sparql-results+json")
	_ = json.NewEncoder(w).Encode(rdf.QueryResult{
		Head:    rdf.ResultHead{Vars: vars},
		Results: rdf.ResultResults{Bindings: bindings},
	})
}

func TestClientSelect(t *testing.T) {
	var gotQuery, gotAccept string

	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/test-repo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotQuery = string(body)
		gotAccept = r.Header.Get("Accept")
		writeBindings(w, []string{"s"}, []rdf.Binding{
			{"s": rdf.BoundTerm{Type: "uri", Value: "http://example.org/s"}},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := testClient(t, server.URL, 0)
	result, err := client.Select(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }")
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}

	if !strings.Contains(gotQuery, "SELECT ?s") {
		t.Errorf("server received query %q", gotQuery)
	}
	if gotAccept != "application/sparql-results+json" {
		t.Errorf("Accept header = %q", gotAccept)
	}

	bound, ok := result.First("s")
	if !ok || bound.Value != "http://example.org/s" {
		t.Errorf("First() = %+v, %v", bound, ok)
	}
}

func TestClientSelectServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "MALFORMED QUERY", http.StatusBadRequest)
	}))
	defer server.Close()

	client := testClient(t, server.URL, 0)
	_, err := client.Select(context.Background(), "SELECT bogus")
	if err == nil {
		t.Fatal("Select() did not fail on a 400 response")
	}

	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		t.Errorf("Select() error type = %T, want *domain.StoreError", err)
	}
}

func TestClientUpdate(t *testing.T) {
	var gotPath, gotContentType, gotUpdate string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotUpdate = string(body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := testClient(t, server.URL, 0)
	if err := client.Update(context.Background(), "INSERT DATA { <a> <b> <c> }"); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	if gotPath != "/repositories/test-repo/statements" {
		t.Errorf("update path = %q", gotPath)
	}
	if gotContentType != "application/sparql-update" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if !strings.Contains(gotUpdate, "INSERT DATA") {
		t.Errorf("server received update %q", gotUpdate)
	}
}

func TestClientBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	var gotAuth bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotAuth = r.BasicAuth()
		writeBindings(w, nil, nil)
	}))
	defer server.Close()

	client := NewClient(Config{
		URL:        server.URL,
		Repository: "test-repo",
		Username:   "sync",
		Password:   "secret",
	}, testLogger())

	if _, err := client.Select(context.Background(), "SELECT * WHERE { ?s ?p ?o }"); err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if !gotAuth || gotUser != "sync" || gotPass != "secret" {
		t.Errorf("basic auth = %q/%q (%v)", gotUser, gotPass, gotAuth)
	}
}

func TestReadGraphPagination(t *testing.T) {
	// 25 triples, page size 10: expect 3 pages and every triple exactly once
	total := 25
	batch := 10
	var countQueries, pageQueries int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		query := string(body)

		if strings.Contains(query, "COUNT(*)") {
			countQueries++
			writeBindings(w, []string{"count"}, []rdf.Binding{
				{"count": rdf.BoundTerm{Type: "literal", Value: fmt.Sprintf("%d", total)}},
			})
			return
		}

		pageQueries++
		var offset int
		if _, err := fmt.Sscanf(query[strings.Index(query, "OFFSET"):], "OFFSET %d", &offset); err != nil {
			t.Errorf("page query carries no OFFSET: %q", query)
		}

		bindings := []rdf.Binding{}
		for i := offset; i < offset+batch && i < total; i++ {
			bindings = append(bindings, rdf.Binding{
				"subject":   rdf.BoundTerm{Type: "uri", Value: fmt.Sprintf("http://example.org/s/%02d", i)},
				"predicate": rdf.BoundTerm{Type: "uri", Value: rdf.RDFType},
				"object":    rdf.BoundTerm{Type: "literal", Value: fmt.Sprintf("%d", i)},
			})
		}
		writeBindings(w, []string{"subject", "predicate", "object"}, bindings)
	}))
	defer server.Close()

	client := testClient(t, server.URL, batch)
	triples, err := client.ReadGraph(context.Background(), "http://example.org/graphs/staging")
	if err != nil {
		t.Fatalf("ReadGraph() failed: %v", err)
	}

	if len(triples) != total {
		t.Fatalf("ReadGraph() returned %d triples, want %d", len(triples), total)
	}
	if countQueries != 1 || pageQueries != 3 {
		t.Errorf("queries = %d count, %d pages, want 1 and 3", countQueries, pageQueries)
	}

	seen := make(map[rdf.Triple]bool)
	for _, triple := range triples {
		if seen[triple] {
			t.Errorf("triple emitted twice: %v", triple.Format())
		}
		seen[triple] = true
	}
}

func TestReadGraphEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBindings(w, []string{"count"}, []rdf.Binding{
			{"count": rdf.BoundTerm{Type: "literal", Value: "0"}},
		})
	}))
	defer server.Close()

	client := testClient(t, server.URL, 0)
	triples, err := client.ReadGraph(context.Background(), "http://example.org/graphs/empty")
	if err != nil {
		t.Fatalf("ReadGraph() failed: %v", err)
	}
	if len(triples) != 0 {
		t.Errorf("ReadGraph() on empty graph returned %d triples", len(triples))
	}
}
