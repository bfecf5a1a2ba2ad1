package identity

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"evalgo.org/releaseservice/internal/rdf"
	"evalgo.org/releaseservice/internal/sparql"
)

// mockStore is a minimal stateful triplestore for resolver and renamer tests.
// It understands exactly the queries these components issue: same-as lookups,
// same-as inserts, graph count/page reads and delete-then-insert rewrites.
type mockStore struct {
	t *testing.T

	// canonical URI by original URI
	mappings map[string]string
	// staging graph content, in insertion order
	triples []rdf.Triple

	selects int
	updates int
}

func newMockStore(t *testing.T) *mockStore {
	return &mockStore{
		t:        t,
		mappings: map[string]string{},
	}
}

var (
	sameAsLookupRe = regexp.MustCompile(`\?canonical <http://www\.w3\.org/2002/07/owl#sameAs> <([^>]+)>`)
	sameAsInsertRe = regexp.MustCompile(`<([^>]+)> <http://www\.w3\.org/2002/07/owl#sameAs> <([^>]+)>`)
	offsetRe       = regexp.MustCompile(`LIMIT (\d+) OFFSET (\d+)`)
	graphBlockRe   = regexp.MustCompile(`(?s)(DELETE|INSERT) DATA \{\s*GRAPH <[^>]+> \{\s*(.*?)\s*\}\s*\}`)
)

func (m *mockStore) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/test-repo", m.handleSelect)
	mux.HandleFunc("/repositories/test-repo/statements", m.handleUpdate)
	return httptest.NewServer(mux)
}

func (m *mockStore) client(serverURL string, batchSize int) *sparql.Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return sparql.NewClient(sparql.Config{
		URL:        serverURL,
		Repository: "test-repo",
		BatchSize:  batchSize,
	}, logger.WithField("service", "test"))
}

func (m *mockStore) handleSelect(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	query := string(body)
	m.selects++

	switch {
	case sameAsLookupRe.MatchString(query):
		original := sameAsLookupRe.FindStringSubmatch(query)[1]
		bindings := []rdf.Binding{}
		if canonical, ok := m.mappings[original]; ok {
			bindings = append(bindings, rdf.Binding{
				"canonical": rdf.BoundTerm{Type: "uri", Value: canonical},
			})
		}
		m.writeBindings(w, bindings)

	case strings.Contains(query, "COUNT(*)"):
		m.writeBindings(w, []rdf.Binding{
			{"count": rdf.BoundTerm{Type: "literal", Value: fmt.Sprintf("%d", len(m.triples))}},
		})

	case offsetRe.MatchString(query):
		match := offsetRe.FindStringSubmatch(query)
		var limit, offset int
		_, _ = fmt.Sscanf(match[1], "%d", &limit)
		_, _ = fmt.Sscanf(match[2], "%d", &offset)

		bindings := []rdf.Binding{}
		for i := offset; i < offset+limit && i < len(m.triples); i++ {
			bindings = append(bindings, rdf.Binding{
				"subject":   boundTerm(m.triples[i].Subject),
				"predicate": boundTerm(m.triples[i].Predicate),
				"object":    boundTerm(m.triples[i].Object),
			})
		}
		m.writeBindings(w, bindings)

	default:
		m.t.Errorf("mock store received unexpected query: %s", query)
		http.Error(w, "unexpected query", http.StatusBadRequest)
	}
}

func (m *mockStore) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	update := string(body)
	m.updates++

	if strings.Contains(update, "owl#sameAs") && !strings.Contains(update, "DELETE") {
		match := sameAsInsertRe.FindStringSubmatch(update)
		if match == nil {
			m.t.Errorf("unparseable same-as insert: %s", update)
			http.Error(w, "bad insert", http.StatusBadRequest)
			return
		}
		if existing, ok := m.mappings[match[2]]; ok {
			m.t.Errorf("second mapping minted for %s (had %s, got %s)", match[2], existing, match[1])
		}
		m.mappings[match[2]] = match[1]
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// delete-then-insert rewrite of a staging triple
	blocks := graphBlockRe.FindAllStringSubmatch(update, -1)
	if len(blocks) != 2 || blocks[0][1] != "DELETE" || blocks[1][1] != "INSERT" {
		m.t.Errorf("unparseable rewrite update: %s", update)
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}

	deleted := parseStatement(m.t, blocks[0][2])
	inserted := parseStatement(m.t, blocks[1][2])

	found := false
	for i, triple := range m.triples {
		if triple == deleted {
			m.triples[i] = inserted
			found = true
			break
		}
	}
	if !found {
		m.t.Errorf("rewrite deleted a triple not in the graph: %v", deleted.Format())
	}

	w.WriteHeader(http.StatusNoContent)
}

func (m *mockStore) writeBindings(w http.ResponseWriter, bindings []rdf.Binding) {
	w.Header().Set("Content-Type", "application/sparql-results+json")
	_ = json.NewEncoder(w).Encode(rdf.QueryResult{
		Results: rdf.ResultResults{Bindings: bindings},
	})
}

func boundTerm(term rdf.Term) rdf.BoundTerm {
	switch term.Kind {
	case rdf.TermURI:
		return rdf.BoundTerm{Type: "uri", Value: term.Value}
	default:
		return rdf.BoundTerm{Type: "literal", Value: term.Value, Datatype: term.Datatype, Language: term.Language}
	}
}

// parseStatement reads a single "s p o ." statement in the exact SPARQL
// syntax the components render
func parseStatement(t *testing.T, statement string) rdf.Triple {
	t.Helper()

	terms := []rdf.Term{}
	rest := strings.TrimSpace(statement)
	rest = strings.TrimSuffix(rest, ".")

	for len(strings.TrimSpace(rest)) > 0 {
		rest = strings.TrimSpace(rest)
		var term rdf.Term
		term, rest = parseTerm(t, rest)
		terms = append(terms, term)
	}

	if len(terms) != 3 {
		t.Fatalf("statement %q parsed into %d terms", statement, len(terms))
	}
	return rdf.Triple{Subject: terms[0], Predicate: terms[1], Object: terms[2]}
}

func parseTerm(t *testing.T, input string) (rdf.Term, string) {
	t.Helper()

	if strings.HasPrefix(input, "<") {
		end := strings.Index(input, ">")
		if end < 0 {
			t.Fatalf("unterminated URI in %q", input)
		}
		return rdf.NewURI(input[1:end]), input[end+1:]
	}

	if !strings.HasPrefix(input, `"`) {
		t.Fatalf("unparseable term in %q", input)
	}

	// find the closing unescaped quote
	end := -1
	for i := 1; i < len(input); i++ {
		if input[i] == '\\' {
			i++
			continue
		}
		if input[i] == '"' {
			end = i
			break
		}
	}
	if end < 0 {
		t.Fatalf("unterminated literal in %q", input)
	}

	value := unescapeLiteral(input[1:end])
	rest := input[end+1:]

	if strings.HasPrefix(rest, "^^<") {
		end := strings.Index(rest, ">")
		return rdf.NewTypedLiteral(value, rest[3:end]), rest[end+1:]
	}
	if strings.HasPrefix(rest, "@") {
		tagEnd := strings.IndexAny(rest, " \t\n")
		if tagEnd < 0 {
			tagEnd = len(rest)
		}
		return rdf.NewLangLiteral(value, rest[1:tagEnd]), rest[tagEnd:]
	}
	return rdf.NewLiteral(value), rest
}

var literalUnescaper = strings.NewReplacer(
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\"`, `"`,
	`\\`, `\`,
)

func unescapeLiteral(value string) string {
	return literalUnescaper.Replace(value)
}
