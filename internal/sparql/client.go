// Package sparql implements the triplestore client used by the
// synchronization components. It speaks the RDF4J REST protocol: queries go
// to {url}/repositories/{repo} and updates to the /statements endpoint of the
// same repository.
package sparql

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"evalgo.org/releaseservice/internal/domain"
	"evalgo.org/releaseservice/internal/helpers"
	"evalgo.org/releaseservice/internal/rdf"
)

// DefaultBatchSize is the page size used when reading a whole graph
const DefaultBatchSize = 1000

// Config holds the connection details for a triplestore repository
type Config struct {
	URL        string // store base URL (e.g. "http://localhost:7200")
	Repository string // repository name
	Username   string // optional basic-auth username
	Password   string // optional basic-auth password
	BatchSize  int    // page size for graph reads, DefaultBatchSize when zero
	Debug      bool   // log requests and error responses
}

// Client issues SPARQL queries and updates against a single repository.
// It is safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewClient creates a client for the given repository
func NewClient(config Config, logger *logrus.Entry) *Client {
	config.URL = helpers.NormalizeURL(config.URL)
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	httpClient := &http.Client{}
	if config.Debug {
		httpClient = enableHTTPDebugLogging(httpClient, logger)
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// BatchSize returns the configured graph read page size
func (c *Client) BatchSize() int {
	return c.config.BatchSize
}

func (c *Client) queryEndpoint() string {
	return fmt.Sprintf("%s/repositories/%s", c.config.URL, c.config.Repository)
}

func (c *Client) updateEndpoint() string {
	return c.queryEndpoint() + "/statements"
}

// Select runs a SELECT or ASK query and returns the parsed JSON result
func (c *Client) Select(ctx context.Context, query string) (*rdf.QueryResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queryEndpoint(), strings.NewReader(query))
	if err != nil {
		return nil, domain.NewStoreError("select", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")
	c.authorize(req)

	body, err := c.do(req, "select")
	if err != nil {
		return nil, err
	}

	result, err := rdf.ParseResult(body)
	if err != nil {
		return nil, domain.NewStoreError("select", "unparseable query result", err)
	}
	return result, nil
}

// Ask runs an ASK query and returns the boolean result
func (c *Client) Ask(ctx context.Context, query string) (bool, error) {
	result, err := c.Select(ctx, query)
	if err != nil {
		return false, err
	}
	if result.Boolean == nil {
		return false, domain.NewStoreError("ask", "result carries no boolean", nil)
	}
	return *result.Boolean, nil
}

// Update runs a SPARQL update. A single call is a single store transaction,
// so callers that need delete-and-insert atomicity put both operations in one
// update string.
func (c *Client) Update(ctx context.Context, update string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.updateEndpoint(), strings.NewReader(update))
	if err != nil {
		return domain.NewStoreError("update", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/sparql-update")
	c.authorize(req)

	_, err = c.do(req, "update")
	return err
}

func (c *Client) authorize(req *http.Request) {
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}
}

func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewStoreError(operation, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewStoreError(operation, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return nil, domain.NewStoreError(operation, message, nil)
	}

	return body, nil
}
