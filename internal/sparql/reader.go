package sparql

import (
	"context"
	"fmt"
	"strconv"

	"evalgo.org/releaseservice/internal/domain"
	"evalgo.org/releaseservice/internal/rdf"
)

// CountTriples returns the number of triples in a named graph
func (c *Client) CountTriples(ctx context.Context, graph string) (int, error) {
	query := fmt.Sprintf(`
		SELECT (COUNT(*) as ?count)
		WHERE {
		  GRAPH %s {
		    ?s ?p ?o .
		  }
		}`, rdf.EscapeURI(graph))

	result, err := c.Select(ctx, query)
	if err != nil {
		return 0, err
	}

	bound, ok := result.First("count")
	if !ok {
		return 0, domain.NewStoreError("select", "count query returned no binding", nil)
	}
	count, err := strconv.Atoi(bound.Value)
	if err != nil {
		return 0, domain.NewStoreError("select", fmt.Sprintf("unparseable count %q", bound.Value), err)
	}
	return count, nil
}

// ReadGraph returns all triples of a named graph, paging through the store in
// batches of the configured size. The ordered pagination guarantees full
// coverage without duplicate emission, and a stable read order per run.
func (c *Client) ReadGraph(ctx context.Context, graph string) ([]rdf.Triple, error) {
	count, err := c.CountTriples(ctx, graph)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	c.logger.Debugf("reading 0/%d triples from %s", count, graph)

	triples := make([]rdf.Triple, 0, count)
	for offset := 0; offset < count; offset += c.config.BatchSize {
		query := fmt.Sprintf(`
			SELECT ?subject ?predicate ?object WHERE {
			  GRAPH %s {
			    ?subject ?predicate ?object .
			  }
			}
			ORDER BY ?subject ?predicate ?object
			LIMIT %d OFFSET %d`, rdf.EscapeURI(graph), c.config.BatchSize, offset)

		result, err := c.Select(ctx, query)
		if err != nil {
			return nil, err
		}

		page, err := result.Triples()
		if err != nil {
			return nil, domain.NewStoreError("select", "unparseable triple page", err)
		}
		triples = append(triples, page...)

		read := offset + c.config.BatchSize
		if read > count {
			read = count
		}
		c.logger.Debugf("read %d/%d triples from %s", read, count, graph)
	}

	return triples, nil
}
