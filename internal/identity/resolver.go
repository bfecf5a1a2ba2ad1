// Package identity canonicalizes foreign URIs against the persistent same-as
// graph and rewrites staging-graph triples to use the canonical identifiers.
package identity

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"evalgo.org/releaseservice/internal/rdf"
	"evalgo.org/releaseservice/internal/sparql"
)

// DefaultKnownDomains are the URI prefixes that never need canonicalization:
// the canonical domain itself, well-known vocabularies and the data domains
// this service is authoritative for.
var DefaultKnownDomains = []string{
	"http://themis.vlaanderen.be",
	"http://data.vlaanderen.be",
	"https://data.vlaanderen.be",
	"http://doris.vlaanderen.be",
	"http://mu.semte.ch/vocabularies",
	"http://nieuwsberichten.vonet.be",
	"http://purl.org",
	"http://vocab.deri.ie",
	"http://www.semanticdesktop.org",
	"http://www.w3.org",
	"http://xmlns.com",
	"share://",
}

// Resolver maps foreign URIs to canonical ones via the same-as graph,
// minting and persisting a fresh canonical URI on first sight.
type Resolver struct {
	client       *sparql.Client
	sameAsGraph  string
	renameDomain string
	knownDomains []string
	logger       *logrus.Entry
}

// NewResolver creates a resolver against the given same-as graph.
// Minted URIs are renameDomain followed by a fresh identifier.
func NewResolver(client *sparql.Client, sameAsGraph, renameDomain string, knownDomains []string, logger *logrus.Entry) *Resolver {
	if knownDomains == nil {
		knownDomains = DefaultKnownDomains
	}
	return &Resolver{
		client:       client,
		sameAsGraph:  sameAsGraph,
		renameDomain: renameDomain,
		knownDomains: knownDomains,
		logger:       logger,
	}
}

// NeedsRename reports whether a URI qualifies for canonicalization.
// The check is a prefix test against the raw URI string; a value that does
// not even parse as a URI is treated as not needing a rename.
func (r *Resolver) NeedsRename(uri string) bool {
	if _, err := url.Parse(uri); err != nil {
		return false
	}
	for _, domain := range r.knownDomains {
		if strings.HasPrefix(uri, domain) {
			return false
		}
	}
	return true
}

// Resolve returns the canonical URI for an original URI. An existing mapping
// is reused; otherwise a fresh canonical URI is minted and the mapping is
// persisted. Sequential calls for the same original URI are idempotent.
//
// The lookup and the insert are separate store operations, so two concurrent
// calls for the same URI can both miss and mint distinct canonical URIs.
// The queue runs renaming single-flight, which keeps this out of reach in
// normal operation.
func (r *Resolver) Resolve(ctx context.Context, originalURI string) (string, error) {
	query := fmt.Sprintf(`
		SELECT ?canonical WHERE {
		  GRAPH %s {
		    ?canonical %s %s .
		  }
		} LIMIT 1`,
		rdf.EscapeURI(r.sameAsGraph), rdf.EscapeURI(rdf.OwlSameAs), rdf.EscapeURI(originalURI))

	result, err := r.client.Select(ctx, query)
	if err != nil {
		return "", err
	}

	if bound, ok := result.First("canonical"); ok {
		return bound.Value, nil
	}

	canonicalURI := r.renameDomain + uuid.NewString()

	update := fmt.Sprintf(`
		INSERT DATA {
		  GRAPH %s {
		    %s %s %s .
		  }
		}`,
		rdf.EscapeURI(r.sameAsGraph), rdf.EscapeURI(canonicalURI),
		rdf.EscapeURI(rdf.OwlSameAs), rdf.EscapeURI(originalURI))

	if err := r.client.Update(ctx, update); err != nil {
		return "", err
	}

	r.logger.WithFields(logrus.Fields{
		"original":  originalURI,
		"canonical": canonicalURI,
	}).Debug("Minted canonical URI")

	return canonicalURI, nil
}
