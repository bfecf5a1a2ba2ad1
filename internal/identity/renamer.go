package identity

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"evalgo.org/releaseservice/internal/rdf"
	"evalgo.org/releaseservice/internal/sparql"
)

// Renamer rewrites the triples of a staging graph so that every subject and
// object URI outside the known domains carries its canonical identifier.
type Renamer struct {
	client   *sparql.Client
	resolver *Resolver
	logger   *logrus.Entry
}

// NewRenamer creates a renamer that resolves URIs through the given resolver
func NewRenamer(client *sparql.Client, resolver *Resolver, logger *logrus.Entry) *Renamer {
	return &Renamer{
		client:   client,
		resolver: resolver,
		logger:   logger,
	}
}

// RenameGraph canonicalizes all triples of the given graph in read order.
// Each affected triple is rewritten in place: the original is deleted and the
// canonicalized triple inserted within a single store transaction. Predicates
// and literals are never touched, so untouched triples survive byte-identical
// and the graph keeps its triple count.
func (r *Renamer) RenameGraph(ctx context.Context, graph string) error {
	triples, err := r.client.ReadGraph(ctx, graph)
	if err != nil {
		return err
	}

	renamed := 0
	for _, triple := range triples {
		replacement := triple
		changed := false

		if triple.Subject.IsURI() && r.resolver.NeedsRename(triple.Subject.Value) {
			canonical, err := r.resolver.Resolve(ctx, triple.Subject.Value)
			if err != nil {
				return err
			}
			replacement.Subject = rdf.NewURI(canonical)
			changed = true
		}

		if triple.Object.IsURI() && r.resolver.NeedsRename(triple.Object.Value) {
			canonical, err := r.resolver.Resolve(ctx, triple.Object.Value)
			if err != nil {
				return err
			}
			replacement.Object = rdf.NewURI(canonical)
			changed = true
		}

		if !changed {
			continue
		}

		if err := r.renameTriple(ctx, graph, triple, replacement); err != nil {
			return err
		}
		renamed++
	}

	r.logger.WithFields(logrus.Fields{
		"graph":   graph,
		"triples": len(triples),
		"renamed": renamed,
	}).Info("Done renaming triples")

	return nil
}

// renameTriple deletes the original triple and inserts its replacement in one
// update request, which the store executes as a single transaction
func (r *Renamer) renameTriple(ctx context.Context, graph string, original, replacement rdf.Triple) error {
	update := fmt.Sprintf(`
		DELETE DATA {
		  GRAPH %s {
		    %s
		  }
		}
		;
		INSERT DATA {
		  GRAPH %s {
		    %s
		  }
		}`,
		rdf.EscapeURI(graph), original.Format(),
		rdf.EscapeURI(graph), replacement.Format())

	return r.client.Update(ctx, update)
}
