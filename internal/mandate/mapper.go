// Package mandate resolves role-holder references in a staging graph to their
// canonical, date-valid counterparts.
//
// The resolution chain has three steps: find the meeting date recorded in the
// staging graph, map each referenced role holder to its canonical person via
// the same-as graph, then pick the canonical role-holder record for that
// person that was active on the meeting date.
package mandate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"evalgo.org/releaseservice/internal/domain"
	"evalgo.org/releaseservice/internal/rdf"
	"evalgo.org/releaseservice/internal/sparql"
)

// Mapper rewrites qualified-association references inside a staging graph
type Mapper struct {
	client      *sparql.Client
	sameAsGraph string
	publicGraph string
	logger      *logrus.Entry
}

// NewMapper creates a mapper reading canonical data from the public graph and
// person identities from the same-as graph
func NewMapper(client *sparql.Client, sameAsGraph, publicGraph string, logger *logrus.Entry) *Mapper {
	return &Mapper{
		client:      client,
		sameAsGraph: sameAsGraph,
		publicGraph: publicGraph,
		logger:      logger,
	}
}

// RemapRoleHolders replaces every role-holder reference in the graph with the
// canonical role holder valid on the graph's meeting date.
//
// Without a meeting date the whole step is a no-op: generic renaming of the
// graph still proceeds, only the temporal remap is skipped. A reference that
// cannot be resolved is logged and skipped; only store errors abort the
// operation.
func (m *Mapper) RemapRoleHolders(ctx context.Context, graph string) error {
	meetingDate, found, err := m.meetingDate(ctx, graph)
	if err != nil {
		return err
	}
	if !found {
		m.logger.WithField("graph", graph).Info("No meeting date found, skipping role-holder remapping")
		return nil
	}

	references, err := m.roleHolderReferences(ctx, graph)
	if err != nil {
		return err
	}

	for _, reference := range references {
		person, ok, err := m.canonicalPerson(ctx, reference)
		if err != nil {
			return err
		}
		if !ok {
			m.logger.WithField("reference", reference).Info("No canonical person known for role-holder reference, skipping")
			continue
		}

		roleHolder, ok, err := m.canonicalRoleHolder(ctx, person, meetingDate)
		if err != nil {
			return err
		}
		if !ok {
			m.logger.WithFields(logrus.Fields{
				"person":      person,
				"meetingDate": meetingDate,
			}).Info("No role holder active on the meeting date, skipping")
			continue
		}

		if err := m.rewriteReference(ctx, graph, reference, roleHolder); err != nil {
			return err
		}

		m.logger.WithFields(logrus.Fields{
			"reference":  reference,
			"roleHolder": roleHolder,
		}).Debug("Remapped role-holder reference")
	}

	return nil
}

// meetingDate finds the planned start of the meeting recorded in the graph.
// Each staging graph is expected to describe exactly one meeting.
func (m *Mapper) meetingDate(ctx context.Context, graph string) (time.Time, bool, error) {
	query := fmt.Sprintf(`
		SELECT ?meetingDate WHERE {
		  GRAPH %s {
		    ?meeting a %s ;
		      %s ?meetingDate .
		  }
		} LIMIT 1`,
		rdf.EscapeURI(graph), rdf.EscapeURI(rdf.BesluitMeetingActivity), rdf.EscapeURI(rdf.BesluitPlannedStart))

	result, err := m.client.Select(ctx, query)
	if err != nil {
		return time.Time{}, false, err
	}

	bound, ok := result.First("meetingDate")
	if !ok {
		return time.Time{}, false, nil
	}

	date, err := rdf.ParseDateTime(bound.Value)
	if err != nil {
		return time.Time{}, false, domain.NewOperationError("remap-role-holders", "unparseable meeting date", err)
	}
	return date, true, nil
}

// roleHolderReferences returns the distinct objects of the
// qualified-association relation inside the graph
func (m *Mapper) roleHolderReferences(ctx context.Context, graph string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT ?reference WHERE {
		  GRAPH %s {
		    ?s %s ?reference .
		  }
		}`,
		rdf.EscapeURI(graph), rdf.EscapeURI(rdf.ProvQualifiedAssociation))

	result, err := m.client.Select(ctx, query)
	if err != nil {
		return nil, err
	}

	references := make([]string, 0, len(result.Results.Bindings))
	for _, binding := range result.Results.Bindings {
		if bound, ok := binding["reference"]; ok {
			references = append(references, bound.Value)
		}
	}
	return references, nil
}

// canonicalPerson resolves a role-holder reference to its canonical person
// URI via a reverse lookup in the same-as graph. This lookup only reads and
// never mints: an absent mapping means the reference is unmappable.
func (m *Mapper) canonicalPerson(ctx context.Context, reference string) (string, bool, error) {
	query := fmt.Sprintf(`
		SELECT ?person WHERE {
		  GRAPH %s {
		    ?person %s %s .
		  }
		} LIMIT 1`,
		rdf.EscapeURI(m.sameAsGraph), rdf.EscapeURI(rdf.DctRelation), rdf.EscapeURI(reference))

	result, err := m.client.Select(ctx, query)
	if err != nil {
		return "", false, err
	}

	bound, ok := result.First("person")
	if !ok {
		return "", false, nil
	}
	return bound.Value, true, nil
}

// canonicalRoleHolder selects the canonical role-holder record for a person
// that was active on the meeting date: validFrom strictly before the date and
// validTo after it or absent (still active). The store picks arbitrarily if
// the data holds more than one match.
func (m *Mapper) canonicalRoleHolder(ctx context.Context, person string, meetingDate time.Time) (string, bool, error) {
	date := rdf.DateTimeLiteral(meetingDate).Format()
	query := fmt.Sprintf(`
		SELECT ?roleHolder WHERE {
		  GRAPH %s {
		    ?roleHolder a %s ;
		      %s %s ;
		      %s ?start .
		    ?governingBody a %s ;
		      %s ?roleHolder .
		    OPTIONAL { ?roleHolder %s ?end . }
		    FILTER (?start < %s)
		    FILTER (?end > %s || !bound(?end))
		  }
		} LIMIT 1`,
		rdf.EscapeURI(m.publicGraph),
		rdf.EscapeURI(rdf.MandaatRoleHolder),
		rdf.EscapeURI(rdf.MandaatAliasOf), rdf.EscapeURI(person),
		rdf.EscapeURI(rdf.MandaatStart),
		rdf.EscapeURI(rdf.BesluitGoverningBody),
		rdf.EscapeURI(rdf.ProvHadMember),
		rdf.EscapeURI(rdf.MandaatEnd),
		date, date)

	result, err := m.client.Select(ctx, query)
	if err != nil {
		return "", false, err
	}

	bound, ok := result.First("roleHolder")
	if !ok {
		return "", false, nil
	}
	return bound.Value, true, nil
}

// rewriteReference replaces every occurrence of the reference as object of
// the qualified-association relation within the graph
func (m *Mapper) rewriteReference(ctx context.Context, graph, oldReference, newReference string) error {
	relation := rdf.EscapeURI(rdf.ProvQualifiedAssociation)
	update := fmt.Sprintf(`
		DELETE {
		  GRAPH %s {
		    ?s %s %s .
		  }
		}
		INSERT {
		  GRAPH %s {
		    ?s %s %s .
		  }
		}
		WHERE {
		  GRAPH %s {
		    ?s %s %s .
		  }
		}`,
		rdf.EscapeURI(graph), relation, rdf.EscapeURI(oldReference),
		rdf.EscapeURI(graph), relation, rdf.EscapeURI(newReference),
		rdf.EscapeURI(graph), relation, rdf.EscapeURI(oldReference))

	return m.client.Update(ctx, update)
}
