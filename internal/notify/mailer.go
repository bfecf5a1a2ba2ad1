// Package notify delivers failure notifications by inserting email resources
// into the store. A mail delivery service watching the outbox folder picks
// them up, so notification needs no SMTP access from this service.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"evalgo.org/releaseservice/internal/rdf"
	"evalgo.org/releaseservice/internal/sparql"
	"evalgo.org/releaseservice/internal/task"
)

const emailResourceBase = "http://themis.vlaanderen.be/id/emails/"

// Mailer writes notification emails into the email graph
type Mailer struct {
	client *sparql.Client
	graph  string
	outbox string
	from   string
	to     string
	logger *logrus.Entry
}

// NewMailer returns a mailer delivering to the given address. An empty to
// address disables delivery: NotifyFailure then only logs.
func NewMailer(client *sparql.Client, graph, outbox, from, to string, logger *logrus.Entry) *Mailer {
	return &Mailer{
		client: client,
		graph:  graph,
		outbox: outbox,
		from:   from,
		to:     to,
		logger: logger,
	}
}

// NotifyFailure places a failure report for the task in the outbox
func (m *Mailer) NotifyFailure(ctx context.Context, failed *task.ReleaseTask, cause error) error {
	if m.to == "" {
		m.logger.WithField("task", failed.URI).Warn("no notification address configured, failure not reported by email")
		return nil
	}

	id := uuid.NewString()
	email := rdf.NewURI(emailResourceBase + id)

	subject := "Release task failed"
	body := fmt.Sprintf(
		"Release task <%s> failed.\n\nStaging graph: %s\nCreated: %s\nError: %s\n\nThe task queue is blocked until the failed task is cleared.",
		failed.URI, failed.Source, failed.Created.Format("2006-01-02 15:04:05 MST"), cause)

	triples := []rdf.Triple{
		{Subject: email, Predicate: rdf.NewURI(rdf.RDFType), Object: rdf.NewURI(rdf.NmoEmail)},
		{Subject: email, Predicate: rdf.NewURI(rdf.MuUUID), Object: rdf.NewLiteral(id)},
		{Subject: email, Predicate: rdf.NewURI(rdf.NmoMessageFrom), Object: rdf.NewLiteral(m.from)},
		{Subject: email, Predicate: rdf.NewURI(rdf.NmoEmailTo), Object: rdf.NewLiteral(m.to)},
		{Subject: email, Predicate: rdf.NewURI(rdf.NmoMessageSubject), Object: rdf.NewLiteral(subject)},
		{Subject: email, Predicate: rdf.NewURI(rdf.NmoPlainTextBody), Object: rdf.NewLiteral(body)},
		{Subject: email, Predicate: rdf.NewURI(rdf.NmoIsPartOf), Object: rdf.NewURI(m.outbox)},
	}

	var statements strings.Builder
	for _, triple := range triples {
		statements.WriteString("\t\t    ")
		statements.WriteString(triple.Format())
		statements.WriteString("\n")
	}

	update := fmt.Sprintf(`
		INSERT DATA {
		  GRAPH %s {
%s		  }
		}`, rdf.EscapeURI(m.graph), statements.String())

	if err := m.client.Update(ctx, update); err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"task":  failed.URI,
		"email": email.Value,
		"to":    m.to,
	}).Info("failure notification placed in outbox")
	return nil
}
