package task

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"evalgo.org/releaseservice/internal/domain"
	"evalgo.org/releaseservice/internal/rdf"
	"evalgo.org/releaseservice/internal/sparql"
)

// RoleHolderMapper rewrites role-holder references in a staging graph to
// their canonical counterparts.
type RoleHolderMapper interface {
	RemapRoleHolders(ctx context.Context, graph string) error
}

// GraphRenamer replaces foreign URIs in a staging graph with canonical ones.
type GraphRenamer interface {
	RenameGraph(ctx context.Context, graph string) error
}

// FailureNotifier reports a failed release to an operator. Notification is
// best effort: the queue logs delivery errors but never lets them change the
// task outcome.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, task *ReleaseTask, cause error) error
}

// RunObserver is told about release run lifecycle events, e.g. to keep a
// local run history. RunStarted returns an identifier that is handed back on
// RunFinished.
type RunObserver interface {
	RunStarted(task *ReleaseTask, trigger string) string
	RunFinished(id string, err error)
}

// Queue drives release tasks through their lifecycle. All queue state lives
// in the triplestore as status triples, so concurrent service instances
// coordinate through the store rather than through process memory.
type Queue struct {
	client   *sparql.Client
	graph    string
	mapper   RoleHolderMapper
	renamer  GraphRenamer
	notifier FailureNotifier
	observer RunObserver
	logger   *logrus.Entry
}

// NewQueue returns a queue reading and writing tasks in the given graph.
// The notifier may be nil when failure notification is not configured.
func NewQueue(client *sparql.Client, graph string, mapper RoleHolderMapper, renamer GraphRenamer, notifier FailureNotifier, logger *logrus.Entry) *Queue {
	return &Queue{
		client:   client,
		graph:    graph,
		mapper:   mapper,
		renamer:  renamer,
		notifier: notifier,
		logger:   logger,
	}
}

// SetObserver registers a run observer. Must be called before Run.
func (q *Queue) SetObserver(observer RunObserver) {
	q.observer = observer
}

// FindRunning returns the task currently in the preparing state, or nil when
// no release is running. More than one preparing task means the
// single-flight guarantee was violated, which is reported as an
// inconsistency rather than silently picking one.
func (q *Queue) FindRunning(ctx context.Context) (*ReleaseTask, error) {
	query := fmt.Sprintf(`
		SELECT ?task ?source ?created WHERE {
		  GRAPH %s {
		    ?task a %s ;
		      %s %s ;
		      %s ?source ;
		      %s ?created .
		  }
		} ORDER BY ?created`,
		rdf.EscapeURI(q.graph),
		rdf.EscapeURI(rdf.ExtReleaseTask),
		rdf.EscapeURI(rdf.AdmsStatus), rdf.EscapeURI(StatusPreparing),
		rdf.EscapeURI(rdf.DctSource),
		rdf.EscapeURI(rdf.DctCreated))

	result, err := q.client.Select(ctx, query)
	if err != nil {
		return nil, err
	}

	bindings := result.Results.Bindings
	if len(bindings) == 0 {
		return nil, nil
	}
	if len(bindings) > 1 {
		return nil, domain.NewInconsistencyError("single running task",
			fmt.Sprintf("%d tasks are in the preparing state", len(bindings)))
	}
	return taskFromBinding(bindings[0], StatusPreparing)
}

// FindNext returns the oldest task still waiting to run. A failed task
// anywhere in the queue blocks all waiting tasks until an operator clears
// it, so a broken release can never be silently skipped.
func (q *Queue) FindNext(ctx context.Context) (*ReleaseTask, error) {
	query := fmt.Sprintf(`
		SELECT ?task ?source ?created WHERE {
		  GRAPH %s {
		    ?task a %s ;
		      %s %s ;
		      %s ?source ;
		      %s ?created .
		    FILTER NOT EXISTS {
		      ?blocked a %s ;
		        %s %s .
		    }
		  }
		} ORDER BY ?created LIMIT 1`,
		rdf.EscapeURI(q.graph),
		rdf.EscapeURI(rdf.ExtReleaseTask),
		rdf.EscapeURI(rdf.AdmsStatus), rdf.EscapeURI(StatusNotStarted),
		rdf.EscapeURI(rdf.DctSource),
		rdf.EscapeURI(rdf.DctCreated),
		rdf.EscapeURI(rdf.ExtReleaseTask),
		rdf.EscapeURI(rdf.AdmsStatus), rdf.EscapeURI(StatusFailed))

	result, err := q.client.Select(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(result.Results.Bindings) == 0 {
		return nil, nil
	}
	return taskFromBinding(result.Results.Bindings[0], StatusNotStarted)
}

// TryAcquire attempts to move the task from not-started to preparing. The
// update only fires when the not-started triple still exists, and it writes
// a fresh owner token next to the status triple. The confirmation read then
// checks for that exact token, so an instance whose update lost the race
// sees the winner's token and reports the task as claimed.
func (q *Queue) TryAcquire(ctx context.Context, task *ReleaseTask) (bool, error) {
	token := uuid.NewString()

	update := fmt.Sprintf(`
		DELETE {
		  GRAPH %s { %s %s %s . }
		}
		INSERT {
		  GRAPH %s {
		    %s %s %s .
		    %s %s %s .
		  }
		}
		WHERE {
		  GRAPH %s { %s %s %s . }
		}`,
		rdf.EscapeURI(q.graph), rdf.EscapeURI(task.URI), rdf.EscapeURI(rdf.AdmsStatus), rdf.EscapeURI(StatusNotStarted),
		rdf.EscapeURI(q.graph),
		rdf.EscapeURI(task.URI), rdf.EscapeURI(rdf.AdmsStatus), rdf.EscapeURI(StatusPreparing),
		rdf.EscapeURI(task.URI), rdf.EscapeURI(rdf.ExtLockToken), rdf.NewLiteral(token).Format(),
		rdf.EscapeURI(q.graph), rdf.EscapeURI(task.URI), rdf.EscapeURI(rdf.AdmsStatus), rdf.EscapeURI(StatusNotStarted))

	if err := q.client.Update(ctx, update); err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
		SELECT ?token WHERE {
		  GRAPH %s {
		    %s %s %s ;
		      %s ?token .
		  }
		} LIMIT 1`,
		rdf.EscapeURI(q.graph),
		rdf.EscapeURI(task.URI), rdf.EscapeURI(rdf.AdmsStatus), rdf.EscapeURI(StatusPreparing),
		rdf.EscapeURI(rdf.ExtLockToken))

	result, err := q.client.Select(ctx, query)
	if err != nil {
		return false, err
	}
	bound, ok := result.First("token")
	if !ok || bound.Value != token {
		return false, nil
	}
	task.Status = StatusPreparing
	return true, nil
}

// Run releases waiting tasks one after another until the queue is drained,
// a task fails, or another instance claims the next task. The trigger names
// what started this run (delta, startup, manual) for the run history.
// Errors inside a single release are absorbed into the task's failed status;
// only store errors around the queue itself are returned.
func (q *Queue) Run(ctx context.Context, trigger string) error {
	for {
		next, err := q.FindNext(ctx)
		if err != nil {
			return err
		}
		if next == nil {
			q.logger.Debug("no release task waiting")
			return nil
		}

		acquired, err := q.TryAcquire(ctx, next)
		if err != nil {
			return err
		}
		if !acquired {
			q.logger.WithField("task", next.URI).Info("release task was claimed by another instance")
			return nil
		}

		q.execute(ctx, next, trigger)
	}
}

// execute runs one acquired release and persists its outcome
func (q *Queue) execute(ctx context.Context, task *ReleaseTask, trigger string) {
	logger := q.logger.WithFields(logrus.Fields{
		"task":    task.URI,
		"graph":   task.Source,
		"trigger": trigger,
	})
	logger.Info("releasing staging graph")

	var runID string
	if q.observer != nil {
		runID = q.observer.RunStarted(task, trigger)
	}

	if err := q.release(ctx, task); err != nil {
		logger.WithError(err).Error("release failed")
		q.fail(ctx, task, err)
		if q.observer != nil {
			q.observer.RunFinished(runID, err)
		}
		return
	}

	if err := q.setStatus(ctx, task.URI, StatusReady); err != nil {
		logger.WithError(err).Error("release succeeded but the ready status could not be persisted")
		q.fail(ctx, task, err)
		if q.observer != nil {
			q.observer.RunFinished(runID, err)
		}
		return
	}
	task.Status = StatusReady
	if q.observer != nil {
		q.observer.RunFinished(runID, nil)
	}
	logger.Info("staging graph released")
}

func (q *Queue) release(ctx context.Context, task *ReleaseTask) error {
	if err := q.mapper.RemapRoleHolders(ctx, task.Source); err != nil {
		return err
	}
	return q.renamer.RenameGraph(ctx, task.Source)
}

// fail marks the task failed and notifies an operator. Both steps are best
// effort: the cause of the failure has already been logged and a broken
// status write must not mask it.
func (q *Queue) fail(ctx context.Context, task *ReleaseTask, cause error) {
	if err := q.setStatus(ctx, task.URI, StatusFailed); err != nil {
		q.logger.WithError(err).WithField("task", task.URI).Error("could not persist the failed status")
	} else {
		task.Status = StatusFailed
	}

	if q.notifier == nil {
		return
	}
	if err := q.notifier.NotifyFailure(ctx, task, cause); err != nil {
		q.logger.WithError(err).WithField("task", task.URI).Warn("failure notification could not be delivered")
	}
}

// ClearFailed resets every failed task back to not-started so the queue can
// resume. Meant for operators after the underlying problem is resolved.
func (q *Queue) ClearFailed(ctx context.Context) error {
	update := fmt.Sprintf(`
		DELETE {
		  GRAPH %s { ?task %s %s . }
		}
		INSERT {
		  GRAPH %s { ?task %s %s . }
		}
		WHERE {
		  GRAPH %s {
		    ?task a %s ;
		      %s %s .
		  }
		}`,
		rdf.EscapeURI(q.graph), rdf.EscapeURI(rdf.AdmsStatus), rdf.EscapeURI(StatusFailed),
		rdf.EscapeURI(q.graph), rdf.EscapeURI(rdf.AdmsStatus), rdf.EscapeURI(StatusNotStarted),
		rdf.EscapeURI(q.graph),
		rdf.EscapeURI(rdf.ExtReleaseTask),
		rdf.EscapeURI(rdf.AdmsStatus), rdf.EscapeURI(StatusFailed))

	return q.client.Update(ctx, update)
}

// List returns every task in the queue ordered by creation time
func (q *Queue) List(ctx context.Context) ([]ReleaseTask, error) {
	query := fmt.Sprintf(`
		SELECT ?task ?source ?created ?status WHERE {
		  GRAPH %s {
		    ?task a %s ;
		      %s ?status ;
		      %s ?source ;
		      %s ?created .
		  }
		} ORDER BY ?created`,
		rdf.EscapeURI(q.graph),
		rdf.EscapeURI(rdf.ExtReleaseTask),
		rdf.EscapeURI(rdf.AdmsStatus),
		rdf.EscapeURI(rdf.DctSource),
		rdf.EscapeURI(rdf.DctCreated))

	result, err := q.client.Select(ctx, query)
	if err != nil {
		return nil, err
	}

	tasks := make([]ReleaseTask, 0, len(result.Results.Bindings))
	for _, binding := range result.Results.Bindings {
		status := ""
		if bound, ok := binding["status"]; ok {
			status = bound.Value
		}
		task, err := taskFromBinding(binding, status)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, nil
}

// setStatus replaces whatever status the task currently carries and drops
// the owner token of a finished acquisition. One update request keeps the
// delete and insert in a single transaction.
func (q *Queue) setStatus(ctx context.Context, taskURI, status string) error {
	update := fmt.Sprintf(`
		DELETE {
		  GRAPH %s {
		    %s %s ?status .
		    %s %s ?token .
		  }
		}
		INSERT {
		  GRAPH %s { %s %s %s . }
		}
		WHERE {
		  GRAPH %s {
		    %s %s ?status .
		    OPTIONAL { %s %s ?token . }
		  }
		}`,
		rdf.EscapeURI(q.graph),
		rdf.EscapeURI(taskURI), rdf.EscapeURI(rdf.AdmsStatus),
		rdf.EscapeURI(taskURI), rdf.EscapeURI(rdf.ExtLockToken),
		rdf.EscapeURI(q.graph), rdf.EscapeURI(taskURI), rdf.EscapeURI(rdf.AdmsStatus), rdf.EscapeURI(status),
		rdf.EscapeURI(q.graph),
		rdf.EscapeURI(taskURI), rdf.EscapeURI(rdf.AdmsStatus),
		rdf.EscapeURI(taskURI), rdf.EscapeURI(rdf.ExtLockToken))

	return q.client.Update(ctx, update)
}

func taskFromBinding(binding rdf.Binding, status string) (*ReleaseTask, error) {
	taskTerm, ok := binding["task"]
	if !ok {
		return nil, domain.NewInconsistencyError("task binding", "result row misses the task variable")
	}
	sourceTerm, ok := binding["source"]
	if !ok {
		return nil, domain.NewInconsistencyError("task binding", "result row misses the source variable")
	}
	createdTerm, ok := binding["created"]
	if !ok {
		return nil, domain.NewInconsistencyError("task binding", "result row misses the created variable")
	}

	created, err := rdf.ParseDateTime(createdTerm.Value)
	if err != nil {
		return nil, domain.NewInconsistencyError("task creation time",
			fmt.Sprintf("task %s carries an unparseable creation time %q", taskTerm.Value, createdTerm.Value))
	}

	return &ReleaseTask{
		URI:     taskTerm.Value,
		Source:  sourceTerm.Value,
		Created: created,
		Status:  status,
	}, nil
}
