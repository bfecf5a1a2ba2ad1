package cmd

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/releaseservice/internal/rdf"
	"evalgo.org/releaseservice/internal/runlog"
	"evalgo.org/releaseservice/internal/task"
)

// Delta notification payload as sent by the delta notifier: an array of
// changesets, each listing inserted and deleted triples.
type deltaTerm struct {
	Value string `json:"value"`
	Type  string `json:"type"`
}

type deltaTriple struct {
	Subject   deltaTerm `json:"subject"`
	Predicate deltaTerm `json:"predicate"`
	Object    deltaTerm `json:"object"`
}

type changeSet struct {
	Inserts []deltaTriple `json:"inserts"`
	Deletes []deltaTriple `json:"deletes"`
}

// deltaHandler inspects incoming changesets for freshly created release
// tasks and kicks the queue when one can actually start: 202 means a run
// was started, 200 that there was nothing to do (no marker, a release
// already running, or the queue blocked by a failed task). The run itself
// happens in the background: delta notifiers expect a quick answer.
func (s *server) deltaHandler(c echo.Context) error {
	var changeSets []changeSet
	if err := json.NewDecoder(c.Request().Body).Decode(&changeSets); err != nil {
		s.logger.WithError(err).Error("Could not inspect delta message")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not inspect delta message")
	}

	if !containsNewTask(changeSets) {
		return c.NoContent(http.StatusOK)
	}

	running, err := s.queue.FindRunning(c.Request().Context())
	if err != nil {
		s.logger.WithError(err).Error("Could not inspect the task queue")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not inspect the task queue")
	}
	if running != nil {
		s.logger.WithField("task", running.URI).Info("New release task noticed while another release is running")
		return c.NoContent(http.StatusOK)
	}

	next, err := s.queue.FindNext(c.Request().Context())
	if err != nil {
		s.logger.WithError(err).Error("Could not inspect the task queue")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not inspect the task queue")
	}
	if next == nil {
		// the marked task is already claimed, or a failed task blocks the queue
		s.logger.Info("New release task noticed but nothing can start")
		return c.NoContent(http.StatusOK)
	}

	go s.runQueue(runlog.TriggerDelta)
	return c.NoContent(http.StatusAccepted)
}

// containsNewTask reports whether any changeset inserts a task in the
// not-started state
func containsNewTask(changeSets []changeSet) bool {
	for _, set := range changeSets {
		for _, insert := range set.Inserts {
			if insert.Predicate.Value == rdf.AdmsStatus && insert.Object.Value == task.StatusNotStarted {
				return true
			}
		}
	}
	return false
}
