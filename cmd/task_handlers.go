package cmd

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"evalgo.org/releaseservice/internal/runlog"
	"evalgo.org/releaseservice/internal/task"
)

type taskView struct {
	URI     string    `json:"uri"`
	Source  string    `json:"source"`
	Created time.Time `json:"created"`
	Status  string    `json:"status"`
}

// listTasksHandler returns the task queue ordered by creation time
func (s *server) listTasksHandler(c echo.Context) error {
	tasks, err := s.queue.List(c.Request().Context())
	if err != nil {
		s.logger.WithError(err).Error("Could not list release tasks")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list release tasks")
	}

	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, taskView{
			URI:     t.URI,
			Source:  t.Source,
			Created: t.Created,
			Status:  task.StatusLabel(t.Status),
		})
	}
	return c.JSON(http.StatusOK, views)
}

// clearFailedHandler resets failed tasks so the queue can resume, then
// drains the queue in the background
func (s *server) clearFailedHandler(c echo.Context) error {
	if err := s.queue.ClearFailed(c.Request().Context()); err != nil {
		s.logger.WithError(err).Error("Could not clear failed tasks")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not clear failed tasks")
	}

	username, _ := c.Get("username").(string)
	s.logger.WithField("username", username).Info("Failed tasks cleared, resuming the queue")

	go s.runQueue(runlog.TriggerManual)
	return c.NoContent(http.StatusAccepted)
}

type runsResponse struct {
	Active   []*runlog.RunSession `json:"active"`
	Finished []runlog.RunSession  `json:"finished"`
}

// listRunsHandler returns the recent run history. The from and to query
// parameters (2006-01-02) default to the last seven days.
func (s *server) listRunsHandler(c echo.Context) error {
	to := time.Now()
	from := to.AddDate(0, 0, -7)

	if value := c.QueryParam("from"); value != "" {
		parsed, err := time.Parse("2006-01-02", value)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed from date")
		}
		from = parsed
	}
	if value := c.QueryParam("to"); value != "" {
		parsed, err := time.Parse("2006-01-02", value)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed to date")
		}
		to = parsed
	}

	finished, err := s.runs.Range(from, to)
	if err != nil {
		s.logger.WithError(err).Error("Could not read the run log")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not read the run log")
	}

	return c.JSON(http.StatusOK, runsResponse{
		Active:   s.runs.Active(),
		Finished: finished,
	})
}
