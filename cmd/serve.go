package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"evalgo.org/releaseservice/auth"
	"evalgo.org/releaseservice/internal/helpers"
	"evalgo.org/releaseservice/internal/identity"
	"evalgo.org/releaseservice/internal/mandate"
	"evalgo.org/releaseservice/internal/notify"
	"evalgo.org/releaseservice/internal/runlog"
	"evalgo.org/releaseservice/internal/sparql"
	"evalgo.org/releaseservice/internal/task"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the release service API server",
	Long: `Start the release service API server.

The server listens for delta notifications about new release tasks, runs the
release pipeline (role-holder remapping and URI renaming) against the store,
and exposes an operator API for inspecting and unblocking the task queue.

Environment Variables:
  - STORE_URL / STORE_REPOSITORY: Triplestore location (RDF4J REST protocol)
  - STORE_USERNAME / STORE_PASSWORD: Optional store credentials
  - APPLICATION_GRAPH / SAME_AS_GRAPH / PUBLIC_GRAPH: Working graphs
  - RENAME_DOMAIN / KNOWN_DOMAINS: Canonical URI minting configuration
  - EMAIL_GRAPH / EMAIL_OUTBOX / EMAIL_FROM_ADDRESS /
    EMAIL_TO_ADDRESS_ON_FAILURE: Failure notification outbox
  - API_KEY: Shared key guarding the delta endpoint
  - AUTH_MODE / JWT_SECRET / SESSION_TIMEOUT / DATA_DIR: Operator API
  - PORT / DEBUG / SELECT_BATCH_SIZE`,
	Run: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on")
	serveCmd.Flags().Bool("debug", false, "Enable debug logging")
}

// server bundles the wired components behind the HTTP handlers
type server struct {
	config *serviceConfig
	queue  *task.Queue
	runs   *runlog.RunLog
	users  *auth.UserStore
	logger *logrus.Entry
}

func runServer(cmd *cobra.Command, args []string) {
	config := loadServiceConfig()
	if flagPort, _ := cmd.Flags().GetInt("port"); flagPort != 0 {
		config.Port = flagPort
	}
	if flagDebug, _ := cmd.Flags().GetBool("debug"); flagDebug {
		config.Debug = true
	}
	if config.Debug {
		os.Setenv("DEBUG", "true")
	}

	logger := helpers.ServiceLogger("release-service", version)
	if err := config.validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	logger.WithFields(map[string]interface{}{
		"store_url":   config.StoreURL,
		"repository":  config.StoreRepository,
		"task_graph":  config.TaskGraph,
		"port":        config.Port,
		"auth_mode":   config.AuthMode,
		"api_key_set": config.APIKey != "",
		"debug":       config.Debug,
	}).Info("Configuration loaded")

	client := sparql.NewClient(sparql.Config{
		URL:        config.StoreURL,
		Repository: config.StoreRepository,
		Username:   config.StoreUsername,
		Password:   config.StorePassword,
		BatchSize:  config.BatchSize,
		Debug:      config.Debug,
	}, logger)

	resolver := identity.NewResolver(client, config.SameAsGraph, config.RenameDomain, config.KnownDomains, logger)
	renamer := identity.NewRenamer(client, resolver, logger)
	mapper := mandate.NewMapper(client, config.SameAsGraph, config.PublicGraph, logger)
	mailer := notify.NewMailer(client, config.EmailGraph, config.EmailOutbox, config.EmailFrom, config.EmailTo, logger)

	runs, err := runlog.New(config.DataDir)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize run log")
	}
	if err := runs.Rotate(); err != nil {
		logger.WithError(err).Warn("Run log rotation failed")
	}

	queue := task.NewQueue(client, config.TaskGraph, mapper, renamer, mailer, logger)
	queue.SetObserver(&runRecorder{runs: runs, logger: logger})

	users, err := initializeAuth(&config, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize authentication")
	}

	s := &server{
		config: &config,
		queue:  queue,
		runs:   runs,
		users:  users,
		logger: logger,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/health", s.healthHandler)
	e.POST("/delta", s.deltaHandler, APIKeyMiddleware(config.APIKey))
	if users != nil {
		e.POST("/auth/login", s.loginHandler)
	}

	api := e.Group("/v1/api", AuthMiddleware(config.AuthMode, config.jwtSecret()))
	api.GET("/tasks", s.listTasksHandler)
	api.DELETE("/tasks/failed", s.clearFailedHandler, AdminOnlyMiddleware(config.AuthMode))
	api.GET("/runs", s.listRunsHandler)

	// pick up work that arrived or was interrupted while the service was down
	go s.startupProbe()

	go func() {
		logger.WithField("port", config.Port).Info("Starting HTTP server")
		if err := e.Start(fmt.Sprintf(":%d", config.Port)); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down service...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Error during graceful shutdown")
	}
	logger.Info("Service stopped")
}

// startupProbe logs a release interrupted by a restart and then drains
// whatever is waiting in the queue. A task stuck in the preparing state is
// reported but not touched: the store may be shared with an instance that is
// still working on it.
func (s *server) startupProbe() {
	ctx := context.Background()

	running, err := s.queue.FindRunning(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Startup probe could not inspect the queue")
		return
	}
	if running != nil {
		s.logger.WithFields(map[string]interface{}{
			"task":  running.URI,
			"graph": running.Source,
		}).Warn("A release is already in the preparing state, leaving it alone")
		return
	}

	s.runQueue(runlog.TriggerStartup)
}

// runQueue drains the task queue in the background
func (s *server) runQueue(trigger string) {
	if err := s.queue.Run(context.Background(), trigger); err != nil {
		s.logger.WithError(err).WithField("trigger", trigger).Error("Queue run aborted")
	}
}

func (s *server) healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "release-service",
		"version": version,
	})
}

// runRecorder feeds queue run events into the run log
type runRecorder struct {
	runs   *runlog.RunLog
	logger *logrus.Entry
}

func (r *runRecorder) RunStarted(t *task.ReleaseTask, trigger string) string {
	session, err := r.runs.Start(t.URI, t.Source, trigger)
	if err != nil {
		r.logger.WithError(err).Warn("Could not record run start")
		return ""
	}
	return session.ID
}

func (r *runRecorder) RunFinished(id string, runErr error) {
	if id == "" {
		return
	}
	if runErr != nil {
		if err := r.runs.Fail(id, runErr.Error()); err != nil {
			r.logger.WithError(err).Warn("Could not record run failure")
		}
		return
	}
	if err := r.runs.Complete(id); err != nil {
		r.logger.WithError(err).Warn("Could not record run completion")
	}
}
