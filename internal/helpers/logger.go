package helpers

import (
	"os"

	"github.com/sirupsen/logrus"
)

// ServiceLogger returns a structured logger scoped to the service.
// Every entry carries the service name and version.
func ServiceLogger(service, version string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if GetEnvBool("DEBUG", false) {
		logger.SetLevel(logrus.DebugLevel)
	}

	return logger.WithFields(logrus.Fields{
		"service": service,
		"version": version,
	})
}
