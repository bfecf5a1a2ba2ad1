package cmd

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"evalgo.org/releaseservice/auth"
	"evalgo.org/releaseservice/internal/domain"
	"evalgo.org/releaseservice/internal/helpers"
	"evalgo.org/releaseservice/internal/identity"
	"evalgo.org/releaseservice/internal/sparql"
)

// serviceConfig collects everything the serve command reads from the
// environment. Graph and domain defaults match the Themis production setup.
type serviceConfig struct {
	Port int

	StoreURL        string
	StoreRepository string
	StoreUsername   string
	StorePassword   string
	BatchSize       int

	TaskGraph    string
	SameAsGraph  string
	PublicGraph  string
	RenameDomain string
	KnownDomains []string

	EmailGraph  string
	EmailOutbox string
	EmailFrom   string
	EmailTo     string

	APIKey              string
	AuthMode            auth.AuthMode
	JWTSecret           string
	SessionTimeoutHours int
	DataDir             string

	Debug bool
}

func loadServiceConfig() serviceConfig {
	return serviceConfig{
		Port: helpers.GetEnvInt("PORT", 8080),

		StoreURL:        helpers.NormalizeURL(helpers.GetEnv("STORE_URL", "http://localhost:7200")),
		StoreRepository: helpers.GetEnv("STORE_REPOSITORY", "themis"),
		StoreUsername:   helpers.GetEnv("STORE_USERNAME", ""),
		StorePassword:   helpers.GetEnv("STORE_PASSWORD", ""),
		BatchSize:       helpers.GetEnvInt("SELECT_BATCH_SIZE", sparql.DefaultBatchSize),

		TaskGraph:    helpers.GetEnv("APPLICATION_GRAPH", "http://mu.semte.ch/graphs/publication-tasks"),
		SameAsGraph:  helpers.GetEnv("SAME_AS_GRAPH", "http://mu.semte.ch/graphs/same-as"),
		PublicGraph:  helpers.GetEnv("PUBLIC_GRAPH", "http://mu.semte.ch/graphs/public"),
		RenameDomain: helpers.GetEnv("RENAME_DOMAIN", "http://themis.vlaanderen.be/id/resource/"),
		KnownDomains: helpers.GetEnvList("KNOWN_DOMAINS", identity.DefaultKnownDomains),

		EmailGraph:  helpers.GetEnv("EMAIL_GRAPH", "http://mu.semte.ch/graphs/system/email"),
		EmailOutbox: helpers.GetEnv("EMAIL_OUTBOX", "http://themis.vlaanderen.be/id/mail-folders/outbox"),
		EmailFrom:   helpers.GetEnv("EMAIL_FROM_ADDRESS", "noreply@vlaanderen.be"),
		EmailTo:     helpers.GetEnv("EMAIL_TO_ADDRESS_ON_FAILURE", ""),

		APIKey:              helpers.GetEnv("API_KEY", ""),
		AuthMode:            auth.AuthMode(helpers.GetEnv("AUTH_MODE", string(auth.AuthModeJWT))),
		JWTSecret:           helpers.GetEnv("JWT_SECRET", ""),
		SessionTimeoutHours: helpers.GetEnvInt("SESSION_TIMEOUT", 24),
		DataDir:             helpers.GetEnv("DATA_DIR", "./data"),

		Debug: helpers.GetEnvBool("DEBUG", false),
	}
}

// validate rejects configuration values the service cannot start with
func (c *serviceConfig) validate() error {
	if c.AuthMode != auth.AuthModeNone && c.AuthMode != auth.AuthModeJWT {
		return domain.NewValidationError("AUTH_MODE", fmt.Sprintf("unknown auth mode %q", c.AuthMode))
	}
	if c.Port < 1 || c.Port > 65535 {
		return domain.NewValidationError("PORT", fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.BatchSize < 1 {
		return domain.NewValidationError("SELECT_BATCH_SIZE", "batch size must be positive")
	}
	return nil
}

// jwtSecret returns the configured signing secret, generating a random one
// when none is set. A generated secret invalidates tokens on restart.
func (c *serviceConfig) jwtSecret() string {
	if c.JWTSecret == "" {
		c.JWTSecret = generateJWTSecret()
	}
	return c.JWTSecret
}

func generateJWTSecret() string {
	b := make([]byte, 64)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate JWT secret")
	}
	return base64.StdEncoding.EncodeToString(b)
}
