// Package helpers provides small utilities shared across the service:
// environment lookups, URL normalization and the service logger.
package helpers

import (
	"os"
	"strconv"
	"strings"
)

// GetEnv returns the value of an environment variable or a fallback
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// GetEnvInt returns an integer environment variable or a fallback.
// Unparseable values fall back as well.
func GetEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// GetEnvBool returns a boolean environment variable or a fallback.
// Accepts the forms strconv.ParseBool accepts (1, t, true, ...).
func GetEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// GetEnvList returns a comma-separated environment variable as a slice,
// trimming whitespace around entries, or a fallback when unset
func GetEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}

// NormalizeURL removes trailing slashes from URLs to prevent double-slash issues
func NormalizeURL(urlStr string) string {
	return strings.TrimRight(urlStr, "/")
}
