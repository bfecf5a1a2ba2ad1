package cmd

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/releaseservice/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in_seconds"`
	Role      string `json:"role"`
}

// loginHandler authenticates an operator and issues a bearer token
func (s *server) loginHandler(c echo.Context) error {
	var request loginRequest
	if err := c.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed login request")
	}
	if request.Username == "" || request.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	user, err := s.users.Authenticate(request.Username, request.Password)
	if err != nil {
		s.logger.WithField("username", request.Username).Info("login rejected")
		// one generic message, so usernames cannot be probed
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	}

	token, err := auth.GenerateToken(*user, s.config.jwtSecret(), s.config.SessionTimeoutHours)
	if err != nil {
		s.logger.WithError(err).Error("failed to generate token")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}

	s.logger.WithFields(map[string]interface{}{
		"username": user.Username,
		"role":     user.Role,
	}).Info("operator logged in")

	return c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresIn: s.config.SessionTimeoutHours * 3600,
		Role:      user.Role,
	})
}
