package http

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/allisson/go-pwdhash"

	apperrors "github.com/ederbit/fanout/internal/errors"
	"github.com/ederbit/fanout/internal/httputil"
)

// CustomLoggerMiddleware logs HTTP requests with structured fields.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http request",
			slog.String("request_id", requestid.Get(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// APIKeyAuthMiddleware authenticates admin API requests against a stored
// Argon2id hash of the admin key. The plaintext key travels in the X-API-Key
// header; only the hash is ever configured on the server.
//
// An empty configured hash disables authentication. That is intended for
// local development only.
func APIKeyAuthMiddleware(apiKeyHash string, logger *slog.Logger) gin.HandlerFunc {
	var hasher *pwdhash.PasswordHasher
	if apiKeyHash != "" {
		var err error
		hasher, err = pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
		if err != nil {
			// Only reachable with an invalid policy constant.
			panic(err)
		}
	} else if logger != nil {
		logger.Warn("admin api key hash not configured, authentication disabled")
	}

	return func(c *gin.Context) {
		if hasher == nil {
			c.Next()
			return
		}

		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		ok, err := hasher.Verify([]byte(apiKey), apiKeyHash)
		if err != nil || !ok {
			logger.Debug("api key verification failed")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}
