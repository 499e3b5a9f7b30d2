package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/seekjobs/models"
)

// CallerKey is the context key under which Auth stores the caller's label.
const CallerKey = "caller"

type apiKey struct {
	label  string
	secret []byte
}

// parseKeys accepts "label=secret" or bare "secret" entries. Bare secrets
// are labelled with a short digest so logs and rate-limit buckets never
// carry the key itself.
func parseKeys(entries []string) []apiKey {
	keys := make([]apiKey, 0, len(entries))
	for _, e := range entries {
		label, secret, ok := strings.Cut(e, "=")
		if !ok {
			secret = e
			sum := sha256.Sum256([]byte(e))
			label = "key-" + hex.EncodeToString(sum[:4])
		}
		if secret == "" {
			continue
		}
		keys = append(keys, apiKey{label: label, secret: []byte(secret)})
	}
	return keys
}

// Auth returns API-key authentication middleware.
//
// Supports two header styles:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// On success the key's label is stored under CallerKey. If no usable key is
// configured the middleware is a no-op (open access).
func Auth(entries []string) gin.HandlerFunc {
	keys := parseKeys(entries)
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		presented := extractAPIKey(c)
		if presented == "" {
			unauthorized(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}

		label := match(keys, []byte(presented))
		if label == "" {
			slog.Warn("rejected API key", "ip", c.ClientIP(), "path", c.FullPath())
			unauthorized(c, "invalid API key")
			return
		}

		c.Set(CallerKey, label)
		c.Next()
	}
}

// match compares against every key so timing does not depend on which one
// matched.
func match(keys []apiKey, presented []byte) string {
	found := ""
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k.secret, presented) == 1 && found == "" {
			found = k.label
		}
	}
	return found
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Status: "error",
		Error:  &models.ErrorDetail{Code: models.ErrCodeUnauthorized, Message: msg},
	})
}

// extractAPIKey tries X-API-Key first, then Authorization: Bearer.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
