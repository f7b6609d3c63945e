package middleware

import (
	"net/http"
	"strings"

	"github.com/kiranshivaraju/deliberate/internal/api/response"
	"golang.org/x/crypto/bcrypt"
)

const keyPrefixLen = 8

// Auth validates API keys against the bcrypt hashes configured at startup.
// Raw keys never live in config or logs.
type Auth struct {
	keyHashes []string
}

// NewAuth creates an Auth middleware accepting the given bcrypt key hashes.
func NewAuth(keyHashes []string) *Auth {
	return &Auth{keyHashes: keyHashes}
}

// Authenticate validates the Bearer token against the configured hashes and
// sets the key prefix in the request context for rate limiting.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractBearerToken(r)
		if rawKey == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if len(rawKey) < keyPrefixLen {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key format", nil)
			return
		}

		var matched bool
		for _, hash := range a.keyHashes {
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawKey)) == nil {
				matched = true
				break
			}
		}
		if !matched {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key", nil)
			return
		}

		r = r.WithContext(setKeyPrefix(r.Context(), rawKey[:keyPrefixLen]))
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
