package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/medrag/internal/logger"
)

// publicPaths bypass authentication so probes and scrapers need no key.
var publicPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type apiKey struct {
	secret []byte
	id     string
}

// BearerAuthMiddleware validates Bearer API keys. An empty key list disables
// authentication. Accepted requests record the caller on the wide event as a
// key fingerprint, never the key itself.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	keys := make([]apiKey, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, apiKey{secret: []byte(k), id: keyID(k)})
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized,
					"authorization header must carry a Bearer token")
				return
			}

			id, ok := matchKey(keys, token)
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
				return
			}
			logpkg.AddFields(r.Context(), zap.String("api_key_id", id))
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) || len(h) == len(prefix) {
		return "", false
	}
	return h[len(prefix):], true
}

// matchKey compares against every key in constant time per key.
func matchKey(keys []apiKey, token string) (string, bool) {
	tok := []byte(token)
	id, found := "", false
	for _, k := range keys {
		if subtle.ConstantTimeCompare(tok, k.secret) == 1 {
			id, found = k.id, true
		}
	}
	return id, found
}

// keyID is a short stable fingerprint used to attribute requests in logs.
func keyID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}
