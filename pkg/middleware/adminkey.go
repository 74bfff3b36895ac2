package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// AdminKeys authorizes operational endpoints against a fixed key set.
// Only SHA-256 digests of the keys are kept in memory.
type AdminKeys struct {
	hashes [][sha256.Size]byte
}

func NewAdminKeys(keys []string) *AdminKeys {
	ak := &AdminKeys{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			ak.hashes = append(ak.hashes, sha256.Sum256([]byte(k)))
		}
	}
	return ak
}

// Valid compares raw against every configured key in constant time.
func (ak *AdminKeys) Valid(raw string) bool {
	if raw == "" {
		return false
	}
	h := sha256.Sum256([]byte(raw))
	ok := 0
	for i := range ak.hashes {
		ok |= subtle.ConstantTimeCompare(h[:], ak.hashes[i][:])
	}
	return ok == 1
}

// Require rejects requests without a valid key with 401. With no keys
// configured every request gets 403, so admin routes stay closed by default.
func (ak *AdminKeys) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(ak.hashes) == 0 {
			writeJSONError(w, http.StatusForbidden, "admin endpoints are disabled")
			return
		}
		if !ak.Valid(extractKey(r)) {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractKey reads Authorization: Bearer first, then X-API-Key.
func extractKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.Header.Get("X-API-Key")
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
