package httpx

import (
	"net/http"

	"github.com/66gu1/authsession/internal/infrastructure/apperr"
)

const defaultMaxBodyBytes = 1 << 16

// MaxBodyBytes caps request bodies at limit bytes, 64 KiB when limit is not
// positive. Credentials and tokens are small, so anything declared larger is
// refused before it is read; bodies without a declared length are cut off by
// the reader and reported by DecodeJSON.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				w.Header().Set("Connection", "close")
				ReturnError(r.Context(), w, apperr.ErrBodyTooLarge(limit))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
