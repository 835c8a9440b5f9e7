package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/printhub/printhub-api/internal/pkg/errorhandler"
)

// Recover turns panics into a logged 500.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				errorhandler.Panic(r.Context(), w, rec, string(debug.Stack()))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
