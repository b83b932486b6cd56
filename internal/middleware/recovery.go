package middleware

import (
	"net/http"
	"runtime/debug"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/pkg/apierror"
)

// Recovery is a middleware that recovers from panics.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.Error("[Recovery] Panic on %s %s req=%s: %v\n%s",
					r.Method, r.URL.Path, GetRequestID(r.Context()), err, debug.Stack())
				writeError(w, apierror.InternalError("internal server error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
