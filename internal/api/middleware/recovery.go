package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"spreadmonitor/pkg/utils"
)

// Recovery recovers from a panic in any handler, logs it via the
// global zap logger with the stack trace, and returns 500 instead of
// letting the panic take down the listener.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				utils.Error("panic recovered in HTTP handler",
					utils.Any("error", err),
					utils.String("path", r.URL.Path),
					utils.String("stack", string(debug.Stack())))

				http.Error(w, fmt.Sprintf("Internal Server Error: %v", err), http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
