package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/ledgerline/ledgerchat/errors"
)

// genericFailureReply matches the relay's transport-failure answer so a
// panic looks no different to the caller than any other unexpected error.
const genericFailureReply = "Something went wrong. Please try again."

// Recovery recovers from panics, logs the stack, and answers with the relay's
// generic 500 degradation.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("request_id", GetRequestID(r.Context())),
						zap.ByteString("stack", debug.Stack()),
					)
					errors.WriteReply(w, http.StatusInternalServerError, genericFailureReply)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
