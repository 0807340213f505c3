package middleware

import (
	"net/http"
)

// CORS enforces the origin allow-list. The Access-Control-Allow-Origin
// header echoes the request's Origin only when it is a member of the
// allow-list; a non-member gets no echo, which browsers treat as a denial.
// The allowed-methods and allowed-headers values are fixed and sent
// regardless of origin.
//
// OPTIONS pre-flights are answered immediately after the headers are set,
// before routing or any validation runs.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
