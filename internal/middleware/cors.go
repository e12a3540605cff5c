package middleware

import (
	"net/http"
	"slices"

	"github.com/rs/cors"
)

// CORS allows browser clients of the chat API. Tokens travel in the
// Authorization header, so credentials (cookies) are never allowed, and a
// wildcard entry opens the API to any origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		origins = []string{"*"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept", requestIDHeader},
		ExposedHeaders: []string{"Content-Disposition", requestIDHeader, "Retry-After"},
		MaxAge:         600,
	})

	return handler.Handler
}
