package middleware

import (
	"fmt"
	"net/http"
	"time"
)

// CacheControl sets a public Cache-Control header on GET responses. Error
// responses are marked no-store so clients do not hold on to them.
func CacheControl(maxAge time.Duration) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(&cacheHeaderWriter{ResponseWriter: w, value: value}, r)
		})
	}
}

type cacheHeaderWriter struct {
	http.ResponseWriter
	value       string
	wroteHeader bool
}

func (c *cacheHeaderWriter) WriteHeader(code int) {
	if !c.wroteHeader {
		c.wroteHeader = true
		if code < http.StatusBadRequest {
			c.Header().Set("Cache-Control", c.value)
		} else {
			c.Header().Set("Cache-Control", "no-store")
		}
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *cacheHeaderWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	return c.ResponseWriter.Write(b)
}
