package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const BypassCacheKey contextKey = "bypass_cache"

// BypassCache marks requests that ask to skip cached entries, either with an
// "X-Cache-Read: off" header or a nocache=1 query parameter.
func BypassCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("X-Cache-Read"), "off") || r.URL.Query().Get("nocache") == "1" {
			r = r.WithContext(context.WithValue(r.Context(), BypassCacheKey, true))
			w.Header().Set("X-Cache-Read", "off")
		}
		next.ServeHTTP(w, r)
	})
}

// WantsFresh reports whether BypassCache marked the request context.
func WantsFresh(ctx context.Context) bool {
	v, _ := ctx.Value(BypassCacheKey).(bool)
	return v
}
