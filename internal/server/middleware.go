package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/emrgen/wikinote/internal/identity"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const HeaderTenant = "X-Tenant"

// RequestTime logs the duration of every request.
func RequestTime() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logrus.Infof("request time: %s %s %d: %v", r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

// Tenant picks the wiki from the subdomain of the host, or from the tenant header.
func Tenant(domain string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := r.Header.Get(HeaderTenant)
			host := r.Host
			if i := strings.LastIndex(host, ":"); i >= 0 {
				host = host[:i]
			}
			if domain != "" && strings.HasSuffix(host, "."+domain) {
				tenant = strings.TrimSuffix(host, "."+domain)
			}
			if tenant != "" {
				r = r.WithContext(store.WithTenant(r.Context(), tenant))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Requester resolves the caller and stores it in the request context.
func Requester(provider identity.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requester, err := provider.CurrentRequester(r.Context(), r)
			if err != nil {
				writeError(w, err)
				return
			}
			if requester != nil {
				r = r.WithContext(identity.WithRequester(r.Context(), requester))
			}

			next.ServeHTTP(w, r)
		})
	}
}
