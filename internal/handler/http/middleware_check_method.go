// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
)

// CheckHTTPMethod returns the router's MethodNotAllowed handler. Chi calls it
// when a path matches but the method does not; it answers 405 with the Allow
// header listing the methods registered for that path across nested routers.
// If no walked route has exactly that pattern (wildcard mounts such as
// /metrics) the response is a plain 404.
func CheckHTTPMethod(router *chi.Mux) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var allowed []string
		_ = chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			if samePath(route, r.URL.Path) && !slices.Contains(allowed, method) {
				allowed = append(allowed, method)
			}
			return nil
		})

		if len(allowed) == 0 {
			writeMessage(w, http.StatusNotFound, "not found")
			return
		}

		slices.Sort(allowed)
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func samePath(route, path string) bool {
	return strings.TrimSuffix(route, "/") == strings.TrimSuffix(path, "/")
}
