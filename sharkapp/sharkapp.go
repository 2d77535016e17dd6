// SPDX-License-Identifier: GPL-3.0-or-later

// Package sharkapp is the example application served by gatewayd.
//
// It exposes a single route, GET /shark, answering with a plain text
// greeting. Any other path yields 404 and any other method yields 405.
package sharkapp

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bassosimone/gateway"
	"github.com/gorilla/mux"
	"github.com/justinas/alice"
)

// Greeting is the body served at /shark.
const Greeting = "Welcome to the shark zone\n"

// App is the application with logging disabled.
var App gateway.Application = New(gateway.DefaultSLogger())

// New returns the application logging each request to logger.
func New(logger gateway.SLogger) *gateway.HTTPHandlerApplication {
	router := mux.NewRouter()
	router.HandleFunc("/shark", shark).Methods(http.MethodGet, http.MethodHead)
	chain := alice.New(logRequests(logger), recoverPanics(logger))
	return gateway.NewHTTPHandlerApplication(chain.Then(router))
}

func shark(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if r.Method == http.MethodHead {
		return
	}
	fmt.Fprint(w, Greeting)
}

// logRequests emits a sharkRequest event for each request.
func logRequests(logger gateway.SLogger) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Info(
				"sharkRequest",
				slog.String("httpMethod", r.Method),
				slog.String("httpPath", r.URL.Path),
				slog.String("remoteAddr", r.RemoteAddr),
			)
			next.ServeHTTP(w, r)
		})
	}
}

// recoverPanics turns a panicking handler into a 500 response.
func recoverPanics(logger gateway.SLogger) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.Info("sharkPanic", slog.Any("panic", v))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
