// Package api exposes the operator HTTP endpoints: override windows, the
// operating mode, the cycle log, health and metrics.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/kilianp07/energyiot/core/logger"
	"github.com/kilianp07/energyiot/core/store"
	"github.com/kilianp07/energyiot/infra/cyclelog"
)

// Deps carries the collaborators behind the routes. Cycles and Metrics
// are optional.
type Deps struct {
	Store       store.Store
	Cycles      cyclelog.Store
	Metrics     http.Handler
	Token       string
	CORSOrigins []string
	Log         logger.Logger
	Now         func() time.Time
}

// NewRouter builds the API handler.
func NewRouter(d Deps) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}

	a := r.PathPrefix("/api").Subrouter()
	a.Use(bearer(d.Token))
	a.Handle("/override", NewOverrideHandler(d.Store, d.Log, d.Now)).Methods(http.MethodGet, http.MethodPost)
	mh := NewModeHandler(d.Store, d.Log)
	a.Handle("/mode", mh).Methods(http.MethodGet, http.MethodPost)
	if d.Cycles != nil {
		a.Handle("/cycles", NewCycleLogHandler(d.Cycles)).Methods(http.MethodGet)
	}

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}

// bearer requires "Authorization: Bearer <token>" when token is non-empty.
func bearer(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type message struct {
	Message string `json:"message"`
}
