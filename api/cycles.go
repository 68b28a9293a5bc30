package api

import (
	"net/http"
	"time"

	"github.com/kilianp07/energyiot/infra/cyclelog"
)

// NewCycleLogHandler returns the cycle log records matching the from, to,
// kind and cycle_id query parameters. Invalid times are ignored.
func NewCycleLogHandler(store cyclelog.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := r.URL.Query()
		q := cyclelog.Query{Kind: v.Get("kind"), CycleID: v.Get("cycle_id")}
		if s := v.Get("from"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := v.Get("to"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []cyclelog.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	})
}
