package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/energyiot/core/logger"
	"github.com/kilianp07/energyiot/core/model"
	"github.com/kilianp07/energyiot/core/override"
	"github.com/kilianp07/energyiot/core/store"
)

type overrideResponse struct {
	Message  string               `json:"message"`
	Override model.OverrideWindow `json:"override"`
}

// NewOverrideHandler stores an override window from the start and
// interval query parameters.
func NewOverrideHandler(repo store.OverrideRepository, log logger.Logger, now func() time.Time) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		win, err := override.Create(r.Context(), repo, q.Get("start"), q.Get("interval"), now())
		if err != nil {
			log.Errorf("override: %v", err)
			status := http.StatusInternalServerError
			if errors.Is(err, override.ErrInvalidRequest) {
				status = http.StatusBadRequest
			}
			writeJSON(w, status, message{Message: err.Error()})
			return
		}
		log.Infof("override inserted %s - %s", win.Start.Format(time.RFC3339), win.End.Format(time.RFC3339))
		writeJSON(w, http.StatusOK, overrideResponse{Message: "Override Inserted", Override: win})
	})
}
