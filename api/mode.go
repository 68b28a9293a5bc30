package api

import (
	"errors"
	"net/http"

	"github.com/kilianp07/energyiot/core/logger"
	"github.com/kilianp07/energyiot/core/mode"
	"github.com/kilianp07/energyiot/core/store"
)

type modeResponse struct {
	Message string `json:"message,omitempty"`
	Mode    string `json:"mode"`
}

// NewModeHandler reads the mode on GET and stores ?mode= on POST.
func NewModeHandler(s store.SettingsStore, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			m, err := mode.Current(r.Context(), s, log)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, message{Message: err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, modeResponse{Mode: m})
			return
		}
		m, err := mode.Set(r.Context(), s, r.URL.Query().Get("mode"))
		switch {
		case errors.Is(err, mode.ErrEmpty):
			writeJSON(w, http.StatusBadRequest, message{Message: "Mode Parameter empty"})
			return
		case err != nil:
			log.Errorf("set mode: %v", err)
			writeJSON(w, http.StatusInternalServerError, message{Message: err.Error()})
			return
		}
		log.Infof("mode changed to %s", m)
		writeJSON(w, http.StatusOK, modeResponse{Message: "Mode changed to: " + m, Mode: m})
	})
}
