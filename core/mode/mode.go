// Package mode stores the operating mode that selects per-price triggers.
package mode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kilianp07/energyiot/core/logger"
	"github.com/kilianp07/energyiot/core/store"
)

const (
	// SettingName is the settings key holding the mode.
	SettingName = "Mode"
	// Default is used when no mode has been stored.
	Default = "Default"
)

// ErrEmpty is returned when an empty mode is requested.
var ErrEmpty = errors.New("mode parameter empty")

// Current returns the stored mode, falling back to Default when unset.
func Current(ctx context.Context, s store.SettingsStore, log logger.Logger) (string, error) {
	v, ok, err := s.GetSetting(ctx, SettingName)
	if err != nil {
		return "", fmt.Errorf("read mode: %w", err)
	}
	if !ok || strings.TrimSpace(v) == "" {
		log.Infof("no mode set, using %s", Default)
		return Default, nil
	}
	return v, nil
}

// Normalize title-cases each word of m.
func Normalize(m string) string {
	return cases.Title(language.English).String(strings.TrimSpace(m))
}

// Set stores the normalized mode and returns it.
func Set(ctx context.Context, s store.SettingsStore, m string) (string, error) {
	m = Normalize(m)
	if m == "" {
		return "", ErrEmpty
	}
	if err := s.SetSetting(ctx, SettingName, m); err != nil {
		return "", fmt.Errorf("store mode: %w", err)
	}
	return m, nil
}
