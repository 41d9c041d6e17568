// Package domain defines event configuration records and merge semantics.
package domain

import (
	"encoding/json"
	"strings"

	apperrors "github.com/lumenfoto/backstage/internal/errors"
)

// ThemeConfig styles the guest-facing experience shell.
type ThemeConfig struct {
	PrimaryColor    string `json:"primaryColor,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	FontFamily      string `json:"fontFamily,omitempty"`
	LogoURL         string `json:"logoUrl,omitempty"`
}

// ExperienceFlow names the experiences wired into each guest stage.
// Pregate and preshare are optional; an empty id disables the stage.
type ExperienceFlow struct {
	MainExperienceID     string `json:"mainExperienceId,omitempty"`
	PregateExperienceID  string `json:"pregateExperienceId,omitempty"`
	PreshareExperienceID string `json:"preshareExperienceId,omitempty"`
}

// SharingConfig controls the final share screen.
type SharingConfig struct {
	Enabled       bool   `json:"enabled"`
	Title         string `json:"title,omitempty"`
	Message       string `json:"message,omitempty"`
	AllowDownload bool   `json:"allowDownload"`
	AllowEmail    bool   `json:"allowEmail"`
}

// OverlayConfig controls capture overlays applied to guest media.
type OverlayConfig struct {
	FrameURL     string `json:"frameUrl,omitempty"`
	ShowBranding bool   `json:"showBranding"`
}

// Config is one event's guest-facing configuration. The draft copy is
// mutated field by field in the studio; the published copy is only ever
// written by the publish operation.
type Config struct {
	Theme       ThemeConfig    `json:"theme"`
	Experiences ExperienceFlow `json:"experiences"`
	Sharing     SharingConfig  `json:"sharing"`
	Overlays    OverlayConfig  `json:"overlays"`
}

// DefaultConfig returns the configuration a fresh draft starts from.
func DefaultConfig() Config {
	return Config{
		Sharing: SharingConfig{
			Enabled:       true,
			AllowDownload: true,
		},
		Overlays: OverlayConfig{
			ShowBranding: true,
		},
	}
}

// ApplyFieldUpdates applies partial field updates to a configuration.
//
// Keys may be dot paths ("sharing.title") or top-level section names. Object
// values deep-merge into the existing section so updating one nested field
// never clobbers its siblings; scalar values replace.
func ApplyFieldUpdates(cfg Config, updates map[string]any) (Config, error) {
	if len(updates) == 0 {
		return Config{}, apperrors.New(apperrors.CodeConfigInvalidUpdate, "at least one field update is required")
	}

	doc, err := configToMap(cfg)
	if err != nil {
		return Config{}, err
	}

	for key, value := range updates {
		path := strings.Split(key, ".")
		for i := range path {
			path[i] = strings.TrimSpace(path[i])
			if path[i] == "" {
				return Config{}, apperrors.New(apperrors.CodeConfigEmptyFieldPath, "field path segment is empty")
			}
		}
		setPath(doc, path, value)
	}

	merged, err := mapToConfig(doc)
	if err != nil {
		return Config{}, apperrors.Wrap(apperrors.CodeConfigInvalidUpdate, "apply field updates", err)
	}
	return merged, nil
}

func setPath(doc map[string]any, path []string, value any) {
	key := path[0]
	if len(path) == 1 {
		existing, existingIsMap := doc[key].(map[string]any)
		incoming, incomingIsMap := normalizeMap(value)
		if existingIsMap && incomingIsMap {
			deepMerge(existing, incoming)
			return
		}
		doc[key] = value
		return
	}

	child, ok := doc[key].(map[string]any)
	if !ok {
		child = make(map[string]any)
		doc[key] = child
	}
	setPath(child, path[1:], value)
}

// deepMerge folds src into dst, recursing through nested objects so sibling
// fields survive a partial sub-object update.
func deepMerge(dst, src map[string]any) {
	for key, value := range src {
		srcChild, srcIsMap := normalizeMap(value)
		dstChild, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			deepMerge(dstChild, srcChild)
			continue
		}
		dst[key] = value
	}
}

func normalizeMap(value any) (map[string]any, bool) {
	asMap, ok := value.(map[string]any)
	return asMap, ok
}

func configToMap(cfg Config) (map[string]any, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigInvalidUpdate, "encode config", err)
	}
	doc := make(map[string]any)
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigInvalidUpdate, "decode config", err)
	}
	return doc, nil
}

func mapToConfig(doc map[string]any) (Config, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
