// Package seed bulk-imports assistant profiles from YAML files, so a
// fresh install can be provisioned without clicking through the UI.
package seed

import (
	"fmt"
	"log/slog"
	"os"

	"assistanthub/internal/domain"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Entry is one assistant definition in a seed file.
type Entry struct {
	Name       string `yaml:"name"`
	WebhookURL string `yaml:"webhookUrl"`
}

type seedFile struct {
	Assistants []Entry `yaml:"assistants"`
}

// LoadFile parses a seed file and returns ready-to-insert assistants.
// Entries that fail validation are skipped with a warning, so one bad
// line does not abort the whole import.
func LoadFile(path string, logger *slog.Logger) ([]domain.Assistant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	var out []domain.Assistant
	for _, e := range f.Assistants {
		a := domain.Assistant{
			ID:         uuid.NewString(),
			Name:       e.Name,
			WebhookURL: e.WebhookURL,
		}
		if err := a.Validate(); err != nil {
			logger.Warn("skipping invalid seed entry", "name", e.Name, "err", err)
			continue
		}
		out = append(out, a)
	}

	return out, nil
}
