package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const googleCredentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS"

// ApplyEnvironment performs the side effects configuration implies. When Google
// credentials are supplied inline as JSON and no credentials file exists, the
// JSON is written under the work root and GOOGLE_APPLICATION_CREDENTIALS is
// pointed at it.
func ApplyEnvironment(cfg *Config) error {
	g := &cfg.TTS.Google

	if g.CredentialsFile != "" {
		if _, err := os.Stat(g.CredentialsFile); err == nil {
			log.Debug().Str("path", g.CredentialsFile).Msg("config.ApplyEnvironment: using existing google credentials file")
			return nil
		}
		log.Warn().Str("path", g.CredentialsFile).Msg("config.ApplyEnvironment: google credentials file not found")
	}

	raw := strings.TrimSpace(g.CredentialsJSON)
	if raw == "" {
		return nil
	}
	if !strings.HasPrefix(raw, "{") {
		log.Warn().Msg("config.ApplyEnvironment: inline google credentials are not JSON, skipping")
		return nil
	}

	path := filepath.Join(cfg.WorkRoot(), "google_credentials.json")
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		return fmt.Errorf("writing google credentials: %w", err)
	}
	if err := os.Setenv(googleCredentialsEnv, path); err != nil {
		return fmt.Errorf("setting %s: %w", googleCredentialsEnv, err)
	}
	g.CredentialsFile = path
	log.Info().Str("path", path).Int("bytes", len(raw)).Msg("config.ApplyEnvironment: wrote google credentials")
	return nil
}
