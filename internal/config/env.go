package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/pagebrew/internal/logfields"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFile loads variables from the first readable .env file in the working
// directory. Existing process environment variables are not overwritten.
func loadEnvFile() {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load env file", logfields.Path(name), logfields.Error(err))
			continue
		}
		slog.Debug("Loaded environment variables", logfields.Path(name))
		return
	}
}
