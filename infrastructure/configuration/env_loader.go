package configuration

import (
	"bufio"
	"os"
	"strings"

	"skypress/infrastructure/logger"
)

// LoadEnvFromFile loads KEY=VALUE pairs from one or more files (e.g.,
// config.env, .env). Lines starting with # and empty lines are skipped, and
// variables already present in the OS environment are never overridden.
// Missing files are fine; any other read problem is logged and the remaining
// files are still processed.
func LoadEnvFromFile(paths ...string) {
	for _, p := range paths {
		applied, err := applyEnvFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			logger.GetLogger().WithField("file", p).WithField("error", err).
				Warn("Skipping unreadable env file")
			continue
		}
		if applied > 0 {
			logger.GetLogger().WithField("file", p).WithField("applied", applied).
				Info("Loaded environment from file")
		}
	}
}

func applyEnvFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	applied := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		// Supports KEY=VALUE and KEY="VALUE".
		val = strings.Trim(strings.TrimSpace(val), "\"'")
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, val); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, scanner.Err()
}
