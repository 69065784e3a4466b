package util

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

// EnvironmentFloat returns the parsed float value of the variable or the fallback
// if it is unset or malformed
func EnvironmentFloat(name string, fallback float64) float64 {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}

	return fallback
}

func EnvironmentInt(name string, fallback int) int {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}

	return fallback
}

func EnvironmentDuration(name string, fallback time.Duration) time.Duration {
	if val := os.Getenv(name); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}

	return fallback
}

func EnvironmentBool(name string, fallback bool) bool {
	switch strings.ToUpper(os.Getenv(name)) {
	case "YES", "TRUE", "1":
		return true
	case "NO", "FALSE", "0":
		return false
	}

	return fallback
}
