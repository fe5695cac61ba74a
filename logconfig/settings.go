package logconfig

import (
	"fmt"
	"strings"

	myLogger "github.com/sirupsen/logrus"
)

// This output format is used in the test (has terminal).
func ConfigDebugLogger() {
	myLogger.SetReportCaller(true)
	myLogger.SetLevel(myLogger.DebugLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

func ConfigInfoLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
}

// This output format is used in production.
func ConfigProductionLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.JSONFormatter{})
}

// ConfigLoggerFromLevel picks one of the presets above by name:
// "debug", "info" or "production". Empty means "info".
func ConfigLoggerFromLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		ConfigDebugLogger()
	case "", "info":
		ConfigInfoLogger()
	case "production", "prod":
		ConfigProductionLogger()
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	return nil
}
