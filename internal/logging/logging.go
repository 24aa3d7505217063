package logging

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// LogFilePath builds the per-session log file path.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// SessionContext returns a provider that tags records with the session id.
func SessionContext(sessionID string) ContextProvider {
	attr := slog.String("session", sessionID)
	return func() []slog.Attr {
		return []slog.Attr{attr}
	}
}
