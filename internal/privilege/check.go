// Package privilege reports whether the agent runs with administrator rights.
package privilege

import "log/slog"

// LogStatus records the agent's privilege level. Installers that need
// elevation fall through to the elevated launch strategy when it is false.
func LogStatus(logger *slog.Logger) bool {
	elevated := IsElevated()
	if elevated {
		logger.Info("running with elevated privileges")
	} else {
		logger.Info("running without elevated privileges, installers may prompt for elevation")
	}
	return elevated
}
