package dialog

import (
	"log/slog"

	"github.com/sipcore/dialogcore/sip"
)

// logger returns the package-level default logger unless a Machine was
// constructed with one of its own, matching sip.DefaultLogger()'s role as
// the ambient logger for transport-agnostic code in this repo.
func logger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return sip.DefaultLogger()
}
