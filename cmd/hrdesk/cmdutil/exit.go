package cmdutil

import (
	"github.com/papercomputeco/hrdesk/pkg/errdefs"
)

// Process exit codes. Scripts can tell a refused operation from an outage
// without parsing stderr.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitPermission  = 3
	ExitUnavailable = 4
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errdefs.IsPermission(err):
		return ExitPermission
	case errdefs.IsUnavailable(err):
		return ExitUnavailable
	default:
		return ExitError
	}
}

// Hint is a one-line suggestion printed after err, or "" when there is none.
func Hint(err error) string {
	switch ExitCode(err) {
	case ExitPermission:
		return "permission denied: your role cannot perform this action"
	case ExitUnavailable:
		return "the knowledge desk is temporarily unavailable, try again later"
	default:
		return ""
	}
}
