package intent

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/kballard/go-shellquote"
)

// ErrUnknownRebootReason is returned for reboot targets the helper does not know.
var ErrUnknownRebootReason = errors.New("intent:shell - unknown reboot reason")

// Reboot targets accepted by RebootCommand. An empty reason is a normal reboot.
const (
	RebootNormal     = ""
	RebootUserspace  = "userspace"
	RebootBootloader = "bootloader"
	RebootDownload   = "download"
	RebootEDL        = "edl"
	RebootRecovery   = "recovery"
)

// StartCommand prefixes the encoded descriptor with "am start --user <id>".
func StartCommand(userID int, d *LaunchDescriptor) []string {
	args := []string{"am", "start", "--user", strconv.Itoa(userID)}
	return append(args, Encode(d)...)
}

// JoinShell joins tokens into one command line, quoting every token that a
// POSIX shell would otherwise split or interpret.
func JoinShell(tokens []string) string {
	return shellquote.Join(tokens...)
}

// RelaunchCommand starts d after a one second delay, so the caller can exit
// before its replacement comes up.
func RelaunchCommand(userID int, d *LaunchDescriptor) string {
	return fmt.Sprintf("run_delay 1 %s", shellquote.Join(JoinShell(StartCommand(userID, d))))
}

// RebootCommand returns the shell command that reboots into reason.
func RebootCommand(reason string) (string, error) {
	switch reason {
	case RebootRecovery:
		return "/system/bin/reboot recovery", nil
	case RebootNormal, RebootUserspace, RebootBootloader, RebootDownload, RebootEDL:
		return fmt.Sprintf("/system/bin/svc power reboot %s || /system/bin/reboot %s", reason, reason), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRebootReason, reason)
	}
}
