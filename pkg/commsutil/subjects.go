package commsutil

import "fmt"

// Default COMMS subjects.
const (
	// SubjectHelper is the privileged helper's request/reply subject.
	SubjectHelper = "rootbridge.helper.v1"
	// SubjectBridge accepts launch, reboot and permission requests for the bridge.
	SubjectBridge = "rootbridge.bridge.v1"
	// SubjectActivityResult carries {token, code, data} activity results.
	SubjectActivityResult = "rootbridge.result"
	// SubjectPermissionPrompt carries {token, permissions} prompts to the OS side.
	SubjectPermissionPrompt = "rootbridge.permission.prompt"
	// SubjectPermissionResult carries {token, permissions, grants} answers.
	SubjectPermissionResult = "rootbridge.permission.result"
	// SubjectChanged carries zero-payload change notifications.
	SubjectChanged = "rootbridge.changed"
	// SubjectViewEvents carries serialized view events.
	SubjectViewEvents = "rootbridge.events"
)

// BuildUserSubject scopes subject to an Android user, e.g. "rootbridge.helper.v1.u10".
func BuildUserSubject(subject string, userID int) string {
	return fmt.Sprintf("%s.u%d", subject, userID)
}
