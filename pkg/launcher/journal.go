package launcher

import "context"

// Launch kinds.
const (
	KindStart          = "start"
	KindStartForResult = "start_for_result"
	KindRelaunch       = "relaunch"
	KindReboot         = "reboot"
)

// Launch statuses.
const (
	StatusSent             = "sent"
	StatusOK               = "ok"
	StatusFailed           = "failed"
	StatusActivityNotFound = "activity_not_found"
)

// Journal records every launch. The db package's Repository implements it.
type Journal interface {
	RecordLaunch(ctx context.Context, kind, command string, token int) (string, error)
	UpdateLaunchStatus(ctx context.Context, id, status, detail string) error
}

// NoOpJournal discards launches.
type NoOpJournal struct{}

func (NoOpJournal) RecordLaunch(_ context.Context, _, _ string, _ int) (string, error) {
	return "", nil
}

func (NoOpJournal) UpdateLaunchStatus(_ context.Context, _, _, _ string) error {
	return nil
}
