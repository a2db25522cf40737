package db

import "time"

// LaunchRecord is one row of launch_journal. Kind and Status hold the
// launcher's kind and status names.
type LaunchRecord struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Token    *int      `json:"token,omitempty"`
	Command  string    `json:"command"`
	Status   string    `json:"status"`
	Detail   *string   `json:"detail,omitempty"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}
