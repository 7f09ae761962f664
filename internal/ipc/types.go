package ipc

import (
	"time"

	"radarpipe/internal/daemon"
	"radarpipe/internal/state"
)

// StatusRequest fetches pipeline status.
type StatusRequest struct{}

// StatusResponse carries the manager's status snapshot.
type StatusResponse struct {
	Status daemon.Status `json:"status"`
}

// StopRequest stops the pipeline and shuts the daemon process down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// UpdateConfigRequest applies runtime settings by key.
type UpdateConfigRequest struct {
	Settings map[string]string `json:"settings"`
}

// UpdateConfigResponse lists the settings that were applied.
type UpdateConfigResponse struct {
	Applied []string `json:"applied"`
}

// StateCountRequest fetches the number of tracked acquisitions.
type StateCountRequest struct{}

// StateCountResponse reports the tracked acquisition count.
type StateCountResponse struct {
	Count int `json:"count"`
}

// StateRangeRequest lists acquired filenames inside an inclusive observation
// window, optionally restricted to one instrument.
type StateRangeRequest struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Instrument string    `json:"instrument"`
}

// StateRangeResponse contains the matching filenames.
type StateRangeResponse struct {
	Filenames []string `json:"filenames"`
}

// StateLatestRequest fetches the most recently observed acquisition,
// optionally restricted to one instrument.
type StateLatestRequest struct {
	Instrument string `json:"instrument"`
}

// StateLatestResponse contains the newest record, nil when none tracked.
type StateLatestResponse struct {
	Record *state.Record `json:"record"`
}

// StateInfoRequest fetches one acquisition record by filename.
type StateInfoRequest struct {
	Filename string `json:"filename"`
}

// StateInfoResponse contains the record, nil when untracked.
type StateInfoResponse struct {
	Record *state.Record `json:"record"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
