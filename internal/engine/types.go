package engine

import (
	"context"
	"time"

	"foscam2mqtt/internal/foscam"
	"foscam2mqtt/internal/models"
	"foscam2mqtt/internal/publisher"
)

type CommandKind int

const (
	// CmdSync rewrites the camera callbacks; Action nil means a full rotation.
	CmdSync CommandKind = iota
	CmdApplySetting
	CmdReboot
	CmdRefreshSnapshot
	// CmdRepublish restores retained state after a broker (re)connect.
	CmdRepublish
)

func (k CommandKind) String() string {
	switch k {
	case CmdSync:
		return "sync"
	case CmdApplySetting:
		return "apply_setting"
	case CmdReboot:
		return "reboot"
	case CmdRefreshSnapshot:
		return "refresh_snapshot"
	case CmdRepublish:
		return "republish"
	}
	return "unknown"
}

// Command is one unit of work for the engine loop.
type Command struct {
	Kind    CommandKind
	Action  *models.Action
	Setting string
	Value   string

	reply chan error
}

// Device is the camera surface the engine drives.
type Device interface {
	Query(ctx context.Context, command string, params map[string]string) (foscam.Result, error)
	Snapshot(ctx context.Context) ([]byte, error)
	DeviceInfo(ctx context.Context) (foscam.DeviceInfo, error)
}

// Synchronizer rewrites the camera's callback configuration.
type Synchronizer interface {
	Synchronize(ctx context.Context, rotate *models.Action) error
}

type discovery struct {
	root    string
	params  publisher.DiscoveryParams
	devInfo bool
}

type Engine struct {
	device    Device
	syncer    Synchronizer
	publisher *publisher.Publisher
	commands  chan Command

	resyncInterval time.Duration
	discovery      *discovery
	now            func() time.Time

	// owned by Run
	fullSyncFailed bool
}
