package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"foscam2mqtt/internal/logger"
	"foscam2mqtt/internal/models"
	"foscam2mqtt/internal/publisher"
)

const (
	commandBuffer = 32

	HooksUpdateTopic    = "hooks/update"
	RebootTopic         = "reboot"
	SnapshotUpdateTopic = "snapshot/update"
)

var ErrQueueFull = errors.New("engine: command queue full")

type EngineOption func(*Engine)

// WithResyncInterval sets how often a failed full synchronization is retried.
// Zero disables retries.
func WithResyncInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.resyncInterval = d
	}
}

// WithDiscovery enables Home Assistant discovery under root.
func WithDiscovery(root string, params publisher.DiscoveryParams) EngineOption {
	return func(e *Engine) {
		e.discovery = &discovery{root: root, params: params}
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(device Device, syncer Synchronizer, pub *publisher.Publisher, opts ...EngineOption) *Engine {
	engine := &Engine{
		device:    device,
		syncer:    syncer,
		publisher: pub,
		commands:  make(chan Command, commandBuffer),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Run performs the initial full synchronization and then serves commands
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	var tick <-chan time.Time
	if e.resyncInterval > 0 {
		ticker := time.NewTicker(e.resyncInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	logger.Info("Engine started")
	e.sync(ctx, nil)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Engine stopped")
			return
		case cmd := <-e.commands:
			err := e.handleCommand(ctx, cmd)
			if err != nil {
				logger.Errorf("Command %s failed: %v", cmd.Kind, err)
			}
			if cmd.reply != nil {
				cmd.reply <- err
			}
		case <-tick:
			e.handleTick(ctx)
		}
	}
}

// Rotate replaces the token of one action and waits for the camera write.
func (e *Engine) Rotate(ctx context.Context, action models.Action) error {
	return e.call(ctx, Command{Kind: CmdSync, Action: &action})
}

// Resync rewrites every callback and waits for the camera write.
func (e *Engine) Resync(ctx context.Context) error {
	return e.call(ctx, Command{Kind: CmdSync})
}

func (e *Engine) call(ctx context.Context, cmd Command) error {
	cmd.reply = make(chan error, 1)
	select {
	case e.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch queues a command without waiting. Used from broker callbacks,
// which must not block.
func (e *Engine) Dispatch(cmd Command) error {
	select {
	case e.commands <- cmd:
		return nil
	default:
		logger.Warnf("Dropping %s command, queue full", cmd.Kind)
		return ErrQueueFull
	}
}

// CommandTopics lists the topic suffixes HandleCommand understands.
func (e *Engine) CommandTopics() []string {
	topics := []string{HooksUpdateTopic, RebootTopic, SnapshotUpdateTopic}
	for _, s := range publisher.Settings {
		topics = append(topics, s.CommandTopic())
	}
	return topics
}

// HandleCommand turns a broker message on a command topic into a command.
func (e *Engine) HandleCommand(suffix string, payload []byte) {
	value := strings.TrimSpace(string(payload))

	switch suffix {
	case HooksUpdateTopic:
		if value == "" {
			_ = e.Dispatch(Command{Kind: CmdSync})
			return
		}
		action, ok := models.ParseAction(value)
		if !ok {
			logger.Warnf("Ignoring hook update for unknown action %q", value)
			return
		}
		_ = e.Dispatch(Command{Kind: CmdSync, Action: &action})
	case RebootTopic:
		_ = e.Dispatch(Command{Kind: CmdReboot})
	case SnapshotUpdateTopic:
		_ = e.Dispatch(Command{Kind: CmdRefreshSnapshot})
	default:
		name, ok := strings.CutSuffix(suffix, "/set")
		if _, known := publisher.LookupSetting(name); !ok || !known {
			logger.Warnf("Ignoring message on unknown command topic %s", suffix)
			return
		}
		_ = e.Dispatch(Command{Kind: CmdApplySetting, Setting: name, Value: value})
	}
}

func (e *Engine) handleCommand(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CmdSync:
		return e.sync(ctx, cmd.Action)
	case CmdApplySetting:
		return e.publisher.ApplySetting(ctx, e.device, cmd.Setting, cmd.Value)
	case CmdReboot:
		logger.Notice("Rebooting camera")
		_, err := e.device.Query(ctx, "rebootSystem", nil)
		return err
	case CmdRefreshSnapshot:
		return e.refreshSnapshot(ctx)
	case CmdRepublish:
		e.republish(ctx)
		return nil
	}
	return nil
}

func (e *Engine) sync(ctx context.Context, rotate *models.Action) error {
	err := e.syncer.Synchronize(ctx, rotate)
	if rotate == nil {
		e.fullSyncFailed = err != nil
	}
	return err
}

func (e *Engine) handleTick(ctx context.Context) {
	if !e.fullSyncFailed {
		return
	}
	logger.Info("Retrying callback synchronization")
	if err := e.sync(ctx, nil); err != nil {
		logger.Warnf("Callback synchronization still failing: %v", err)
	}
}

func (e *Engine) refreshSnapshot(ctx context.Context) error {
	image, err := e.device.Snapshot(ctx)
	if err != nil {
		return err
	}
	e.publisher.PublishSnapshot(image, e.now())
	return nil
}

func (e *Engine) republish(ctx context.Context) {
	if err := e.publisher.PublishAvailability(true); err != nil {
		return
	}
	e.publisher.RefreshSettings(ctx, e.device)

	if d := e.discovery; d != nil {
		if !d.devInfo {
			info, err := e.device.DeviceInfo(ctx)
			if err != nil {
				logger.Warnf("Failed to read device info: %v", err)
			} else {
				d.params.Device = info
				d.devInfo = true
			}
		}
		e.publisher.PublishDiscovery(d.root, publisher.Descriptors(d.params))
	}

	if err := e.refreshSnapshot(ctx); err != nil {
		logger.Warnf("Failed to refresh snapshot: %v", err)
	}
}

// Shutdown marks the bridge offline and, if asked, removes the discovery
// entities. Call after Run has returned.
func (e *Engine) Shutdown(cleanup bool) {
	if cleanup && e.discovery != nil {
		e.publisher.ClearDiscovery(e.discovery.root, publisher.Descriptors(e.discovery.params))
	}
	_ = e.publisher.PublishAvailability(false)
}
