package hooks

import (
	"context"
	"fmt"
	"strconv"

	"foscam2mqtt/internal/foscam"
	"foscam2mqtt/internal/logger"
	"foscam2mqtt/internal/models"
)

// Detectors are the camera detectors whose linkage gates URL callbacks.
var Detectors = []string{"MotionDetect", "FaceDetect", "AudioAlarm"}

// Device is the part of the camera client the synchronizer needs.
type Device interface {
	Query(ctx context.Context, command string, params map[string]string) (foscam.Result, error)
}

// SyncRecorder receives the outcome of every synchronization.
type SyncRecorder interface {
	HookSync(kind string, err error)
}

// SyncError reports the step at which a synchronization stopped. Device
// changes made by earlier steps stay in place.
type SyncError struct {
	Step string
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("hook sync failed at %s: %v", e.Step, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

type Synchronizer struct {
	device    Device
	router    *Router
	listenURL string
	recorder  SyncRecorder
}

func NewSynchronizer(device Device, router *Router, listenURL string, recorder SyncRecorder) *Synchronizer {
	return &Synchronizer{
		device:    device,
		router:    router,
		listenURL: listenURL,
		recorder:  recorder,
	}
}

// Synchronize brings the camera's detector linkage and callback record in
// line with the router. A nil rotate rotates every action; otherwise only
// rotate gets a new token and the others keep the token found on the device.
// The router is only updated once the camera accepted the new record.
func (s *Synchronizer) Synchronize(ctx context.Context, rotate *models.Action) error {
	kind := "full"
	if rotate != nil {
		kind = "partial"
	}
	err := s.synchronize(ctx, rotate)
	if s.recorder != nil {
		s.recorder.HookSync(kind, err)
	}
	if err != nil {
		logger.Errorf("Hook synchronization (%s) failed: %v", kind, err)
	}
	return err
}

func (s *Synchronizer) synchronize(ctx context.Context, rotate *models.Action) error {
	for _, detector := range Detectors {
		if err := s.ensureLinkage(ctx, detector); err != nil {
			return err
		}
	}

	record, err := s.device.Query(ctx, "getAlarmHttpServer", nil)
	if err != nil {
		return &SyncError{Step: "getAlarmHttpServer", Err: err}
	}

	minted := make(map[models.Action]string)
	params := make(map[string]string, len(models.Actions))
	for _, def := range models.Actions {
		var token string
		switch {
		case rotate == nil || *rotate == def.Action:
			token = s.router.Mint(def.Action)
			minted[def.Action] = token
		case !s.router.Obfuscated():
			token = string(def.Action)
		default:
			token = s.recoverToken(def, record[def.Alias])
		}

		logger.Debugf("Generated URL for %s - %s", def.Action, CallbackURL(s.listenURL, token))
		params[def.Alias] = EncodeCallback(s.listenURL, token)
	}

	if _, err := s.device.Query(ctx, "setAlarmHttpServer", params); err != nil {
		return &SyncError{Step: "setAlarmHttpServer", Err: err}
	}

	s.router.Commit(minted)
	logger.Infof("Webhooks updated (%d rotated)", len(minted))
	return nil
}

// recoverToken returns the token currently configured on the device for an
// action, or NoRoute if that callback no longer leads back to it.
func (s *Synchronizer) recoverToken(def models.ActionDef, field string) string {
	token, ok := DecodeCallback(s.listenURL, field)
	if !ok {
		logger.Warnf("Callback for %s does not point to %s, routing disabled until next full rotation", def.Action, s.listenURL)
		return NoRoute
	}
	if action, live := s.router.Verify(token); !live || action != def.Action {
		logger.Warnf("Callback token for %s is not live, routing disabled until next full rotation", def.Action)
		return NoRoute
	}
	logger.Debugf("Kept existing token for %s", def.Action)
	return token
}

func (s *Synchronizer) ensureLinkage(ctx context.Context, detector string) error {
	getCmd := "get" + detector + "Config"
	setCmd := "set" + detector + "Config"

	cfg, err := s.device.Query(ctx, getCmd, nil)
	if err != nil {
		return &SyncError{Step: getCmd, Err: err}
	}
	current, err := detectorState(cfg)
	if err != nil {
		return &SyncError{Step: getCmd, Err: err}
	}

	next, changed := MergeLinkage(current, LinkageURL)
	if !changed {
		logger.Debugf("%s already triggers URL callbacks (linkage %d)", detector, current.Linkage)
		return nil
	}

	params := cfg.Params()
	params["isEnable"] = "1"
	params["linkage"] = strconv.FormatUint(uint64(next.Linkage), 10)
	if _, err := s.device.Query(ctx, setCmd, params); err != nil {
		return &SyncError{Step: setCmd, Err: err}
	}
	logger.Infof("%s linkage %d -> %d", detector, current.Linkage, next.Linkage)
	return nil
}

func detectorState(cfg foscam.Result) (DetectorState, error) {
	enabled, err := cfg.Int("isEnable")
	if err != nil {
		return DetectorState{}, err
	}
	linkage, err := cfg.Int("linkage")
	if err != nil {
		return DetectorState{}, err
	}
	if linkage < 0 {
		return DetectorState{}, fmt.Errorf("%w: negative linkage %d", foscam.ErrMalformedResponse, linkage)
	}
	return DetectorState{Enabled: enabled != 0, Linkage: uint32(linkage)}, nil
}
