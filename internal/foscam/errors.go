package foscam

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed device round trip.
type ErrorKind int

const (
	KindUnreachable ErrorKind = iota
	KindTimeout
	KindHTTPStatus
	KindMalformedResponse
	KindCommandFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http_status"
	case KindMalformedResponse:
		return "malformed_response"
	case KindCommandFailed:
		return "command_failed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. A *DeviceError matches the sentinel of its kind.
var (
	ErrUnreachable       = errors.New("device unreachable")
	ErrTimeout           = errors.New("device timeout")
	ErrHTTPStatus        = errors.New("device returned http error")
	ErrMalformedResponse = errors.New("malformed device response")
	ErrCommandFailed     = errors.New("device rejected command")
)

var kindSentinel = map[ErrorKind]error{
	KindUnreachable:       ErrUnreachable,
	KindTimeout:           ErrTimeout,
	KindHTTPStatus:        ErrHTTPStatus,
	KindMalformedResponse: ErrMalformedResponse,
	KindCommandFailed:     ErrCommandFailed,
}

// DeviceError is returned by every Client call that did not produce a usable
// response.
type DeviceError struct {
	Kind       ErrorKind
	Command    string
	StatusCode int // KindHTTPStatus only
	ResultCode int // KindCommandFailed only
	Err        error
}

func (e *DeviceError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("foscam %s: http status %d", e.Command, e.StatusCode)
	case KindCommandFailed:
		return fmt.Sprintf("foscam %s: result %d (%s)", e.Command, e.ResultCode, resultCodeText(e.ResultCode))
	}
	if e.Err != nil {
		return fmt.Sprintf("foscam %s: %s: %v", e.Command, e.Kind, e.Err)
	}
	return fmt.Sprintf("foscam %s: %s", e.Command, e.Kind)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func (e *DeviceError) Is(target error) bool {
	return kindSentinel[e.Kind] == target
}

func resultCodeText(code int) string {
	switch code {
	case -1:
		return "invalid format"
	case -2:
		return "bad username or password"
	case -3:
		return "access denied"
	case -4:
		return "execution failed"
	case -5:
		return "timeout"
	default:
		return "unknown error"
	}
}
