package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// Kind classifies why a capture session could not start.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindPermissionDenied
	KindNoAudioTrack
	KindDeviceNotFound
	KindUnsupported
	KindCancelledByUser
)

var (
	ErrPermissionDenied = errors.New("capture: permission denied")
	ErrNoAudioTrack     = errors.New("capture: no audio track")
	ErrDeviceNotFound   = errors.New("capture: device not found")
	ErrUnsupported      = errors.New("capture: unsupported")
	ErrCancelledByUser  = errors.New("capture: cancelled by user")
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission denied"
	case KindNoAudioTrack:
		return "no audio track"
	case KindDeviceNotFound:
		return "device not found"
	case KindUnsupported:
		return "unsupported"
	case KindCancelledByUser:
		return "cancelled by user"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindNoAudioTrack:
		return ErrNoAudioTrack
	case KindDeviceNotFound:
		return ErrDeviceNotFound
	case KindUnsupported:
		return ErrUnsupported
	case KindCancelledByUser:
		return ErrCancelledByUser
	default:
		return nil
	}
}

// Error is returned by Manager.Start for every acquisition failure.
type Error struct {
	Kind   Kind
	Source Source
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("capture %s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("capture %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind, so errors.Is(err,
// ErrPermissionDenied) works whatever the underlying cause was.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Silent reports whether the failure should not be shown to the user.
func (e *Error) Silent() bool { return e.Kind == KindCancelledByUser }

// Message returns the text shown in the status line.
func (e *Error) Message() string {
	switch e.Kind {
	case KindPermissionDenied:
		if e.Source == SystemAudio {
			return "System audio capture was denied."
		}
		return "Microphone permission denied. Please allow access."
	case KindNoAudioTrack:
		return "No system audio available. Make sure a default output device is playing."
	case KindDeviceNotFound:
		if e.Source == SystemAudio {
			return "No audio server found for system capture."
		}
		return "No microphone found."
	case KindUnsupported:
		return "System audio capture is not supported here. Use the microphone instead."
	case KindCancelledByUser:
		return ""
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "Could not start audio capture."
	}
}

// KindOf returns the kind of err, classifying bare sentinels and context
// cancellation as well as *Error values.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrNoAudioTrack):
		return KindNoAudioTrack
	case errors.Is(err, ErrDeviceNotFound):
		return KindDeviceNotFound
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, ErrCancelledByUser), errors.Is(err, context.Canceled):
		return KindCancelledByUser
	}
	return KindUnknown
}

func wrap(src Source, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return &Error{Kind: KindOf(err), Source: src, Err: err}
}

// backendErrors maps typed miniaudio results onto sentinels.
var backendErrors = []struct {
	backend, sentinel error
}{
	{malgo.ErrAccessDenied, ErrPermissionDenied},
	{malgo.ErrNoDevice, ErrDeviceNotFound},
	{malgo.ErrDoesNotExist, ErrDeviceNotFound},
	{malgo.ErrDeviceTypeNotSupported, ErrUnsupported},
}

// classifyBackendError maps backend failures onto sentinels. Typed malgo
// results are matched first; other backends report OS permission problems
// as plain strings.
func classifyBackendError(err error) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	for _, m := range backendErrors {
		if errors.Is(err, m.backend) {
			return fmt.Errorf("%w: %w", m.sentinel, err)
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "denied"), strings.Contains(msg, "permission"), strings.Contains(msg, "not permitted"):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case strings.Contains(msg, "no device"), strings.Contains(msg, "device not found"), strings.Contains(msg, "does not exist"):
		return fmt.Errorf("%w: %w", ErrDeviceNotFound, err)
	}
	return err
}
