package provider

import (
	"context"
	"errors"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/openai/openai-go/v2"
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNotConfigured   = errors.New("provider not configured")
)

// Kind classifies a dispatch failure.
type Kind string

const (
	KindUpstream           Kind = "upstream"
	KindTimeout            Kind = "timeout"
	KindMalformed          Kind = "malformed"
	KindMissingCredentials Kind = "missing_credentials"
	KindNetwork            Kind = "network"
	KindInvalidInput       Kind = "invalid_input"
)

// Error is a typed dispatch failure for one provider call.
type Error struct {
	Provider   ID
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s %d: %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same call might succeed later.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindNetwork:
		return true
	case KindUpstream:
		return e.StatusCode == 429 || e.StatusCode >= 500
	}
	return false
}

func malformed(id ID, format string, args ...any) *Error {
	return &Error{Provider: id, Kind: KindMalformed, Err: fmt.Errorf(format, args...)}
}

// classify maps SDK and transport errors onto a typed Error.
func classify(id ID, err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Provider: id, Kind: KindTimeout, Err: err}
	}
	var oerr *openai.Error
	if errors.As(err, &oerr) {
		return &Error{Provider: id, Kind: KindUpstream, StatusCode: oerr.StatusCode, Err: err}
	}
	var aerr *anthropic.Error
	if errors.As(err, &aerr) {
		return &Error{Provider: id, Kind: KindUpstream, StatusCode: aerr.StatusCode, Err: err}
	}
	return &Error{Provider: id, Kind: KindNetwork, Err: err}
}
