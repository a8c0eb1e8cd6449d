package drafting

import "errors"

var (
	// ErrEmptyInput is returned before any backend call when the input is blank.
	ErrEmptyInput = errors.New("empty input")
	// ErrConfiguration means no usable backend credential is configured.
	ErrConfiguration = errors.New("generation backend not configured")
	// ErrUpstream covers transport failures, non-2xx replies and unreadable bodies.
	ErrUpstream = errors.New("generation backend failed")
	// ErrSchema means the reply parsed but did not match the draft shape.
	ErrSchema = errors.New("generation reply does not match schema")
	// ErrLocale rejects a language other than ru or uz.
	ErrLocale = errors.New("unsupported locale")
)
