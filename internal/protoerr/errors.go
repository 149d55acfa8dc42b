// Package protoerr defines the error kinds reported when decoding SSH agent
// key material.
//
// Decoders return a *Error. Callers branch on the kind with errors.Is against
// the sentinels, or with KindOf:
//
//	if errors.Is(err, protoerr.ErrUnknownKeyType) { ... }
package protoerr

import (
	"errors"
	"fmt"
)

// Kind classifies a decode failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnknownKeyType
	KindTruncated
	KindMalformedField
)

func (k Kind) String() string {
	switch k {
	case KindUnknownKeyType:
		return "unknown key type"
	case KindTruncated:
		return "truncated"
	case KindMalformedField:
		return "malformed field"
	}
	return "unknown"
}

var (
	ErrUnknownKeyType = errors.New("unknown key type")
	ErrTruncated      = errors.New("truncated")
	ErrMalformedField = errors.New("malformed field")
)

func (k Kind) sentinel() error {
	switch k {
	case KindUnknownKeyType:
		return ErrUnknownKeyType
	case KindTruncated:
		return ErrTruncated
	case KindMalformedField:
		return ErrMalformedField
	}
	return nil
}

// Error is a decode failure. Field names the wire field being read when the
// failure happened, Tag carries the offending key type tag for
// KindUnknownKeyType.
type Error struct {
	Kind      Kind
	Field     string
	Tag       string
	Reason    string
	Remaining int
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUnknownKeyType:
		return fmt.Sprintf("ssh key: unknown key type %q", e.Tag)
	case KindTruncated:
		return fmt.Sprintf("ssh key: truncated reading %s (%d bytes left)", e.Field, e.Remaining)
	case KindMalformedField:
		return fmt.Sprintf("ssh key: malformed %s: %s", e.Field, e.Reason)
	}
	return "ssh key: decode error"
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

func UnknownKeyType(tag string) *Error {
	return &Error{Kind: KindUnknownKeyType, Field: "key type", Tag: tag}
}

func Truncated(field string, remaining int) *Error {
	return &Error{Kind: KindTruncated, Field: field, Remaining: remaining}
}

func Malformed(field, reason string) *Error {
	return &Error{Kind: KindMalformedField, Field: field, Reason: reason}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
