package core

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// DecodeError indicates an inbound frame that is not a valid command.
	DecodeError Kind = "decode"
	// UnknownCommandError indicates a command type outside the protocol.
	UnknownCommandError Kind = "unknown_command"
	// EngineError indicates the SQL engine rejected or failed a statement.
	EngineError Kind = "engine"
	// FilesystemError indicates bundle files that are missing or unwritable.
	FilesystemError Kind = "filesystem"
	// RemoteError indicates a failed transfer to or from remote bundle storage.
	RemoteError Kind = "remote"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

// Error renders only the message and cause, since it is shown to clients as-is.
func (e *E) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
