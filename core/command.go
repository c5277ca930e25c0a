package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// CommandType is the "type" field of an inbound command.
type CommandType string

const (
	ExecCommand         CommandType = "exec"
	ArrowCommand        CommandType = "arrow"
	JSONCommand         CommandType = "json"
	CreateBundleCommand CommandType = "create-bundle"
	LoadBundleCommand   CommandType = "load-bundle"
)

// DefaultBundleName is used when a bundle command carries no name.
const DefaultBundleName = "default"

// Known reports whether t is part of the protocol.
func (t CommandType) Known() bool {
	switch t {
	case ExecCommand, ArrowCommand, JSONCommand, CreateBundleCommand, LoadBundleCommand:
		return true
	}
	return false
}

// QueryDescriptor is one entry of a create-bundle query list. On the wire it
// is either a bare SQL string or {"sql": ..., "alias": ...}.
type QueryDescriptor struct {
	SQL   string `json:"sql"`
	Alias string `json:"alias,omitempty"`
}

func (q *QueryDescriptor) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var sql string
		if err := json.Unmarshal(data, &sql); err != nil {
			return err
		}
		*q = QueryDescriptor{SQL: sql}
		return nil
	}

	type plain QueryDescriptor
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.SQL == "" {
		return fmt.Errorf("query descriptor is missing sql")
	}
	*q = QueryDescriptor(p)
	return nil
}

// MarshalJSON emits the short string form when there is no alias.
func (q QueryDescriptor) MarshalJSON() ([]byte, error) {
	if q.Alias == "" {
		return json.Marshal(q.SQL)
	}
	type plain QueryDescriptor
	return json.Marshal(plain(q))
}

// Command is one decoded inbound frame.
type Command struct {
	Type    CommandType       `json:"type"`
	SQL     string            `json:"sql,omitempty"`
	Persist bool              `json:"persist,omitempty"`
	Queries []QueryDescriptor `json:"queries,omitempty"`
	Name    string            `json:"name,omitempty"`
}

// BundleName returns the requested bundle name or the default.
func (c Command) BundleName() string {
	if c.Name == "" {
		return DefaultBundleName
	}
	return c.Name
}

// DecodeCommand parses and validates one frame. Unknown command types decode
// successfully; rejecting them is left to the dispatcher.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, Wrap(DecodeError, "invalid command", err)
	}
	if cmd.Type == "" {
		return Command{}, New(DecodeError, "command is missing type")
	}

	switch cmd.Type {
	case ExecCommand, ArrowCommand, JSONCommand:
		if strings.TrimSpace(cmd.SQL) == "" {
			return Command{}, New(DecodeError, fmt.Sprintf("%s command is missing sql", cmd.Type))
		}
	case CreateBundleCommand:
		if cmd.Queries == nil {
			return Command{}, New(DecodeError, "create-bundle command is missing queries")
		}
	}
	return cmd, nil
}
