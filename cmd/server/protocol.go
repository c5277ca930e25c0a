// Package main provides a WebSocket server for DuckServe.
package main

import (
	"github.com/goccy/go-json"
)

// ErrorResponse is sent in place of a result when a command fails.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Reply is one outbound frame.
type Reply struct {
	Payload []byte
	Binary  bool
}

var emptyReply = Reply{Payload: []byte("{}")}

func textReply(payload []byte) Reply {
	return Reply{Payload: payload}
}

func binaryReply(payload []byte) Reply {
	return Reply{Payload: payload, Binary: true}
}

// errorReply renders err as {"error": message}.
func errorReply(err error) Reply {
	data, mErr := json.MarshalNoEscape(ErrorResponse{Error: err.Error()})
	if mErr != nil {
		return Reply{Payload: []byte(`{"error":"failed to encode error"}`)}
	}
	return Reply{Payload: data}
}
