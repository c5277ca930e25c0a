package main

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/nickyhof/DuckServe/core"
)

// Reply is one frame received from the server.
type Reply struct {
	Binary  bool
	Payload []byte
}

// ServerError is an {"error": ...} reply.
type ServerError struct {
	Message string `json:"error"`
}

func (e *ServerError) Error() string {
	return e.Message
}

// Client speaks the DuckServe protocol over one WebSocket connection.
type Client struct {
	ws      *websocket.Conn
	timeout time.Duration
}

// Dial connects to the server at url.
func Dial(url string, timeout time.Duration) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return &Client{ws: ws, timeout: timeout}, nil
}

// Do sends cmd and waits for its reply. Error replies are returned as
// *ServerError.
func (c *Client) Do(cmd core.Command) (Reply, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return Reply{}, err
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return Reply{}, fmt.Errorf("failed to send command: %w", err)
	}

	if c.timeout > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.timeout))
	}
	messageType, payload, err := c.ws.ReadMessage()
	if err != nil {
		return Reply{}, fmt.Errorf("failed to read reply: %w", err)
	}

	reply := Reply{Binary: messageType == websocket.BinaryMessage, Payload: payload}
	if !reply.Binary && bytes.HasPrefix(payload, []byte(`{"error":`)) {
		serverErr := &ServerError{}
		if err := json.Unmarshal(payload, serverErr); err != nil {
			return Reply{}, fmt.Errorf("malformed error reply: %w", err)
		}
		return Reply{}, serverErr
	}
	return reply, nil
}

// Close says goodbye and closes the connection.
func (c *Client) Close() error {
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}

// IsServerError reports whether err came from the server rather than the
// connection.
func IsServerError(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr)
}
