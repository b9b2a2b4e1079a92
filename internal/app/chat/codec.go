/*
Package chat contains the core logic of the chat server.

This file implements the protocol codec: framing and parsing of envelopes
over a byte stream. The TCP transport carries one JSON envelope per
newline-terminated line, buffered so a unit split across socket reads is
reassembled; the WebSocket transport carries one envelope per text frame.
Both enforce the configured unit size ceiling and validate structure at the
decode boundary.
*/
package chat

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"dischat/internal/pkg/errs"
)

// ErrUnitTooLarge is the fatal framing error returned when a peer sends a
// unit exceeding the configured ceiling. Unlike per-unit protocol errors it
// terminates the connection, since the stream position is unrecoverable.
var ErrUnitTooLarge = errors.New("protocol unit exceeds size ceiling")

// Conn is one bidirectional protocol transport. ReadMessage blocks until a
// full unit is available and returns exactly one decoded envelope.
// WriteUnit writes one marshaled envelope, adding whatever framing the
// transport needs.
//
// A *errs.CustomError return from ReadMessage marks a recoverable per-unit
// failure (malformed JSON, schema violation): the unit is lost but the
// stream remains aligned and the caller may keep reading. Any other error,
// including ErrUnitTooLarge, is fatal to the connection.
type Conn interface {
	ReadMessage() (*Message, error)
	WriteUnit(data []byte) error
	SetReadDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// WriteEnvelope marshals m and writes it as one unit. Fan-out paths marshal
// once themselves and call WriteUnit directly.
func WriteEnvelope(c Conn, m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.WriteUnit(data)
}

// decodeInbound parses and validates one raw unit.
func decodeInbound(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errs.NewError(errs.ErrInvalidJSON)
	}

	if verr := ValidateInbound(&m); verr != nil {
		return nil, verr
	}

	return &m, nil
}

// lineConn frames envelopes as newline-delimited JSON over a net.Conn.
type lineConn struct {
	conn    net.Conn
	reader  *bufio.Reader
	maxLine int
}

// NewLineConn wraps a net.Conn in the line-delimited JSON transport.
// maxLine bounds the size of a single unit; the read buffer is sized to it
// so an overlong line surfaces as ErrUnitTooLarge instead of unbounded
// memory growth.
func NewLineConn(conn net.Conn, maxLine int) Conn {
	return &lineConn{
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, maxLine),
		maxLine: maxLine,
	}
}

func (c *lineConn) ReadMessage() (*Message, error) {
	for {
		line, err := c.reader.ReadSlice('\n')
		if err != nil {
			if errors.Is(err, bufio.ErrBufferFull) {
				return nil, ErrUnitTooLarge
			}
			return nil, err
		}

		// Skip blank keep-alive lines between units.
		trimmed := trimLine(line)
		if len(trimmed) == 0 {
			continue
		}

		return decodeInbound(trimmed)
	}
}

func (c *lineConn) WriteUnit(data []byte) error {
	framed := make([]byte, 0, len(data)+1)
	framed = append(framed, data...)
	framed = append(framed, '\n')

	_, err := c.conn.Write(framed)
	return err
}

func (c *lineConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *lineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *lineConn) Close() error {
	return c.conn.Close()
}

// trimLine strips the trailing newline and surrounding whitespace.
func trimLine(line []byte) []byte {
	start, end := 0, len(line)
	for start < end && isSpace(line[start]) {
		start++
	}
	for end > start && isSpace(line[end-1]) {
		end--
	}
	return line[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// wsConn frames envelopes as one JSON object per WebSocket text frame.
type wsConn struct {
	conn *websocket.Conn
}

// NewWSConn wraps an upgraded WebSocket connection in the frame-per-envelope
// transport. maxFrame bounds the size of a single unit.
func NewWSConn(conn *websocket.Conn, maxFrame int) Conn {
	conn.SetReadLimit(int64(maxFrame))
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadMessage() (*Message, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseMessageTooBig) {
				return nil, ErrUnitTooLarge
			}
			return nil, err
		}

		if kind != websocket.TextMessage {
			continue
		}

		trimmed := trimLine(data)
		if len(trimmed) == 0 {
			continue
		}

		return decodeInbound(trimmed)
	}
}

func (c *wsConn) WriteUnit(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
