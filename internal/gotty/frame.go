// Package gotty implements the gotty terminal framing protocol: every
// websocket message is one frame made of a single ASCII tag byte followed by
// the raw payload. Message boundaries are frame boundaries; there is no
// length prefix.
//
// Tag '1' is used in both directions. Client-to-server it carries raw input
// bytes; server-to-client it carries base64-encoded output bytes. Direction
// alone tells them apart, since a client never receives its own input back.
package gotty

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Tag is the leading byte of a frame.
type Tag byte

const (
	TagInput  Tag = '1'
	TagOutput Tag = '1'
	TagPing   Tag = '2'
	TagPong   Tag = '3'
	TagResize Tag = '4'
)

// Kind identifies a decoded frame.
type Kind int

const (
	KindOutput Kind = iota
	KindInput
	KindPing
	KindPong
	KindResize
)

func (k Kind) String() string {
	switch k {
	case KindOutput:
		return "output"
	case KindInput:
		return "input"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindResize:
		return "resize"
	default:
		return "unknown"
	}
}

var (
	ErrEmpty       = errors.New("gotty: empty frame")
	ErrUnknownTag  = errors.New("gotty: unknown frame tag")
	ErrBadBase64   = errors.New("gotty: malformed base64 payload")
	ErrInvalidUTF8 = errors.New("gotty: output is not valid UTF-8")
	ErrBadResize   = errors.New("gotty: malformed resize payload")
)

// DecodeError reports a frame that could not be decoded. The offending frame
// should be dropped; the stream it came from is still usable.
type DecodeError struct {
	Tag byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame %q: %v", e.Tag, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Frame is a decoded gotty frame.
type Frame struct {
	Kind Kind
	// Text holds decoded output (server→client) or raw input
	// (client→server) as a UTF-8 string.
	Text string
	// Data holds the raw payload bytes of an input frame.
	Data []byte
	// Cols and Rows are set for resize frames that parsed cleanly.
	Cols, Rows int
}

// Input encodes keyboard input. The payload is the text's UTF-8 bytes as-is;
// the input path is never base64-encoded.
func Input(text string) []byte {
	return InputBytes([]byte(text))
}

// InputBytes encodes raw input bytes.
func InputBytes(data []byte) []byte {
	msg := make([]byte, len(data)+1)
	msg[0] = byte(TagInput)
	copy(msg[1:], data)
	return msg
}

// Resize encodes a terminal geometry as "4cols,rows".
func Resize(cols, rows int) []byte {
	msg := []byte{byte(TagResize)}
	msg = strconv.AppendInt(msg, int64(cols), 10)
	msg = append(msg, ',')
	return strconv.AppendInt(msg, int64(rows), 10)
}

// Ping encodes a keepalive ping with an empty payload.
func Ping() []byte { return []byte{byte(TagPing)} }

// Pong encodes a keepalive reply with an empty payload.
func Pong() []byte { return []byte{byte(TagPong)} }

// Output encodes raw terminal output the way a gotty server does.
func Output(raw []byte) []byte {
	n := base64.StdEncoding.EncodedLen(len(raw))
	msg := make([]byte, n+1)
	msg[0] = byte(TagOutput)
	base64.StdEncoding.Encode(msg[1:], raw)
	return msg
}

// Decode decodes a server→client frame.
func Decode(msg []byte) (Frame, error) {
	if len(msg) == 0 {
		return Frame{}, ErrEmpty
	}
	tag, payload := msg[0], msg[1:]
	switch Tag(tag) {
	case TagOutput:
		raw := make([]byte, base64.StdEncoding.DecodedLen(len(payload)))
		n, err := base64.StdEncoding.Decode(raw, payload)
		if err != nil {
			return Frame{}, &DecodeError{Tag: tag, Err: fmt.Errorf("%w: %v", ErrBadBase64, err)}
		}
		raw = raw[:n]
		if !utf8.Valid(raw) {
			return Frame{}, &DecodeError{Tag: tag, Err: ErrInvalidUTF8}
		}
		return Frame{Kind: KindOutput, Text: string(raw)}, nil
	case TagPing:
		return Frame{Kind: KindPing}, nil
	case TagPong:
		return Frame{Kind: KindPong}, nil
	case TagResize:
		// Server-initiated resize carries no authority over the client's
		// geometry; a bad payload is not an error worth surfacing.
		f := Frame{Kind: KindResize}
		f.Cols, f.Rows, _ = ParseResize(payload)
		return f, nil
	default:
		return Frame{}, &DecodeError{Tag: tag, Err: ErrUnknownTag}
	}
}

// DecodeClient decodes a client→server frame.
func DecodeClient(msg []byte) (Frame, error) {
	if len(msg) == 0 {
		return Frame{}, ErrEmpty
	}
	tag, payload := msg[0], msg[1:]
	switch Tag(tag) {
	case TagInput:
		data := append([]byte(nil), payload...)
		return Frame{Kind: KindInput, Data: data, Text: string(data)}, nil
	case TagPing:
		return Frame{Kind: KindPing}, nil
	case TagPong:
		return Frame{Kind: KindPong}, nil
	case TagResize:
		cols, rows, err := ParseResize(payload)
		if err != nil {
			return Frame{}, &DecodeError{Tag: tag, Err: err}
		}
		return Frame{Kind: KindResize, Cols: cols, Rows: rows}, nil
	default:
		return Frame{}, &DecodeError{Tag: tag, Err: ErrUnknownTag}
	}
}

// ParseResize parses an ASCII "cols,rows" payload.
func ParseResize(payload []byte) (cols, rows int, err error) {
	c, r, ok := strings.Cut(string(payload), ",")
	if !ok {
		return 0, 0, ErrBadResize
	}
	cols, err = strconv.Atoi(c)
	if err != nil || cols <= 0 {
		return 0, 0, ErrBadResize
	}
	rows, err = strconv.Atoi(r)
	if err != nil || rows <= 0 {
		return 0, 0, ErrBadResize
	}
	return cols, rows, nil
}
