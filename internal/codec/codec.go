// Package codec compresses every message that crosses the wire.
//
// Payloads are zlib streams (RFC 1950 around deflate) of UTF-8 text.
// The compression level only affects the sender; Decompress accepts
// any level.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"

	rcerr "gorc/internal/errors"
)

// Level is a zlib compression level.
type Level int

const (
	LevelNone    Level = zlib.NoCompression
	LevelSpeed   Level = zlib.BestSpeed
	LevelBest    Level = zlib.BestCompression
	LevelDefault Level = zlib.DefaultCompression
)

// ParseLevel accepts "default", "best", "speed", "none" or a number
// between 0 and 9.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return LevelDefault, nil
	case "best", "max":
		return LevelBest, nil
	case "speed", "fast":
		return LevelSpeed, nil
	case "none":
		return LevelNone, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < zlib.NoCompression || n > zlib.BestCompression {
		return 0, fmt.Errorf("invalid compression level %q (want default, best, speed, none or 0-9)", s)
	}
	return Level(n), nil
}

func (l Level) String() string {
	switch l {
	case LevelDefault:
		return "default"
	case LevelBest:
		return "best"
	case LevelSpeed:
		return "speed"
	case LevelNone:
		return "none"
	default:
		return strconv.Itoa(int(l))
	}
}

// Codec compresses and decompresses messages.
type Codec struct {
	Level Level
}

// New returns a codec compressing at level.
func New(level Level) *Codec {
	return &Codec{Level: level}
}

// Compress deflates text into a zlib stream.
func (c *Codec) Compress(text string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, int(c.Level))
	if err != nil {
		return nil, &rcerr.CodecError{Op: "compress", Err: err}
	}
	if _, err := io.WriteString(w, text); err != nil {
		return nil, &rcerr.CodecError{Op: "compress", Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &rcerr.CodecError{Op: "compress", Err: err}
	}
	return buf.Bytes(), nil
}

// CompressBytes compresses arbitrary command output.  Invalid UTF-8
// sequences are replaced so that every message on the wire is text.
func (c *Codec) CompressBytes(p []byte) ([]byte, error) {
	return c.Compress(ToText(p))
}

// Decompress inflates a zlib stream.  Corrupt or truncated streams and
// payloads that are not valid UTF-8 yield a *errors.CodecError.
func (c *Codec) Decompress(payload []byte) (string, error) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return "", &rcerr.CodecError{Op: "decompress", Err: err}
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return "", &rcerr.CodecError{Op: "decompress", Err: err}
	}
	if !utf8.Valid(out) {
		return "", &rcerr.CodecError{Op: "decompress", Err: fmt.Errorf("payload is not valid UTF-8")}
	}
	return string(out), nil
}

// ToText converts raw bytes to valid UTF-8, replacing invalid
// sequences with U+FFFD.
func ToText(p []byte) string {
	if utf8.Valid(p) {
		return string(p)
	}
	return strings.ToValidUTF8(string(p), "�")
}
