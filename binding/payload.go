// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package binding

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrPayload is returned when a port value does not decode as the
// binding's value kind.
var ErrPayload = errors.New("binding: malformed payload")

// DecodeBool reads a bool payload: the first byte, true when non-zero.
func DecodeBool(p []byte) (bool, error) {
	if len(p) < 1 {
		return false, fmt.Errorf("%w: bool needs 1 byte, got %d", ErrPayload, len(p))
	}
	return p[0] != 0, nil
}

// DecodeNumber reads a little-endian float32 payload.
func DecodeNumber(p []byte) (float32, error) {
	if len(p) < 4 {
		return 0, fmt.Errorf("%w: float needs 4 bytes, got %d", ErrPayload, len(p))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(p)), nil
}

// DecodeString reads a string payload up to the first NUL.
func DecodeString(p []byte) string {
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p)
}

// DecodeVector2 reads two little-endian float32 values.
func DecodeVector2(p []byte) (x, y float32, err error) {
	if len(p) < 8 {
		return 0, 0, fmt.Errorf("%w: vector2 needs 8 bytes, got %d", ErrPayload, len(p))
	}
	x = math.Float32frombits(binary.LittleEndian.Uint32(p))
	y = math.Float32frombits(binary.LittleEndian.Uint32(p[4:]))
	return x, y, nil
}

// EncodeBool returns the payload of a bool.
func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// EncodeNumber returns the payload of a number.
func EncodeNumber(v float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
}

// EncodeString returns the NUL-terminated payload of a string.
func EncodeString(v string) []byte {
	return append([]byte(v), 0)
}

// EncodeVector2 returns the payload of a 2-component vector.
func EncodeVector2(x, y float32) []byte {
	p := binary.LittleEndian.AppendUint32(nil, math.Float32bits(x))
	return binary.LittleEndian.AppendUint32(p, math.Float32bits(y))
}

type vector2 struct {
	X float32
	Y float32
}

// Encode converts a loosely typed value, as found in configuration files
// or on a command line, to the payload of kind. Strings like "0.5" and
// "true" are accepted for numbers and bools; vectors accept "x,y", a
// two-element list or a map with x and y.
func Encode(kind ValueKind, v any) ([]byte, error) {
	switch kind {
	case Bool:
		var b bool
		if err := mapstructure.WeakDecode(v, &b); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPayload, err)
		}
		return EncodeBool(b), nil
	case Number:
		var f float32
		if err := mapstructure.WeakDecode(v, &f); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPayload, err)
		}
		return EncodeNumber(f), nil
	case String:
		var s string
		if err := mapstructure.WeakDecode(v, &s); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPayload, err)
		}
		return EncodeString(s), nil
	case Trigger:
		return []byte{1}, nil
	case Vector2:
		return encodeVector2(v)
	}
	switch v := v.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("%w: cannot encode %T as %s", ErrPayload, v, kind)
}

func encodeVector2(v any) ([]byte, error) {
	switch in := v.(type) {
	case string:
		xs, ys, ok := strings.Cut(in, ",")
		if !ok {
			return nil, fmt.Errorf("%w: vector2 %q: want x,y", ErrPayload, in)
		}
		v = []string{strings.TrimSpace(xs), strings.TrimSpace(ys)}
	case map[string]any:
		var vec vector2
		if err := mapstructure.WeakDecode(in, &vec); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPayload, err)
		}
		return EncodeVector2(vec.X, vec.Y), nil
	}
	var xy []float32
	if err := mapstructure.WeakDecode(v, &xy); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayload, err)
	}
	if len(xy) != 2 {
		return nil, fmt.Errorf("%w: vector2 needs 2 components, got %d", ErrPayload, len(xy))
	}
	return EncodeVector2(xy[0], xy[1]), nil
}
