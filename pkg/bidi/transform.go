// Package bidi rewrites terminal input for right-to-left display mode.
//
// In RTL mode the visual meaning of the horizontal arrow keys is mirrored, so
// the cursor-forward (CSI n C) and cursor-back (CSI n D) sequences produced by
// the emulator are exchanged before they reach the shell.
package bidi

import "strings"

// Direction is the UI text direction.
type Direction int

const (
	LTR Direction = iota
	RTL
)

func (d Direction) String() string {
	if d == RTL {
		return "rtl"
	}
	return "ltr"
}

// Toggle returns the opposite direction.
func (d Direction) Toggle() Direction {
	if d == RTL {
		return LTR
	}
	return RTL
}

// ParseDirection maps "rtl" (any case) to RTL and everything else to LTR.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), "rtl") {
		return RTL
	}
	return LTR
}

const (
	esc          = 0x1b
	cursorFwd    = 'C'
	cursorBack   = 'D'
	csiIntroChar = '['
)

type scanState int

const (
	stateGround scanState = iota
	stateEscape
	stateParams
)

// Transform swaps CSI <params> C and CSI <params> D when d is RTL. Params are
// limited to digits and ';'. Every other byte is copied unchanged, so the
// result always has the same length as p. For LTR p is returned as is.
func Transform(p []byte, d Direction) []byte {
	if d != RTL || len(p) == 0 {
		return p
	}

	out := make([]byte, len(p))
	copy(out, p)

	state := stateGround
	for i := 0; i < len(out); i++ {
		b := out[i]
		switch state {
		case stateGround:
			if b == esc {
				state = stateEscape
			}
		case stateEscape:
			switch b {
			case csiIntroChar:
				state = stateParams
			case esc:
				// stay: a new escape starts here
			default:
				state = stateGround
			}
		case stateParams:
			switch {
			case isParamByte(b):
			case b == cursorFwd:
				out[i] = cursorBack
				state = stateGround
			case b == cursorBack:
				out[i] = cursorFwd
				state = stateGround
			case b == esc:
				state = stateEscape
			default:
				state = stateGround
			}
		}
	}
	return out
}

// TransformString is Transform for strings.
func TransformString(s string, d Direction) string {
	if d != RTL {
		return s
	}
	return string(Transform([]byte(s), d))
}

func isParamByte(b byte) bool {
	return (b >= '0' && b <= '9') || b == ';'
}
