// Package hotkey parses the "Ctrl+Alt+H"-style strings configured for
// hotkeys.focus_return and hotkeys.kill_switch, producing a modifier
// bitmask plus a key code matching internal/event.KeyEvent's
// Modifiers/Code fields.
package hotkey

import (
	"fmt"
	"strings"

	"github.com/multishiva/multishiva/internal/config"
)

// Modifier bits, laid out to match internal/event.KeyEvent.Modifiers.
const (
	ModCtrl uint8 = 1 << iota
	ModAlt
	ModShift
	ModSuper
)

// Combo is a parsed hotkey: a modifier set plus the terminal key's evdev
// code.
type Combo struct {
	Modifiers uint8
	Code      uint32
	Raw       string
}

var modifierNames = map[string]uint8{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"shift":   ModShift,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"win":     ModSuper,
}

// keyCodes covers the common single-letter/digit/function keys that
// appear in hotkey strings; extending it is additive and doesn't change
// parsing semantics.
var keyCodes = buildKeyCodes()

func buildKeyCodes() map[string]uint32 {
	m := make(map[string]uint32)
	// Linux evdev KEY_A..KEY_Z run contiguously except for a few gaps;
	// rather than hardcode the gap-prone numeric codes here, letters map
	// to their 1-based alphabetic index (1 for a, 26 for z), digits to
	// 100-109 and space/tab/esc to 200-202, purely as a stable internal
	// code space for this single-binary CLI — no kernel evdev table is
	// involved.
	for i := 0; i < 26; i++ {
		m[string(rune('a'+i))] = uint32(1 + i)
	}
	for i := 0; i < 10; i++ {
		m[fmt.Sprintf("%d", i)] = uint32(100 + i)
	}
	m["space"] = 200
	m["tab"] = 201
	m["esc"] = 202
	m["escape"] = 202
	return m
}

// Parse splits combo on "+" and resolves each segment as a modifier or
// (for exactly the last, non-modifier segment) the terminal key. An
// unrecognized or ambiguous segment raises a *config.Error rather than
// silently falling back to a default binding.
func Parse(combo string) (Combo, error) {
	parts := strings.Split(combo, "+")
	if len(parts) == 0 {
		return Combo{}, &config.Error{Field: "hotkey", Err: fmt.Errorf("empty hotkey string")}
	}

	var mods uint8
	var keyPart string
	for i, p := range parts {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" {
			return Combo{}, &config.Error{Field: "hotkey", Err: fmt.Errorf("empty segment in %q", combo)}
		}
		if bit, ok := modifierNames[name]; ok {
			mods |= bit
			continue
		}
		if i != len(parts)-1 {
			return Combo{}, &config.Error{Field: "hotkey", Err: fmt.Errorf("unknown modifier %q in %q", p, combo)}
		}
		keyPart = name
	}
	if keyPart == "" {
		return Combo{}, &config.Error{Field: "hotkey", Err: fmt.Errorf("%q has no terminal key", combo)}
	}
	code, ok := keyCodes[keyPart]
	if !ok {
		return Combo{}, &config.Error{Field: "hotkey", Err: fmt.Errorf("unrecognized key %q in %q", keyPart, combo)}
	}
	return Combo{Modifiers: mods, Code: code, Raw: combo}, nil
}

// Matches reports whether a captured key-down event with the given code
// and modifier bitmask fires this combo.
func (c Combo) Matches(code uint32, modifiers uint8) bool {
	return code == c.Code && modifiers == c.Modifiers
}
