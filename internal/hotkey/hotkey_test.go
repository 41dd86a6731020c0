package hotkey

import "testing"

func TestParseCtrlAltH(t *testing.T) {
	c, err := Parse("Ctrl+Alt+H")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Modifiers != ModCtrl|ModAlt {
		t.Fatalf("expected Ctrl+Alt modifiers, got %b", c.Modifiers)
	}
	if c.Code != keyCodes["h"] {
		t.Fatalf("expected key code for 'h', got %d", c.Code)
	}
}

func TestParseCaseInsensitive(t *testing.T) {
	c, err := Parse("ctrl+alt+h")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Modifiers != ModCtrl|ModAlt {
		t.Fatalf("expected modifiers preserved across case, got %b", c.Modifiers)
	}
}

func TestParseRejectsUnknownModifier(t *testing.T) {
	if _, err := Parse("Fn+H"); err == nil {
		t.Fatalf("expected error for unknown modifier")
	}
}

func TestParseRejectsUnknownKey(t *testing.T) {
	if _, err := Parse("Ctrl+Nonexistent"); err == nil {
		t.Fatalf("expected error for unrecognized terminal key")
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatalf("expected error for empty hotkey string")
	}
}

func TestMatches(t *testing.T) {
	c, err := Parse("Ctrl+Alt+H")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !c.Matches(c.Code, ModCtrl|ModAlt) {
		t.Fatalf("expected Matches to fire on exact modifiers/code")
	}
	if c.Matches(c.Code, ModCtrl) {
		t.Fatalf("expected Matches to reject partial modifier set")
	}
}
