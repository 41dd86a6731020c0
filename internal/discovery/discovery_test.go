package discovery

import (
	"testing"

	"go.uber.org/zap"
)

func TestSelectRecordPrefersExpectedHostMatch(t *testing.T) {
	log := zap.NewNop()
	found := []Found{
		{MachineName: "decoy"},
		{MachineName: "study"},
	}
	got, err := selectRecord(log, found, "study")
	if err != nil {
		t.Fatalf("selectRecord: %v", err)
	}
	if got.MachineName != "study" {
		t.Fatalf("got %q, want study", got.MachineName)
	}
}

func TestSelectRecordNoExpectedHostTakesFirst(t *testing.T) {
	log := zap.NewNop()
	found := []Found{{MachineName: "a"}, {MachineName: "b"}}
	got, err := selectRecord(log, found, "")
	if err != nil {
		t.Fatalf("selectRecord: %v", err)
	}
	if got.MachineName != "a" {
		t.Fatalf("got %q, want a", got.MachineName)
	}
}

func TestSelectRecordExpectedHostNotFound(t *testing.T) {
	log := zap.NewNop()
	found := []Found{{MachineName: "a"}}
	if _, err := selectRecord(log, found, "missing"); err == nil {
		t.Fatalf("expected error for unmatched expected host")
	}
}

func TestSelectRecordEmpty(t *testing.T) {
	log := zap.NewNop()
	if _, err := selectRecord(log, nil, ""); err == nil {
		t.Fatalf("expected error for empty result set")
	}
}
