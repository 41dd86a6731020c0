package topology

import (
	"testing"

	"github.com/multishiva/multishiva/internal/event"
)

func TestNeighborAndReverseLookup(t *testing.T) {
	topo := New("h", Declaration{event.EdgeRight: "a"})

	name, ok := topo.Neighbor(event.EdgeRight)
	if !ok || name != "a" {
		t.Fatalf("Neighbor(right) = %q, %v", name, ok)
	}
	if _, ok := topo.Neighbor(event.EdgeLeft); ok {
		t.Fatalf("expected no left neighbor")
	}

	edges := topo.ReverseLookup("a")
	if len(edges) != 1 || edges[0] != event.EdgeRight {
		t.Fatalf("ReverseLookup(a) = %v", edges)
	}
}

func TestReconfigureSwapsAtomically(t *testing.T) {
	topo := New("h", Declaration{event.EdgeRight: "a"})
	topo.Reconfigure(Declaration{event.EdgeLeft: "b"})

	if _, ok := topo.Neighbor(event.EdgeRight); ok {
		t.Fatalf("expected right neighbor to be gone after reconfigure")
	}
	if name, ok := topo.Neighbor(event.EdgeLeft); !ok || name != "b" {
		t.Fatalf("Neighbor(left) = %q, %v", name, ok)
	}
}

func TestHitTestBoundaryAtExactThreshold(t *testing.T) {
	bounds := Bounds{Width: 1920, Height: 1080}
	hit, ok := HitTest(Point{X: 10, Y: 540}, bounds, 10)
	if !ok || hit.Edge != event.EdgeLeft {
		t.Fatalf("expected left edge hit at exact threshold, got %v, %v", hit, ok)
	}
	if _, ok := HitTest(Point{X: 11, Y: 540}, bounds, 10); ok {
		t.Fatalf("expected no hit one pixel past threshold")
	}
}

func TestHitTestRightEdge(t *testing.T) {
	bounds := Bounds{Width: 1920, Height: 1080}
	hit, ok := HitTest(Point{X: 1919, Y: 200}, bounds, 10)
	if !ok || hit.Edge != event.EdgeRight {
		t.Fatalf("expected right edge hit, got %v, %v", hit, ok)
	}
	if hit.Perp != 200 {
		t.Fatalf("expected perp=200, got %d", hit.Perp)
	}
}

func TestHitTestCornerTieFavorsHorizontal(t *testing.T) {
	// Exactly equidistant from left and top edges.
	bounds := Bounds{Width: 1920, Height: 1080}
	hit, ok := HitTest(Point{X: 5, Y: 5}, bounds, 10)
	if !ok || hit.Edge != event.EdgeLeft {
		t.Fatalf("expected horizontal (left) to win the tie, got %v", hit.Edge)
	}
}

func TestHitTestCornerLargerOvershootWins(t *testing.T) {
	bounds := Bounds{Width: 1920, Height: 1080}
	// x=2 (overshoot 8) beats y=8 (overshoot 2): vertical loses despite
	// being "top", because horizontal has strictly larger overshoot here.
	hit, ok := HitTest(Point{X: 2, Y: 8}, bounds, 10)
	if !ok || hit.Edge != event.EdgeLeft {
		t.Fatalf("expected left (larger overshoot) to win, got %v", hit.Edge)
	}
}

func TestEntryPointMirrorsAcrossEdgeAndScalesProportionally(t *testing.T) {
	local := Bounds{Width: 1920, Height: 1080}
	remote := Bounds{Width: 2560, Height: 1440}

	p := EntryPoint(event.EdgeRight, 540, local, remote)
	if p.X != 0 {
		t.Fatalf("expected x=0 entering remote's left edge, got %d", p.X)
	}
	wantY := int32(540.0 / 1079.0 * 1439.0)
	if diff := p.Y - wantY; diff < -1 || diff > 1 {
		t.Fatalf("expected y≈%d, got %d", wantY, p.Y)
	}
}

func TestResolveOrSuggestUnknownNeighbor(t *testing.T) {
	err := ResolveOrSuggest(event.EdgeRight, "agnet", []string{"agent", "other"})
	if err == nil {
		t.Fatalf("expected TopologyError for unknown name")
	}
	if err.Suggestion != "agent" {
		t.Fatalf("expected suggestion 'agent', got %q", err.Suggestion)
	}
}

func TestResolveOrSuggestKnownNeighbor(t *testing.T) {
	if err := ResolveOrSuggest(event.EdgeRight, "agent", []string{"agent"}); err != nil {
		t.Fatalf("expected nil error for known neighbor, got %v", err)
	}
}
