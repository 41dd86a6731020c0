package topology

import "github.com/multishiva/multishiva/internal/event"

// EdgeHit describes a detected edge crossing: which edge, how far past the
// threshold band the pointer sits (used to pick a winner at corners), and
// the perpendicular pixel coordinate at the moment of the hit (the y
// coordinate for a left/right crossing, x for a top/bottom crossing),
// needed by EntryPoint to preserve proportional position on the remote
// side.
type EdgeHit struct {
	Edge      event.Edge
	Overshoot int32
	Perp      int32
}

// isHorizontal reports whether crossing this edge is a horizontal (x-axis)
// transition. Used to break corner ties in favor of horizontal.
func isHorizontal(e event.Edge) bool {
	return e == event.EdgeLeft || e == event.EdgeRight
}

// HitTest reports a direction when the pointer is within thresholdPx of
// exactly one edge; at a corner (within threshold of two edges at once),
// the axis with the larger overshoot wins, ties favor horizontal. A
// distance of exactly thresholdPx counts as a hit; thresholdPx+1 does
// not.
func HitTest(pos Point, bounds Bounds, thresholdPx int32) (EdgeHit, bool) {
	type candidate struct {
		edge event.Edge
		dist int32
		perp int32
	}

	var candidates []candidate
	if d := pos.X; d <= thresholdPx {
		candidates = append(candidates, candidate{event.EdgeLeft, d, pos.Y})
	}
	if d := bounds.Width - 1 - pos.X; d <= thresholdPx {
		candidates = append(candidates, candidate{event.EdgeRight, d, pos.Y})
	}
	if d := pos.Y; d <= thresholdPx {
		candidates = append(candidates, candidate{event.EdgeTop, d, pos.X})
	}
	if d := bounds.Height - 1 - pos.Y; d <= thresholdPx {
		candidates = append(candidates, candidate{event.EdgeBottom, d, pos.X})
	}

	if len(candidates) == 0 {
		return EdgeHit{}, false
	}

	best := candidates[0]
	bestOvershoot := thresholdPx - best.dist
	for _, c := range candidates[1:] {
		overshoot := thresholdPx - c.dist
		if overshoot > bestOvershoot {
			best, bestOvershoot = c, overshoot
			continue
		}
		if overshoot == bestOvershoot && isHorizontal(c.edge) && !isHorizontal(best.edge) {
			best, bestOvershoot = c, overshoot
		}
	}

	return EdgeHit{Edge: best.edge, Overshoot: bestOvershoot, Perp: best.perp}, true
}

// EntryPoint places the cursor on the
// remote side at a position mirrored across enteredEdge, preserving the
// perpendicular coordinate proportionally. localBounds is the bounds the
// hit was measured against (source of perp); remoteBounds is the target
// screen's bounds (see DESIGN.md's Open Question resolution for how a
// caller obtains this).
func EntryPoint(enteredEdge event.Edge, perp int32, localBounds, remoteBounds Bounds) Point {
	var frac float64
	if isHorizontal(enteredEdge) {
		if localBounds.Height > 1 {
			frac = float64(perp) / float64(localBounds.Height-1)
		}
	} else {
		if localBounds.Width > 1 {
			frac = float64(perp) / float64(localBounds.Width-1)
		}
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}

	switch enteredEdge {
	case event.EdgeRight:
		// exited host's right edge -> enters remote's left edge
		return Point{X: 0, Y: int32(frac * float64(remoteBounds.Height-1))}
	case event.EdgeLeft:
		return Point{X: remoteBounds.Width - 1, Y: int32(frac * float64(remoteBounds.Height-1))}
	case event.EdgeBottom:
		return Point{X: int32(frac * float64(remoteBounds.Width-1)), Y: 0}
	case event.EdgeTop:
		return Point{X: int32(frac * float64(remoteBounds.Width-1)), Y: remoteBounds.Height - 1}
	default:
		return Point{}
	}
}
