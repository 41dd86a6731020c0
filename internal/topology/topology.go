// Package topology implements the spatial edge-mapping model: a local
// machine's declared neighbors by direction, a reverse index for O(1)
// lookup by neighbor name, edge-hit testing against a pointer position,
// and proportional entry-point computation for seating the cursor on the
// remote side of a crossing.
//
// The reader-mostly/rare-writer discipline (many readers via RLock, a
// single reconfiguration writer that swaps the whole map under a write
// lock) follows the mutex conventions used throughout the teacher's peer
// package: the map is read far more often than it's reconfigured.
package topology

import (
	"fmt"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/multishiva/multishiva/internal/event"
)

// Bounds is a screen's pixel dimensions.
type Bounds struct {
	Width  int32
	Height int32
}

// Point is a pixel position.
type Point struct {
	X, Y int32
}

// Declaration is the edges->neighbor mapping for one machine, as read from
// the configuration document's `edges:` block.
type Declaration map[event.Edge]string

// Topology holds one machine's own neighbor declarations plus the reverse
// index used for constant-time lookup by neighbor name.
type Topology struct {
	mu        sync.RWMutex
	self      string
	neighbors map[event.Edge]string
	reverse   map[string][]event.Edge
}

// New builds a Topology for the machine named self from its edge
// declarations. Names referring to no one are simply absent from decl.
func New(self string, decl Declaration) *Topology {
	t := &Topology{self: self}
	t.swap(decl)
	return t
}

func (t *Topology) swap(decl Declaration) {
	neighbors := make(map[event.Edge]string, len(decl))
	reverse := make(map[string][]event.Edge, len(decl))
	for edge, name := range decl {
		if name == "" {
			continue
		}
		neighbors[edge] = name
		reverse[name] = append(reverse[name], edge)
	}
	t.mu.Lock()
	t.neighbors = neighbors
	t.reverse = reverse
	t.mu.Unlock()
}

// Reconfigure atomically replaces the declaration: readers never observe
// a partially-applied map, since the swap happens under a single write
// lock.
func (t *Topology) Reconfigure(decl Declaration) {
	t.swap(decl)
}

// Self returns the machine name this Topology was built for.
func (t *Topology) Self() string { return t.self }

// Neighbor returns the declared neighbor for a direction, if any.
func (t *Topology) Neighbor(dir event.Edge) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.neighbors[dir]
	return name, ok
}

// ReverseLookup returns the directions under which name is declared as a
// neighbor, for O(1) lookup on inbound focus release / connection events.
func (t *Topology) ReverseLookup(name string) []event.Edge {
	t.mu.RLock()
	defer t.mu.RUnlock()
	edges := t.reverse[name]
	out := make([]event.Edge, len(edges))
	copy(out, edges)
	return out
}

// Names returns every distinct neighbor name currently declared.
func (t *Topology) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.reverse))
	for name := range t.reverse {
		names = append(names, name)
	}
	return names
}

// TopologyError reports a neighbor reference to an unknown machine name:
// logged and treated as "no neighbor" for that edge rather than fatal.
// Carries a levenshtein-nearest suggestion among currently-known names as
// a diagnostic aid, since a typo'd neighbor name is otherwise a silent
// dead edge.
type TopologyError struct {
	Edge       event.Edge
	Name       string
	Suggestion string
}

func (e *TopologyError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("topology: unknown neighbor %q on %s edge (did you mean %q?)", e.Name, e.Edge, e.Suggestion)
	}
	return fmt.Sprintf("topology: unknown neighbor %q on %s edge", e.Name, e.Edge)
}

// ResolveOrSuggest looks up a declared neighbor name against the set of
// currently known/connected machine names and, if it isn't among them,
// returns a *TopologyError carrying the closest match by edit distance.
// An unknown neighbor is treated as "no neighbor" for that edge, not a
// fatal error; callers log the returned error and proceed as if absent.
func ResolveOrSuggest(edge event.Edge, name string, known []string) *TopologyError {
	for _, k := range known {
		if k == name {
			return nil
		}
	}
	best := ""
	bestDist := -1
	for _, k := range known {
		d := levenshtein.ComputeDistance(name, k)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = k
		}
	}
	return &TopologyError{Edge: edge, Name: name, Suggestion: best}
}
