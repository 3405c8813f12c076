// Package motion provides the motion-planning collaborators used by the
// planners: a spatial pathfinder producing polylines and a velocity
// pathfinder timing them against moving obstacles.
package motion

import (
	"container/heap"
	"context"

	"github.com/elektrokombinacija/stsched/internal/geom"
)

// StaticMap is the navigable map of one agent shape.
type StaticMap interface {
	Blocked(p geom.Point) bool
	Clear(a, b geom.Point) bool
	Waypoints() []geom.Point
}

// SpatialPathfinder finds a collision-free polyline through a static map.
type SpatialPathfinder interface {
	FindPath(ctx context.Context, m StaticMap, start, finish geom.Point) ([]geom.Point, bool)
}

// VisibilityGraph is a SpatialPathfinder running A* over the map's waypoints.
type VisibilityGraph struct{}

// NewVisibilityGraph returns the default spatial pathfinder.
func NewVisibilityGraph() *VisibilityGraph {
	return &VisibilityGraph{}
}

// vgNode for priority queue.
type vgNode struct {
	id     int
	g      float64 // Cost so far
	f      float64 // g + h
	parent *vgNode
	index  int // heap index
}

// vgHeap implements heap.Interface.
type vgHeap []*vgNode

func (h vgHeap) Len() int           { return len(h) }
func (h vgHeap) Less(i, j int) bool { return h[i].f < h[j].f }
func (h vgHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *vgHeap) Push(x any) {
	n := x.(*vgNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *vgHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// FindPath returns the shortest visibility path from start to finish.
// Node 0 is start, node 1 is finish, the rest are waypoints.
func (VisibilityGraph) FindPath(ctx context.Context, m StaticMap, start, finish geom.Point) ([]geom.Point, bool) {
	if start.Equal(finish) {
		return []geom.Point{start}, true
	}
	if m.Blocked(finish) {
		return nil, false
	}
	if m.Clear(start, finish) {
		return []geom.Point{start, finish}, true
	}

	nodes := append([]geom.Point{start, finish}, m.Waypoints()...)
	closed := make([]bool, len(nodes))
	best := make([]float64, len(nodes))
	for i := range best {
		best[i] = -1
	}

	open := &vgHeap{}
	heap.Init(open)
	heap.Push(open, &vgNode{id: 0, f: start.Distance(finish)})
	best[0] = 0

	for open.Len() > 0 {
		if ctx.Err() != nil {
			return nil, false
		}
		cur := heap.Pop(open).(*vgNode)
		if closed[cur.id] {
			continue
		}
		closed[cur.id] = true

		if cur.id == 1 {
			var rev []geom.Point
			for n := cur; n != nil; n = n.parent {
				rev = append(rev, nodes[n.id])
			}
			path := make([]geom.Point, len(rev))
			for i, p := range rev {
				path[len(rev)-1-i] = p
			}
			return path, true
		}

		from := nodes[cur.id]
		for next := 1; next < len(nodes); next++ {
			if closed[next] || next == cur.id {
				continue
			}
			g := cur.g + from.Distance(nodes[next])
			if best[next] >= 0 && g >= best[next] {
				continue
			}
			if !m.Clear(from, nodes[next]) {
				continue
			}
			best[next] = g
			heap.Push(open, &vgNode{id: next, g: g, f: g + nodes[next].Distance(finish), parent: cur})
		}
	}
	return nil, false
}
