package patch

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Hysteresis is how much the best split must outscore the worst merge
// before the tree trades one for the other.
const Hysteresis = 1.5

// minFacing keeps patches seen edge-on from scoring zero.
const minFacing = 0.05

// Config sizes a Tree.
type Config struct {
	// MaxLevel is the deepest level a patch may reach.
	MaxLevel int
	// TargetRefinement is the projected patch edge, in pixels, below which
	// a leaf is not split.
	TargetRefinement float64
	// Patches is the number of seeds emitted per frame.
	Patches int
	// MaxIterations caps split and merge steps per Update; 0 means
	// 4·Patches.
	MaxIterations int
}

func (c Config) validate() error {
	switch {
	case c.MaxLevel < 0 || c.MaxLevel > 30:
		return fmt.Errorf("patch: max level %d out of range", c.MaxLevel)
	case c.Patches < 20:
		return fmt.Errorf("patch: %d patches cannot hold the root mesh", c.Patches)
	case c.TargetRefinement <= 0:
		return errors.New("patch: target refinement must be positive")
	}
	return nil
}

// View is the camera the tree refines for.
type View struct {
	// Position is geocentric, in kilometres.
	Position    r3.Vec
	Forward, Up r3.Vec
	// FovY is the vertical field of view in radians.
	FovY   float64
	Aspect float64
	// Near is the near plane distance in kilometres.
	Near float64
	// ViewportHeight is in pixels.
	ViewportHeight float64
}

// Leaf is one selected patch.
type Leaf struct {
	// Corners are rotated for Winding: corner k is the patch's corner
	// (k+Rotation)%3.
	Corners  [3]r3.Vec
	Level    int
	Winding  Winding
	Rotation int
	// EdgeKm is the longest corner to corner chord.
	EdgeKm float64
}

// Selection is one frame's output: the visible leaves, and the fixed number
// of patch slots they are padded to.
type Selection struct {
	Leaves  []Leaf
	Patches int
}

// Stats describes the tree after an Update.
type Stats struct {
	Nodes, Vertices  int
	Visible, Deepest int
	Splits, Merges   int
	Iterations       int
	// Dropped counts visible leaves that did not fit the patch budget.
	Dropped int
}

type (
	nodeID   int32
	vertexID int32
	edgeKey  [2]vertexID
)

const noNode nodeID = -1

func keyOf(a, b vertexID) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// Corner children lie on two parent edges, the centre child on none.
// parentEdge[child][edge] is the parent edge containing that child edge.
var parentEdge = [4][3]int{
	{0, -1, 2},
	{0, 1, -1},
	{-1, 1, 2},
	{-1, -1, -1},
}

// childrenOnEdge lists the two children touching each parent edge.
var childrenOnEdge = [3][2]int{{0, 1}, {1, 2}, {0, 2}}

type node struct {
	corners  [3]vertexID
	children [4]nodeID
	parent   nodeID
	index    int8
	level    int
	version  uint32
	live     bool
	visible  bool
	splitAt  uint64
	bounds   Bounds
	area     float64
	edge     float64
}

func (n *node) isLeaf() bool { return n.children[0] == noNode }

type vertex struct {
	pos  r3.Vec
	refs int32
	mid  bool
	key  edgeKey
}

type viewState struct {
	eye      r3.Vec
	sub      r3.Vec
	normals  [4]r3.Vec
	forward  r3.Vec
	near     float64
	inside   bool
	horizon  float64
	pxPerRad float64
}

// Tree is the persistent icosahedral patch tree. It is not safe for
// concurrent use.
type Tree struct {
	cfg       Config
	nodes     []node
	freeNodes []nodeID
	verts     []vertex
	freeVerts []vertexID
	mids      map[edgeKey]vertexID
	edges     map[edgeKey][2]nodeID
	roots     []nodeID

	frame   uint64
	visible int
	view    viewState
	stats   Stats
	sel     Selection
}

// NewTree returns a tree holding the 20 root patches.
func NewTree(cfg Config) (*Tree, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t := &Tree{
		cfg:   cfg,
		mids:  make(map[edgeKey]vertexID),
		edges: make(map[edgeKey][2]nodeID),
	}
	verts, faces := Icosahedron()
	for _, v := range verts {
		t.verts = append(t.verts, vertex{pos: v})
	}
	for _, f := range faces {
		id := t.newNode([3]vertexID{vertexID(f[0]), vertexID(f[1]), vertexID(f[2])}, 0, noNode, -1)
		t.roots = append(t.roots, id)
	}
	return t, nil
}

// Config returns the current configuration.
func (t *Tree) Config() Config { return t.cfg }

// Reconfigure changes the budget and refinement limits. Deeper nodes than
// the new MaxLevel are merged away over the next updates.
func (t *Tree) Reconfigure(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	t.cfg = cfg
	return nil
}

// Stats returns the counters of the last Update.
func (t *Tree) Stats() Stats { return t.stats }

// Update refines the tree for v and returns the selected leaves. The
// returned selection is reused by the next call.
func (t *Tree) Update(v View) *Selection {
	t.frame++
	t.stats = Stats{}
	t.prepareView(v)
	t.classify()
	t.refine()
	return t.selection()
}

func (t *Tree) newVertex(p r3.Vec) vertexID {
	if n := len(t.freeVerts); n > 0 {
		id := t.freeVerts[n-1]
		t.freeVerts = t.freeVerts[:n-1]
		t.verts[id] = vertex{pos: p}
		return id
	}
	t.verts = append(t.verts, vertex{pos: p})
	return vertexID(len(t.verts) - 1)
}

func (t *Tree) midpoint(a, b vertexID) vertexID {
	k := keyOf(a, b)
	if id, ok := t.mids[k]; ok {
		return id
	}
	id := t.newVertex(Midpoint(t.verts[a].pos, t.verts[b].pos))
	t.verts[id].mid = true
	t.verts[id].key = k
	t.mids[k] = id
	return id
}

func (t *Tree) unref(v vertexID) {
	vx := &t.verts[v]
	vx.refs--
	if vx.refs == 0 && vx.mid {
		delete(t.mids, vx.key)
		t.freeVerts = append(t.freeVerts, v)
	}
}

func (t *Tree) positions(id nodeID) [3]r3.Vec {
	c := t.nodes[id].corners
	return [3]r3.Vec{t.verts[c[0]].pos, t.verts[c[1]].pos, t.verts[c[2]].pos}
}

func (t *Tree) edgeKey(id nodeID, e int) edgeKey {
	c := t.nodes[id].corners
	return keyOf(c[e], c[(e+1)%3])
}

func (t *Tree) newNode(corners [3]vertexID, level int, parent nodeID, index int8) nodeID {
	var id nodeID
	if n := len(t.freeNodes); n > 0 {
		id = t.freeNodes[n-1]
		t.freeNodes = t.freeNodes[:n-1]
	} else {
		t.nodes = append(t.nodes, node{})
		id = nodeID(len(t.nodes) - 1)
	}
	version := t.nodes[id].version + 1
	t.nodes[id] = node{
		corners:  corners,
		children: [4]nodeID{noNode, noNode, noNode, noNode},
		parent:   parent,
		index:    index,
		level:    level,
		version:  version,
		live:     true,
	}
	pos := t.positions(id)
	n := &t.nodes[id]
	n.bounds = BoundsOf(pos)
	n.area = FlatArea(pos)
	n.edge = EdgeLength(pos)

	for _, v := range corners {
		t.verts[v].refs++
	}
	for e := 0; e < 3; e++ {
		k := t.edgeKey(id, e)
		pair, ok := t.edges[k]
		if !ok {
			pair = [2]nodeID{noNode, noNode}
		}
		if pair[0] == noNode {
			pair[0] = id
		} else {
			pair[1] = id
		}
		t.edges[k] = pair
	}
	return id
}

func (t *Tree) freeNode(id nodeID) {
	for e := 0; e < 3; e++ {
		k := t.edgeKey(id, e)
		pair := t.edges[k]
		for i := range pair {
			if pair[i] == id {
				pair[i] = noNode
			}
		}
		if pair[0] == noNode && pair[1] == noNode {
			delete(t.edges, k)
		} else {
			t.edges[k] = pair
		}
	}
	for _, v := range t.nodes[id].corners {
		t.unref(v)
	}
	t.nodes[id].live = false
	t.freeNodes = append(t.freeNodes, id)
}

// partner returns the node at the same level across edge e, if any.
func (t *Tree) partner(id nodeID, e int) nodeID {
	pair := t.edges[t.edgeKey(id, e)]
	switch id {
	case pair[0]:
		return pair[1]
	case pair[1]:
		return pair[0]
	}
	return noNode
}

// coarseNeighbour returns the leaf one level up across edge e of a node
// that has no partner there.
func (t *Tree) coarseNeighbour(id nodeID, e int) nodeID {
	n := &t.nodes[id]
	if n.parent == noNode {
		return noNode
	}
	f := parentEdge[n.index][e]
	if f < 0 {
		return noNode
	}
	return t.partner(n.parent, f)
}

func (t *Tree) childrenAreLeaves(id nodeID) bool {
	n := &t.nodes[id]
	if n.isLeaf() {
		return false
	}
	for _, c := range n.children {
		if !t.nodes[c].isLeaf() {
			return false
		}
	}
	return true
}

// canMerge reports whether collapsing id keeps every neighbour within one
// level: no neighbour child along a shared edge may itself be split.
func (t *Tree) canMerge(id nodeID) bool {
	if !t.childrenAreLeaves(id) {
		return false
	}
	for f := 0; f < 3; f++ {
		q := t.partner(id, f)
		if q == noNode || t.nodes[q].isLeaf() {
			continue
		}
		k := t.edgeKey(id, f)
		for qe := 0; qe < 3; qe++ {
			if t.edgeKey(q, qe) != k {
				continue
			}
			for _, ci := range childrenOnEdge[qe] {
				if !t.nodes[t.nodes[q].children[ci]].isLeaf() {
					return false
				}
			}
		}
	}
	return true
}

// splitPlan lists the splits needed before id can split, coarser
// neighbours first, ending with id itself.
func (t *Tree) splitPlan(id nodeID, plan []nodeID, seen map[nodeID]bool) []nodeID {
	seen[id] = true
	for e := 0; e < 3; e++ {
		if t.partner(id, e) != noNode {
			continue
		}
		q := t.coarseNeighbour(id, e)
		if q != noNode && !seen[q] && t.nodes[q].isLeaf() {
			plan = t.splitPlan(q, plan, seen)
		}
	}
	return append(plan, id)
}

func (t *Tree) splitNode(id nodeID) {
	c := t.nodes[id].corners
	level := t.nodes[id].level
	ab := t.midpoint(c[0], c[1])
	bc := t.midpoint(c[1], c[2])
	ca := t.midpoint(c[2], c[0])
	quads := [4][3]vertexID{{c[0], ab, ca}, {ab, c[1], bc}, {ca, bc, c[2]}, {bc, ca, ab}}

	var kids [4]nodeID
	for i, q := range quads {
		kids[i] = t.newNode(q, level+1, id, int8(i))
	}
	n := &t.nodes[id]
	n.children = kids
	n.splitAt = t.frame

	visible := 0
	for _, k := range kids {
		v := n.visible && t.isVisible(k)
		t.nodes[k].visible = v
		if v {
			visible++
		}
	}
	if n.visible {
		t.visible += visible - 1
	}
	t.stats.Splits++
}

func (t *Tree) mergeNode(id nodeID) {
	n := &t.nodes[id]
	kids := n.children
	visible := 0
	for _, k := range kids {
		if t.nodes[k].visible {
			visible++
		}
	}
	for _, k := range kids {
		t.freeNode(k)
	}
	n = &t.nodes[id]
	n.children = [4]nodeID{noNode, noNode, noNode, noNode}
	if n.visible {
		t.visible -= visible - 1
	}
	t.stats.Merges++
}

func (t *Tree) prepareView(v View) {
	fwd := r3.Unit(v.Forward)
	right := r3.Unit(r3.Cross(fwd, v.Up))
	up := r3.Cross(right, fwd)
	tanY := math.Tan(v.FovY / 2)
	tanX := tanY * v.Aspect

	vs := viewState{
		eye:     v.Position,
		sub:     r3.Unit(v.Position),
		forward: fwd,
		near:    v.Near,
		normals: [4]r3.Vec{
			r3.Unit(r3.Add(right, r3.Scale(tanX, fwd))),
			r3.Unit(r3.Add(r3.Scale(-1, right), r3.Scale(tanX, fwd))),
			r3.Unit(r3.Add(up, r3.Scale(tanY, fwd))),
			r3.Unit(r3.Add(r3.Scale(-1, up), r3.Scale(tanY, fwd))),
		},
		pxPerRad: v.ViewportHeight / (2 * tanY),
	}
	d := r3.Norm(v.Position)
	if d <= Radius {
		vs.inside = true
	} else {
		vs.horizon = math.Acos(Radius/d) + math.Acos(Radius/(Radius+TerrainMarginKm))
	}
	t.view = vs
}

// isVisible tests the node's bounding sphere against the frustum and its
// cap against the horizon.
func (t *Tree) isVisible(id nodeID) bool {
	b := &t.nodes[id].bounds
	rel := r3.Sub(b.Center, t.view.eye)
	for _, n := range t.view.normals {
		if r3.Dot(rel, n) < -b.Radius {
			return false
		}
	}
	if r3.Dot(rel, t.view.forward)-t.view.near < -b.Radius {
		return false
	}
	if t.view.inside {
		return true
	}
	cos := math.Max(-1, math.Min(1, r3.Dot(b.Normal, t.view.sub)))
	return math.Acos(cos)-b.CapAngle <= t.view.horizon
}

// distance returns the distance from the eye to the nearest corner or the
// cap centre.
func (t *Tree) distance(id nodeID) float64 {
	d := r3.Norm(r3.Sub(t.nodes[id].bounds.Center, t.view.eye))
	for _, p := range t.positions(id) {
		d = math.Min(d, r3.Norm(r3.Sub(p, t.view.eye)))
	}
	return math.Max(d, 1e-6)
}

func (t *Tree) underCamera(id nodeID) bool {
	p := t.positions(id)
	return Contains(p[0], p[1], p[2], t.view.sub)
}

// score is the projected solid angle of the node. Patches under the camera
// outrank everything until they reach the deepest level.
func (t *Tree) score(id nodeID) float64 {
	n := &t.nodes[id]
	if n.level < t.cfg.MaxLevel && t.underCamera(id) {
		return math.Inf(1)
	}
	d := t.distance(id)
	facing := r3.Dot(n.bounds.Normal, r3.Unit(r3.Sub(t.view.eye, n.bounds.Center)))
	return n.area * math.Max(facing, minFacing) / (d * d)
}

func (t *Tree) wantsSplit(id nodeID) bool {
	n := &t.nodes[id]
	if !n.live || !n.isLeaf() || !n.visible || n.level >= t.cfg.MaxLevel {
		return false
	}
	if t.underCamera(id) {
		return true
	}
	return n.edge/t.distance(id)*t.view.pxPerRad >= t.cfg.TargetRefinement
}

func (t *Tree) mergeable(id nodeID) bool {
	n := &t.nodes[id]
	return n.live && n.visible && n.splitAt != t.frame && t.childrenAreLeaves(id)
}

// classify recomputes visibility top down and collapses subtrees that left
// the view.
func (t *Tree) classify() {
	t.visible = 0
	for _, r := range t.roots {
		t.classifyNode(r, true)
	}
	for pass := 0; pass <= t.cfg.MaxLevel+1; pass++ {
		merges := t.stats.Merges
		for _, r := range t.roots {
			t.collapse(r)
		}
		if t.stats.Merges == merges {
			break
		}
	}
}

func (t *Tree) classifyNode(id nodeID, parentVisible bool) {
	v := parentVisible && t.isVisible(id)
	n := &t.nodes[id]
	n.visible = v
	if n.isLeaf() {
		if v {
			t.visible++
		}
		return
	}
	for _, c := range n.children {
		t.classifyNode(c, v)
	}
}

func (t *Tree) collapse(id nodeID) {
	n := &t.nodes[id]
	if n.isLeaf() {
		return
	}
	for _, c := range n.children {
		t.collapse(c)
	}
	overDeep := t.nodes[id].level >= t.cfg.MaxLevel
	if (!t.nodes[id].visible || overDeep) && t.canMerge(id) {
		t.mergeNode(id)
	}
}

type candidate struct {
	id      nodeID
	version uint32
	score   float64
}

// candidates is a heap of nodes; max puts the highest score on top.
type candidates struct {
	items []candidate
	max   bool
}

func (h *candidates) Len() int { return len(h.items) }

func (h *candidates) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.score != b.score {
		if h.max {
			return a.score > b.score
		}
		return a.score < b.score
	}
	return a.id < b.id
}

func (h *candidates) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *candidates) Push(x any)    { h.items = append(h.items, x.(candidate)) }

func (h *candidates) Pop() any {
	c := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return c
}

// top discards stale entries and returns the best remaining one.
func (h *candidates) top(valid func(nodeID) bool, t *Tree) (candidate, bool) {
	for h.Len() > 0 {
		c := h.items[0]
		if t.nodes[c.id].live && t.nodes[c.id].version == c.version && valid(c.id) {
			return c, true
		}
		heap.Pop(h)
	}
	return candidate{}, false
}

func (t *Tree) push(h *candidates, id nodeID) {
	heap.Push(h, candidate{id: id, version: t.nodes[id].version, score: t.score(id)})
}

// refine splits the best leaves while the budget allows, and trades the
// worst merges for better splits.
func (t *Tree) refine() {
	splits := &candidates{max: true}
	merges := &candidates{}
	for i := range t.nodes {
		id := nodeID(i)
		switch {
		case t.wantsSplit(id):
			t.push(splits, id)
		case t.nodes[id].live && t.mergeable(id):
			t.push(merges, id)
		}
	}

	budget := t.cfg.Patches
	for t.visible > budget {
		m, ok := merges.top(t.mergeable, t)
		if !ok {
			break
		}
		heap.Pop(merges)
		if t.canMerge(m.id) {
			t.afterMerge(m.id, merges)
		}
	}

	limit := t.cfg.MaxIterations
	if limit <= 0 {
		limit = 4 * budget
	}
	seen := make(map[nodeID]bool)
	for ; t.stats.Iterations < limit; t.stats.Iterations++ {
		s, ok := splits.top(t.wantsSplit, t)
		if !ok {
			break
		}
		clear(seen)
		plan := t.splitPlan(s.id, nil, seen)
		if t.visible+3*len(plan) <= budget {
			heap.Pop(splits)
			for _, id := range plan {
				if !t.nodes[id].isLeaf() {
					continue
				}
				t.splitNode(id)
				for _, k := range t.nodes[id].children {
					if t.wantsSplit(k) {
						t.push(splits, k)
					}
				}
			}
			continue
		}

		m, ok := merges.top(t.mergeable, t)
		if !ok || !(s.score > Hysteresis*m.score) {
			break
		}
		heap.Pop(merges)
		if t.canMerge(m.id) {
			t.afterMerge(m.id, merges)
		}
	}
}

func (t *Tree) afterMerge(id nodeID, merges *candidates) {
	t.mergeNode(id)
	if p := t.nodes[id].parent; p != noNode && t.mergeable(p) {
		t.push(merges, p)
	}
}

func (t *Tree) selection() *Selection {
	t.sel.Patches = t.cfg.Patches
	t.sel.Leaves = t.sel.Leaves[:0]
	for _, r := range t.roots {
		t.collect(r)
	}
	if len(t.sel.Leaves) > t.cfg.Patches {
		t.stats.Dropped = len(t.sel.Leaves) - t.cfg.Patches
		t.sel.Leaves = t.sel.Leaves[:t.cfg.Patches]
	}

	for i := range t.nodes {
		if t.nodes[i].live {
			t.stats.Nodes++
		}
	}
	t.stats.Vertices = len(t.verts) - len(t.freeVerts)
	t.stats.Visible = t.visible
	return &t.sel
}

func (t *Tree) collect(id nodeID) {
	n := &t.nodes[id]
	if !n.isLeaf() {
		for _, c := range n.children {
			t.collect(c)
		}
		return
	}
	if !n.visible {
		return
	}
	var mask uint8
	for e := 0; e < 3; e++ {
		if t.partner(id, e) == noNode {
			mask |= 1 << e
		}
	}
	w, r := Classify(mask)
	t.sel.Leaves = append(t.sel.Leaves, Leaf{
		Corners:  Rotate(t.positions(id), r),
		Level:    n.level,
		Winding:  w,
		Rotation: r,
		EdgeKm:   n.edge,
	})
	t.stats.Deepest = max(t.stats.Deepest, n.level)
}
