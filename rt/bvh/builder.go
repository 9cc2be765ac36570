package bvh

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/gekko3d/wavert/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Matches WGSL BVHNode
// struct BVHNode {
//    aabb_min : vec4<f32>; (16)
//    aabb_max : vec4<f32>; (16)
//    left : i32; (4)
//    right : i32; (4)
//    leaf_first : i32; (4)
//    leaf_count : i32; (4)
//    padding : i32[4]; (16)
// }; -> 64 bytes

const NodeSize = 64

type Node struct {
	Min       mgl32.Vec3
	Max       mgl32.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

func (n *Node) IsLeaf() bool { return n.Left < 0 && n.Right < 0 }

func (n *Node) ToBytes() []byte {
	buf := make([]byte, NodeSize)

	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(n.Min.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(n.Min.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(n.Min.Z()))

	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(n.Max.X()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(n.Max.Y()))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(n.Max.Z()))

	binary.LittleEndian.PutUint32(buf[32:36], uint32(n.Left))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(n.Right))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(n.LeafFirst))
	binary.LittleEndian.PutUint32(buf[44:48], uint32(n.LeafCount))

	return buf
}

// Tree is a linearized BVH. Leaves reference Order[LeafFirst : LeafFirst+LeafCount],
// which holds indices into the caller's item slice.
type Tree struct {
	Nodes []Node
	Order []int
}

func (t *Tree) Bytes() []byte {
	if len(t.Nodes) == 0 {
		// Empty root leaf so the GPU side always has a node to read.
		empty := Node{Left: -1, Right: -1, LeafFirst: -1}
		return empty.ToBytes()
	}
	out := make([]byte, 0, len(t.Nodes)*NodeSize)
	for i := range t.Nodes {
		out = append(out, t.Nodes[i].ToBytes()...)
	}
	return out
}

type item struct {
	bounds   core.Bounds
	centroid mgl32.Vec3
	index    int
}

// Builder splits at the centroid median of the longest axis.
// MaxLeafSize 0 or 1 gives one item per leaf, which is what the instance level uses.
type Builder struct {
	MaxLeafSize int
}

func (b *Builder) Build(bounds []core.Bounds) *Tree {
	tree := &Tree{}
	if len(bounds) == 0 {
		return tree
	}

	items := make([]item, len(bounds))
	for i, bb := range bounds {
		items[i] = item{bounds: bb, centroid: bb.Centroid(), index: i}
	}

	tree.Nodes = make([]Node, 0, 2*len(items))
	tree.Order = make([]int, 0, len(items))
	b.recursiveBuild(items, tree)
	return tree
}

func (b *Builder) recursiveBuild(items []item, tree *Tree) int32 {
	idx := int32(len(tree.Nodes))
	tree.Nodes = append(tree.Nodes, Node{Left: -1, Right: -1, LeafFirst: -1, LeafCount: 0})

	bounds := core.EmptyBounds()
	centroids := core.EmptyBounds()
	for _, it := range items {
		bounds = bounds.Union(it.bounds)
		centroids = centroids.Extend(it.centroid)
	}
	tree.Nodes[idx].Min = bounds.Min
	tree.Nodes[idx].Max = bounds.Max

	maxLeaf := b.MaxLeafSize
	if maxLeaf < 1 {
		maxLeaf = 1
	}
	if len(items) <= maxLeaf {
		tree.Nodes[idx].LeafFirst = int32(len(tree.Order))
		tree.Nodes[idx].LeafCount = int32(len(items))
		for _, it := range items {
			tree.Order = append(tree.Order, it.index)
		}
		return idx
	}

	extent := centroids.Max.Sub(centroids.Min)
	axis := 0
	if extent.Y() > extent.X() {
		axis = 1
	}
	if extent.Z() > extent[axis] {
		axis = 2
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].centroid[axis] < items[j].centroid[axis]
	})

	mid := len(items) / 2
	left := b.recursiveBuild(items[:mid], tree)
	right := b.recursiveBuild(items[mid:], tree)
	tree.Nodes[idx].Left = left
	tree.Nodes[idx].Right = right

	return idx
}

// Intersect walks the tree depth first, left child before right, pruning nodes
// whose box lies beyond the current best. leaf is called for every item whose leaf box is
// hit closer than the current best and returns the (possibly reduced) best distance.
func (t *Tree) Intersect(origin, dir mgl32.Vec3, tMax float32, leaf func(item int, best float32) float32) float32 {
	if len(t.Nodes) == 0 {
		return tMax
	}
	invDir := mgl32.Vec3{1 / dir.X(), 1 / dir.Y(), 1 / dir.Z()}
	best := tMax

	var stack [64]int32
	sp := 0
	stack[sp] = 0
	sp++
	for sp > 0 {
		sp--
		n := &t.Nodes[stack[sp]]
		bb := core.Bounds{Min: n.Min, Max: n.Max}
		if _, ok := bb.IntersectRay(origin, invDir, best); !ok {
			continue
		}
		if n.IsLeaf() {
			for i := n.LeafFirst; i < n.LeafFirst+n.LeafCount; i++ {
				best = leaf(t.Order[i], best)
			}
			continue
		}
		if sp+2 > len(stack) {
			// Median splits keep depth at log2(n); this only guards corrupt trees.
			continue
		}
		stack[sp] = n.Right
		sp++
		stack[sp] = n.Left
		sp++
	}
	return best
}
