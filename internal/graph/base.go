// Package graph implements the symbol graph: source-file nodes, symbol nodes,
// and the edges between them, backed by two generational arenas so that an
// entire analysis run's allocations can be discarded in one step.
package graph

// NodeID identifies a node within a single Context. IDs restart from zero
// after a Reset, so an ID taken before a Reset does not name the same node
// afterwards, mirroring the arena-reset discipline of the original
// implementation (resetting an arena invalidates every pointer into it).
type NodeID int32

// EdgeID identifies an edge within a single Context.
type EdgeID int32

// Base carries the edge lists shared by every node kind (source nodes and
// symbol nodes alike). It is the Go analogue of buxn_ls_node_base_t: instead
// of next-in/next-out pointers threaded through arena memory, edges are held
// as index slices into the owning Context's edge table.
type Base struct {
	outEdges []EdgeID
	inEdges  []EdgeID
}

// OutEdges returns the IDs of edges leaving this node.
func (b *Base) OutEdges() []EdgeID { return b.outEdges }

// InEdges returns the IDs of edges entering this node.
func (b *Base) InEdges() []EdgeID { return b.inEdges }
