package graph

// Context is one generational arena: every source node, symbol node, and
// edge allocated during a single analysis run. Resetting a Context discards
// everything in it at once, the same trade the original makes by resetting
// a barena instead of freeing nodes individually.
type Context struct {
	sources []*Source
	symbols []*Symbol
	edges   []Edge

	sourceByPath map[string]NodeID
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{
		sourceByPath: make(map[string]NodeID),
	}
}

// Reset discards every node and edge, as if the Context were newly created.
// Capacity is retained so repeated runs don't re-grow the backing slices.
func (c *Context) Reset() {
	c.sources = c.sources[:0]
	c.symbols = c.symbols[:0]
	c.edges = c.edges[:0]
	for k := range c.sourceByPath {
		delete(c.sourceByPath, k)
	}
}

// NewSource allocates a Source node for path and returns its ID.
func (c *Context) NewSource(path, uri string) NodeID {
	id := NodeID(len(c.sources))
	c.sources = append(c.sources, &Source{Path: path, URI: uri})
	c.sourceByPath[path] = id
	return id
}

// Source returns the Source node with the given ID.
func (c *Context) Source(id NodeID) *Source {
	if int(id) < 0 || int(id) >= len(c.sources) {
		return nil
	}
	return c.sources[id]
}

// SourceByPath looks up a Source node previously created with NewSource.
func (c *Context) SourceByPath(path string) (NodeID, bool) {
	id, ok := c.sourceByPath[path]
	return id, ok
}

// Sources returns every Source node allocated in this Context.
func (c *Context) Sources() []*Source {
	return c.sources
}

// NewSymbol allocates a Symbol node and returns its ID.
func (c *Context) NewSymbol(sym Symbol) NodeID {
	id := NodeID(len(c.symbols))
	copied := sym
	c.symbols = append(c.symbols, &copied)
	return id
}

// Symbol returns the Symbol node with the given ID.
func (c *Context) Symbol(id NodeID) *Symbol {
	if int(id) < 0 || int(id) >= len(c.symbols) {
		return nil
	}
	return c.symbols[id]
}

// Symbols returns every Symbol node allocated in this Context.
func (c *Context) Symbols() []*Symbol {
	return c.symbols
}

// base returns the node's embedded Base for edge-list splicing.
func (c *Context) base(ref NodeRef) *Base {
	switch ref.Kind {
	case NodeKindSource:
		if src := c.Source(ref.ID); src != nil {
			return &src.Base
		}
	case NodeKindSymbol:
		if sym := c.Symbol(ref.ID); sym != nil {
			return &sym.Base
		}
	}
	return nil
}

// AddEdge allocates an edge in the Context and splices it into both
// endpoints' edge lists, the Go analogue of buxn_ls_graph_add_edge.
func (c *Context) AddEdge(from, to NodeRef) EdgeID {
	id := EdgeID(len(c.edges))
	c.edges = append(c.edges, Edge{From: from, To: to})

	if b := c.base(from); b != nil {
		b.outEdges = append(b.outEdges, id)
	}
	if b := c.base(to); b != nil {
		b.inEdges = append(b.inEdges, id)
	}

	return id
}

// Edge returns the edge with the given ID.
func (c *Context) Edge(id EdgeID) Edge {
	return c.edges[id]
}
