package graph

// Generations holds the two analyzer contexts ("A" and "B") that the
// analysis driver alternates between, per spec.md §4.2. At any time one is
// Current (mutated by the in-flight run) and one is Previous (read-only,
// consulted for dependency ordering and error-tolerance carry-over).
type Generations struct {
	a, b             Context
	current, previous *Context
}

// NewGenerations returns a fresh pair of empty contexts with "a" current.
func NewGenerations() *Generations {
	g := &Generations{}
	g.current = &g.a
	g.previous = &g.b
	return g
}

// Current returns the context being built by the in-flight run.
func (g *Generations) Current() *Context {
	return g.current
}

// Previous returns the context built by the prior run.
func (g *Generations) Previous() *Context {
	return g.previous
}

// Swap resets the previous context and exchanges current/previous roles, so
// the (now-empty) former previous becomes the new current. This is step 1
// of the analysis driver's per-run protocol.
func (g *Generations) Swap() {
	g.previous.Reset()
	g.current, g.previous = g.previous, g.current
}
