package catalog

// Group declares the scripts of one collection. Groups are plain builders;
// nothing is validated until Build.
type Group struct {
	collection string
	scripts    []pendingScript
	checks     []pendingCheck
}

type pendingScript struct {
	name string
	fn   any
	opts ScriptOptions
}

type pendingCheck struct {
	name string
	fn   any
}

// NewGroup starts a group for collection.
func NewGroup(collection string) *Group {
	return &Group{collection: collection}
}

// Collection returns the target collection name.
func (g *Group) Collection() string { return g.collection }

// Script adds a script. fn must be a DatabaseScript or CollectionScript.
func (g *Group) Script(name string, fn any, opts ScriptOptions) *Group {
	g.scripts = append(g.scripts, pendingScript{name: name, fn: fn, opts: opts})
	return g
}

// Verify adds a verification routine that scripts reference by name through
// ScriptOptions.TestMethod. fn must be a DatabaseCheck or CollectionCheck.
func (g *Group) Verify(name string, fn any) *Group {
	g.checks = append(g.checks, pendingCheck{name: name, fn: fn})
	return g
}
