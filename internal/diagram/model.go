package diagram

// NodeKind classifies a diagram node by the hardware engine its context
// targets.
type NodeKind string

const (
	NodeKindCompute NodeKind = "compute" // aicore, aiv, mixed and aicpu
	NodeKindDMA     NodeKind = "dma"
	NodeKindSync    NodeKind = "sync" // notify wait/record and write_value
	NodeKindControl NodeKind = "control"
	NodeKindLabel   NodeKind = "label"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title   string
	Nodes   []*Node
	Edges   []Edge
	Groups  []*Group
	Levels  [][]string
	Unfired []string
}

// Node is one context of the table.
type Node struct {
	ID    string
	Label string // "c<id> <type>" on the first line, owner detail after
	Kind  NodeKind
	Owner string
	Level int // wavefront level, -1 when the context never fires
	State *StateOverlay
}

// Group collects the contexts emitted by one partition node, when there is
// more than one of them (slices, collective subtasks, mixed pairs).
type Group struct {
	Label   string
	NodeIDs []string
}

// StateOverlay carries the firing state of a context.
type StateOverlay struct {
	State     string // ready, gated, waiting or unfired
	PredCount uint32
}

// Edge is one occupied successor slot. Overflow marks a slot pointing at a
// Label.
type Edge struct {
	From     string
	To       string
	Label    string
	Overflow bool
}
