package schema

// MaxInlineFanout is the number of successor slots physically stored on one
// Context record. Slot MaxInlineFanout-1 holds either a real successor or the
// id of the Label continuing the chain.
const MaxInlineFanout = 26

// ContextType is the hardware context-type discriminant.
type ContextType string

const (
	ContextAtStart      ContextType = "at_start"
	ContextLabel        ContextType = "label"
	ContextAICore       ContextType = "aicore"
	ContextAIV          ContextType = "aiv"
	ContextMixAIC       ContextType = "mix_aic"
	ContextMixAIV       ContextType = "mix_aiv"
	ContextAICPU        ContextType = "aicpu"
	ContextSDMA         ContextType = "sdma"
	ContextNotifyWait   ContextType = "notify_wait"
	ContextNotifyRecord ContextType = "notify_record"
	ContextWriteValue   ContextType = "write_value"
	ContextCaseSwitch   ContextType = "case_switch"
	ContextAtEnd        ContextType = "at_end"
)

// contextTypeCodes maps each context type to its wire discriminant.
var contextTypeCodes = map[ContextType]uint16{
	ContextAICore:       0x0000,
	ContextAIV:          0x0001,
	ContextNotifyWait:   0x0003,
	ContextNotifyRecord: 0x0004,
	ContextWriteValue:   0x0005,
	ContextMixAIC:       0x0006,
	ContextMixAIV:       0x0007,
	ContextSDMA:         0x0008,
	ContextAICPU:        0x000C,
	ContextCaseSwitch:   0x0010,
	ContextAtStart:      0x0101,
	ContextAtEnd:        0x0102,
	ContextLabel:        0x0103,
}

// Code returns the wire discriminant and whether the type is known.
func (t ContextType) Code() (uint16, bool) {
	c, ok := contextTypeCodes[t]
	return c, ok
}

// Valid reports whether t is a known context type.
func (t ContextType) Valid() bool {
	_, ok := contextTypeCodes[t]
	return ok
}

// Context is one hardware execution descriptor. Its ID equals its index in
// the owning TaskGraph. OwnerNode and StartGated are diagnostics and are not
// part of the wire record; StartGated marks a pred_count forced to one by
// at-start predecessors living outside the table.
type Context struct {
	ID            uint32      `json:"id"`
	Type          ContextType `json:"type"`
	PredCount     uint32      `json:"pred_count"`
	PredCountInit uint32      `json:"pred_count_init"`
	SuccessorIDs  []uint32    `json:"successor_ids,omitempty"`
	ThreadID      uint16      `json:"thread_id"`
	ThreadDim     uint16      `json:"thread_dim,omitempty"`
	WindowSize    uint16      `json:"window_size,omitempty"`
	SaveTaskAddr  bool        `json:"save_task_addr,omitempty"`
	Dynamic       bool        `json:"dynamic,omitempty"`
	OwnerNode     string      `json:"owner_node,omitempty"`
	StartGated    bool        `json:"start_gated,omitempty"`
	Payload       *Payload    `json:"payload,omitempty"`
}

// IsLabel reports whether the context is an overflow forwarder.
func (c *Context) IsLabel() bool {
	return c.Type == ContextLabel
}

// Payload is the type-specific part of a Context, copied from the node
// template. Only the member matching the context type is set, except for
// mixed contexts which carry both AICore and AIV.
type Payload struct {
	AICore     *AICoreTemplate     `json:"aicore,omitempty"`
	AIV        *AICoreTemplate     `json:"aiv,omitempty"`
	AICPU      *AICPUTemplate      `json:"aicpu,omitempty"`
	SDMA       *SDMATemplate       `json:"sdma,omitempty"`
	Notify     *NotifyTemplate     `json:"notify,omitempty"`
	WriteValue *WriteValueTemplate `json:"write_value,omitempty"`
	CaseSwitch *CaseSwitchTemplate `json:"case_switch,omitempty"`
}

// AdditionalArg is the out-of-band first-argument injection record emitted
// for MixL2 contexts.
type AdditionalArg struct {
	NodeID     string   `json:"node_id"`
	ContextIDs []uint32 `json:"context_ids"`
}

// SQEHeader describes the finished table to the hardware scheduler.
type SQEHeader struct {
	ReadyContextCount uint32 `json:"ready_context_count"`
	TotalContextCount uint32 `json:"total_context_count"`
}

// TaskGraph is the finished, id-ordered context table of one lowering unit.
type TaskGraph struct {
	Partition         string          `json:"partition,omitempty"`
	ReadyContextCount uint32          `json:"ready_context_count"`
	TotalContextCount uint32          `json:"total_context_count"`
	Contexts          []*Context      `json:"contexts"`
	AdditionalArgs    []AdditionalArg `json:"additional_args,omitempty"`
}

// Header returns the SQE header pair.
func (g *TaskGraph) Header() SQEHeader {
	return SQEHeader{
		ReadyContextCount: g.ReadyContextCount,
		TotalContextCount: g.TotalContextCount,
	}
}

// Context returns the context with the given id.
func (g *TaskGraph) Context(id uint32) (*Context, bool) {
	if int(id) >= len(g.Contexts) {
		return nil, false
	}
	return g.Contexts[id], true
}

// LabelCount returns the number of Label contexts in the table.
func (g *TaskGraph) LabelCount() int {
	n := 0
	for _, c := range g.Contexts {
		if c.IsLabel() {
			n++
		}
	}
	return n
}

// ExpandSuccessors returns the logical successors of a context, following
// the Label chain hanging off the last inline slot. Order is insertion order.
func (g *TaskGraph) ExpandSuccessors(id uint32) ([]uint32, error) {
	cur, ok := g.Context(id)
	if !ok {
		return nil, NewErrorf(ErrCodeNotFound, "context %d not in table of %d", id, len(g.Contexts))
	}

	var out []uint32
	for hops := 0; ; hops++ {
		if hops > len(g.Contexts) {
			return nil, NewError(ErrCodeOverflowChainExhausted, "label chain does not terminate").WithContext(id)
		}
		var next *Context
		for i, s := range cur.SuccessorIDs {
			succ, ok := g.Context(s)
			if !ok {
				return nil, NewErrorf(ErrCodeDanglingSuccessor, "successor %d out of range", s).WithContext(cur.ID)
			}
			if i == len(cur.SuccessorIDs)-1 && succ.IsLabel() {
				next = succ
				continue
			}
			out = append(out, s)
		}
		if next == nil {
			return out, nil
		}
		cur = next
	}
}
