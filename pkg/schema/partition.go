package schema

// Partition is one lowering unit handed over by the upstream optimizer.
// Nodes are listed in partition order; that order drives id allocation.
type Partition struct {
	Name     string         `json:"name"`
	Nodes    []NodeDef      `json:"nodes"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NodeDef describes a single node of the lowering unit.
//
// Inputs lists predecessor node IDs in edge order. IDs that are not part of
// the partition are graph-input placeholders living outside the unit.
type NodeDef struct {
	ID           string         `json:"id"`
	OpType       string         `json:"op_type"`
	Inputs       []string       `json:"inputs,omitempty"`
	Slice        *ThreadSlice   `json:"slice,omitempty"`
	ThreadScope  int            `json:"thread_scope,omitempty"`
	UnknownShape bool           `json:"unknown_shape,omitempty"`
	PassThrough  bool           `json:"pass_through,omitempty"` // PhonyConcat-style, never materializes
	AtStartPreds []string       `json:"at_start_preds,omitempty"`
	Template     *Template      `json:"template,omitempty"`
	Collective   *CollectiveDef `json:"collective,omitempty"`
}

// ThreadMode enumerates thread-slice modes declared by the optimizer.
type ThreadMode string

const (
	ThreadModeManual  ThreadMode = "manual"
	ThreadModeAuto    ThreadMode = "auto"
	ThreadModeDynamic ThreadMode = "dynamic"
)

// ThreadSlice is the per-node thread-slice descriptor.
type ThreadSlice struct {
	Mode       ThreadMode `json:"mode"`
	ThreadDim  int        `json:"thread_dim,omitempty"`  // parallel slice instances
	WindowSize int        `json:"window_size,omitempty"` // parallel window size
	// ContextIDs is the slot list an upstream pass reserved for the slices.
	// Its length must agree with ThreadDim; the builder assigns the actual
	// ids densely and does not reuse these values.
	ContextIDs []uint32 `json:"context_ids,omitempty"`
}

// Dim returns the slice count, treating an unset descriptor as one slice.
func (s *ThreadSlice) Dim() int {
	if s == nil || s.ThreadDim <= 0 {
		return 1
	}
	return s.ThreadDim
}

// CoreType names the hardware engine a template targets.
type CoreType string

const (
	CoreAICore       CoreType = "aicore"
	CoreAIV          CoreType = "aiv"
	CoreMixAIC       CoreType = "mix_aic"
	CoreMixAIV       CoreType = "mix_aiv"
	CoreAICPU        CoreType = "aicpu"
	CoreSDMA         CoreType = "sdma"
	CoreNotifyWait   CoreType = "notify_wait"
	CoreNotifyRecord CoreType = "notify_record"
	CoreWriteValue   CoreType = "write_value"
	CoreCaseSwitch   CoreType = "case_switch"
	CoreAtStart      CoreType = "at_start"
	CoreAtEnd        CoreType = "at_end"
)

// Template is the core-type specific payload pre-attached by the optimizer.
// Exactly the sub-payload matching CoreType is consulted.
type Template struct {
	CoreType   CoreType            `json:"core_type"`
	AICore     *AICoreTemplate     `json:"aicore,omitempty"`
	AICPU      *AICPUTemplate      `json:"aicpu,omitempty"`
	SDMA       *SDMATemplate       `json:"sdma,omitempty"`
	Notify     *NotifyTemplate     `json:"notify,omitempty"`
	WriteValue *WriteValueTemplate `json:"write_value,omitempty"`
	CaseSwitch *CaseSwitchTemplate `json:"case_switch,omitempty"`
	Mix        *MixTemplate        `json:"mix,omitempty"`
}

// AICoreTemplate carries AI-core / vector-core kernel launch fields.
type AICoreTemplate struct {
	KernelAddrs     []uint64 `json:"kernel_addrs,omitempty"`
	TaskParamOffset uint32   `json:"task_param_offset,omitempty"`
	BlockDim        uint32   `json:"block_dim"`
	NonTailBlockDim uint16   `json:"non_tail_block_dim,omitempty"`
	TailBlockDim    uint16   `json:"tail_block_dim,omitempty"`
	ScheduleMode    uint8    `json:"schedule_mode,omitempty"`
	PrefetchBitmap  uint8    `json:"prefetch_bitmap,omitempty"`
}

// AICPUTemplate carries AI-CPU kernel fields.
type AICPUTemplate struct {
	KernelType      uint8  `json:"kernel_type,omitempty"`
	KernelAddr      uint64 `json:"kernel_addr,omitempty"`
	ArgsAddr        uint64 `json:"args_addr,omitempty"`
	BlockDim        uint32 `json:"block_dim,omitempty"`
	TaskParamOffset uint32 `json:"task_param_offset,omitempty"`
}

// SDMATemplate carries a DMA copy descriptor.
type SDMATemplate struct {
	SrcAddr uint64 `json:"src_addr"`
	DstAddr uint64 `json:"dst_addr"`
	Length  uint32 `json:"length"`
	Opcode  uint8  `json:"opcode,omitempty"`
}

// NotifyTemplate carries a notify wait/record descriptor.
type NotifyTemplate struct {
	NotifyID uint16 `json:"notify_id"`
}

// WriteValueTemplate carries a write-value descriptor.
type WriteValueTemplate struct {
	Addr  uint64 `json:"addr"`
	Value uint64 `json:"value"`
}

// CaseSwitchTemplate carries a case-switch descriptor.
type CaseSwitchTemplate struct {
	StartLabelID uint32 `json:"start_label_id,omitempty"`
	LabelListLen uint32 `json:"label_list_len,omitempty"`
	LoadAddr     uint64 `json:"load_addr,omitempty"`
}

// MixTemplate fuses AI-core and vector-core launch fields for MixL2 nodes.
type MixTemplate struct {
	AliasEngine        bool            `json:"alias_engine,omitempty"`
	Primary            CoreType        `json:"primary,omitempty"` // mix_aic (default) or mix_aiv
	AIC                *AICoreTemplate `json:"aic,omitempty"`
	AIV                *AICoreTemplate `json:"aiv,omitempty"`
	FirstArgInjection  bool            `json:"first_arg_injection,omitempty"`
	DefaultContextNode string          `json:"default_context_node,omitempty"`
}

// CollectiveDef is the registered sub-task expansion of a collective op.
// Adjacency[i] lists the subtask indices that depend on subtask i.
type CollectiveDef struct {
	Subtasks  []Subtask `json:"subtasks"`
	Adjacency [][]int   `json:"adjacency"`
}

// SubtaskOp is the hardware operation of a collective subtask.
type SubtaskOp string

const (
	SubtaskSDMA         SubtaskOp = "sdma"
	SubtaskNotifyWait   SubtaskOp = "notify_wait"
	SubtaskNotifyRecord SubtaskOp = "notify_record"
	SubtaskWriteValue   SubtaskOp = "write_value"
)

// Subtask is one internal hardware task of a collective op.
type Subtask struct {
	Op         SubtaskOp           `json:"op"`
	SDMA       *SDMATemplate       `json:"sdma,omitempty"`
	Notify     *NotifyTemplate     `json:"notify,omitempty"`
	WriteValue *WriteValueTemplate `json:"write_value,omitempty"`
}

// IsMixL2 reports whether the node carries the alias-engine marker.
func (n *NodeDef) IsMixL2() bool {
	return n.Template != nil && n.Template.Mix != nil && n.Template.Mix.AliasEngine
}

// SliceMode returns the declared slice mode, manual when unset.
func (n *NodeDef) SliceMode() ThreadMode {
	if n.Slice == nil || n.Slice.Mode == "" {
		return ThreadModeManual
	}
	return n.Slice.Mode
}
