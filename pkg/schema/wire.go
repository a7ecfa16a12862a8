package schema

import (
	"encoding/binary"
	"math"
)

// Wire layout of one Context record (little-endian, 128 bytes):
//
//	0   u16 type
//	2   u8  flags (bit0 save_task_addr, bit1 dynamic)
//	3   u8  succ_num
//	4   u16 pred_cnt
//	6   u16 pred_cnt_init
//	8   u16 thread_id
//	10  u16 thread_dim
//	12  u16 window_size
//	14  u16 reserved
//	16  u16 succ_list[26]
//	68  payload union (60 bytes)
const (
	ContextRecordSize = 128
	SQEHeaderSize     = 4

	offType        = 0
	offFlags       = 2
	offSuccNum     = 3
	offPredCnt     = 4
	offPredCntInit = 6
	offThreadID    = 8
	offThreadDim   = 10
	offWindowSize  = 12
	offSuccList    = 16
	offPayload     = offSuccList + 2*MaxInlineFanout
	payloadSize    = ContextRecordSize - offPayload
)

const (
	flagSaveTaskAddr uint8 = 1 << 0
	flagDynamic      uint8 = 1 << 1
)

var le = binary.LittleEndian

// EncodeHeader returns the 4-byte SQE header.
func EncodeHeader(h SQEHeader) ([]byte, error) {
	if h.ReadyContextCount > math.MaxUint16 || h.TotalContextCount > math.MaxUint16 {
		return nil, NewErrorf(ErrCodeShapeMismatch, "header %d/%d exceeds u16 wire width", h.ReadyContextCount, h.TotalContextCount)
	}
	b := make([]byte, SQEHeaderSize)
	le.PutUint16(b[0:], uint16(h.ReadyContextCount))
	le.PutUint16(b[2:], uint16(h.TotalContextCount))
	return b, nil
}

// EncodeContext writes one Context into a fresh 128-byte record.
func EncodeContext(c *Context) ([]byte, error) {
	code, ok := c.Type.Code()
	if !ok {
		return nil, NewErrorf(ErrCodeValidation, "unknown context type %q", c.Type).WithContext(c.ID)
	}
	if len(c.SuccessorIDs) > MaxInlineFanout {
		return nil, NewErrorf(ErrCodeShapeMismatch, "%d inline successors exceed capacity %d", len(c.SuccessorIDs), MaxInlineFanout).WithContext(c.ID)
	}
	if c.PredCount > math.MaxUint16 || c.PredCountInit > math.MaxUint16 {
		return nil, NewErrorf(ErrCodeShapeMismatch, "pred_count %d exceeds u16 wire width", c.PredCountInit).WithContext(c.ID)
	}

	b := make([]byte, ContextRecordSize)
	le.PutUint16(b[offType:], code)

	var flags uint8
	if c.SaveTaskAddr {
		flags |= flagSaveTaskAddr
	}
	if c.Dynamic {
		flags |= flagDynamic
	}
	b[offFlags] = flags
	b[offSuccNum] = uint8(len(c.SuccessorIDs))
	le.PutUint16(b[offPredCnt:], uint16(c.PredCount))
	le.PutUint16(b[offPredCntInit:], uint16(c.PredCountInit))
	le.PutUint16(b[offThreadID:], c.ThreadID)
	le.PutUint16(b[offThreadDim:], c.ThreadDim)
	le.PutUint16(b[offWindowSize:], c.WindowSize)

	for i, s := range c.SuccessorIDs {
		if s > math.MaxUint16 {
			return nil, NewErrorf(ErrCodeShapeMismatch, "successor %d exceeds u16 wire width", s).WithContext(c.ID)
		}
		le.PutUint16(b[offSuccList+2*i:], uint16(s))
	}

	encodePayload(b[offPayload:offPayload+payloadSize], c.Type, c.Payload)
	return b, nil
}

func encodePayload(b []byte, t ContextType, p *Payload) {
	if p == nil {
		return
	}
	switch t {
	case ContextAICore, ContextAIV:
		k := p.AICore
		if t == ContextAIV && p.AIV != nil {
			k = p.AIV
		}
		putKernel(b, k)
	case ContextMixAIC, ContextMixAIV:
		putKernel(b, p.AICore)
		if p.AIV != nil {
			if len(p.AIV.KernelAddrs) > 0 {
				le.PutUint64(b[24:], p.AIV.KernelAddrs[0])
			}
			le.PutUint32(b[32:], p.AIV.BlockDim)
			le.PutUint16(b[36:], p.AIV.NonTailBlockDim)
			le.PutUint16(b[38:], p.AIV.TailBlockDim)
		}
	case ContextAICPU:
		if k := p.AICPU; k != nil {
			b[0] = k.KernelType
			le.PutUint32(b[4:], k.BlockDim)
			le.PutUint64(b[8:], k.KernelAddr)
			le.PutUint64(b[16:], k.ArgsAddr)
			le.PutUint32(b[24:], k.TaskParamOffset)
		}
	case ContextSDMA:
		if d := p.SDMA; d != nil {
			le.PutUint64(b[0:], d.SrcAddr)
			le.PutUint64(b[8:], d.DstAddr)
			le.PutUint32(b[16:], d.Length)
			b[20] = d.Opcode
		}
	case ContextNotifyWait, ContextNotifyRecord:
		if n := p.Notify; n != nil {
			le.PutUint16(b[0:], n.NotifyID)
		}
	case ContextWriteValue:
		if w := p.WriteValue; w != nil {
			le.PutUint64(b[0:], w.Addr)
			le.PutUint64(b[8:], w.Value)
		}
	case ContextCaseSwitch:
		if cs := p.CaseSwitch; cs != nil {
			le.PutUint32(b[0:], cs.StartLabelID)
			le.PutUint32(b[4:], cs.LabelListLen)
			le.PutUint64(b[8:], cs.LoadAddr)
		}
	}
}

// putKernel lays out the AI-core launch block: kernel address, task param
// offset, block dims and scheduling bytes.
func putKernel(b []byte, k *AICoreTemplate) {
	if k == nil {
		return
	}
	if len(k.KernelAddrs) > 0 {
		le.PutUint64(b[0:], k.KernelAddrs[0])
	}
	le.PutUint32(b[8:], k.TaskParamOffset)
	le.PutUint32(b[12:], k.BlockDim)
	le.PutUint16(b[16:], k.NonTailBlockDim)
	le.PutUint16(b[18:], k.TailBlockDim)
	b[20] = k.ScheduleMode
	b[21] = k.PrefetchBitmap
}

// EncodeTaskGraph returns the SQE header followed by every Context record in
// id order.
func EncodeTaskGraph(g *TaskGraph) ([]byte, error) {
	hdr, err := EncodeHeader(g.Header())
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, SQEHeaderSize+ContextRecordSize*len(g.Contexts))
	out = append(out, hdr...)
	for i, c := range g.Contexts {
		if c.ID != uint32(i) {
			return nil, NewErrorf(ErrCodeShapeMismatch, "context at index %d has id %d", i, c.ID)
		}
		rec, err := EncodeContext(c)
		if err != nil {
			return nil, err
		}
		out = append(out, rec...)
	}
	return out, nil
}

var contextTypesByCode = func() map[uint16]ContextType {
	m := make(map[uint16]ContextType, len(contextTypeCodes))
	for t, c := range contextTypeCodes {
		m[c] = t
	}
	return m
}()

// DecodeTaskGraph parses an encoded table back into its scheduling fields
// (type, flags, counters, thread fields and successor lists). Payload unions
// are not decoded.
func DecodeTaskGraph(b []byte) (*TaskGraph, error) {
	if len(b) < SQEHeaderSize || (len(b)-SQEHeaderSize)%ContextRecordSize != 0 {
		return nil, NewErrorf(ErrCodeShapeMismatch, "encoded table has invalid length %d", len(b))
	}
	g := &TaskGraph{
		ReadyContextCount: uint32(le.Uint16(b[0:])),
		TotalContextCount: uint32(le.Uint16(b[2:])),
	}
	n := (len(b) - SQEHeaderSize) / ContextRecordSize
	if int(g.TotalContextCount) != n {
		return nil, NewErrorf(ErrCodeShapeMismatch, "header total %d but %d records", g.TotalContextCount, n)
	}

	g.Contexts = make([]*Context, 0, n)
	for i := range n {
		rec := b[SQEHeaderSize+i*ContextRecordSize:][:ContextRecordSize]
		t, ok := contextTypesByCode[le.Uint16(rec[offType:])]
		if !ok {
			return nil, NewErrorf(ErrCodeValidation, "unknown context type code %#04x", le.Uint16(rec[offType:])).WithContext(uint32(i))
		}
		succNum := int(rec[offSuccNum])
		if succNum > MaxInlineFanout {
			return nil, NewErrorf(ErrCodeShapeMismatch, "succ_num %d exceeds capacity", succNum).WithContext(uint32(i))
		}
		c := &Context{
			ID:            uint32(i),
			Type:          t,
			PredCount:     uint32(le.Uint16(rec[offPredCnt:])),
			PredCountInit: uint32(le.Uint16(rec[offPredCntInit:])),
			ThreadID:      le.Uint16(rec[offThreadID:]),
			ThreadDim:     le.Uint16(rec[offThreadDim:]),
			WindowSize:    le.Uint16(rec[offWindowSize:]),
			SaveTaskAddr:  rec[offFlags]&flagSaveTaskAddr != 0,
			Dynamic:       rec[offFlags]&flagDynamic != 0,
		}
		for j := range succNum {
			c.SuccessorIDs = append(c.SuccessorIDs, uint32(le.Uint16(rec[offSuccList+2*j:])))
		}
		g.Contexts = append(g.Contexts, c)
	}
	return g, nil
}
