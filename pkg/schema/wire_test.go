package schema

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeContext_Layout(t *testing.T) {
	c := &Context{
		ID:            4,
		Type:          ContextAICore,
		PredCount:     2,
		PredCountInit: 2,
		SuccessorIDs:  []uint32{5, 6},
		ThreadID:      3,
		ThreadDim:     4,
		WindowSize:    2,
		SaveTaskAddr:  true,
		Payload: &Payload{AICore: &AICoreTemplate{
			KernelAddrs:     []uint64{0xdeadbeef},
			TaskParamOffset: 64,
			BlockDim:        8,
		}},
	}

	b, err := EncodeContext(c)
	require.NoError(t, err)
	require.Len(t, b, ContextRecordSize)

	assert.Equal(t, uint16(0x0000), binary.LittleEndian.Uint16(b[0:]))
	assert.Equal(t, flagSaveTaskAddr, b[2])
	assert.Equal(t, uint8(2), b[3])
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(b[4:]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(b[6:]))
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(b[8:]))
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(b[10:]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(b[12:]))
	assert.Equal(t, uint16(5), binary.LittleEndian.Uint16(b[16:]))
	assert.Equal(t, uint16(6), binary.LittleEndian.Uint16(b[18:]))
	assert.Equal(t, uint64(0xdeadbeef), binary.LittleEndian.Uint64(b[68:]))
	assert.Equal(t, uint32(64), binary.LittleEndian.Uint32(b[76:]))
	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(b[80:]))
}

func TestEncodeContext_Rejects(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		_, err := EncodeContext(&Context{Type: "warp"})
		assert.True(t, HasCode(err, ErrCodeValidation))
	})

	t.Run("too many inline successors", func(t *testing.T) {
		c := &Context{Type: ContextAICore, SuccessorIDs: make([]uint32, MaxInlineFanout+1)}
		_, err := EncodeContext(c)
		assert.True(t, HasCode(err, ErrCodeShapeMismatch))
	})

	t.Run("pred count overflow", func(t *testing.T) {
		_, err := EncodeContext(&Context{Type: ContextAICore, PredCount: 1 << 16, PredCountInit: 1 << 16})
		assert.True(t, HasCode(err, ErrCodeShapeMismatch))
	})
}

func TestEncodeDecodeTaskGraph(t *testing.T) {
	g := &TaskGraph{
		ReadyContextCount: 1,
		TotalContextCount: 3,
		Contexts: []*Context{
			{ID: 0, Type: ContextSDMA, SuccessorIDs: []uint32{1}, Payload: &Payload{SDMA: &SDMATemplate{SrcAddr: 1, DstAddr: 2, Length: 3}}},
			{ID: 1, Type: ContextAIV, PredCount: 1, PredCountInit: 1, SuccessorIDs: []uint32{2}, Dynamic: true},
			{ID: 2, Type: ContextLabel, PredCount: 1, PredCountInit: 1},
		},
	}

	b, err := EncodeTaskGraph(g)
	require.NoError(t, err)
	assert.Len(t, b, SQEHeaderSize+3*ContextRecordSize)
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(b[0:]))
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(b[2:]))

	back, err := DecodeTaskGraph(b)
	require.NoError(t, err)
	assert.Equal(t, g.Header(), back.Header())
	require.Len(t, back.Contexts, 3)
	for i, c := range g.Contexts {
		got := back.Contexts[i]
		assert.Equal(t, c.Type, got.Type)
		assert.Equal(t, c.PredCount, got.PredCount)
		assert.Equal(t, c.PredCountInit, got.PredCountInit)
		assert.Equal(t, c.SuccessorIDs, got.SuccessorIDs)
		assert.Equal(t, c.Dynamic, got.Dynamic)
	}
}

func TestEncodeTaskGraph_IDMismatch(t *testing.T) {
	g := &TaskGraph{TotalContextCount: 1, Contexts: []*Context{{ID: 3, Type: ContextAICore}}}
	_, err := EncodeTaskGraph(g)
	assert.True(t, HasCode(err, ErrCodeShapeMismatch))
}

func TestDecodeTaskGraph_BadLength(t *testing.T) {
	_, err := DecodeTaskGraph(make([]byte, 7))
	assert.True(t, HasCode(err, ErrCodeShapeMismatch))

	hdr, err := EncodeHeader(SQEHeader{ReadyContextCount: 0, TotalContextCount: 2})
	require.NoError(t, err)
	_, err = DecodeTaskGraph(append(hdr, make([]byte, ContextRecordSize)...))
	assert.True(t, HasCode(err, ErrCodeShapeMismatch))
}
