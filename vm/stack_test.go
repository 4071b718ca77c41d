package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallStack_Push(t *testing.T) {
	assert := assert.New(t)

	cs := &CallStack{}
	frame, err := cs.Push()
	assert.NoError(err)
	assert.NotNil(frame)
	assert.Equal(1, cs.Len())

	top, ok := cs.Peek()
	assert.True(ok)
	assert.Same(frame, top)
}

func TestCallStack_Pop(t *testing.T) {
	assert := assert.New(t)

	cs := &CallStack{}
	a, _ := cs.Push()
	a.ReturnIp = 1
	b, _ := cs.Push()
	b.ReturnIp = 2

	frame, ok := cs.Pop()
	assert.True(ok)
	assert.Equal(uint64(2), frame.ReturnIp)
	frame, ok = cs.Pop()
	assert.True(ok)
	assert.Equal(uint64(1), frame.ReturnIp)

	_, ok = cs.Pop()
	assert.False(ok)
	_, ok = cs.Peek()
	assert.False(ok)
	assert.True(cs.Empty())
}

func TestCallStack_Recycle(t *testing.T) {
	assert := assert.New(t)

	cs := &CallStack{}
	cs.Push()
	frame, _ := cs.Push()
	frame.ReturnIp = 7
	frame.Register[5].Bits = 9
	cs.Pop()

	again, _ := cs.Push()
	assert.Same(frame, again)
	assert.Equal(uint64(0), again.ReturnIp)
	assert.Equal(uint64(0), again.Register[5].Bits)
}

func TestCallStack_Full(t *testing.T) {
	assert := assert.New(t)

	cs := &CallStack{Limit: 3}
	for range 3 {
		assert.False(cs.Full())
		_, err := cs.Push()
		assert.NoError(err)
	}
	assert.True(cs.Full())

	_, err := cs.Push()
	assert.ErrorIs(err, ErrStackOverflow)
	assert.Equal(3, cs.Len())

	cs.Reset()
	assert.True(cs.Empty())
	assert.False(cs.Full())
}

func TestCallStack_DefaultLimit(t *testing.T) {
	assert := assert.New(t)

	cs := &CallStack{}
	for range MAX_CALL_DEPTH {
		_, err := cs.Push()
		assert.NoError(err)
	}
	_, err := cs.Push()
	assert.ErrorIs(err, ErrStackOverflow)
}
