package vm

const (
	MAX_CALL_DEPTH = 1024 // Default call depth limit.
)

// CallStack is the bounded stack of call frames. Popped frames are kept and
// recycled by the next Push.
type CallStack struct {
	Limit int // Maximum depth; zero means MAX_CALL_DEPTH.

	frames []*Frame
	depth  int
}

func (cs *CallStack) limit() int {
	if cs.Limit <= 0 {
		return MAX_CALL_DEPTH
	}
	return cs.Limit
}

// Push a cleared frame.
func (cs *CallStack) Push() (frame *Frame, err error) {
	if cs.Full() {
		err = ErrStackOverflow
		return
	}

	if cs.depth == len(cs.frames) {
		cs.frames = append(cs.frames, &Frame{})
	}

	frame = cs.frames[cs.depth]
	*frame = Frame{}
	cs.depth++

	return
}

// Pop the top frame. The frame remains valid until the next Push.
func (cs *CallStack) Pop() (frame *Frame, ok bool) {
	frame, ok = cs.Peek()
	if ok {
		cs.depth--
	}
	return
}

// Peek at the top frame.
func (cs *CallStack) Peek() (frame *Frame, ok bool) {
	if cs.Empty() {
		return
	}

	return cs.frames[cs.depth-1], true
}

func (cs *CallStack) Len() int {
	return cs.depth
}

func (cs *CallStack) Empty() bool {
	return cs.depth == 0
}

func (cs *CallStack) Full() bool {
	return cs.depth >= cs.limit()
}

func (cs *CallStack) Reset() {
	cs.depth = 0
}
