package thread

import "txthread/kernel"

// Fixed-size stacks for Static threads.
type (
	Stack512 [512]byte
	Stack1K  [1024]byte
	Stack2K  [2048]byte
	Stack4K  [4096]byte
	Stack8K  [8192]byte
)

func (s *Stack512) Slice() []byte { return s[:] }
func (s *Stack1K) Slice() []byte  { return s[:] }
func (s *Stack2K) Slice() []byte  { return s[:] }
func (s *Stack4K) Slice() []byte  { return s[:] }
func (s *Stack8K) Slice() []byte  { return s[:] }

// StackOf is satisfied by a pointer to a stack array type S.
type StackOf[S any] interface {
	*S
	Slice() []byte
}

// Word is the set of value types that fit the kernel's one-word entry
// argument.
type Word interface {
	~int8 | ~int16 | ~int32 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint | ~uintptr
}

// Static is a Thread that carries its own stack. The stack array type picks
// the size:
//
//	t := thread.NewStaticFunc[thread.Stack4K](srv.Serve, thread.WithPriority(4))
type Static[S any, P StackOf[S]] struct {
	Thread
	stack S
}

func newStatic[S any, P StackOf[S]](entry kernel.EntryFunc, input uintptr, opts []Option) *Static[S, P] {
	s := new(Static[S, P])
	s.init(P(&s.stack).Slice(), entry, input, opts)
	return s
}

// NewStatic describes a thread running fn(arg).
func NewStatic[S any, P StackOf[S]](fn func(uintptr), arg uintptr, opts ...Option) *Static[S, P] {
	return newStatic[S, P](fn, arg, opts)
}

// NewStaticValue describes a thread running fn(arg) for a word-sized value.
// Larger arguments go through NewStaticPtr.
func NewStaticValue[S any, T Word, P StackOf[S]](fn func(T), arg T, opts ...Option) *Static[S, P] {
	return newStatic[S, P](func(in uintptr) { fn(T(in)) }, uintptr(arg), opts)
}

// NewStaticPtr describes a thread running fn(arg). With a method expression
// it runs a method on arg:
//
//	thread.NewStaticPtr[thread.Stack2K]((*Pump).Run, pump)
//
// arg must stay valid for as long as the thread uses it.
func NewStaticPtr[S any, T any, P StackOf[S]](fn func(*T), arg *T, opts ...Option) *Static[S, P] {
	return newStatic[S, P](func(uintptr) { fn(arg) }, 0, opts)
}

// NewStaticFunc describes a thread running fn, typically a method value.
func NewStaticFunc[S any, P StackOf[S]](fn func(), opts ...Option) *Static[S, P] {
	return newStatic[S, P](func(uintptr) { fn() }, 0, opts)
}
