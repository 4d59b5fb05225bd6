package nativeload

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// FlagState is the process-wide dlopen mode consulted by NativeLoader.
//
// Only a Guard writes it. Outside any Guard scope it holds the value it was created with.
// FlagState also carries the load lock shared by every Interceptor over it.
type FlagState struct {
	current atomic.Int64
	mu      sync.Mutex
	owner   atomic.Int64 //goroutine holding mu, 0 when free
	depth   int
}

// NewFlagState creates a FlagState holding initial.
func NewFlagState(initial Flags) *FlagState {
	s := new(FlagState)
	s.current.Store(int64(initial))
	return s
}

// Current returns the mode a load started now would use.
func (s *FlagState) Current() Flags {
	return Flags(s.current.Load())
}

func (s *FlagState) swap(f Flags) (old Flags) {
	return Flags(s.current.Swap(int64(f)))
}

// Lock serializes loads over s. It is re-entrant for the goroutine holding it, so a load
// triggering another load on the same goroutine proceeds. A load handing work to another
// goroutine that loads through s and waiting for it deadlocks.
func (s *FlagState) Lock() {
	id := goid()
	if s.owner.Load() == id {
		s.depth++
		return
	}
	s.mu.Lock()
	s.owner.Store(id)
	s.depth = 1
}

// Unlock releases one Lock.
func (s *FlagState) Unlock() {
	s.depth--
	if s.depth == 0 {
		s.owner.Store(0)
		s.mu.Unlock()
	}
}

// goid reads the current goroutine id from the stack header "goroutine 18 [running]:".
func goid() int64 {
	var buf [64]byte
	b := string(buf[:runtime.Stack(buf[:], false)])
	b = strings.TrimPrefix(b, "goroutine ")
	if i := strings.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(b, 10, 64)
	if err != nil {
		panic("nativeload: unexpected goroutine header: " + b)
	}
	return id
}

var process = sync.OnceValue(func() *FlagState {
	return NewFlagState(FallbackNow)
})

// Process returns the process singleton.
//
// It starts as RTLD_NOW, the default mode a host runtime opens extensions with.
func Process() *FlagState {
	return process()
}
