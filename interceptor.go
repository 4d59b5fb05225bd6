package nativeload

import (
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/davecgh/go-spew/spew"
)

type (
	// Interceptor wraps a base Loader and elevates the dlopen mode for matching requests.
	//
	// Every load is serialized on the lock of the guarded FlagState, shared by all interceptors
	// over that state, so a pass-through load never observes another goroutine's elevated window.
	// The lock is re-entrant: a load issuing a nested load on the same goroutine proceeds.
	// Loads issued directly on the base loader are not covered.
	Interceptor struct {
		base     Loader
		matcher  Matcher
		guard    *Guard
		mask     Flags
		serial   bool
		logger   *log.Logger
		debug    bool
		elevated atomic.Uint64
	}
	// Option configures an Interceptor.
	Option func(*Interceptor)
	// Installation records whether the interceptor has been installed.
	//
	// The zero value is ready to use. Tests may Reset it and install again.
	Installation struct {
		setup   sync.Mutex //held by SetupWith
		mu      sync.Mutex
		loader  *Interceptor
		runtime *Runtime //recorded by SetupWith
	}
)

// WithMatcher replaces DefaultRule.
func WithMatcher(m Matcher) Option {
	return func(i *Interceptor) { i.matcher = m }
}

// WithGuard replaces the guard over Process().
func WithGuard(g *Guard) Option {
	return func(i *Interceptor) { i.guard = g }
}

// WithMask sets the elevated mode. Without it the interceptor uses DefaultResolution().Mask().
func WithMask(mask Flags) Option {
	return func(i *Interceptor) { i.mask = mask }
}

// WithLogger sets the logger, log.Default() otherwise.
func WithLogger(l *log.Logger) Option {
	return func(i *Interceptor) { i.logger = l }
}

// WithDebug dumps each matched request at debug level.
func WithDebug(debug bool) Option {
	return func(i *Interceptor) { i.debug = debug }
}

// WithUnserialized leaves serialization of loads to the caller.
func WithUnserialized() Option {
	return func(i *Interceptor) { i.serial = false }
}

// NewInterceptor wraps base.
//
// The elevated mask defaults to DefaultResolution; an error is returned when that cannot be resolved.
func NewInterceptor(base Loader, opts ...Option) (*Interceptor, error) {
	i := &Interceptor{base: base, serial: true, mask: -1}
	for _, opt := range opts {
		opt(i)
	}
	if i.matcher == nil {
		i.matcher = DefaultRule()
	}
	if i.guard == nil {
		i.guard = NewGuard(nil)
	}
	if i.logger == nil {
		i.logger = log.Default()
	}
	if i.mask < 0 {
		r, err := DefaultResolution()
		if err != nil {
			return nil, err
		}
		i.mask = r.Mask()
	}
	return i, nil
}

// Base returns the wrapped loader.
func (i *Interceptor) Base() Loader {
	return i.base
}

// Mask is the mode installed for matching loads.
func (i *Interceptor) Mask() Flags {
	return i.mask
}

// Elevated counts loads run with the elevated mode.
func (i *Interceptor) Elevated() uint64 {
	return i.elevated.Load()
}

func (i *Interceptor) Load(name, path string) (Module, error) {
	if i.serial {
		state := i.guard.State()
		state.Lock()
		defer state.Unlock()
	}
	req := NewRequest(name, path)
	if !i.matcher.Matches(req) {
		return i.base.Load(name, path)
	}
	i.elevated.Add(1)
	if i.debug {
		i.logger.Debug("elevate dlopen flags", "mask", i.mask, "request", spew.Sdump(req))
	}
	return RunWithFlags(i.guard, i.mask, func() (Module, error) {
		return i.base.Load(name, path)
	})
}

// Install wraps base once. Later calls return the loader from the first call, ignore their
// arguments and report installed as false.
//
// A base that already is an *Interceptor is installed as is.
func (s *Installation) Install(base Loader, opts ...Option) (l Loader, installed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loader != nil {
		return s.loader, false, nil
	}
	if i, ok := base.(*Interceptor); ok {
		s.loader = i
		return i, true, nil
	}
	i, err := NewInterceptor(base, opts...)
	if err != nil {
		return nil, false, err
	}
	s.loader = i
	return i, true, nil
}

// Installed reports whether Install has succeeded.
func (s *Installation) Installed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loader != nil
}

// Loader returns the installed interceptor, nil before Install.
func (s *Installation) Loader() *Interceptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loader
}

// Reset forgets the installed interceptor.
func (s *Installation) Reset() {
	s.setup.Lock()
	defer s.setup.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loader = nil
	s.runtime = nil
}
