package nativeload

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeModule struct {
	name, path string
	flags      Flags
	closed     bool
}

func (m *fakeModule) Name() string { return m.name }
func (m *fakeModule) Path() string { return m.path }
func (m *fakeModule) Lookup(sym string) (Sym, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if sym == "missing" {
		return 0, ErrMissingSymbol
	}
	return Sym(len(sym)), nil
}
func (m *fakeModule) Close() error {
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	return nil
}

// recorder is a base loader that records the mode each load observed.
func recorder(state *FlagState, fail error) Loader {
	return LoaderFunc(func(name, path string) (Module, error) {
		if fail != nil {
			return nil, fail
		}
		return &fakeModule{name: name, path: path, flags: state.Current()}, nil
	})
}

var (
	matched   = filepath.Join(string(filepath.Separator), "base", "python", "lsst", "afw", "_afwMath.so")
	unmatched = filepath.Join(string(filepath.Separator), "base", "python", "other", "_thing.so")
)

const initial Flags = 0x2
const elevated Flags = 0x102

func newTestInterceptor(t *testing.T, base Loader, state *FlagState, opts ...Option) *Interceptor {
	t.Helper()
	i, err := NewInterceptor(base, append([]Option{WithGuard(NewGuard(state)), WithMask(elevated)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return i
}

func TestInterceptorElevatesMatched(t *testing.T) {
	state := NewFlagState(initial)
	i := newTestInterceptor(t, recorder(state, nil), state, WithDebug(true))
	m, err := i.Load("mymod", matched)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.(*fakeModule).flags; got != elevated {
		t.Errorf("matched load saw %s", got)
	}
	if state.Current() != initial {
		t.Errorf("after = %s", state.Current())
	}
	m, err = i.Load("mymod", unmatched)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.(*fakeModule).flags; got != initial {
		t.Errorf("unmatched load saw %s", got)
	}
	if i.Elevated() != 1 {
		t.Errorf("elevated %d loads", i.Elevated())
	}
}

func TestInterceptorPassesErrors(t *testing.T) {
	state := NewFlagState(initial)
	boom := errors.New("undefined symbol: _ZN4lsst3afw")
	i := newTestInterceptor(t, recorder(state, boom), state)
	for _, p := range []string{matched, unmatched} {
		if _, err := i.Load("mymod", p); err != boom {
			t.Errorf("%s: error should pass unchanged, got %v", p, err)
		}
		if state.Current() != initial {
			t.Errorf("%s: after = %s", p, state.Current())
		}
	}
}

func TestInstallationIdempotent(t *testing.T) {
	state := NewFlagState(initial)
	var depth, maxDepth int
	base := LoaderFunc(func(name, path string) (Module, error) {
		if state.Current() == elevated {
			depth++
		}
		maxDepth = max(maxDepth, depth)
		return &fakeModule{name: name, path: path, flags: state.Current()}, nil
	})
	var inst Installation
	if inst.Installed() || inst.Loader() != nil {
		t.Fatal("fresh installation should be empty")
	}
	opts := []Option{WithGuard(NewGuard(state)), WithMask(elevated)}
	first, installed, err := inst.Install(base, opts...)
	if err != nil || !installed {
		t.Fatal(installed, err)
	}
	second, installed, err := inst.Install(first, opts...)
	if err != nil || installed {
		t.Fatal(installed, err)
	}
	if first != second || !inst.Installed() {
		t.Fatal("second install should return the first loader")
	}
	if _, err = second.Load("mymod", matched); err != nil {
		t.Fatal(err)
	}
	if inst.Loader().Elevated() != 1 || maxDepth != 1 {
		t.Errorf("elevated %d times, depth %d", inst.Loader().Elevated(), maxDepth)
	}
	if inst.Loader().Base() == nil {
		t.Error("base lost")
	}

	var other Installation
	wrapped, installed, _ := other.Install(first)
	if wrapped != first || !installed {
		t.Error("installing an interceptor should not wrap it again")
	}

	inst.Reset()
	if inst.Installed() {
		t.Fatal("reset should forget the loader")
	}
	third, _, err := inst.Install(base, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Error("reinstall after reset should wrap again")
	}
}

func TestInterceptorSerializesLoads(t *testing.T) {
	state := NewFlagState(initial)
	var mu sync.Mutex
	var bad []string
	base := LoaderFunc(func(name, path string) (Module, error) {
		want := initial
		if path == matched {
			want = elevated
		}
		if got := state.Current(); got != want {
			mu.Lock()
			bad = append(bad, path+" saw "+got.String())
			mu.Unlock()
		}
		return &fakeModule{name: name, path: path}, nil
	})
	i := newTestInterceptor(t, base, state)
	var w sync.WaitGroup
	for n := 0; n < 50; n++ {
		w.Add(1)
		go func(n int) {
			defer w.Done()
			p := unmatched
			if n%2 == 0 {
				p = matched
			}
			_, _ = i.Load("m", p)
		}(n)
	}
	w.Wait()
	if len(bad) > 0 {
		t.Errorf("loads observed foreign windows: %v", bad)
	}
	if state.Current() != initial {
		t.Errorf("after = %s", state.Current())
	}
	if i.Elevated() != 25 {
		t.Errorf("elevated %d", i.Elevated())
	}
}

func TestInterceptorCustomMatcher(t *testing.T) {
	state := NewFlagState(initial)
	i := newTestInterceptor(t, recorder(state, nil), state,
		WithMatcher(MatcherFunc(func(r Request) bool { return r.Name == "always" })), WithUnserialized())
	m, _ := i.Load("always", "/x/y.txt")
	if m.(*fakeModule).flags != elevated {
		t.Error("custom matcher ignored")
	}
	if i.Mask() != elevated {
		t.Errorf("mask %s", i.Mask())
	}
}

func TestInterceptorNestedLoad(t *testing.T) {
	state := NewFlagState(initial)
	var i *Interceptor
	var inner, outerAfter Flags
	base := LoaderFunc(func(name, path string) (Module, error) {
		if name == "outer" {
			m, err := i.Load("inner", unmatched)
			if err != nil {
				return nil, err
			}
			inner = m.(*fakeModule).flags
			outerAfter = state.Current()
		}
		return &fakeModule{name: name, path: path, flags: state.Current()}, nil
	})
	i = newTestInterceptor(t, base, state)
	done := make(chan error, 1)
	go func() {
		_, err := i.Load("outer", matched)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("nested load blocked")
	}
	if inner != elevated || outerAfter != elevated {
		t.Errorf("inner saw %s, outer after inner %s", inner, outerAfter)
	}
	if state.Current() != initial {
		t.Errorf("after = %s", state.Current())
	}
	if i.Elevated() != 1 {
		t.Errorf("elevated %d", i.Elevated())
	}
}

func TestInterceptorsShareStateLock(t *testing.T) {
	state := NewFlagState(initial)
	entered, release := make(chan struct{}), make(chan struct{})
	holding := LoaderFunc(func(name, path string) (Module, error) {
		close(entered)
		<-release
		return &fakeModule{name: name, path: path, flags: state.Current()}, nil
	})
	a := newTestInterceptor(t, holding, state)
	b := newTestInterceptor(t, recorder(state, nil), state)
	go func() { _, _ = a.Load("a", matched) }()
	<-entered
	result := make(chan Flags, 1)
	go func() {
		m, err := b.Load("b", unmatched)
		if err != nil {
			t.Error(err)
			result <- -1
			return
		}
		result <- m.(*fakeModule).flags
	}()
	select {
	case f := <-result:
		t.Fatalf("second interceptor loaded inside the first one's window, saw %s", f)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	if f := <-result; f != initial {
		t.Errorf("unmatched load through second interceptor saw %s", f)
	}
	if state.Current() != initial {
		t.Errorf("after = %s", state.Current())
	}
}
