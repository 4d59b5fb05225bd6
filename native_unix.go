//go:build darwin || freebsd || linux

package nativeload

import (
	"fmt"
	"github.com/ebitengine/purego"
)

// NativeLoader dlopens shared libraries with the mode currently held by State.
type NativeLoader struct {
	State *FlagState
}

// Library is a shared library opened by NativeLoader.
type Library struct {
	name   string
	path   string
	flags  Flags
	handle uintptr
}

// NewNativeLoader creates a NativeLoader over state, or Process() when state is nil.
func NewNativeLoader(state *FlagState) *NativeLoader {
	if state == nil {
		state = Process()
	}
	return &NativeLoader{State: state}
}

// Load opens path. Errors from dlopen are returned as is.
func (n *NativeLoader) Load(name, path string) (Module, error) {
	flags := n.State.Current()
	h, err := purego.Dlopen(path, int(flags))
	if err != nil {
		return nil, err
	}
	return &Library{name: name, path: path, flags: flags, handle: h}, nil
}

func (l *Library) Name() string { return l.name }
func (l *Library) Path() string { return l.path }

// Flags is the mode the library was opened with.
func (l *Library) Flags() Flags { return l.flags }

func (l *Library) Lookup(sym string) (Sym, error) {
	if l.handle == 0 {
		return 0, ErrClosed
	}
	p, err := purego.Dlsym(l.handle, sym)
	if err != nil {
		return 0, fmt.Errorf("%w %s: %v", ErrMissingSymbol, sym, err)
	}
	return Sym(p), nil
}

// Bind resolves sym and registers it as the implementation of fptr, a pointer to a func variable.
func (l *Library) Bind(fptr any, sym string) error {
	p, err := l.Lookup(sym)
	if err != nil {
		return err
	}
	purego.RegisterFunc(fptr, uintptr(p))
	return nil
}

func (l *Library) Close() error {
	if l.handle == 0 {
		return ErrClosed
	}
	h := l.handle
	l.handle = 0
	return purego.Dlclose(h)
}
