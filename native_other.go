//go:build !(darwin || freebsd || linux)

package nativeload

// NativeLoader is unavailable on this platform; every Load fails with ErrUnsupported.
type NativeLoader struct {
	State *FlagState
}

func NewNativeLoader(state *FlagState) *NativeLoader {
	if state == nil {
		state = Process()
	}
	return &NativeLoader{State: state}
}

func (n *NativeLoader) Load(name, path string) (Module, error) {
	return nil, ErrUnsupported
}

// Library is never produced on this platform.
type Library struct {
	name, path string
	flags      Flags
}

func (l *Library) Name() string { return l.name }
func (l *Library) Path() string { return l.path }
func (l *Library) Flags() Flags { return l.flags }
func (l *Library) Lookup(sym string) (Sym, error) { return 0, ErrUnsupported }
func (l *Library) Bind(fptr any, sym string) error { return ErrUnsupported }
func (l *Library) Close() error { return ErrUnsupported }
