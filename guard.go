package nativeload

// Guard is the only writer of a FlagState.
//
// Elevated scopes nest. Guard does not serialize goroutines, see Interceptor for that.
type Guard struct {
	state *FlagState
}

// NewGuard creates a Guard writing state, or Process() when state is nil.
func NewGuard(state *FlagState) *Guard {
	if state == nil {
		state = Process()
	}
	return &Guard{state: state}
}

// State returns the guarded FlagState.
func (g *Guard) State() *FlagState {
	return g.state
}

// Elevate installs mask and returns the function restoring the previous mode.
//
// restore must run exactly once, typically deferred. Extra calls are no-ops.
func (g *Guard) Elevate(mask Flags) (restore func()) {
	saved := g.state.swap(mask)
	done := false
	return func() {
		if done {
			return
		}
		done = true
		g.state.swap(saved)
	}
}

// RunWithFlags runs f with mask installed and restores the previous mode on every exit path,
// including a panic inside f. The result and error of f are returned untouched.
func RunWithFlags[T any](g *Guard, mask Flags, f func() (T, error)) (T, error) {
	restore := g.Elevate(mask)
	defer restore()
	return f()
}
