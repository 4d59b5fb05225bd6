package nativeload

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// Runtime is what Setup installed.
type Runtime struct {
	Resolution
	Guard     *Guard
	Loader    Loader //the installed interceptor; route every load through it
	Logger    *log.Logger
	Companion Module //nil when the probe was disabled or failed
}

var defaultInstallation Installation

// DefaultInstallation is the Installation used by Setup.
func DefaultInstallation() *Installation {
	return &defaultInstallation
}

// Setup installs the interceptor over a NativeLoader on Process(). It is meant to run once at start-up;
// later calls return the same Runtime.
func Setup(cfg Config) (*Runtime, error) {
	return SetupWith(&defaultInstallation, cfg, nil)
}

// SetupWith installs the interceptor over base into inst. A nil base is a NativeLoader on Process().
//
// Once inst holds a loader, cfg and base are ignored and the installed Runtime is returned.
// An unresolvable RTLD_GLOBAL is fatal and returned as *UnresolvedError.
func SetupWith(inst *Installation, cfg Config, base Loader) (rt *Runtime, err error) {
	inst.setup.Lock()
	defer inst.setup.Unlock()
	if inst.runtime != nil {
		return inst.runtime, nil
	}
	if i := inst.Loader(); i != nil {
		// installed without Setup
		rt = &Runtime{Guard: i.guard, Loader: i, Logger: i.logger}
		if rt.Resolution, err = resolve(cfg); err != nil {
			return nil, err
		}
		inst.runtime = rt
		return
	}
	rt = new(Runtime)
	if rt.Resolution, err = resolve(cfg); err != nil {
		return nil, err
	}
	if rt.Logger, err = NewLogger(cfg.Log); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Debug {
		rt.Logger.SetLevel(log.DebugLevel)
	}
	rt.Logger.Debug("resolved dlopen flags",
		"global", rt.Global, "from", rt.GlobalFrom,
		"now", rt.Now, "nowFrom", rt.NowFrom, "fallback", rt.NowFallback)
	state := Process()
	if base == nil {
		base = NewNativeLoader(state)
	} else if n, ok := base.(*NativeLoader); ok {
		state = n.State
	}
	rt.Guard = NewGuard(state)
	opts := []Option{
		WithMatcher(cfg.MatchRule()),
		WithGuard(rt.Guard),
		WithMask(rt.Mask()),
		WithLogger(rt.Logger),
		WithDebug(cfg.Debug),
	}
	if cfg.Unserialized {
		opts = append(opts, WithUnserialized())
	}
	var installed bool
	if rt.Loader, installed, err = inst.Install(base, opts...); err != nil {
		return nil, err
	}
	if i, ok := rt.Loader.(*Interceptor); ok {
		rt.Guard, rt.Logger = i.guard, i.logger
	}
	if installed && cfg.Companion {
		rt.Companion, _ = Probe(rt.Loader, cfg.SearchPath, rt.Logger)
	}
	inst.runtime = rt
	return
}

func resolve(cfg Config) (Resolution, error) {
	if o := cfg.Overrides(); o != nil {
		return Resolve(DefaultSources(o)...)
	}
	return DefaultResolution()
}
