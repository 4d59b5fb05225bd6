package nativeload

import (
	"errors"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync"
)

type (
	// Flags is a dlopen mode bitmask.
	Flags int
	// Constant names a dlopen mode constant.
	Constant string
	// FlagSource is one place dlopen constants may be read from.
	//
	// Constants returns ErrSourceUnavailable when the source does not exist on the running platform.
	FlagSource interface {
		Name() string
		Constants() (map[Constant]Flags, error)
	}
	// Resolution is the outcome of Resolve.
	Resolution struct {
		Global      Flags
		Now         Flags
		GlobalFrom  string //name of the source RTLD_GLOBAL came from
		NowFrom     string //name of the source RTLD_NOW came from, empty when NowFallback
		NowFallback bool
	}
	// UnresolvedError reports a constant no source could provide.
	UnresolvedError struct {
		Constant Constant
		Tried    []string
	}
	// OverrideSource holds constants supplied by configuration.
	OverrideSource map[Constant]Flags
	// TableSource holds well-known <dlfcn.h> values keyed by GOOS.
	TableSource struct {
		GOOS string
	}
)

const (
	GlobalVisibility Constant = "RTLD_GLOBAL"
	ImmediateBinding Constant = "RTLD_NOW"
)

// FallbackNow is used when no source exposes RTLD_NOW.
//
// <dlfcn.h> defines RTLD_NOW as 0x2 on glibc, musl, darwin and the BSDs, so the value is pinned
// for every platform NativeLoader supports.
const FallbackNow Flags = 0x2

var (
	// ErrSourceUnavailable is returned by a FlagSource that does not exist on this platform.
	ErrSourceUnavailable = errors.New("flag source unavailable")
	// ErrUnresolved matches any *UnresolvedError.
	ErrUnresolved = errors.New("dlopen constant can not be determined")
)

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%s constant can not be determined (tried %s)", e.Constant, strings.Join(e.Tried, ", "))
}

func (e *UnresolvedError) Is(target error) bool {
	return target == ErrUnresolved
}

// Mask is RTLD_GLOBAL|RTLD_NOW.
func (r Resolution) Mask() Flags {
	return r.Global | r.Now
}

func (f Flags) String() string {
	return fmt.Sprintf("%#x", int(f))
}

// Resolve reads RTLD_GLOBAL and RTLD_NOW from the sources in order.
//
// The first source exposing a constant wins. Probing stops once both are known.
// A missing RTLD_GLOBAL is fatal; a missing RTLD_NOW falls back to FallbackNow.
func Resolve(sources ...FlagSource) (r Resolution, err error) {
	var (
		global, now bool
		tried       []string
	)
	for _, src := range sources {
		tried = append(tried, src.Name())
		var c map[Constant]Flags
		if c, err = src.Constants(); err != nil {
			if errors.Is(err, ErrSourceUnavailable) {
				err = nil
				continue
			}
			return r, fmt.Errorf("read %s: %w", src.Name(), err)
		}
		if v, ok := c[GlobalVisibility]; ok && !global {
			r.Global, r.GlobalFrom, global = v, src.Name(), true
		}
		if v, ok := c[ImmediateBinding]; ok && !now {
			r.Now, r.NowFrom, now = v, src.Name(), true
		}
		if global && now {
			break
		}
	}
	if !global {
		return r, &UnresolvedError{Constant: GlobalVisibility, Tried: tried}
	}
	if !now {
		r.Now, r.NowFallback = FallbackNow, true
	}
	return
}

// DefaultSources is the probing order used by DefaultResolution, with overrides first when given.
func DefaultSources(overrides OverrideSource) []FlagSource {
	return []FlagSource{overrides, DlfcnSource{}, PuregoSource{}, TableSource{GOOS: runtime.GOOS}}
}

var defaultResolution = sync.OnceValues(func() (Resolution, error) {
	return Resolve(DefaultSources(nil)...)
})

// DefaultResolution resolves the platform constants once and caches the result for the process lifetime.
func DefaultResolution() (Resolution, error) {
	return defaultResolution()
}

func (OverrideSource) Name() string {
	return "config"
}

func (o OverrideSource) Constants() (map[Constant]Flags, error) {
	if len(o) == 0 {
		return nil, ErrSourceUnavailable
	}
	return maps.Clone(o), nil
}

// dlfcnTable values are copied from each platform's <dlfcn.h>.
var dlfcnTable = map[string]map[Constant]Flags{
	"linux":   {GlobalVisibility: 0x100, ImmediateBinding: 0x2},
	"android": {GlobalVisibility: 0x100, ImmediateBinding: 0x2},
	"darwin":  {GlobalVisibility: 0x8, ImmediateBinding: 0x2},
	"ios":     {GlobalVisibility: 0x8, ImmediateBinding: 0x2},
	"freebsd": {GlobalVisibility: 0x100, ImmediateBinding: 0x2},
	"netbsd":  {GlobalVisibility: 0x100, ImmediateBinding: 0x2},
	"openbsd": {GlobalVisibility: 0x100, ImmediateBinding: 0x2},
	"solaris": {GlobalVisibility: 0x100, ImmediateBinding: 0x2},
	"illumos": {GlobalVisibility: 0x100, ImmediateBinding: 0x2},
}

func (t TableSource) Name() string {
	return "table/" + t.GOOS
}

func (t TableSource) Constants() (map[Constant]Flags, error) {
	c, ok := dlfcnTable[t.GOOS]
	if !ok {
		return nil, ErrSourceUnavailable
	}
	return maps.Clone(c), nil
}
