//go:build darwin || freebsd || linux

package nativeload

import "github.com/ebitengine/purego"

// PuregoSource reads the constants purego exports for this platform.
type PuregoSource struct{}

func (PuregoSource) Name() string {
	return "purego"
}

func (PuregoSource) Constants() (map[Constant]Flags, error) {
	return map[Constant]Flags{
		GlobalVisibility: Flags(purego.RTLD_GLOBAL),
		ImmediateBinding: Flags(purego.RTLD_NOW),
	}, nil
}
