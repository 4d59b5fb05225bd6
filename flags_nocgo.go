//go:build !cgo || !(darwin || freebsd || linux)

package nativeload

// DlfcnSource reads constants compiled from <dlfcn.h>, which needs cgo.
type DlfcnSource struct{}

func (DlfcnSource) Name() string {
	return "dlfcn.h"
}

func (DlfcnSource) Constants() (map[Constant]Flags, error) {
	return nil, ErrSourceUnavailable
}
