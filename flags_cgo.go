//go:build cgo && (darwin || freebsd || linux)

package nativeload

/*
#include <dlfcn.h>
*/
import "C"

// DlfcnSource reads constants compiled from <dlfcn.h>.
type DlfcnSource struct{}

func (DlfcnSource) Name() string {
	return "dlfcn.h"
}

func (DlfcnSource) Constants() (map[Constant]Flags, error) {
	return map[Constant]Flags{
		GlobalVisibility: Flags(C.RTLD_GLOBAL),
		ImmediateBinding: Flags(C.RTLD_NOW),
	}, nil
}
