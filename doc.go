/*
Package nativeload brackets native extension loads with elevated dlopen flags.

# License

Source codes are under Apache License Version 2.0.

# Why

A native extension that resolves symbols exported by another native extension needs the first one
opened with RTLD_GLOBAL, otherwise each library carries its own copy of type information and
cross-library type checks fail. Opening everything with RTLD_GLOBAL instead causes symbol collisions
in unrelated third party libraries, so only a selected subset of loads is elevated.

# Pieces

 1. [Resolve] finds RTLD_GLOBAL and RTLD_NOW from cgo <dlfcn.h>, [purego] and a static table, in that order.
    Missing RTLD_GLOBAL is fatal, missing RTLD_NOW falls back to [FallbackNow].
 2. [Rule] decides from a file name and its path whether a load belongs to the subset.
 3. [Guard] owns the process-wide [FlagState] and restores it after every elevated scope.
 4. [Interceptor] wraps a [Loader] and runs matching loads through [RunWithFlags].

# Use

Call [Setup] once at start-up and route every load through [Runtime.Loader]:

	rt, err := nativeload.Setup(nativeload.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	lib, err := rt.Loader.Load("afwMath", "/opt/lsst/afw/python/lsst/afw/_afwMath.so")

# Notes

 1. The mode is process-wide. Loads that bypass the interceptor are not serialized against elevated ones.
 2. Go relocatable objects can be loaded through the same path with package object.

[purego]: https://github.com/ebitengine/purego
*/
package nativeload
