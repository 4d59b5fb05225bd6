package nativeload

import (
	"errors"
	"path/filepath"
	"strings"
)

type (
	// Sym is the address of a resolved symbol.
	Sym uintptr
	// Module is a loaded unit of code.
	Module interface {
		Name() string
		Path() string
		Lookup(sym string) (Sym, error) //resolve an exported symbol, ErrMissingSymbol when absent
		Close() error                   //release the module, ErrClosed when already released
	}
	// Loader is a module load primitive: load(name, path) -> module.
	Loader interface {
		Load(name, path string) (Module, error)
	}
	// LoaderFunc adapts a function to Loader.
	LoaderFunc func(name, path string) (Module, error)
	// ByExtension dispatches on the file extension of path, using Fallback for anything not in Loaders.
	ByExtension struct {
		Loaders  map[string]Loader
		Fallback Loader
	}
)

var (
	// ErrMissingSymbol occurs when a symbol can't be found in a module.
	ErrMissingSymbol = errors.New("missing symbol")
	// ErrClosed occurs when using a released module.
	ErrClosed = errors.New("module closed")
	// ErrUnsupported occurs when native loading is not available on this platform.
	ErrUnsupported = errors.New("native loading unsupported on this platform")
	// ErrNoLoader occurs when ByExtension has no loader for a path.
	ErrNoLoader = errors.New("no loader for file")
)

func (f LoaderFunc) Load(name, path string) (Module, error) {
	return f(name, path)
}

func (b ByExtension) Load(name, path string) (Module, error) {
	if l, ok := b.Loaders[strings.ToLower(filepath.Ext(path))]; ok {
		return l.Load(name, path)
	}
	if b.Fallback == nil {
		return nil, ErrNoLoader
	}
	return b.Fallback.Load(name, path)
}
