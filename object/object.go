// Package object loads Go relocatable object files (.o) and archives (.a) as modules, based on [goloader].
//
// Object modules link against the host executable's symbols plus any shared library registered
// through [Loader.RegisterShared], so a Go object can call into native extensions that were opened
// with elevated flags.
//
// The host SDK must be prepared for [goloader]: copy $GOROOT/src/cmd/internal to $GOROOT/src/cmd/objfile.
//
// [goloader]: https://github.com/pkujhd/goloader
package object

import (
	"github.com/ZenLiuCN/fn"
	"github.com/ZenLiuCN/nativeload"
	"github.com/charmbracelet/log"
	"github.com/pkujhd/goloader"
	"maps"
	"os"
	"strings"
	"sync"
	"unsafe"
)

type (
	// Loader links object files against a shared symbol table. It implements nativeload.Loader,
	// the module name being the package path of the object.
	Loader struct {
		symbols map[string]uintptr
		debug   bool
		mu      sync.Mutex
	}
	// Module is a linked object file.
	Module struct {
		name      string
		path      string
		linker    *goloader.Linker
		module    *goloader.CodeModule
		loader    *Loader
		published map[string]uintptr //symbols this module added to the loader
		debug     bool
	}
)

// NewLoader create a Loader with the symbols of the running executable, an optional debug parameter will enable debug logging
func NewLoader(debug ...bool) (*Loader, error) {
	l := &Loader{symbols: make(map[string]uintptr)}
	l.debug = len(debug) > 0 && debug[0]
	if err := goloader.RegSymbol(l.symbols); err != nil {
		return nil, err
	}
	return l, nil
}

// RegisterShared adds the exported symbols of a shared library.
func (l *Loader) RegisterShared(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.debug {
		log.Debug("register shared library", "path", path)
	}
	return goloader.RegSymbolWithSo(l.symbols, path)
}

// RegisterTypes makes host types available to objects.
func (l *Loader) RegisterTypes(types ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	goloader.RegTypes(l.symbols, types...)
}

// Symbols dump symbol names known to the loader
func (l *Loader) Symbols() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn.MapKeys(l.symbols)
}

// Missing lists symbols path needs that the loader can't provide.
func (l *Loader) Missing(name, path string) ([]string, error) {
	linker, err := goloader.ReadObj(path, pkgPath(name))
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return goloader.UnresolvedSymbols(linker, l.symbols), nil
}

func (l *Loader) Load(name, path string) (nativeload.Module, error) {
	name = pkgPath(name)
	linker, err := goloader.ReadObj(path, name)
	if err != nil {
		return nil, err
	}
	if l.debug {
		log.Debug("create linker", "file", path, "pkg", name)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	code, err := goloader.Load(linker, maps.Clone(l.symbols))
	if err != nil {
		return nil, err
	}
	m := &Module{name: name, path: path, linker: linker, module: code, loader: l, debug: l.debug}
	m.published = l.publish(code.Syms)
	if l.debug {
		log.Debug("create module", "pkg", name, "symbols", len(code.Syms), "published", len(m.published))
	}
	return m, nil
}

// publish adds the symbols of a linked module the table does not know yet, so later objects can link against them.
// Callers hold l.mu.
func (l *Loader) publish(syms map[string]uintptr) (added map[string]uintptr) {
	added = make(map[string]uintptr)
	for s, u := range syms {
		if _, ok := l.symbols[s]; ok {
			continue
		}
		l.symbols[s] = u
		added[s] = u
	}
	return
}

// retract removes symbols added by publish, unless they were replaced meanwhile.
func (l *Loader) retract(added map[string]uintptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for s, u := range added {
		if x, ok := l.symbols[s]; ok && x == u {
			delete(l.symbols, s)
		}
	}
}

func pkgPath(name string) string {
	if name == "" {
		return "main"
	}
	return name
}

func checkPackage(pkg, sym string) string {
	if strings.IndexByte(sym, '.') < 0 {
		return pkg + "." + sym
	}
	return sym
}

func (m *Module) Name() string { return m.name }
func (m *Module) Path() string { return m.path }

// Lookup a symbol, unqualified names are looked up in the module's own package.
func (m *Module) Lookup(sym string) (nativeload.Sym, error) {
	if m.module == nil {
		return 0, nativeload.ErrClosed
	}
	p, ok := m.module.Syms[checkPackage(m.name, sym)]
	if !ok {
		return 0, nativeload.ErrMissingSymbol
	}
	return nativeload.Sym(p), nil
}

// Close unload the code and withdraw its symbols from the loader, stdout is synced first since object code may have buffered output.
//
// Objects linked against this module must be closed first.
func (m *Module) Close() error {
	if m.module == nil {
		return nativeload.ErrClosed
	}
	if m.debug {
		log.Debug("free module", "pkg", m.name)
	}
	if m.loader != nil {
		m.loader.retract(m.published)
		m.published = nil
	}
	_ = os.Stdout.Sync()
	m.module.Unload()
	m.module = nil
	m.linker = nil
	return nil
}

// As converts a function symbol of a Module to a func value of type T.
func As[T any](s nativeload.Sym) (x T) {
	entry := new(uintptr)
	*entry = uintptr(s)
	x = *(*T)(unsafe.Pointer(&entry))
	return
}
