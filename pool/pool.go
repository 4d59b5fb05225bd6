package pool

import (
	"errors"
	. "github.com/ZenLiuCN/nativeload"
	"github.com/ZenLiuCN/fn"
	"slices"
	"sync"
)

// Pool keeps named modules loaded through one Loader, in load order.
//
// Later modules may depend on earlier ones, so reloading a module first closes it and
// every module loaded after it, newest first.
type Pool struct {
	Loader
	Modules map[string]Module
	Loaded  []Module
	sync.RWMutex
}

var (
	ErrAlreadyLoad    = errors.New("module already loaded")
	ErrNotLoad        = errors.New("module not loaded")
	ErrMissingPackage = errors.New("module missing")
	ErrCorrupted      = errors.New("recording corrupted")
)

// NewPool create new pool loading through l
func NewPool(l Loader) *Pool {
	p := new(Pool)
	p.Loader = l
	p.Modules = make(map[string]Module)
	return p
}

// LoadFile load path as module name
func (p *Pool) LoadFile(name, path string) (m Module, err error) {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.Modules[name]; ok {
		return nil, ErrAlreadyLoad
	}
	return p.load(name, path)
}

func (p *Pool) load(name, path string) (m Module, err error) {
	if m, err = p.Loader.Load(name, path); err != nil {
		return
	}
	p.Modules[name] = m
	p.Loaded = append(p.Loaded, m)
	return
}

// unloadFrom closes Loaded[i:] newest first and forgets them.
func (p *Pool) unloadFrom(i int) (err error) {
	x := p.Loaded[i:]
	for j := len(x) - 1; j >= 0; j-- {
		dyn := x[j]
		delete(p.Modules, fn.MapKeyOf(p.Modules, dyn))
		err = errors.Join(err, dyn.Close())
	}
	p.Loaded = p.Loaded[:i]
	return
}

// Reload closes name with its dependents and loads path as name again. Dependents are not reloaded.
func (p *Pool) Reload(name, path string) (m Module, err error) {
	p.Lock()
	defer p.Unlock()
	old, ok := p.Modules[name]
	if !ok {
		return nil, ErrNotLoad
	}
	i := slices.Index(p.Loaded, old)
	if i < 0 {
		return nil, ErrCorrupted
	}
	if err = p.unloadFrom(i); err != nil {
		return
	}
	return p.load(name, path)
}

// Require fetch symbol from module
func (p *Pool) Require(name, symbolName string) Sym {
	p.RLock()
	defer p.RUnlock()
	if m, ok := p.Modules[name]; ok {
		s, err := m.Lookup(symbolName)
		if err != nil {
			panic(err)
		}
		return s
	}
	panic(ErrMissingPackage)
}

// Names of loaded modules
func (p *Pool) Names() []string {
	p.RLock()
	defer p.RUnlock()
	return fn.MapKeys(p.Modules)
}

// Close all modules, newest first
func (p *Pool) Close() error {
	p.Lock()
	defer p.Unlock()
	return p.unloadFrom(0)
}
