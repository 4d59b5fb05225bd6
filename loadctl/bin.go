package main

import (
	"fmt"
	. "github.com/ZenLiuCN/nativeload"
	"github.com/ZenLiuCN/nativeload/object"
	"github.com/ZenLiuCN/nativeload/pool"
	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v2"
	"log"
	"os"
	"path/filepath"
	"strings"
)

func main() {
	app := cli.NewApp()
	app.Usage = "native extension loader with elevated dlopen flags"
	app.Name = "loadctl"
	app.Description = "inspect dlopen flag resolution, classify extension paths and load libraries through the interceptor"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}},
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "yaml or toml configuration file"},
	}
	app.Commands = []*cli.Command{
		{
			Name:   "flags",
			Action: flags,
			Usage:  "display resolved RTLD_GLOBAL, RTLD_NOW and the elevated mask",
		},
		{
			Name:   "match",
			Action: match,
			Usage:  "display whether each path would be loaded with elevated flags",
			Args:   true,
		},
		{
			Name:   "load",
			Action: load,
			Usage:  "load shared libraries or go objects through the interceptor",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{Name: "symbol", Aliases: []string{"s"}, Usage: "symbols to lookup in every loaded module"},
				&cli.StringSliceFlag{Name: "shared", Usage: "shared libraries whose symbols go objects may link against"},
			},
			Args: true,
		},
		{
			Name:   "probe",
			Action: probe,
			Usage:  "load the companion library as a sanity check",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{Name: "path", Aliases: []string{"p"}, Usage: "search path, default $PYTHONPATH"},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("failure %s", err)
	}
}

func config(ctx *cli.Context) (cfg Config, err error) {
	if p := ctx.String("config"); p != "" {
		cfg, err = LoadConfig(p)
	} else {
		cfg = DefaultConfig()
	}
	if ctx.Bool("debug") {
		cfg.Debug = true
	}
	return
}

func flags(ctx *cli.Context) (err error) {
	cfg, err := config(ctx)
	if err != nil {
		return
	}
	r, err := Resolve(DefaultSources(cfg.Overrides())...)
	if err != nil {
		return
	}
	fmt.Printf("RTLD_GLOBAL\t%s\t%s\n", r.Global, r.GlobalFrom)
	if r.NowFallback {
		fmt.Printf("RTLD_NOW\t%s\tfallback\n", r.Now)
	} else {
		fmt.Printf("RTLD_NOW\t%s\t%s\n", r.Now, r.NowFrom)
	}
	fmt.Printf("mask\t%s\n", r.Mask())
	return
}

func match(ctx *cli.Context) (err error) {
	cfg, err := config(ctx)
	if err != nil {
		return
	}
	o := ctx.Args().Slice()
	if len(o) == 0 {
		return fmt.Errorf("missing paths")
	}
	rule := cfg.MatchRule()
	for _, p := range o {
		req := NewRequest(moduleName(p), p)
		if cfg.Debug {
			spew.Dump(req)
		}
		if rule.Matches(req) {
			fmt.Printf("elevate\t%s\n", p)
		} else {
			fmt.Printf("pass\t%s\n", p)
		}
	}
	return
}

func load(ctx *cli.Context) (err error) {
	cfg, err := config(ctx)
	if err != nil {
		return
	}
	o := ctx.Args().Slice()
	if len(o) == 0 {
		return fmt.Errorf("missing paths")
	}
	base := ByExtension{Loaders: map[string]Loader{}, Fallback: NewNativeLoader(nil)}
	if hasObjects(o) {
		var ol *object.Loader
		if ol, err = object.NewLoader(cfg.Debug); err != nil {
			return fmt.Errorf("object loader: %w", err)
		}
		for _, s := range ctx.StringSlice("shared") {
			if err = ol.RegisterShared(s); err != nil {
				return
			}
		}
		base.Loaders[".o"] = ol
		base.Loaders[".a"] = ol
	}
	rt, err := SetupWith(DefaultInstallation(), cfg, base)
	if err != nil {
		return
	}
	p := pool.NewPool(rt.Loader)
	defer func() {
		if cerr := p.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for _, f := range o {
		var m Module
		if m, err = p.LoadFile(moduleName(f), f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
		if lib, ok := m.(*Library); ok {
			fmt.Printf("%s\t%s\t%s\n", m.Name(), lib.Flags(), m.Path())
		} else {
			fmt.Printf("%s\t-\t%s\n", m.Name(), m.Path())
		}
		if cfg.Debug {
			spew.Dump(m)
		}
		for _, s := range ctx.StringSlice("symbol") {
			if sym, lerr := m.Lookup(s); lerr != nil {
				fmt.Printf("\t%s\t%v\n", s, lerr)
			} else {
				fmt.Printf("\t%s\t%#x\n", s, uintptr(sym))
			}
		}
	}
	return
}

func probe(ctx *cli.Context) (err error) {
	cfg, err := config(ctx)
	if err != nil {
		return
	}
	if v := ctx.StringSlice("path"); len(v) > 0 {
		cfg.SearchPath = v
	}
	cfg.Companion = false
	rt, err := Setup(cfg)
	if err != nil {
		return
	}
	m, err := Probe(rt.Loader, cfg.SearchPath, rt.Logger)
	if err != nil {
		return
	}
	fmt.Printf("%s\t%s\n", m.Name(), m.Path())
	return m.Close()
}

// moduleName strips the underscore and extension: _afwMath.so -> afwMath
func moduleName(path string) string {
	n := filepath.Base(path)
	n = strings.TrimSuffix(n, filepath.Ext(n))
	return strings.TrimPrefix(n, "_")
}

func hasObjects(paths []string) bool {
	for _, p := range paths {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".o", ".a":
			return true
		}
	}
	return false
}
