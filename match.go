package nativeload

import (
	"path/filepath"
	"slices"
	"strings"
)

type (
	// Request is one load: the module name and its resolved path split into segments.
	Request struct {
		Name     string
		Path     string
		Segments []string
	}
	// Matcher decides whether a load must run with elevated flags.
	Matcher interface {
		Matches(req Request) bool
	}
	// Rule selects native companions of one namespace.
	//
	// A file matches when its name is in Exceptions, or when it has one of Extensions,
	// starts with an underscore, and some path segment equal to RootToken is directly
	// followed by a segment equal to Namespace.
	Rule struct {
		Extensions []string `yaml:"extensions" toml:"extensions"`
		Exceptions []string `yaml:"exceptions" toml:"exceptions"`
		RootToken  string   `yaml:"root" toml:"root"`
		Namespace  string   `yaml:"namespace" toml:"namespace"`
	}
	// MatcherFunc adapts a function to Matcher.
	MatcherFunc func(req Request) bool
)

// Companion library names. They may live outside any namespace directory.
const (
	CompanionFile  = "_lsstcppimport.so"
	CompanionDylib = "_lsstcppimport.dylib"
)

// DefaultRule matches LSST native extensions.
func DefaultRule() Rule {
	return Rule{
		Extensions: []string{".so", ".dylib"},
		Exceptions: []string{CompanionFile, CompanionDylib},
		RootToken:  "python",
		Namespace:  "lsst",
	}
}

// NewRequest splits path on the OS separator.
func NewRequest(name, path string) Request {
	return Request{
		Name:     name,
		Path:     path,
		Segments: strings.Split(path, string(filepath.Separator)),
	}
}

// File is the last path segment.
func (r Request) File() string {
	if len(r.Segments) == 0 {
		return ""
	}
	return r.Segments[len(r.Segments)-1]
}

func (f MatcherFunc) Matches(req Request) bool {
	return f(req)
}

func (r Rule) Matches(req Request) bool {
	file := req.File()
	if slices.Contains(r.Exceptions, file) {
		return true
	}
	if !slices.Contains(r.Extensions, filepath.Ext(file)) {
		return false
	}
	if !strings.HasPrefix(file, "_") {
		return false
	}
	for i, seg := range req.Segments {
		if seg == r.RootToken && i+1 < len(req.Segments) && req.Segments[i+1] == r.Namespace {
			return true
		}
	}
	return false
}
