package nativeload

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// CompanionName is the module name the companion library is loaded under.
const CompanionName = "lsstcppimport"

// CompanionAdvice is logged when the companion library can not be loaded.
const CompanionAdvice = "Could not import lsstcppimport; please ensure the base package has been built (not just setup)."

// ErrCompanionNotFound occurs when no search path entry holds the companion library.
var ErrCompanionNotFound = errors.New("companion library not found")

// FindCompanion returns the first companion library found in searchPath.
func FindCompanion(searchPath []string) (string, error) {
	names := []string{CompanionFile, CompanionDylib}
	for _, dir := range searchPath {
		for _, n := range names {
			p := filepath.Join(dir, n)
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				return p, nil
			}
		}
	}
	return "", ErrCompanionNotFound
}

// Probe loads the companion library through l as a sanity check.
//
// Failure is advisory: CompanionAdvice is logged at warn level and the error is returned
// for callers that care. A successfully loaded companion stays open for the process lifetime.
func Probe(l Loader, searchPath []string, logger *log.Logger) (Module, error) {
	if logger == nil {
		logger = log.Default()
	}
	p, err := FindCompanion(searchPath)
	if err == nil {
		var m Module
		if m, err = l.Load(CompanionName, p); err == nil {
			return m, nil
		}
	}
	logger.Warn(CompanionAdvice, "err", err)
	return nil, err
}
