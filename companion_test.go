package nativeload

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZenLiuCN/fn"
	"github.com/charmbracelet/log"
)

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	fn.Panic(os.WriteFile(filepath.Join(dir, CompanionFile), nil, 0o644))
	state := NewFlagState(initial)
	var seen Flags
	base := LoaderFunc(func(name, path string) (Module, error) {
		seen = state.Current()
		return &fakeModule{name: name, path: path}, nil
	})
	i := newTestInterceptor(t, base, state)
	buf := new(bytes.Buffer)
	m, err := Probe(i, []string{t.TempDir(), dir}, log.New(buf))
	if err != nil {
		t.Fatal(err)
	}
	if m.Name() != CompanionName || m.Path() != filepath.Join(dir, CompanionFile) {
		t.Errorf("loaded %s from %s", m.Name(), m.Path())
	}
	if seen != elevated {
		t.Errorf("companion is in the exception list, saw %s", seen)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected output %q", buf)
	}
}

func TestProbeAdvisory(t *testing.T) {
	buf := new(bytes.Buffer)
	_, err := Probe(recorder(NewFlagState(initial), nil), []string{t.TempDir()}, log.New(buf))
	if !errors.Is(err, ErrCompanionNotFound) {
		t.Errorf("expect not found, got %v", err)
	}
	if !strings.Contains(buf.String(), "base package has been built") {
		t.Errorf("missing advice in %q", buf)
	}

	dir := t.TempDir()
	fn.Panic(os.WriteFile(filepath.Join(dir, "_lsstcppimport.dylib"), nil, 0o644))
	boom := errors.New("image not found")
	buf.Reset()
	if _, err = Probe(recorder(NewFlagState(initial), boom), []string{dir}, log.New(buf)); err != boom {
		t.Errorf("expect load error, got %v", err)
	}
	if !strings.Contains(buf.String(), "lsstcppimport") {
		t.Errorf("missing advice in %q", buf)
	}
}
