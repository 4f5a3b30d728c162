package parse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/surc/internal/discover"
	"github.com/phobologic/surc/internal/lang"
	"github.com/phobologic/surc/internal/model"
)

func setup(t *testing.T, langName string) func(source string) []model.CodeSymbol {
	t.Helper()
	l := lang.Languages[langName]
	require.NotNil(t, l, "language %q not registered", langName)
	ext := l.Extensions[0]
	return func(source string) []model.CodeSymbol {
		syms, err := Definitions(context.Background(), l, l.NewParser(), []byte(source), "test"+ext)
		require.NoError(t, err)
		return syms
	}
}

func find(t *testing.T, syms []model.CodeSymbol, name string) model.CodeSymbol {
	t.Helper()
	for _, s := range syms {
		if s.Name == name {
			return s
		}
	}
	require.FailNow(t, "symbol not found", "%s in %+v", name, syms)
	return model.CodeSymbol{}
}

// --- Python tests ---

func TestPythonFunction(t *testing.T) {
	t.Parallel()
	extract := setup(t, "python")

	syms := extract("def hello(name: str) -> None:\n    pass\n")
	require.Len(t, syms, 1)
	assert.Equal(t, model.CodeSymbol{
		Name:     "hello",
		Kind:     model.Function,
		Language: "python",
		File:     "test.py",
		Line:     1,
	}, syms[0])
}

func TestPythonClassAndMethods(t *testing.T) {
	t.Parallel()
	extract := setup(t, "python")

	source := `class UserStore(Base):
    def save(self, user):
        def helper():
            pass
        return helper()

    @staticmethod
    def build():
        pass
`
	syms := extract(source)

	assert.Equal(t, model.Class, find(t, syms, "UserStore").Kind)

	for _, name := range []string{"save", "build"} {
		m := find(t, syms, name)
		assert.Equal(t, model.Method, m.Kind, name)
		assert.Equal(t, "UserStore", m.Container, name)
	}

	h := find(t, syms, "helper")
	assert.Equal(t, model.Function, h.Kind, "nested function is a top-level function")
	assert.Empty(t, h.Container)
}

func TestEmptySource(t *testing.T) {
	t.Parallel()
	extract := setup(t, "python")
	assert.Empty(t, extract(""))
}

// --- Go tests ---

func TestGoDefinitions(t *testing.T) {
	t.Parallel()
	extract := setup(t, "go")

	source := `package store

type User struct {
	ID string
}

func NewUser(id string) *User {
	return &User{ID: id}
}

func (u *User) Save() error {
	return nil
}
`
	syms := extract(source)

	assert.Equal(t, model.Class, find(t, syms, "User").Kind)

	f := find(t, syms, "NewUser")
	assert.Equal(t, model.Function, f.Kind)
	assert.Equal(t, 7, f.Line)

	m := find(t, syms, "Save")
	assert.Equal(t, model.Method, m.Kind)
	assert.Equal(t, "User", m.Container)
}

// --- Ruby tests ---

func TestRubyDefinitions(t *testing.T) {
	t.Parallel()
	extract := setup(t, "ruby")

	source := `module Billing
  class Invoice < Base
    def total
      0
    end

    def self.build
      new
    end
  end
end

def helper
end
`
	syms := extract(source)

	assert.Equal(t, model.Class, find(t, syms, "Billing").Kind)
	assert.Equal(t, model.Class, find(t, syms, "Invoice").Kind)
	for _, name := range []string{"total", "build"} {
		m := find(t, syms, name)
		assert.Equal(t, model.Method, m.Kind, name)
		assert.Equal(t, "Invoice", m.Container, name)
	}
	h := find(t, syms, "helper")
	assert.Equal(t, model.Function, h.Kind)
	assert.Empty(t, h.Container)
}

func TestFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte(content), 0o644))
	}
	write("a.py", "class A:\n    pass\n")
	write("b.go", "package b\n\nfunc B() {}\n")

	files := []discover.FileEntry{
		{Path: "a.py", Language: "python"},
		{Path: "b.go", Language: "go"},
		{Path: "missing.rb", Language: "ruby"},
	}
	syms := Files(context.Background(), dir, files, nil)
	require.Len(t, syms, 2)
	assert.Equal(t, "A", syms[0].Name)
	assert.Equal(t, "a.py", syms[0].File)
	assert.Equal(t, "B", syms[1].Name)
	assert.Equal(t, "b.go", syms[1].File)
}
