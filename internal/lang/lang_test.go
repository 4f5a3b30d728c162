package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".py", "python"},
		{".go", "go"},
		{".rb", "ruby"},
		{".toml", ""},
		{"", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ForExtension(tt.ext))
		})
	}
}

func TestNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"go", "python", "ruby"}, Names())
}

func TestDefinitionQueries(t *testing.T) {
	t.Parallel()

	for _, name := range Names() {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			l := Languages[name]
			require.NotNil(t, l.GetLanguage(), "grammar")
			require.NotNil(t, l.NewParser())
			q, err := l.DefinitionQuery()
			require.NoError(t, err)
			assert.NotNil(t, q)
		})
	}
}
