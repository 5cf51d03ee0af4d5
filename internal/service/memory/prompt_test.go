package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSysPrompt_Build(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "SYSTEM.md")

	tests := []struct {
		name    string
		content *string
		want    string
	}{
		{name: "missing file", want: DefaultPersona},
		{name: "blank file", content: ptr("  \n"), want: DefaultPersona},
		{name: "custom", content: ptr("You are a pirate.\n"), want: "You are a pirate."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Remove(path)
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0o644))
			}

			msg := NewSysPrompt(promptPath(path)).Build()
			assert.Equal(t, core.RoleSystem, msg.Role)
			assert.Equal(t, tt.want, msg.Content)
		})
	}
}

func ptr(s string) *string { return &s }
