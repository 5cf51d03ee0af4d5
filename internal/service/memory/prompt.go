package memory

import (
	"os"
	"strings"

	"github.com/sandevgo/knowbot/internal/core"
)

const DefaultPersona = `You are a helpful AI knowledge assistant. You help users organize information, answer questions, and remember important details.
Be conversational, friendly, and concise. You can remember information from previous conversations.`

type SysPrompt struct {
	cfg core.PromptConfig
}

func NewSysPrompt(cfg core.PromptConfig) *SysPrompt {
	return &SysPrompt{
		cfg: cfg,
	}
}

// Build returns the single system message that opens every context. A
// non-empty SYSTEM.md in the runtime directory replaces the built-in persona.
func (p *SysPrompt) Build() core.Message {
	content := DefaultPersona
	if p.cfg != nil {
		if data, err := os.ReadFile(p.cfg.GetSystemPath()); err == nil {
			if custom := strings.TrimSpace(string(data)); custom != "" {
				content = custom
			}
		}
	}
	return core.Message{Role: core.RoleSystem, Content: content}
}
