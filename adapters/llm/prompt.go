package llm

import (
	"github.com/satriahrh/irp-helper/domain"
)

// DefaultSystemInstruction is sent with every request unless overridden by
// GEMINI_SYSTEM_INSTRUCTION.
const DefaultSystemInstruction = `You are IRP Helper, a friendly assistant embedded in a website chat widget.
Answer in plain text without markdown tables or code fences unless asked.
Keep replies short enough to read comfortably in a small chat window.
If a question is outside what you can help with, say so briefly.`

func systemInstructionOrDefault(s string) string {
	if s == "" {
		return DefaultSystemInstruction
	}
	return s
}

// modelRole maps a transcript sender to the role tag the endpoint expects.
func modelRole(s domain.Sender) string {
	if s == domain.UserSender {
		return "user"
	}
	return "model"
}
