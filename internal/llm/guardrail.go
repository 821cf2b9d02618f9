package llm

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"zeb-assist-backend/internal/types"
)

// defaultGuardrail approves the draft untouched. Guardrail failure
// must never block a reply.
func defaultGuardrail() types.GuardrailResult {
	return types.GuardrailResult{Approved: true, Issues: []string{}}
}

// GuardrailCheck reviews a draft reply as a second opinion. It may
// revise the text and flag the conversation for human handoff,
// independently. Degrades to approval on any failure.
func (s *Service) GuardrailCheck(ctx context.Context, customerMessage, draftReply, language string) types.GuardrailResult {
	prompt := fmt.Sprintf(`Customer: %s
Draft: %s
Expected language: %s

Check: HALLUCINATION, PROMISE_VIOLATION, PRIVACY_LEAK, WRONG_LANGUAGE, ESCALATION_MISSED, TONE_ISSUE, MISSING_LINK

Return: {"approved":bool,"issues":[],"corrected_response":null,"escalate":bool,"escalate_reason":null}`,
		customerMessage, draftReply, language)

	raw, err := s.complete(ctx, s.prompts.GuardrailSystem,
		[]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}}, 600)
	if err != nil {
		log.Printf("[guardrail] skipped: %v", err)
		return defaultGuardrail()
	}
	var out types.GuardrailResult
	if !decodeLooseJSON(raw, &out) {
		log.Printf("[guardrail] unparseable output, skipped")
		return defaultGuardrail()
	}
	if out.Issues == nil {
		out.Issues = []string{}
	}
	return out
}
