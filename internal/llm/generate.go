package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"zeb-assist-backend/internal/types"
)

// historyWindow bounds the trailing conversation slice passed to
// generation, to bound token cost and latency.
const historyWindow = 10

// GenerateResponse builds the grounded system prompt and produces the
// draft reply. There is no parse fallback here; the raw text is the
// draft. An error is fatal to the turn and handled by the caller.
func (s *Service) GenerateResponse(ctx context.Context, message, language, sentiment, ragContext string, orderContext []types.OrderView, history []types.Message) (string, error) {
	system := s.buildSystemPrompt(language, ragContext, orderContext)

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, h := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	reply, err := s.complete(ctx, system, messages, 1024)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return reply, nil
}

func (s *Service) buildSystemPrompt(language, ragContext string, orderContext []types.OrderView) string {
	lang := map[string]string{
		"nl": `Respond ONLY in Dutch. Use informal "je/jouw".`,
		"fr": "Respond ONLY in French. Mirror customer register.",
		"en": "Respond ONLY in English.",
	}[language]
	if lang == "" {
		lang = "Auto-detect and match customer language (NL/FR/EN)."
	}

	var b strings.Builder
	b.WriteString(s.prompts.Identity)
	b.WriteString("\n\n## LANGUAGE\n")
	b.WriteString(lang)
	b.WriteString("\n\n## TONE\n")
	b.WriteString(s.prompts.Tone)
	b.WriteString("\n\n## ZEB KEY FACTS\n")
	b.WriteString(s.prompts.KeyFacts)
	b.WriteString("\n\n## ESCALATION (say \"I'll connect you with a colleague\")\n")
	b.WriteString(s.prompts.Escalation)
	b.WriteString("\n\n## RULES\n")
	b.WriteString(s.prompts.Rules)

	if ragContext != "" {
		b.WriteString("\n\n## RETRIEVED FAQ CONTEXT (from ZEB knowledge base — use this as your PRIMARY source)\n")
		b.WriteString(ragContext)
		b.WriteString("\n\nBase your answer on the above context. If context is insufficient, use ZEB key facts above.")
	} else {
		b.WriteString("\n\n## FAQ CONTEXT\nNo specific FAQ retrieved. Use ZEB key facts above.")
	}

	if len(orderContext) > 0 {
		data, _ := json.MarshalIndent(orderContext, "", "  ")
		b.WriteString("\n\n## VERIFIED ORDER DATA\n")
		b.Write(data)
		b.WriteString("\nShow: order number, items, total, status, city. NEVER show full address, internal IDs.")
	}
	return b.String()
}
