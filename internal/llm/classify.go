package llm

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"zeb-assist-backend/internal/types"
)

// defaultIntent is the safe fallback when classification output cannot
// be trusted. It must never block a reply.
func defaultIntent() types.IntentResult {
	return types.IntentResult{
		Intent:     "general_faq",
		Language:   "en",
		Sentiment:  "neutral",
		Confidence: 0.5,
	}
}

// ClassifyIntent asks the model for a structured verdict on one
// inbound message. Upstream errors and malformed output both degrade
// to the safe default; this call never fails the turn.
func (s *Service) ClassifyIntent(ctx context.Context, message string) types.IntentResult {
	prompt := fmt.Sprintf(`Message: %q

Classify into ONE intent:
"order_lookup"|"return_exchange"|"payment_issue"|"delivery_info"|"product_question"|"store_info"|"complaint"|"escalation_needed"|"general_faq"|"greeting_smalltalk"

Also: language(nl/fr/en/unknown), sentiment(positive/neutral/frustrated/angry), has_order_number(bool), has_email(bool), confidence(0-1)

JSON only: {intent,language,sentiment,has_order_number,has_email,confidence}`, message)

	raw, err := s.complete(ctx, s.prompts.ClassifierSystem,
		[]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}}, 200)
	if err != nil {
		log.Printf("[classify] degraded to default: %v", err)
		return defaultIntent()
	}
	var out types.IntentResult
	if !decodeLooseJSON(raw, &out) {
		log.Printf("[classify] unparseable output, degraded to default")
		return defaultIntent()
	}
	if out.Intent == "" {
		out.Intent = "general_faq"
	}
	if out.Language == "" {
		out.Language = "unknown"
	}
	if out.Sentiment == "" {
		out.Sentiment = "neutral"
	}
	return out
}
