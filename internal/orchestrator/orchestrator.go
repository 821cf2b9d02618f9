package orchestrator

import (
	"context"
	"log"
	"time"

	"zeb-assist-backend/internal/orders"
	"zeb-assist-backend/internal/rag"
	"zeb-assist-backend/internal/types"
)

// Per-stage timeouts. The upstream services define no deadline of
// their own; without these an unresponsive downstream would stall the
// whole turn.
const (
	classifyTimeout  = 15 * time.Second
	retrieveTimeout  = 15 * time.Second
	generateTimeout  = 60 * time.Second
	guardrailTimeout = 20 * time.Second
)

// Completer is the slice of the LLM adapter the pipeline needs.
type Completer interface {
	ClassifyIntent(ctx context.Context, message string) types.IntentResult
	GenerateResponse(ctx context.Context, message, language, sentiment, ragContext string, orderContext []types.OrderView, history []types.Message) (string, error)
	GuardrailCheck(ctx context.Context, customerMessage, draftReply, language string) types.GuardrailResult
}

// Retriever produces grounding context for a query.
type Retriever interface {
	RetrieveContext(ctx context.Context, query, language string) (rag.Result, error)
}

// OrderResolver resolves an extracted identifier against the order index.
type OrderResolver interface {
	Lookup(id types.Identifier) []types.OrderView
}

// Orchestrator sequences one inbound message through
// Classify → {ResolveOrder ∥ Retrieve} → Generate → Guardrail → Respond.
type Orchestrator struct {
	llm       Completer
	retriever Retriever
	orders    OrderResolver
}

func New(llm Completer, retriever Retriever, orderIndex OrderResolver) *Orchestrator {
	return &Orchestrator{llm: llm, retriever: retriever, orders: orderIndex}
}

// Handle runs the full pipeline for one message and always returns a
// complete, well-formed response.
func (o *Orchestrator) Handle(ctx context.Context, message string, history []types.Message) types.ChatResponse {
	t0 := time.Now()
	log.Printf("[chat] -> %q", head(message, 80))

	// Classify
	cctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	intent := o.llm.ClassifyIntent(cctx, message)
	cancel()
	log.Printf("[chat] intent=%s lang=%s sentiment=%s", intent.Intent, intent.Language, intent.Sentiment)

	// ResolveOrder and Retrieve have no data dependency on each other;
	// retrieval goes to the network while the order lookup runs locally.
	// Both degrade to null/empty, never abort.
	ragCh := make(chan rag.Result, 1)
	go func() {
		rctx, cancel := context.WithTimeout(ctx, retrieveTimeout)
		defer cancel()
		res, err := o.retriever.RetrieveContext(rctx, message, intent.Language)
		if err != nil {
			log.Printf("[chat] retrieval failed: %v", err)
			res = rag.Result{Sources: []rag.Match{}}
		}
		ragCh <- res
	}()

	var orderContext []types.OrderView
	if id := orders.ExtractIdentifier(message); id != nil {
		orderContext = o.orders.Lookup(*id)
		log.Printf("[chat] orders: %d found (%s: %s)", len(orderContext), id.Type, id.Value)
	}

	ragRes := <-ragCh
	if len(ragRes.Sources) > 0 {
		log.Printf("[chat] rag: %d chunks retrieved (fallback=%v)", len(ragRes.Sources), ragRes.Fallback)
	} else {
		log.Printf("[chat] rag: 0 chunks retrieved, generation will use built-in facts only")
	}

	// Generate. Failure here is fatal to the turn: canned apology in
	// the detected language, no guardrail, no escalation.
	gctx, cancel := context.WithTimeout(ctx, generateTimeout)
	reply, err := o.llm.GenerateResponse(gctx, message, intent.Language, intent.Sentiment, ragRes.Context, orderContext, history)
	cancel()
	if err != nil {
		log.Printf("[chat] generation failed: %v", err)
		return types.ChatResponse{
			Reply:            cannedFailureReply(intent.Language),
			Intent:           intent.Intent,
			Language:         intent.Language,
			Sentiment:        intent.Sentiment,
			Orders:           orderContext,
			Sources:          []types.SourceView{},
			Escalated:        false,
			EscalationReason: nil,
			Ms:               time.Since(t0).Milliseconds(),
		}
	}

	// Guardrail: second opinion, degrades to approval.
	uctx, cancel := context.WithTimeout(ctx, guardrailTimeout)
	guard := o.llm.GuardrailCheck(uctx, message, reply, intent.Language)
	cancel()
	if !guard.Approved && guard.CorrectedResponse != nil && *guard.CorrectedResponse != "" {
		log.Printf("[chat] guardrail corrected the draft")
		reply = *guard.CorrectedResponse
	}
	if len(guard.Issues) > 0 {
		log.Printf("[chat] guardrail issues: %v", guard.Issues)
	}
	if guard.Escalate {
		log.Printf("[chat] escalating: %v", deref(guard.EscalateReason))
	}

	ms := time.Since(t0).Milliseconds()
	log.Printf("[chat] done in %dms", ms)
	return types.ChatResponse{
		Reply:            reply,
		Intent:           intent.Intent,
		Language:         intent.Language,
		Sentiment:        intent.Sentiment,
		Orders:           orderContext,
		Sources:          sourceViews(ragRes.Sources),
		Escalated:        guard.Escalate,
		EscalationReason: guard.EscalateReason,
		Ms:               ms,
	}
}

// cannedFailureReply returns the language-matched apology used when
// generation is unavailable.
func cannedFailureReply(language string) string {
	switch language {
	case "nl":
		return "Er is een technisch probleem. Probeer opnieuw of contacteer ons via https://www.zeb.be/nl/contact"
	case "fr":
		return "Problème technique. Réessayez ou contactez-nous via https://www.zeb.be/nl/contact"
	default:
		return "Technical issue. Please try again or contact us at https://www.zeb.be/nl/contact"
	}
}

func sourceViews(matches []rag.Match) []types.SourceView {
	out := make([]types.SourceView, 0, len(matches))
	for _, m := range matches {
		out = append(out, types.SourceView{
			Title:    m.Title,
			Source:   m.Source,
			Score:    m.Score,
			Category: m.Category,
			Language: m.Language,
		})
	}
	return out
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
