package llm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"zeb-assist-backend/internal/config"
	"zeb-assist-backend/internal/types"
)

type fakeCompletion struct {
	reply   string
	err     error
	lastReq openai.ChatCompletionRequest
	calls   int
}

func (f *fakeCompletion) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.reply}}},
	}, nil
}

func newTestService(fake *fakeCompletion) (*Service, *config.Store) {
	cfgStore := config.NewStore(config.Config{ChatKey: "sk-test", ChatModel: "gpt-4o-mini"})
	s := New(cfgStore, DefaultPromptSpec())
	s.newClient = func(config.Config) completionAPI { return fake }
	return s, cfgStore
}

func TestClassifyIntentParsesWrappedJSON(t *testing.T) {
	fake := &fakeCompletion{reply: "Sure, here you go:\n{\"intent\":\"order_lookup\",\"language\":\"nl\",\"sentiment\":\"frustrated\",\"has_order_number\":true,\"has_email\":false,\"confidence\":0.92}"}
	s, _ := newTestService(fake)

	got := s.ClassifyIntent(context.Background(), "waar blijft order 1117619?")
	if got.Intent != "order_lookup" || got.Language != "nl" || got.Sentiment != "frustrated" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if !got.HasOrderNumber || got.HasEmail {
		t.Fatalf("unexpected flags: %+v", got)
	}
	if got.Confidence != 0.92 {
		t.Fatalf("unexpected confidence: %v", got.Confidence)
	}
}

func TestClassifyIntentDegradesOnGarbage(t *testing.T) {
	fake := &fakeCompletion{reply: "I could not decide on a category, sorry."}
	s, _ := newTestService(fake)

	got := s.ClassifyIntent(context.Background(), "hello")
	want := defaultIntent()
	if got != want {
		t.Fatalf("expected safe default %+v, got %+v", want, got)
	}
}

func TestClassifyIntentDegradesOnUpstreamError(t *testing.T) {
	fake := &fakeCompletion{err: fmt.Errorf("connection refused")}
	s, _ := newTestService(fake)

	got := s.ClassifyIntent(context.Background(), "hello")
	if got != defaultIntent() {
		t.Fatalf("expected safe default, got %+v", got)
	}
}

func TestGuardrailCheckDegradesToApproval(t *testing.T) {
	fake := &fakeCompletion{reply: "not json at all"}
	s, _ := newTestService(fake)

	got := s.GuardrailCheck(context.Background(), "msg", "draft", "en")
	if !got.Approved || got.Escalate || len(got.Issues) != 0 {
		t.Fatalf("expected approval default, got %+v", got)
	}
}

func TestGuardrailCheckParsesVerdict(t *testing.T) {
	fake := &fakeCompletion{reply: `{"approved":false,"issues":["WRONG_LANGUAGE"],"corrected_response":"Fixed.","escalate":true,"escalate_reason":"refund waited 20 days"}`}
	s, _ := newTestService(fake)

	got := s.GuardrailCheck(context.Background(), "msg", "draft", "nl")
	if got.Approved {
		t.Fatal("expected not approved")
	}
	if got.CorrectedResponse == nil || *got.CorrectedResponse != "Fixed." {
		t.Fatalf("unexpected correction: %v", got.CorrectedResponse)
	}
	if !got.Escalate || got.EscalateReason == nil || *got.EscalateReason != "refund waited 20 days" {
		t.Fatalf("unexpected escalation: %+v", got)
	}
}

func TestGenerateResponsePromptAssembly(t *testing.T) {
	fake := &fakeCompletion{reply: "Dag! Je bestelling is onderweg."}
	s, _ := newTestService(fake)

	orderCtx := []types.OrderView{{OrderNumber: "#1117619", Total: "€12.34"}}
	reply, err := s.GenerateResponse(context.Background(), "waar is mijn bestelling?", "nl", "neutral",
		"[1] Delivery FAQ\nWe ship with Bpost.", orderCtx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Dag! Je bestelling is onderweg." {
		t.Fatalf("unexpected reply: %q", reply)
	}

	system := fake.lastReq.Messages[0].Content
	if !strings.Contains(system, "Respond ONLY in Dutch") {
		t.Fatal("expected language pinned to Dutch")
	}
	if !strings.Contains(system, "RETRIEVED FAQ CONTEXT") || !strings.Contains(system, "We ship with Bpost.") {
		t.Fatal("expected retrieved context injected as primary source")
	}
	if !strings.Contains(system, "VERIFIED ORDER DATA") || !strings.Contains(system, "#1117619") {
		t.Fatal("expected verified order data injected")
	}
	if !strings.Contains(system, "NEVER show full address") {
		t.Fatal("expected privacy rule for order data")
	}
}

func TestGenerateResponseEmptyContextFallsBackToKeyFacts(t *testing.T) {
	fake := &fakeCompletion{reply: "ok"}
	s, _ := newTestService(fake)

	if _, err := s.GenerateResponse(context.Background(), "hi", "unknown", "neutral", "", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	system := fake.lastReq.Messages[0].Content
	if !strings.Contains(system, "No specific FAQ retrieved") {
		t.Fatal("expected explicit fallback instruction when context is absent")
	}
	if !strings.Contains(system, "Auto-detect and match customer language") {
		t.Fatal("expected auto-detect instruction for unknown language")
	}
	if strings.Contains(system, "VERIFIED ORDER DATA") {
		t.Fatal("order block must be absent without orders")
	}
}

func TestGenerateResponseBoundsHistoryWindow(t *testing.T) {
	fake := &fakeCompletion{reply: "ok"}
	s, _ := newTestService(fake)

	history := make([]types.Message, 0, 25)
	for i := 0; i < 25; i++ {
		history = append(history, types.Message{Role: "user", Content: fmt.Sprintf("turn %d", i)})
	}
	if _, err := s.GenerateResponse(context.Background(), "latest", "en", "neutral", "", nil, history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// system + 10 history turns + the new user message
	if got := len(fake.lastReq.Messages); got != 12 {
		t.Fatalf("expected 12 messages, got %d", got)
	}
	if fake.lastReq.Messages[1].Content != "turn 15" {
		t.Fatalf("expected trailing window to start at turn 15, got %q", fake.lastReq.Messages[1].Content)
	}
	if last := fake.lastReq.Messages[11]; last.Content != "latest" || last.Role != openai.ChatMessageRoleUser {
		t.Fatalf("expected inbound message last, got %+v", last)
	}
}

func TestGenerateResponseFailsWithoutKey(t *testing.T) {
	cfgStore := config.NewStore(config.Config{ChatModel: "gpt-4o-mini"})
	s := New(cfgStore, DefaultPromptSpec())
	if _, err := s.GenerateResponse(context.Background(), "hi", "en", "neutral", "", nil, nil); err == nil {
		t.Fatal("expected error when no chat key is configured")
	}
}

func TestInvalidationDropsCachedClient(t *testing.T) {
	fake := &fakeCompletion{reply: `{"intent":"general_faq","language":"en","sentiment":"neutral","confidence":0.9}`}
	s, cfgStore := newTestService(fake)

	built := 0
	s.newClient = func(config.Config) completionAPI {
		built++
		return fake
	}
	s.ClassifyIntent(context.Background(), "one")
	s.ClassifyIntent(context.Background(), "two")
	if built != 1 {
		t.Fatalf("expected one client for two calls, got %d", built)
	}

	key := "sk-rotated"
	cfgStore.Apply(config.Patch{ChatKey: &key})
	s.ClassifyIntent(context.Background(), "three")
	if built != 2 {
		t.Fatalf("expected fresh client after invalidation, got %d builds", built)
	}
}
