package llm

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"zeb-assist-backend/internal/config"
)

// completionAPI is the slice of the OpenAI client the adapter needs.
// Narrow so tests can substitute a fake.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Service wraps the three LLM calls of the pipeline: intent
// classification, grounded generation and the guardrail review. The
// underlying client is constructed lazily and dropped whenever the
// config store reports a credential change.
type Service struct {
	cfg     *config.Store
	prompts PromptSpec

	mu        sync.Mutex
	client    completionAPI
	newClient func(config.Config) completionAPI
}

func New(cfg *config.Store, prompts PromptSpec) *Service {
	s := &Service{
		cfg:     cfg,
		prompts: prompts,
		newClient: func(c config.Config) completionAPI {
			oc := openai.DefaultConfig(c.ChatKey)
			if c.ChatBaseURL != "" {
				oc.BaseURL = c.ChatBaseURL
			}
			return openai.NewClientWithConfig(oc)
		},
	}
	cfg.OnInvalidate(s.invalidate)
	return s
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
}

func (s *Service) getClient() (completionAPI, config.Config, error) {
	cfg := s.cfg.Snapshot()
	if cfg.ChatKey == "" {
		return nil, cfg, fmt.Errorf("CHAT_API_KEY not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		s.client = s.newClient(cfg)
	}
	return s.client, cfg, nil
}

// complete issues one chat completion and returns the raw text of the
// first choice.
func (s *Service) complete(ctx context.Context, system string, messages []openai.ChatCompletionMessage, maxTokens int) (string, error) {
	client, cfg, err := s.getClient()
	if err != nil {
		return "", err
	}
	req := openai.ChatCompletionRequest{
		Model:       cfg.ChatModel,
		Temperature: 0.2,
		MaxTokens:   maxTokens,
		Messages: append(
			[]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: system}},
			messages...,
		),
	}
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
