package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrEngine wraps every failure of the interpretation engine.
var ErrEngine = errors.New("interpretation engine error")

// Engine is the interpretation engine: prompt in, free-form text out. No
// structured-output guarantee is made.
type Engine interface {
	Complete(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// ChatEngine adapts an Eino chat model to Engine.
type ChatEngine struct {
	chat    model.BaseChatModel
	timeout time.Duration
}

// NewChatEngine wraps chat. A zero timeout uses DefaultTimeout.
func NewChatEngine(chat model.BaseChatModel, timeout time.Duration) *ChatEngine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ChatEngine{chat: chat, timeout: timeout}
}

// NewEngine builds the chat model for cfg and wraps it.
func NewEngine(ctx context.Context, cfg Config) (*ChatEngine, error) {
	chat, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	return NewChatEngine(chat, cfg.Timeout), nil
}

// Complete sends one system + user exchange and returns the assistant text.
func (e *ChatEngine) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	messages := make([]*schema.Message, 0, 2)
	if strings.TrimSpace(systemInstruction) != "" {
		messages = append(messages, schema.SystemMessage(systemInstruction))
	}
	messages = append(messages, schema.UserMessage(prompt))

	resp, err := e.chat.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: llm generate: %w", ErrEngine, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: empty response", ErrEngine)
	}
	return resp.Content, nil
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, prompt, systemInstruction string) (string, error)

// Complete calls f.
func (f EngineFunc) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	return f(ctx, prompt, systemInstruction)
}
