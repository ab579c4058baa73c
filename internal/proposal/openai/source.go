// Package openai generates trade proposals with an OpenAI-compatible chat
// completion endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/proposal"
)

var ErrNoChoicesInResponse = errors.New("no choices in OpenAI response")

const (
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.2
	defaultMaxTokens   = 512
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Options configures the client and request.
type Options struct {
	APIKey  string
	BaseURL string // optional, for compatible gateways
	Model   string
	// JSONMode requests a json_object response format. Some compatible
	// gateways reject it.
	JSONMode bool
}

// Source is a proposal.Source backed by a chat completion model.
type Source struct {
	client   chatClient
	model    string
	jsonMode bool
}

var _ proposal.Source = (*Source)(nil)

// New builds a Source with a go-openai client.
func New(opts Options) *Source {
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	return newWithClient(goopenai.NewClientWithConfig(cfg), opts)
}

func newWithClient(client chatClient, opts Options) *Source {
	m := opts.Model
	if m == "" {
		m = defaultModel
	}
	return &Source{client: client, model: m, jsonMode: opts.JSONMode}
}

// Generate implements proposal.Source.
func (s *Source) Generate(ctx context.Context, agent *model.Agent, sector *model.Sector) ([]byte, error) {
	p := proposal.BuildPrompt(agent, sector)

	req := goopenai.ChatCompletionRequest{
		Model: s.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: p.System},
			{Role: goopenai.ChatMessageRoleUser, Content: p.User},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
	if s.jsonMode {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesInResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, proposal.ErrEmptyProposal
	}
	return []byte(content), nil
}
