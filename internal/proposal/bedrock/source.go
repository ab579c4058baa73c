// Package bedrock generates trade proposals with the AWS Bedrock Converse API.
package bedrock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/proposal"
)

const (
	// defaultModelID is an inference profile ID, not a foundation model ID.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	// A proposal is a single small JSON object.
	defaultMaxTokens = 512

	// Low temperature keeps structured output consistent.
	defaultTemperature = 0.2

	defaultTopP = 0.9
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the model invocation.
type Options struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// Source is a proposal.Source backed by Bedrock.
type Source struct {
	brc  bedrockRuntimeClient
	opts Options
}

var _ proposal.Source = (*Source)(nil)

// New creates a Source around an existing runtime client.
func New(brc bedrockRuntimeClient, opts Options) *Source {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &Source{brc: brc, opts: opts}
}

// NewFromRegion loads the default AWS credential chain for region and
// creates a Source.
func NewFromRegion(ctx context.Context, region string, opts Options) (*Source, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(bedrockruntime.NewFromConfig(cfg), opts), nil
}

// Generate implements proposal.Source.
func (s *Source) Generate(ctx context.Context, agent *model.Agent, sector *model.Sector) ([]byte, error) {
	p := proposal.BuildPrompt(agent, sector)

	in := &bedrockruntime.ConverseInput{
		ModelId: aws.String(s.opts.ModelID),
		System:  []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: p.System}},
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: p.User}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(s.opts.MaxTokens),
			Temperature: aws.Float32(s.opts.Temperature),
			TopP:        aws.Float32(s.opts.TopP),
		},
	}

	out, err := s.brc.Converse(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}

	attrs := []any{"agent_id", agent.ID, "stop_reason", out.StopReason}
	if out.Usage != nil {
		attrs = append(attrs,
			"input_tokens", aws.ToInt32(out.Usage.InputTokens),
			"output_tokens", aws.ToInt32(out.Usage.OutputTokens))
	}
	slog.Debug("bedrock proposal", attrs...)

	switch out.StopReason {
	case types.StopReasonMaxTokens:
		return nil, fmt.Errorf("bedrock: model hit max tokens (%d)", s.opts.MaxTokens)
	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		return nil, fmt.Errorf("bedrock: response blocked (%s)", out.StopReason)
	}

	text := textFromOutput(out)
	if text == "" {
		return nil, proposal.ErrEmptyProposal
	}
	return []byte(text), nil
}

// textFromOutput returns the last text block that looks like a JSON object,
// or all text blocks joined with newlines.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}

	var texts []string
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	for i := len(texts) - 1; i >= 0; i-- {
		s := strings.TrimSpace(texts[i])
		if len(s) > 1 && s[0] == '{' && s[len(s)-1] == '}' {
			return s
		}
	}
	return strings.Join(texts, "\n")
}
