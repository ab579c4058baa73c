package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/proposal"
)

// mockBedrockClient implements bedrockRuntimeClient for testing
type mockBedrockClient struct {
	response *bedrockruntime.ConverseOutput
	err      error
	lastIn   *bedrockruntime.ConverseInput
}

func (m *mockBedrockClient) Converse(ctx context.Context, input *bedrockruntime.ConverseInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.lastIn = input
	return m.response, m.err
}

func textOutput(stop types.StopReason, blocks ...string) *bedrockruntime.ConverseOutput {
	content := make([]types.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		content = append(content, &types.ContentBlockMemberText{Value: b})
	}
	return &bedrockruntime.ConverseOutput{
		StopReason: stop,
		Output:     &types.ConverseOutputMemberMessage{Value: types.Message{Content: content}},
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(10),
			OutputTokens: aws.Int32(20),
		},
	}
}

var (
	agent  = &model.Agent{ID: "agt-1", Name: "Ada", Role: model.RoleTrader, Confidence: 70}
	sector = &model.Sector{ID: "sec-1", Name: "Technology", Symbol: "TECH", Balance: 1000}
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		input    Options
		expected Options
	}{
		{
			name:  "empty options uses defaults",
			input: Options{},
			expected: Options{
				ModelID:     defaultModelID,
				MaxTokens:   defaultMaxTokens,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
		{
			name:  "partial options with defaults",
			input: Options{ModelID: "custom-model", MaxTokens: 2048},
			expected: Options{
				ModelID:     "custom-model",
				MaxTokens:   2048,
				Temperature: defaultTemperature,
				TopP:        defaultTopP,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{}
			src := New(mockClient, tt.input)
			assert.Equal(t, tt.expected, src.opts)
		})
	}
}

func TestSource_Generate(t *testing.T) {
	tests := []struct {
		name          string
		response      *bedrockruntime.ConverseOutput
		err           error
		expected      string
		expectedError string
	}{
		{
			name:     "json reply",
			response: textOutput(types.StopReasonEndTurn, `{"action":"BUY","allocationPercent":10,"confidence":80,"reasoning":"up"}`),
			expected: `{"action":"BUY","allocationPercent":10,"confidence":80,"reasoning":"up"}`,
		},
		{
			name:     "prefers last json block",
			response: textOutput(types.StopReasonEndTurn, "thinking out loud", `{"action":"SELL"}`),
			expected: `{"action":"SELL"}`,
		},
		{
			name:     "joins prose blocks",
			response: textOutput(types.StopReasonEndTurn, "hold", "for now"),
			expected: "hold\nfor now",
		},
		{
			name:          "api error",
			err:           errors.New("throttled"),
			expectedError: "bedrock converse: throttled",
		},
		{
			name:          "max tokens",
			response:      textOutput(types.StopReasonMaxTokens, `{"action":`),
			expectedError: "max tokens",
		},
		{
			name:          "guardrail",
			response:      textOutput(types.StopReasonGuardrailIntervened),
			expectedError: "blocked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockBedrockClient{response: tt.response, err: tt.err}
			src := New(mockClient, Options{})

			out, err := src.Generate(context.Background(), agent, sector)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))

			require.NotNil(t, mockClient.lastIn)
			assert.Equal(t, defaultModelID, aws.ToString(mockClient.lastIn.ModelId))
			require.Len(t, mockClient.lastIn.Messages, 1)
			assert.Equal(t, types.ConversationRoleUser, mockClient.lastIn.Messages[0].Role)
		})
	}
}

func TestSource_GenerateEmpty(t *testing.T) {
	src := New(&mockBedrockClient{response: &bedrockruntime.ConverseOutput{StopReason: types.StopReasonEndTurn}}, Options{})
	_, err := src.Generate(context.Background(), agent, sector)
	assert.ErrorIs(t, err, proposal.ErrEmptyProposal)
}
