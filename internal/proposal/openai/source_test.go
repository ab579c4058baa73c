package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushsreejith06/max/internal/model"
	"github.com/ayushsreejith06/max/internal/proposal"
)

type fakeChat struct {
	resp    goopenai.ChatCompletionResponse
	err     error
	lastReq goopenai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func reply(content string) goopenai.ChatCompletionResponse {
	return goopenai.ChatCompletionResponse{
		Choices: []goopenai.ChatCompletionChoice{{
			Message: goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: content},
		}},
	}
}

var (
	agent  = &model.Agent{ID: "agt-1", Name: "Ada", Role: model.RoleTrader, Confidence: 70}
	sector = &model.Sector{ID: "sec-1", Name: "Energy", Symbol: "NRG", Balance: 1000}
)

func TestSource_Generate(t *testing.T) {
	tests := []struct {
		name          string
		fake          *fakeChat
		jsonMode      bool
		expected      string
		expectedError error
	}{
		{
			name:     "content returned",
			fake:     &fakeChat{resp: reply(" {\"action\":\"BUY\"} ")},
			expected: `{"action":"BUY"}`,
		},
		{
			name:     "json mode sets response format",
			fake:     &fakeChat{resp: reply(`{"action":"HOLD"}`)},
			jsonMode: true,
			expected: `{"action":"HOLD"}`,
		},
		{
			name:          "no choices",
			fake:          &fakeChat{},
			expectedError: ErrNoChoicesInResponse,
		},
		{
			name:          "empty content",
			fake:          &fakeChat{resp: reply("  ")},
			expectedError: proposal.ErrEmptyProposal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newWithClient(tt.fake, Options{JSONMode: tt.jsonMode})
			out, err := src.Generate(context.Background(), agent, sector)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))

			assert.Equal(t, defaultModel, tt.fake.lastReq.Model)
			require.Len(t, tt.fake.lastReq.Messages, 2)
			assert.Equal(t, goopenai.ChatMessageRoleSystem, tt.fake.lastReq.Messages[0].Role)
			if tt.jsonMode {
				require.NotNil(t, tt.fake.lastReq.ResponseFormat)
				assert.Equal(t, goopenai.ChatCompletionResponseFormatTypeJSONObject, tt.fake.lastReq.ResponseFormat.Type)
			} else {
				assert.Nil(t, tt.fake.lastReq.ResponseFormat)
			}
		})
	}
}

func TestSource_GenerateError(t *testing.T) {
	src := newWithClient(&fakeChat{err: errors.New("rate limited")}, Options{Model: "custom"})
	_, err := src.Generate(context.Background(), agent, sector)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestNew_BaseURL(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply(`{"action":"SELL","confidence":60}`))
	}))
	defer srv.Close()

	src := New(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	out, err := src.Generate(context.Background(), agent, sector)
	require.NoError(t, err)
	assert.Equal(t, `{"action":"SELL","confidence":60}`, string(out))
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}
