package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	mu      sync.Mutex
	calls   int
	handler func(call int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func (f *fakeClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.handler(call, req)
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

// batchPages decodes the page payloads back out of the request's image
// data URLs.
func batchPages(req openai.ChatCompletionRequest) ([]string, error) {
	if len(req.Messages) != 2 {
		return nil, fmt.Errorf("expected 2 messages, got %d", len(req.Messages))
	}

	var pages []string
	for _, part := range req.Messages[1].MultiContent {
		if part.Type != openai.ChatMessagePartTypeImageURL {
			continue
		}
		encoded := strings.TrimPrefix(part.ImageURL.URL, "data:image/png;base64,")
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, err
		}
		pages = append(pages, string(raw))
	}
	return pages, nil
}

func testPages(n int) [][]byte {
	pages := make([][]byte, n)
	for i := range pages {
		pages[i] = []byte(fmt.Sprintf("page-%02d", i))
	}
	return pages
}

func newTestExtractor(client chatClient, providers []Provider, opts ...Option) *Extractor {
	e := NewExtractor(providers, zap.NewNop(), opts...)
	e.newClient = func(Provider) chatClient { return client }
	return e
}

func TestExtractBatchesAndPreservesOrder(t *testing.T) {
	fake := &fakeClient{
		handler: func(_ int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			// One row per page, described by the page payload, so the
			// final ordering is observable.
			pages, err := batchPages(req)
			if err != nil {
				return openai.ChatCompletionResponse{}, err
			}
			var rows []Record
			for _, p := range pages {
				rows = append(rows, Record{Description: p})
			}
			body, err := json.Marshal(rows)
			if err != nil {
				return openai.ChatCompletionResponse{}, err
			}
			return textResponse(string(body)), nil
		},
	}

	e := newTestExtractor(fake, []Provider{{Name: "primary", Model: "vision"}},
		WithBatchSize(4), WithParallelism(3))

	records, err := e.Extract(context.Background(), testPages(10))
	require.NoError(t, err)
	require.Len(t, records, 10)

	for i, r := range records {
		assert.Equal(t, fmt.Sprintf("page-%02d", i), r.Description)
	}
	// 10 pages at 4 per request is 3 batches.
	assert.Equal(t, 3, fake.calls)
}

func TestExtractPageCap(t *testing.T) {
	fake := &fakeClient{handler: func(int, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return textResponse("[]"), nil
	}}
	e := newTestExtractor(fake, []Provider{{Name: "primary"}})

	_, err := e.Extract(context.Background(), testPages(31))
	assert.ErrorIs(t, err, ErrTooManyPages)
	assert.Zero(t, fake.calls)
}

func TestExtractNoPages(t *testing.T) {
	e := newTestExtractor(&fakeClient{}, []Provider{{Name: "primary"}})
	_, err := e.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestExtractNoProviders(t *testing.T) {
	e := newTestExtractor(&fakeClient{}, nil)
	_, err := e.Extract(context.Background(), testPages(1))
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestExtractEmptyModelAnswerIsEmptyResult(t *testing.T) {
	fake := &fakeClient{handler: func(int, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		return textResponse("[]"), nil
	}}
	e := newTestExtractor(fake, []Provider{{Name: "primary"}})

	_, err := e.Extract(context.Background(), testPages(2))
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestProviderFallback(t *testing.T) {
	fake := &fakeClient{
		handler: func(_ int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			if req.Model == "broken" {
				return openai.ChatCompletionResponse{}, fmt.Errorf("connection refused")
			}
			return textResponse(`[{"date":"01/02/2024","description":"COFFEE","debit":"4.50"}]`), nil
		},
	}

	e := newTestExtractor(fake, []Provider{
		{Name: "first", Model: "broken"},
		{Name: "second", Model: "vision"},
	})

	records, err := e.Extract(context.Background(), testPages(1))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "COFFEE", records[0].Description)
	assert.Equal(t, 2, fake.calls)
}

func TestRateLimitRetries(t *testing.T) {
	fake := &fakeClient{
		handler: func(call int, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			if call == 1 {
				return openai.ChatCompletionResponse{}, &openai.APIError{
					HTTPStatusCode: http.StatusTooManyRequests,
					Message:        "rate limit exceeded",
				}
			}
			return textResponse(`[{"description":"RENT"}]`), nil
		},
	}

	e := newTestExtractor(fake, []Provider{{Name: "primary"}},
		WithRetry(3, time.Millisecond))

	records, err := e.Extract(context.Background(), testPages(1))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, fake.calls)
}

func TestNonRateLimitErrorDoesNotRetry(t *testing.T) {
	fake := &fakeClient{
		handler: func(int, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, &openai.APIError{
				HTTPStatusCode: http.StatusUnauthorized,
				Message:        "bad key",
			}
		},
	}

	e := newTestExtractor(fake, []Provider{{Name: "primary"}},
		WithRetry(3, time.Millisecond))

	_, err := e.Extract(context.Background(), testPages(1))
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)
}

func TestRateLimitExhaustsRetryBudget(t *testing.T) {
	fake := &fakeClient{
		handler: func(int, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, &openai.APIError{
				HTTPStatusCode: http.StatusTooManyRequests,
			}
		},
	}

	e := newTestExtractor(fake, []Provider{{Name: "primary"}},
		WithRetry(3, time.Millisecond))

	_, err := e.Extract(context.Background(), testPages(1))
	require.Error(t, err)
	assert.Equal(t, 3, fake.calls)
}

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{
			name:    "plain array",
			content: `[{"date":"01/01/2024","description":"A"}]`,
			want:    1,
		},
		{
			name:    "code fenced",
			content: "```json\n[{\"description\":\"A\"},{\"description\":\"B\"}]\n```",
			want:    2,
		},
		{
			name:    "prose around array",
			content: "Here are the rows:\n[{\"description\":\"A\"}]\nLet me know.",
			want:    1,
		},
		{
			name:    "empty array",
			content: "[]",
			want:    0,
		},
		{
			name:    "not json",
			content: "I could not read the pages.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := parseRecords(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}
