// Package extract sends redacted page images to a vision model and
// parses the returned transaction rows. Pages travel in small batches,
// several batches in flight, with provider fallback and rate-limit
// retry.
package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	// ErrEmptyResult means every page was processed but no transaction
	// rows came back. Distinct from transport failure so the caller can
	// tell "nothing found" from "could not ask".
	ErrEmptyResult = errors.New("no transactions found in document")

	// ErrTooManyPages means the document exceeds the per-export cap.
	ErrTooManyPages = errors.New("document exceeds page limit for extraction")

	// ErrNoProviders means the extractor has no configured provider.
	ErrNoProviders = errors.New("no extraction providers configured")
)

// Record is one extracted transaction row. Amount fields stay strings:
// the model reports them as printed on the statement.
type Record struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Balance     string `json:"balance"`
	Currency    string `json:"currency"`
	Category    string `json:"category"`
}

// Provider is one vision-model endpoint, tried in configuration order.
type Provider struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

const (
	defaultBatchSize  = 4
	defaultMaxPages   = 30
	defaultParallel   = 3
	defaultMaxRetries = 3
	defaultBackoff    = 2 * time.Second
)

const systemPrompt = `You are a bank statement transaction extractor. ` +
	`You receive page images of a statement and return the transaction rows you can read. ` +
	`Respond with a JSON array only, no prose. Each element has the keys ` +
	`"date", "description", "debit", "credit", "balance", "currency", "category". ` +
	`Copy amounts exactly as printed. Use an empty string for any value not present. ` +
	`Return [] if the pages contain no transactions.`

// chatClient is the transport slice of the OpenAI client the extractor
// needs.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Extractor runs remote transaction extraction over redacted pages.
type Extractor struct {
	providers  []Provider
	batchSize  int
	maxPages   int
	parallel   int
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger

	newClient func(Provider) chatClient
}

// Option adjusts extractor construction.
type Option func(*Extractor)

// WithBatchSize sets pages per request.
func WithBatchSize(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithMaxPages sets the per-export page cap.
func WithMaxPages(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

// WithParallelism sets the number of batches in flight.
func WithParallelism(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.parallel = n
		}
	}
}

// WithRetry sets the rate-limit retry budget and base backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(e *Extractor) {
		if attempts > 0 {
			e.maxRetries = attempts
		}
		if backoff > 0 {
			e.backoff = backoff
		}
	}
}

// NewExtractor creates an extractor over the given providers.
func NewExtractor(providers []Provider, logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		providers:  providers,
		batchSize:  defaultBatchSize,
		maxPages:   defaultMaxPages,
		parallel:   defaultParallel,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		logger:     logger,
		newClient: func(p Provider) chatClient {
			cfg := openai.DefaultConfig(p.APIKey)
			if p.BaseURL != "" {
				cfg.BaseURL = p.BaseURL
			}
			return openai.NewClientWithConfig(cfg)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract sends the PNG-encoded pages for extraction and returns the
// concatenated rows in page order.
func (e *Extractor) Extract(ctx context.Context, pages [][]byte) ([]Record, error) {
	if len(e.providers) == 0 {
		return nil, ErrNoProviders
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no pages to extract", ErrEmptyResult)
	}
	if len(pages) > e.maxPages {
		return nil, fmt.Errorf("%w: %d pages (max %d)", ErrTooManyPages, len(pages), e.maxPages)
	}

	batches := splitBatches(pages, e.batchSize)
	results := make([][]Record, len(batches))
	errs := make([]error, len(batches))
	sem := make(chan struct{}, e.parallel)

	var wg sync.WaitGroup
	for i, batch := range batches {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, batch [][]byte) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], errs[i] = e.extractBatch(ctx, i, batch)
		}(i, batch)
	}
	wg.Wait()

	var all []Record
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("batch %d failed: %w", i, err)
		}
		all = append(all, results[i]...)
	}
	if len(all) == 0 {
		return nil, ErrEmptyResult
	}
	return all, nil
}

// extractBatch tries each provider in order until one answers.
func (e *Extractor) extractBatch(ctx context.Context, batchIdx int, pages [][]byte) ([]Record, error) {
	var lastErr error
	for _, p := range e.providers {
		records, err := e.callProvider(ctx, p, pages)
		if err == nil {
			return records, nil
		}
		lastErr = err
		e.logger.Warn("extraction provider failed",
			zap.String("provider", p.Name),
			zap.Int("batch", batchIdx),
			zap.Error(err))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

// callProvider issues the chat request, retrying with exponential
// backoff on rate limits only. Any other failure moves straight to the
// next provider.
func (e *Extractor) callProvider(ctx context.Context, p Provider, pages [][]byte) ([]Record, error) {
	client := e.newClient(p)
	req := buildRequest(p.Model, pages)

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, e.backoff*time.Duration(1<<(attempt-1))); err != nil {
				return nil, err
			}
		}

		resp, err := client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if isRateLimited(err) {
				continue
			}
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("provider %s returned no choices", p.Name)
		}
		return parseRecords(resp.Choices[0].Message.Content)
	}
	return nil, fmt.Errorf("rate limited after %d attempts: %w", e.maxRetries, lastErr)
}

// buildRequest assembles a vision request with each page as an inline
// PNG data URL.
func buildRequest(model string, pages [][]byte) openai.ChatCompletionRequest {
	parts := make([]openai.ChatMessagePart, 0, len(pages)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: "Extract the transaction rows from these statement pages.",
	})
	for _, png := range pages {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
			},
		})
	}

	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
	}
}

// parseRecords decodes the model response, tolerating markdown code
// fences and prose around the JSON array.
func parseRecords(content string) ([]Record, error) {
	payload := strings.TrimSpace(content)
	if start := strings.Index(payload, "["); start >= 0 {
		if end := strings.LastIndex(payload, "]"); end > start {
			payload = payload[start : end+1]
		}
	}

	var records []Record
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	return records, nil
}

// isRateLimited reports whether the error is an HTTP 429 from the API.
func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

func splitBatches(pages [][]byte, size int) [][][]byte {
	var batches [][][]byte
	for start := 0; start < len(pages); start += size {
		end := start + size
		if end > len(pages) {
			end = len(pages)
		}
		batches = append(batches, pages[start:end])
	}
	return batches
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
