package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/metrics"
	"github.com/pep299/econ-news-digest/internal/model"
)

// NothingToAnalyze is returned for an empty article list without calling the model.
const NothingToAnalyze = "No new articles to analyze."

const batchSeparator = "\n\n"

// Generator is a single-shot text generation API
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configures a Summarizer
type Options struct {
	BatchSize int
	// Delay is the pause after a successful batch when more batches follow.
	Delay time.Duration
	// Attempts bounds the calls made for one batch, including the first.
	Attempts int
	// Backoff is the constant wait between attempts of one batch.
	Backoff  time.Duration
	Language string
	Market   string
}

// Summarizer turns a list of articles into one analysis text
type Summarizer struct {
	generator Generator
	opts      Options
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New creates a Summarizer
func New(generator Generator, opts Options, logger *zap.Logger, m *metrics.Metrics) *Summarizer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	return &Summarizer{generator: generator, opts: opts, logger: logger, metrics: m}
}

// BatchErrorNote is the placeholder written for a batch that could not be summarized.
func BatchErrorNote(batch int) string {
	return fmt.Sprintf("[Batch %d could not be analyzed: model error.]", batch)
}

// Summarize calls the model once per batch and concatenates the results.
// A failed batch is replaced by BatchErrorNote and does not stop the others.
func (s *Summarizer) Summarize(ctx context.Context, articles []model.Article) string {
	if len(articles) == 0 {
		return NothingToAnalyze
	}

	batches := Batches(articles, s.opts.BatchSize)
	var result strings.Builder

	for i, batch := range batches {
		number := i + 1
		prompt := BuildPrompt(batch, s.opts.Language, s.opts.Market)

		text, err := s.generate(ctx, prompt, number)
		if err != nil {
			s.logger.Error("Summarization batch failed",
				zap.Int("batch", number),
				zap.Int("articles", len(batch)),
				zap.Error(err))
			s.metrics.Batch(false)
			result.WriteString(BatchErrorNote(number))
			result.WriteString(batchSeparator)
			continue
		}

		s.metrics.Batch(true)
		s.logger.Info("Summarization batch done", zap.Int("batch", number), zap.Int("articles", len(batch)))
		result.WriteString(strings.TrimSpace(text))
		result.WriteString(batchSeparator)

		if number < len(batches) && !sleep(ctx, s.opts.Delay) {
			s.logger.Warn("Summarization interrupted", zap.Int("after_batch", number), zap.Error(ctx.Err()))
			break
		}
	}

	return strings.TrimSpace(result.String())
}

func (s *Summarizer) generate(ctx context.Context, prompt string, batch int) (string, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.Backoff), uint64(s.opts.Attempts-1)),
		ctx,
	)

	attempt := 0
	return backoff.RetryWithData(func() (string, error) {
		attempt++
		text, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			s.logger.Warn("Model call failed", zap.Int("batch", batch), zap.Int("attempt", attempt), zap.Error(err))
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("empty model response")
		}
		return text, nil
	}, policy)
}

// Batches splits articles into consecutive chunks of at most size items.
func Batches(articles []model.Article, size int) [][]model.Article {
	if size <= 0 {
		size = len(articles)
	}
	var batches [][]model.Article
	for start := 0; start < len(articles); start += size {
		end := start + size
		if end > len(articles) {
			end = len(articles)
		}
		batches = append(batches, articles[start:end])
	}
	return batches
}

// BuildPrompt creates the analysis prompt for one batch
func BuildPrompt(batch []model.Article, language, market string) string {
	if language == "" {
		language = "English"
	}
	if market == "" {
		market = "the local market"
	}

	var content strings.Builder
	content.WriteString("You are an expert analyst of the global economy.\n")
	content.WriteString("Read the following list of news headlines and:\n")
	content.WriteString("1. Summarize the notable economic and financial trends.\n")
	content.WriteString(fmt.Sprintf("2. Analyze the impact on %s (FDI, exchange rate, investment, exports...).\n", market))
	content.WriteString("3. Assess investment opportunities and risks (gold, silver, equities, crypto, real estate).\n")
	content.WriteString(fmt.Sprintf("4. Write in %s, clearly, concisely and professionally.\n", language))
	content.WriteString("Use \"## \" for section headings and **double asterisks** for emphasis. Do not use tables.\n\n")
	content.WriteString("NEWS:\n")
	for _, article := range batch {
		content.WriteString(fmt.Sprintf("- %s (%s)\n", article.Title, article.Source))
	}

	return content.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
