package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/futig/medical-chatbot/internal/config"
	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/futig/medical-chatbot/internal/integration/common"
	pkgHTTP "github.com/futig/medical-chatbot/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const providerName = "embedding"

// Connector embeds text through an OpenAI-compatible /embeddings endpoint
// serving sentence-transformers/all-MiniLM-L6-v2.
type Connector struct {
	config config.EmbeddingConfig
	client *openai.Client
	logger *zap.Logger
}

func NewConnector(cfg config.EmbeddingConfig, logger *zap.Logger) *Connector {
	clientCfg := openai.DefaultConfig(cfg.Token)
	clientCfg.BaseURL = cfg.Url
	clientCfg.HTTPClient = common.NewHTTPClient(cfg.HTTPClientConfig,
		pkgHTTP.WithMaxIdleConnsPerHost(max(cfg.Concurrency, 1)),
	)

	return &Connector{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger,
	}
}

// EmbedQuery embeds a single question.
func (c *Connector) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds texts in batches, at most Concurrency batches at a
// time. Each batch is retried on transient provider errors. The result keeps
// the order of texts.
func (c *Connector) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.config.Concurrency, 1))

	batchSize := max(c.config.BatchSize, 1)
	for start := 0; start < len(texts); start += batchSize {
		start := start
		end := min(start+batchSize, len(texts))

		g.Go(func() error {
			var batch [][]float32
			err := c.config.Retry.Do(gctx, func() error {
				var err error
				batch, err = c.embed(gctx, texts[start:end])
				return err
			}, entity.IsRetryable, func(n uint, err error) {
				ctxzap.Warn(gctx, "retrying embedding batch",
					zap.Uint("attempt", n+1),
					zap.Int("batch_start", start),
					zap.Error(err),
				)
			})
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	ctxzap.Debug(ctx, "documents embedded", zap.Int("count", len(texts)))

	return vectors, nil
}

// Dimension returns the expected vector size.
func (c *Connector) Dimension() int {
	return c.config.Dimension
}

func (c *Connector) embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.config.Model),
		Input: texts,
	})
	if err != nil {
		return nil, toProviderError("embed", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, toProviderError("embed", fmt.Errorf("%w: got %d embeddings for %d inputs",
			entity.ErrMalformedResponse, len(resp.Data), len(texts)))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, toProviderError("embed", fmt.Errorf("%w: embedding index %d out of range",
				entity.ErrMalformedResponse, item.Index))
		}
		if len(item.Embedding) != c.config.Dimension {
			return nil, toProviderError("embed", fmt.Errorf("%w: got %d, want %d",
				entity.ErrDimensionMismatch, len(item.Embedding), c.config.Dimension))
		}

		v := make([]float32, len(item.Embedding))
		for i := range item.Embedding {
			v[i] = float32(item.Embedding[i])
		}
		l2normalize(v)
		vectors[item.Index] = v
	}

	return vectors, nil
}

func toProviderError(op string, err error) error {
	perr := common.ProviderError(providerName, op, err)

	var pe *entity.ProviderError
	if !errors.As(perr, &pe) || pe.StatusCode != 0 {
		return perr
	}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		pe.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		pe.StatusCode = reqErr.HTTPStatusCode
	}

	return pe
}

// l2normalize scales v to unit length so cosine similarity is a dot product.
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
