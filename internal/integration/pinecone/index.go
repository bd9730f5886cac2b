package pinecone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/avast/retry-go/v4"
	"github.com/futig/medical-chatbot/internal/config"
	"github.com/futig/medical-chatbot/internal/entity"
	"github.com/futig/medical-chatbot/internal/integration/common"
	"github.com/futig/medical-chatbot/internal/pkg/ranking"
	pkgRetry "github.com/futig/medical-chatbot/internal/pkg/retry"
	pkghttp "github.com/futig/medical-chatbot/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const providerName = "pinecone"

// tieCandidates extra matches are requested beyond k so that chunks tied at
// the k-th score are ordered by ID here rather than by Pinecone.
const tieCandidates = 10

var errIndexNotReady = errors.New("index is not ready")

// Index is a Pinecone serverless index reached over the REST API.
// The control plane lives at the configured URL; data plane calls go to the
// index host returned by describe.
type Index struct {
	name      string
	dimension int
	config    config.PineconeConfig
	retryCfg  pkgRetry.RetryConfig
	connector *pkghttp.Connector
	logger    *zap.Logger

	mu   sync.Mutex
	host string
}

func NewIndex(cfg config.VectorStoreConfig, dimension int, logger *zap.Logger) (*Index, error) {
	if cfg.Pinecone.Token == "" {
		return nil, fmt.Errorf("%w: PINECONE_API_KEY", entity.ErrMissingCredentials)
	}

	connector := common.NewBaseConnector(cfg.Pinecone.HTTPClientConfig, logger,
		pkghttp.WithAPIKeyHeader("Api-Key", cfg.Pinecone.Token),
		pkghttp.WithHeaderValue("X-Pinecone-API-Version", cfg.Pinecone.APIVersion),
	)

	return &Index{
		name:      cfg.IndexName,
		dimension: dimension,
		config:    cfg.Pinecone,
		retryCfg:  cfg.Retry,
		connector: connector,
		logger:    logger,
	}, nil
}

// Exists reports whether the index is present. An existing index with a
// different dimension is an error.
func (i *Index) Exists(ctx context.Context) (bool, error) {
	desc, err := i.describe(ctx)
	if err != nil {
		var httpErr *pkghttp.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, common.ProviderError(providerName, "describe", err)
	}

	if err := i.checkDimension(desc); err != nil {
		return false, err
	}

	i.setHost(desc.Host)
	return true, nil
}

// EnsureIndex creates the index when absent and waits until it is ready.
func (i *Index) EnsureIndex(ctx context.Context) error {
	exists, err := i.Exists(ctx)
	if err != nil {
		return err
	}

	if !exists {
		ctxzap.Info(ctx, "creating pinecone index",
			zap.String("index", i.name),
			zap.Int("dimension", i.dimension),
			zap.String("cloud", i.config.Cloud),
			zap.String("region", i.config.Region),
		)

		req := createIndexRequest{
			Name:      i.name,
			Dimension: i.dimension,
			Metric:    metricCosine,
			Spec: indexSpec{Serverless: &serverlessSpec{
				Cloud:  i.config.Cloud,
				Region: i.config.Region,
			}},
		}

		err := i.connector.DoRequest(ctx, http.MethodPost, "/indexes", req, nil)
		var httpErr *pkghttp.HTTPError
		if err != nil && !(errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusConflict) {
			return common.ProviderError(providerName, "create_index", err)
		}
	}

	return i.waitReady(ctx)
}

// Upsert writes chunks in batches; the chunk ID makes it idempotent.
func (i *Index) Upsert(ctx context.Context, chunks []entity.EmbeddedChunk) (int, error) {
	host, err := i.dataHost(ctx)
	if err != nil {
		return 0, err
	}

	batchSize := max(i.config.UpsertSize, 1)
	upserted := 0

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))

		req := upsertRequest{Vectors: make([]vector, 0, end-start)}
		for _, c := range chunks[start:end] {
			if len(c.Vector) != i.dimension {
				return upserted, fmt.Errorf("%w: chunk %s has %d values, index expects %d",
					entity.ErrDimensionMismatch, c.ID, len(c.Vector), i.dimension)
			}
			req.Vectors = append(req.Vectors, vector{
				ID:     c.ID,
				Values: c.Vector,
				Metadata: map[string]string{
					metadataText:   c.Text,
					metadataSource: c.Source,
				},
			})
		}

		var resp upsertResponse
		err := i.retryCfg.Do(ctx, func() error {
			err := i.connector.DoRequest(ctx, http.MethodPost, "", req, &resp, pkghttp.WithURL(host+"/vectors/upsert"))
			return common.ProviderError(providerName, "upsert", err)
		}, entity.IsRetryable, func(n uint, err error) {
			ctxzap.Warn(ctx, "retrying pinecone upsert", zap.Uint("attempt", n+1), zap.Error(err))
		})
		if err != nil {
			return upserted, err
		}

		upserted += resp.UpsertedCount
		ctxzap.Debug(ctx, "upserted batch", zap.Int("batch_start", start), zap.Int("count", resp.UpsertedCount))
	}

	return upserted, nil
}

// Search returns the k nearest chunks by cosine similarity.
func (i *Index) Search(ctx context.Context, query []float32, k int) ([]entity.ScoredChunk, error) {
	if len(query) != i.dimension {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d",
			entity.ErrDimensionMismatch, len(query), i.dimension)
	}

	host, err := i.dataHost(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, i.config.RequestTimeout)
	defer cancel()

	req := queryRequest{
		Vector:          query,
		TopK:            k + tieCandidates,
		IncludeMetadata: true,
	}

	var resp queryResponse
	if err := i.connector.DoRequest(ctx, http.MethodPost, "", req, &resp, pkghttp.WithURL(host+"/query")); err != nil {
		return nil, common.ProviderError(providerName, "query", err)
	}

	hits := make([]entity.ScoredChunk, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		hits = append(hits, entity.ScoredChunk{
			Chunk: entity.Chunk{
				ID:     m.ID,
				Text:   m.Metadata[metadataText],
				Source: m.Metadata[metadataSource],
			},
			Score: m.Score,
		})
	}

	return ranking.TopK(hits, k), nil
}

func (i *Index) describe(ctx context.Context) (*indexDescription, error) {
	ctx, cancel := context.WithTimeout(ctx, i.config.RequestTimeout)
	defer cancel()

	var desc indexDescription
	if err := i.connector.DoRequest(ctx, http.MethodGet, "/indexes/"+i.name, nil, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (i *Index) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, i.config.ReadyTimeout)
	defer cancel()

	err := retry.Do(func() error {
		desc, err := i.describe(ctx)
		if err != nil {
			return err
		}
		if !desc.Status.Ready {
			return fmt.Errorf("%w: state %s", errIndexNotReady, desc.Status.State)
		}
		if err := i.checkDimension(desc); err != nil {
			return retry.Unrecoverable(err)
		}
		i.setHost(desc.Host)
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(i.config.ReadyPollInterval),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, entity.ErrDimensionMismatch) {
			return err
		}
		return common.ProviderError(providerName, "wait_ready", err)
	}

	ctxzap.Info(ctx, "pinecone index ready", zap.String("index", i.name))
	return nil
}

func (i *Index) checkDimension(desc *indexDescription) error {
	if desc.Dimension != 0 && desc.Dimension != i.dimension {
		return fmt.Errorf("%w: index %s has dimension %d, embeddings have %d",
			entity.ErrDimensionMismatch, i.name, desc.Dimension, i.dimension)
	}
	return nil
}

func (i *Index) dataHost(ctx context.Context) (string, error) {
	i.mu.Lock()
	host := i.host
	i.mu.Unlock()
	if host != "" {
		return host, nil
	}

	exists, err := i.Exists(ctx)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", entity.ErrIndexNotFound, i.name)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.host == "" {
		return "", common.ProviderError(providerName, "describe", errIndexNotReady)
	}
	return i.host, nil
}

func (i *Index) setHost(host string) {
	if host == "" {
		return
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}

	i.mu.Lock()
	i.host = host
	i.mu.Unlock()
}
