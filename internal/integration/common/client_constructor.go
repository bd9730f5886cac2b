package common

import (
	"net/http"

	"github.com/futig/medical-chatbot/internal/config"
	pkgHTTP "github.com/futig/medical-chatbot/pkg/http"
	"go.uber.org/zap"
)

func baseOptions(cfg config.HTTPClientConfig) []pkgHTTP.HttpOpts {
	return []pkgHTTP.HttpOpts{
		pkgHTTP.WithRequestTimeout(cfg.RequestTimeout),
		pkgHTTP.WithConnClientTimeout(cfg.ConnTimeout),
		pkgHTTP.WithClientKeepAlive(cfg.KeepAlive),
		pkgHTTP.WithIdleConnTimeout(cfg.IdleConnTimeout),
		pkgHTTP.WithResponseHeaderTimeout(cfg.ResponseHeaderTimeout),
		pkgHTTP.WithRequestLogging(),
	}
}

// NewBaseConnector builds a JSON connector for services without an SDK.
func NewBaseConnector(cfg config.HTTPClientConfig, logger *zap.Logger, extra ...pkgHTTP.HttpOpts) *pkgHTTP.Connector {
	connCfg := &pkgHTTP.ConnectorConfig{
		Logger:  logger,
		BaseURL: cfg.Url,
	}

	return pkgHTTP.NewConnector(connCfg, append(baseOptions(cfg), extra...)...)
}

// NewHTTPClient builds a client for SDKs that authenticate on their own.
func NewHTTPClient(cfg config.HTTPClientConfig, extra ...pkgHTTP.HttpOpts) *http.Client {
	return pkgHTTP.NewClient(append(baseOptions(cfg), extra...)...)
}
