package cli

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/satriahrh/irp-helper/adapters/hasher"
	"github.com/satriahrh/irp-helper/adapters/llm"
	"github.com/satriahrh/irp-helper/config"
	"github.com/satriahrh/irp-helper/domain"
	"github.com/satriahrh/irp-helper/utils/log"
)

// newCompleter builds the configured Gemini backend behind the retry layer.
func newCompleter(ctx context.Context, cfg config.GeminiConfig) (domain.Completer, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var completer domain.Completer
	switch cfg.Backend {
	case config.BackendGenai:
		sdk, err := llm.NewGeminiSDK(ctx, cfg, httpClient)
		if err != nil {
			return nil, err
		}
		completer = sdk
	default:
		completer = llm.NewGeminiREST(cfg, httpClient)
	}

	fields := []zap.Field{
		zap.String("backend", cfg.Backend),
		zap.String("model", cfg.Model),
		zap.Uint64("max_retries", cfg.MaxRetries),
	}
	if domain.CredentialConfigured(cfg.APIKey) {
		fields = append(fields, zap.String("credential", hasher.Fingerprint(hasher.New(), cfg.APIKey)))
	} else {
		log.With(fields...).Warn("Gemini API key is not configured; every reply will ask for it")
	}
	log.With(fields...).Info("Gemini completer ready")

	return llm.WithRetry(completer, cfg.MaxRetries, cfg.RetryInterval), nil
}
