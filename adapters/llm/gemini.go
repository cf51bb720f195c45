package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/irp-helper/config"
	"github.com/satriahrh/irp-helper/domain"
	"github.com/satriahrh/irp-helper/utils/log"
)

// GeminiREST calls generateContent over plain JSON, with the key passed as
// the key query parameter.
type GeminiREST struct {
	httpClient        *http.Client
	baseURL           string
	model             string
	apiKey            string
	systemInstruction string
}

type textPart struct {
	Text string `json:"text"`
}

type requestContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []textPart `json:"parts"`
}

type generateContentRequest struct {
	Contents          []requestContent `json:"contents"`
	SystemInstruction *requestContent  `json:"systemInstruction,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewGeminiREST builds the REST backend. A nil httpClient uses one bounded by
// cfg.Timeout, where zero means no timeout.
func NewGeminiREST(cfg config.GeminiConfig, httpClient *http.Client) *GeminiREST {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &GeminiREST{
		httpClient:        httpClient,
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		model:             cfg.Model,
		apiKey:            cfg.APIKey,
		systemInstruction: systemInstructionOrDefault(cfg.SystemInstruction),
	}
}

func (g *GeminiREST) endpoint() (string, error) {
	u, err := url.Parse(fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model))
	if err != nil {
		return "", fmt.Errorf("parsing endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", g.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Complete implements domain.Completer.
func (g *GeminiREST) Complete(ctx context.Context, history []domain.Turn) (string, error) {
	if !domain.CredentialConfigured(g.apiKey) {
		return "", domain.ErrMissingCredential
	}

	body := generateContentRequest{
		Contents: make([]requestContent, len(history)),
		SystemInstruction: &requestContent{
			Parts: []textPart{{Text: g.systemInstruction}},
		},
	}
	for i, turn := range history {
		body.Contents[i] = requestContent{
			Role:  modelRole(turn.Sender),
			Parts: []textPart{{Text: turn.Text}},
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	endpoint, err := g.endpoint()
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: sending request: %w", domain.ErrTransport, stripKey(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %w", domain.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.WithCtx(ctx).Error("Gemini API error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		var errBody errorResponse
		if err := json.Unmarshal(respBody, &errBody); err != nil {
			return "", fmt.Errorf("%w: decoding error body (status %d): %w", domain.ErrTransport, resp.StatusCode, err)
		}
		remote := &domain.RemoteError{StatusCode: resp.StatusCode}
		if errBody.Error != nil {
			remote.Message = errBody.Error.Message
		}
		return "", remote
	}

	var out generateContentResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", domain.ErrTransport, err)
	}
	if len(out.Candidates) == 0 ||
		out.Candidates[0].Content == nil ||
		len(out.Candidates[0].Content.Parts) == 0 ||
		out.Candidates[0].Content.Parts[0].Text == nil {
		log.WithCtx(ctx).Error("Unexpected API response format", zap.ByteString("body", respBody))
		return "", domain.ErrUnexpectedResponse
	}
	return *out.Candidates[0].Content.Parts[0].Text, nil
}

// stripKey drops the request URL from transport errors so the key never
// reaches a log line.
func stripKey(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
