package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/genai"

	"github.com/satriahrh/irp-helper/config"
	"github.com/satriahrh/irp-helper/domain"
)

// GeminiSDK implements domain.Completer with the official genai client.
type GeminiSDK struct {
	client            *genai.Client
	model             string
	systemInstruction string
}

// NewGeminiSDK builds the SDK backend. Without a usable key no client is
// created and every Complete fails with domain.ErrMissingCredential.
func NewGeminiSDK(ctx context.Context, cfg config.GeminiConfig, httpClient *http.Client) (*GeminiSDK, error) {
	g := &GeminiSDK{
		model:             cfg.Model,
		systemInstruction: systemInstructionOrDefault(cfg.SystemInstruction),
	}
	if !domain.CredentialConfigured(cfg.APIKey) {
		return g, nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	baseURL, version, err := splitBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    baseURL,
			APIVersion: version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	g.client = client
	return g, nil
}

// splitBaseURL turns ".../v1beta" into the host part and the API version the
// SDK expects separately.
func splitBaseURL(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return "", "", fmt.Errorf("parsing GEMINI_BASE_URL: %w", err)
	}
	path := strings.Trim(u.Path, "/")
	version := "v1beta"
	if i := strings.LastIndex(path, "/"); i >= 0 {
		version = path[i+1:]
		path = path[:i]
	} else if path != "" {
		version = path
		path = ""
	}
	u.Path = "/"
	if path != "" {
		u.Path = "/" + path + "/"
	}
	return u.String(), version, nil
}

// Complete implements domain.Completer.
func (g *GeminiSDK) Complete(ctx context.Context, history []domain.Turn) (string, error) {
	if g.client == nil {
		return "", domain.ErrMissingCredential
	}

	contents := make([]*genai.Content, len(history))
	for i, turn := range history {
		role := genai.RoleModel
		if turn.Sender == domain.UserSender {
			role = genai.RoleUser
		}
		contents[i] = &genai.Content{
			Role: role,
			Parts: []*genai.Part{
				{Text: turn.Text},
			},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: g.systemInstruction}},
		},
	})
	if err != nil {
		return "", mapSDKError(err)
	}

	if resp == nil ||
		len(resp.Candidates) == 0 ||
		resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0] == nil {
		return "", domain.ErrUnexpectedResponse
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func mapSDKError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.RemoteError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &domain.RemoteError{StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("%w: generate content: %w", domain.ErrTransport, err)
}
