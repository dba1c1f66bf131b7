package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider calls a lesson generation provider over HTTP. The provider
// contract is a single POST endpoint accepting the lesson request and
// answering with a JSON payload plus token accounting; anything beyond that
// (model choice, prompting) lives behind the provider.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider creates an HTTPProvider for the given endpoint. The timeout
// bounds each generation call.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type providerRequest struct {
	DescriptorCode string `json:"descriptor_code"`
	DescriptorText string `json:"descriptor_text"`
	Language       string `json:"language"`
	LessonType     string `json:"lesson_type"`
}

type providerResponse struct {
	Payload    json.RawMessage `json:"payload"`
	TokensUsed int             `json:"tokens_used"`
}

// GenerateLesson implements Generator. HTTP and transport failures are
// mapped onto the package's sentinel errors so callers can distinguish
// retryable provider trouble from structurally bad responses.
func (p *HTTPProvider) GenerateLesson(ctx context.Context, req LessonRequest) (*Result, error) {
	body, err := json.Marshal(providerRequest{
		DescriptorCode: req.Descriptor.Code,
		DescriptorText: req.Descriptor.Text,
		Language:       req.Language,
		LessonType:     req.LessonType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrProviderFailure, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/lessons", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrProviderFailure, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrProviderTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrQuotaExhausted
	case resp.StatusCode == http.StatusGatewayTimeout:
		return nil, ErrProviderTimeout
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: provider returned status %d", ErrProviderFailure, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrProviderFailure, err)
	}

	var decoded providerResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if !json.Valid(decoded.Payload) || len(decoded.Payload) == 0 {
		return nil, fmt.Errorf("%w: payload is not a JSON document", ErrMalformedPayload)
	}

	return &Result{Payload: decoded.Payload, TokensUsed: decoded.TokensUsed}, nil
}

func isTimeout(err error) bool {
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
