package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/loomchat/attachment-backend/config"
	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/types"
)

type providerBackend struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewProviderBackend stores files in a model provider's hosted file API
// (OpenAI-compatible /files surface). Deletes against it are subject to the
// provider's quota, so the backend reports itself as rate limited.
func NewProviderBackend(cfg config.ProviderConfig, logger *zap.Logger) Backend {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	return &providerBackend{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("storage", "provider")),
	}
}

func (p *providerBackend) Source() types.StorageSource { return types.ProviderSource }
func (p *providerBackend) RateLimited() bool           { return true }

type providerFileResponse struct {
	ID string `json:"id"`
}

func (p *providerBackend) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("purpose", "user_data"); err != nil {
		return nil, err
	}
	part, err := writer.CreateFormFile("file", SanitizeFilename(params.Filename))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(params.Content); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/files", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploading file to provider: %w", err)
	}
	defer resp.Body.Close()

	if err := p.checkStatus(resp); err != nil {
		return nil, err
	}

	var fileResp providerFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&fileResp); err != nil {
		return nil, fmt.Errorf("decoding provider response: %w", err)
	}
	if fileResp.ID == "" {
		return nil, fmt.Errorf("provider returned no file ID")
	}

	return &UploadResult{
		Filepath:       fileResp.ID,
		FileIdentifier: &fileResp.ID,
	}, nil
}

func (p *providerBackend) GetFile(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/files/"+path+"/content", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file from provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errorsx.ErrNotFound
	}
	if err := p.checkStatus(resp); err != nil {
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

func (p *providerBackend) ReadURL(context.Context, string, time.Duration) (string, error) {
	// Provider files are only reachable through the authenticated API.
	return "", errorsx.ErrNotFound
}

func (p *providerBackend) Delete(ctx context.Context, path string, fileIdentifier *string) error {
	fileID := path
	if fileIdentifier != nil {
		fileID = *fileIdentifier
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.apiURL+"/files/"+fileID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting file from provider: %w", err)
	}
	defer resp.Body.Close()

	// Missing files count as deleted.
	if resp.StatusCode == http.StatusNotFound {
		p.logger.Debug("Provider file already deleted", zap.String("fileID", fileID))
		return nil
	}
	return p.checkStatus(resp)
}

func (p *providerBackend) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return errorsx.AddMessage(
			fmt.Errorf("%w: provider file API", errorsx.ErrRateLimiting),
			"The file provider is rate limiting requests. Please try again later.",
		)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("provider file API returned status %d: %s", resp.StatusCode, string(body))
}
