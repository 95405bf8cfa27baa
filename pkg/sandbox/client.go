// Package sandbox talks to the code-execution backend's file API. Files
// routed to the code-executor strategy are registered there so the sandbox
// can mount them into execution sessions.
package sandbox

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
	"github.com/loomchat/attachment-backend/pkg/types"
)

// Client is the sandbox file API surface consumed by the upload path.
type Client interface {
	// UploadFile registers file content with the sandbox and returns the
	// identifier the sandbox assigned to it.
	UploadFile(ctx context.Context, entityUID types.EntityUIDType, filename string, content io.Reader) (string, error)
	// DeleteFile removes a registered file. Missing files are not an error.
	DeleteFile(ctx context.Context, fileIdentifier string) error
}

type client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds the sandbox HTTP client.
func NewClient(cfg config.SandboxConfig, logger *zap.Logger) Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &client{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("client", "sandbox")),
	}
}

type uploadResponse struct {
	FileIdentifier string `json:"file_identifier"`
}

func (c *client) UploadFile(ctx context.Context, entityUID types.EntityUIDType, filename string, content io.Reader) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("entity_id", entityUID.String()); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/files", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading file to sandbox: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("sandbox file API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var uploadResp uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return "", fmt.Errorf("decoding sandbox response: %w", err)
	}
	if uploadResp.FileIdentifier == "" {
		return "", fmt.Errorf("sandbox returned no file identifier")
	}

	return uploadResp.FileIdentifier, nil
}

func (c *client) DeleteFile(ctx context.Context, fileIdentifier string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.apiURL+"/files/"+fileIdentifier, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deleting file from sandbox: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("Sandbox file already deleted", zap.String("fileIdentifier", fileIdentifier))
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sandbox file API returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
