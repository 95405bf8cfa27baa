// Package rag talks to the external embedding service that extracts,
// chunks, and embeds file content for semantic search.
package rag

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

// CallbackPath is the endpoint the embedding service calls once a file's
// vectors have been written.
const CallbackPath = "/api/files/embedding-complete"

// Client is the interface of the embedding service consumed by the rest of
// the codebase.
type Client interface {
	// ExtractText synchronously extracts text from file content.
	ExtractText(ctx context.Context, params ExtractTextParams) (string, error)
	// EmbedFile asks the service to extract, chunk, and embed a stored file.
	// The service reports completion through the callback URL rather than
	// the response.
	EmbedFile(ctx context.Context, params EmbedFileParams) error
	// DeleteDocuments removes the vectors of a batch of files. Deleting
	// vectors that are already gone is not an error.
	DeleteDocuments(ctx context.Context, userUID types.UserUIDType, fileUIDs []types.FileUIDType) error
}

// Extraction modes beyond the generic text pipeline.
const (
	// ExtractModeOCR asks for optical character recognition on an image.
	ExtractModeOCR = "ocr"
	// ExtractModeSTT asks for speech-to-text on an audio file.
	ExtractModeSTT = "stt"
)

// ExtractTextParams identifies the content to extract text from.
type ExtractTextParams struct {
	UserUID  types.UserUIDType
	Filename string
	Mimetype string
	Content  []byte
	// Mode selects a specialized extraction pipeline. Empty means generic
	// extraction.
	Mode string
}

// StorageMetadata tells the embedding service where a file's bytes live so
// it can fetch them itself.
type StorageMetadata struct {
	Source   types.StorageSource `json:"source"`
	Filepath string              `json:"filepath"`
}

// EmbedFileParams identifies the file to embed and where its content lives.
type EmbedFileParams struct {
	FileUID         types.FileUIDType
	EntityUID       types.EntityUIDType
	UserUID         types.UserUIDType
	Filename        string
	Mimetype        string
	Content         []byte
	StorageMetadata StorageMetadata
}

type client struct {
	apiURL      string
	httpClient  *http.Client
	tokens      *TokenIssuer
	callbackURL string
	logger      *zap.Logger
}

// NewClient builds the HTTP client of the embedding service. publicURL is
// this service's externally reachable base URL, used to compose the
// completion callback.
func NewClient(cfg config.RAGConfig, publicURL string, tokens *TokenIssuer, logger *zap.Logger) Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &client{
		apiURL:      cfg.APIURL,
		httpClient:  &http.Client{Timeout: timeout},
		tokens:      tokens,
		callbackURL: publicURL + CallbackPath,
		logger:      logger.With(zap.String("client", "rag")),
	}
}

type extractResponse struct {
	KnownType bool   `json:"known_type"`
	Text      string `json:"text"`
}

func (c *client) ExtractText(ctx context.Context, params ExtractTextParams) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", params.Filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(params.Content); err != nil {
		return "", err
	}
	if err := writer.WriteField("mimetype", params.Mimetype); err != nil {
		return "", err
	}
	if params.Mode != "" {
		if err := writer.WriteField("mode", params.Mode); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, "/extract", params.UserUID, body, writer.FormDataContentType())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return "", err
	}

	var extractResp extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&extractResp); err != nil {
		return "", fmt.Errorf("decoding extraction response: %w", err)
	}
	if !extractResp.KnownType {
		return "", errorsx.AddMessage(
			fmt.Errorf("%w: %s", errorsx.ErrUnsupportedFileType, params.Mimetype),
			"Text cannot be extracted from this file type.",
		)
	}

	return extractResp.Text, nil
}

func (c *client) EmbedFile(ctx context.Context, params EmbedFileParams) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("file_id", params.FileUID.String()); err != nil {
		return err
	}
	if err := writer.WriteField("entity_id", params.EntityUID.String()); err != nil {
		return err
	}
	if err := writer.WriteField("callback_url", c.callbackURL); err != nil {
		return err
	}

	metadata, err := json.Marshal(params.StorageMetadata)
	if err != nil {
		return err
	}
	if err := writer.WriteField("storage_metadata", string(metadata)); err != nil {
		return err
	}

	if len(params.Content) > 0 {
		part, err := writer.CreateFormFile("file", params.Filename)
		if err != nil {
			return err
		}
		if _, err := part.Write(params.Content); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPost, "/embed", params.UserUID, body, writer.FormDataContentType())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return err
	}

	var embedResp struct {
		KnownType bool `json:"known_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return fmt.Errorf("decoding embedding response: %w", err)
	}
	if !embedResp.KnownType {
		return errorsx.AddMessage(
			fmt.Errorf("%w: %s", errorsx.ErrUnsupportedFileType, params.Mimetype),
			"This file type cannot be indexed for search.",
		)
	}

	return nil
}

func (c *client) DeleteDocuments(ctx context.Context, userUID types.UserUIDType, fileUIDs []types.FileUIDType) error {
	if len(fileUIDs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(fileUIDs))
	for _, uid := range fileUIDs {
		ids = append(ids, uid.String())
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodDelete, "/documents", userUID, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// The vectors may already be gone, a deleted document is a success.
	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("Documents already deleted", zap.Strings("fileUIDs", ids))
		return nil
	}
	return c.checkStatus(resp)
}

func (c *client) do(ctx context.Context, method, path string, userUID types.UserUIDType, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token, err := c.tokens.Token(ctx, userUID)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding service: %w", err)
	}
	return resp, nil
}

func (c *client) checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
}
