package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/loomchat/attachment-backend/config"
	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/logger"
	"github.com/loomchat/attachment-backend/pkg/rag"
)

// extractTextContext produces the text persisted for inline-context files.
// Images go through OCR and audio through speech-to-text, both gated by the
// configured MIME allowlists; everything else takes the generic extraction
// path. An OCR failure falls back to generic extraction, the image may still
// carry an embedded text layer. The result is truncated to the configured
// token budget.
func (s *service) extractTextContext(ctx context.Context, params UploadFileParams) (string, error) {
	log, _ := logger.GetZapLogger(ctx)

	extract := func(mode string) (string, error) {
		return s.ragClient.ExtractText(ctx, rag.ExtractTextParams{
			UserUID:  params.UserUID,
			Filename: params.Filename,
			Mimetype: params.Mimetype,
			Content:  params.Content,
			Mode:     mode,
		})
	}

	var text string
	var err error
	switch {
	case strings.HasPrefix(params.Mimetype, "image/"):
		if !mimeAllowed(params.Mimetype, config.Config.RAG.OCRMimeTypes) {
			return "", errorsx.AddMessage(
				fmt.Errorf("%w: no OCR support for %s", errorsx.ErrUnsupportedFileType, params.Mimetype),
				"Text cannot be read from this image format.",
			)
		}
		text, err = extract(rag.ExtractModeOCR)
		if err != nil {
			log.Warn("OCR failed, falling back to generic extraction",
				zap.String("filename", params.Filename), zap.Error(err))
			text, err = extract("")
		}
	case strings.HasPrefix(params.Mimetype, "audio/"):
		if !mimeAllowed(params.Mimetype, config.Config.RAG.STTMimeTypes) {
			return "", errorsx.AddMessage(
				fmt.Errorf("%w: no transcription support for %s", errorsx.ErrUnsupportedFileType, params.Mimetype),
				"This audio format cannot be transcribed.",
			)
		}
		text, err = extract(rag.ExtractModeSTT)
	default:
		text, err = extract("")
	}
	if err != nil {
		return "", err
	}

	return truncateToTokenBudget(text)
}

func mimeAllowed(mimetype string, allowlist []string) bool {
	for _, allowed := range allowlist {
		if mimetype == allowed {
			return true
		}
	}
	return false
}

// truncateToTokenBudget caps the text at the configured token count so a
// single attachment cannot flood the conversation context.
func truncateToTokenBudget(text string) (string, error) {
	maxTokens := config.Config.Context.MaxTokens
	if maxTokens <= 0 || text == "" {
		return text, nil
	}

	encoding := config.Config.Context.Encoding
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return "", fmt.Errorf("loading token encoding %q: %w", encoding, err)
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, nil
	}
	return enc.Decode(tokens[:maxTokens]), nil
}
