package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/loomchat/attachment-backend/config"
	"github.com/loomchat/attachment-backend/pkg/classifier"
	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/logger"
	"github.com/loomchat/attachment-backend/pkg/rag"
	"github.com/loomchat/attachment-backend/pkg/repository"
	"github.com/loomchat/attachment-backend/pkg/storage"
	"github.com/loomchat/attachment-backend/pkg/strategy"
	"github.com/loomchat/attachment-backend/pkg/types"
)

// UploadFileParams carries one uploaded file through ingestion.
type UploadFileParams struct {
	UserUID   types.UserUIDType
	EntityUID types.EntityUIDType
	// AgentUID is set for agent-scoped uploads; tool resource links are
	// created for it.
	AgentUID *types.AgentUIDType
	Filename string
	Mimetype string
	Content  []byte
	Context  types.FileContext
	// ToolResource is the caller's explicit routing choice, when present it
	// overrides strategy resolution.
	ToolResource *types.ToolResource
	// CodeEnabled reports whether the receiving agent has code execution
	// available.
	CodeEnabled bool
}

func (p UploadFileParams) validate() error {
	if p.Filename == "" {
		return errorsx.AddMessage(
			fmt.Errorf("%w: missing filename", errorsx.ErrInvalidArgument),
			"A filename is required.",
		)
	}
	if len(p.Content) == 0 {
		return errorsx.AddMessage(
			fmt.Errorf("%w: empty file", errorsx.ErrInvalidArgument),
			"The uploaded file is empty.",
		)
	}
	if maxMB := config.Config.Server.MaxDataSize; maxMB > 0 && len(p.Content) > maxMB<<20 {
		return errorsx.AddMessage(
			fmt.Errorf("%w: file exceeds %d MB", errorsx.ErrInvalidArgument, maxMB),
			fmt.Sprintf("The file exceeds the %d MB size limit.", maxMB),
		)
	}
	switch p.Context {
	case types.MessageAttachmentContext, types.AgentResourceContext,
		types.AssistantResourceContext, types.OutputContext:
	default:
		return errorsx.AddMessage(
			fmt.Errorf("%w: unknown file context %q", errorsx.ErrInvalidArgument, p.Context),
			"Unknown file context.",
		)
	}
	// Message attachments can be routed by inference; every other agent
	// upload must say what capability the file serves.
	if p.AgentUID != nil && p.ToolResource == nil && p.Context != types.MessageAttachmentContext {
		return errorsx.AddMessage(
			fmt.Errorf("%w: agent upload without tool resource", errorsx.ErrInvalidArgument),
			"A tool resource is required for agent resource uploads.",
		)
	}
	return nil
}

// ProcessUpload ingests one uploaded file: classify, resolve strategies,
// register with the sandbox when dual-routed, extract text when the primary
// consumption path requires it synchronously, upload to storage, persist the
// record and its tool resource links, and trigger background embedding.
//
// The record only exists once the storage upload has succeeded, so a crash
// mid-ingestion leaves at worst an orphaned object, never a dangling record.
func (s *service) ProcessUpload(ctx context.Context, params UploadFileParams) (*repository.FileModel, error) {
	log, _ := logger.GetZapLogger(ctx)

	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.Mimetype == "" {
		params.Mimetype = "application/octet-stream"
	}

	category := classifier.Classify(params.Mimetype, params.Filename)

	explicit := params.ToolResource
	if explicit != nil && !validToolResource(*explicit) {
		return nil, errorsx.AddMessage(
			fmt.Errorf("%w: unknown tool resource %q", errorsx.ErrInvalidArgument, *explicit),
			"Unknown tool resource.",
		)
	}

	// Agent uploads without an explicit resource go through intent
	// inference; the result is applied like an explicit choice but does not
	// count as a user override.
	inferred := false
	if explicit == nil && params.AgentUID != nil && params.Context == types.MessageAttachmentContext {
		intent, err := s.intent.Infer(ctx, params.Filename, params.Mimetype, params.CodeEnabled)
		if err != nil {
			return nil, errorsx.Wrapf(err, "inferring upload intent")
		}
		resource := strategy.ResourceForIntent(intent)
		explicit = &resource
		inferred = true
	}

	bundle := strategy.Resolve(category, explicit)
	if inferred {
		bundle.UserOverride = false
	}

	fileUID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	file := repository.FileModel{
		UID:       fileUID,
		UserUID:   params.UserUID,
		EntityUID: params.EntityUID,
		Filename:  params.Filename,
		Mimetype:  params.Mimetype,
		Size:      int64(len(params.Content)),
		Category:  category,
		Context:   params.Context,
	}

	// Dual routing: files consumed by the code executor are registered with
	// the sandbox before anything else, a sandbox the agent cannot reach
	// makes the whole upload pointless. Searchable files a code-enabled
	// agent could also read from code get mirrored too, but best-effort:
	// the mirror costs the handle on failure, never the upload.
	switch {
	case bundle.PrimaryStrategy == types.CodeExecutorStrategy:
		identifier, err := s.sandboxClient.UploadFile(ctx, params.EntityUID, params.Filename, bytes.NewReader(params.Content))
		if err != nil {
			return nil, errorsx.Wrapf(err, "registering file with sandbox")
		}
		file.FileIdentifier = &identifier
	case bundle.PrimaryStrategy == types.FileSearchStrategy && params.CodeEnabled &&
		strategy.IsCodeSuitableExtension(classifier.Extension(params.Filename)):
		identifier, err := s.sandboxClient.UploadFile(ctx, params.EntityUID, params.Filename, bytes.NewReader(params.Content))
		if err != nil {
			log.Warn("failed to mirror file into sandbox",
				zap.String("filename", params.Filename), zap.Error(err))
		} else {
			file.FileIdentifier = &identifier
		}
	}

	// Synchronous extraction. Explicit file-search uploads block on it: a
	// file that cannot be extracted can never serve search, so the caller
	// hears about it now. The extracted text lands on the record so the
	// background workflow never re-extracts it. The inline-context path
	// extracts here too, its text is the artifact being stored.
	switch {
	case bundle.PrimaryStrategy == types.FileSearchStrategy && bundle.UserOverride:
		text, err := s.ragClient.ExtractText(ctx, rag.ExtractTextParams{
			UserUID:  params.UserUID,
			Filename: params.Filename,
			Mimetype: params.Mimetype,
			Content:  params.Content,
		})
		if err != nil {
			return nil, errorsx.Wrapf(err, "extracting text for file search")
		}
		file.Text = &text
	case bundle.PrimaryStrategy == types.TextContextStrategy:
		text, err := s.extractTextContext(ctx, params)
		if err != nil {
			return nil, errorsx.Wrapf(err, "extracting inline context text")
		}
		file.Text = &text
	}

	// Storage upload for the primary strategy. The text source holds no
	// bytes, the extracted text on the record is the artifact.
	source := s.storage.SourceForStrategy(bundle.PrimaryStrategy)
	file.Source = source
	if source != types.TextSource {
		backend, err := s.storage.MustForSource(source)
		if err != nil {
			return nil, err
		}
		result, err := backend.Upload(ctx, storage.UploadParams{
			FileUID:   fileUID,
			EntityUID: params.EntityUID,
			Filename:  params.Filename,
			Mimetype:  params.Mimetype,
			Content:   params.Content,
		})
		if err != nil {
			return nil, errorsx.Wrapf(err, "uploading file to storage")
		}
		file.Filepath = result.Filepath
		if result.FileIdentifier != nil {
			file.FileIdentifier = result.FileIdentifier
		}
	}

	if category == types.ImageCategory {
		file.Width, file.Height = storage.ImageDimensions(params.Content)
	}

	statuses := map[types.Strategy]types.StatusRecord{}
	for _, st := range bundle.Strategies() {
		statuses[st] = types.NewStatusRecord(types.StatusPending)
	}
	embedStrategy, hasEmbed := embedTarget(bundle)
	switch {
	case bundle.PrimaryStrategy == embedStrategy && hasEmbed:
		statuses[bundle.PrimaryStrategy] = types.NewStatusRecord(types.StatusExtracting)
	default:
		statuses[bundle.PrimaryStrategy] = types.NewStatusRecord(types.StatusCompleted)
	}
	if err := file.SetStrategiesMap(statuses); err != nil {
		return nil, err
	}

	created, err := s.repository.CreateFile(ctx, file)
	if err != nil {
		return nil, errorsx.Wrapf(err, "persisting file record")
	}

	if params.AgentUID != nil {
		links := []repository.ToolResourceLinkModel{{
			FileUID:      created.UID,
			AgentUID:     *params.AgentUID,
			ToolResource: bundle.ToolResource,
		}}
		// Background semantic indexing additionally exposes the file to the
		// search capability.
		if hasEmbed && bundle.ToolResource != types.FileSearchResource {
			links = append(links, repository.ToolResourceLinkModel{
				FileUID:      created.UID,
				AgentUID:     *params.AgentUID,
				ToolResource: types.FileSearchResource,
			})
		}
		if _, err := s.repository.CreateToolResourceLinks(ctx, links); err != nil {
			return nil, errorsx.Wrapf(err, "persisting tool resource links")
		}
	}

	if bundle.ShouldEmbed && hasEmbed {
		// Fire and forget: embedding failures degrade the file to
		// search-less, they never fail the upload.
		if err := s.embedFileWorkflow.Execute(ctx, EmbedFileWorkflowParam{
			FileUID:     created.UID,
			EntityUID:   params.EntityUID,
			UserUID:     params.UserUID,
			Strategy:    embedStrategy,
			ExtractText: created.Text == nil && !skipExtraction(bundle, params.Filename),
		}); err != nil {
			log.Warn("failed to trigger embedding workflow, file will not be searchable",
				zap.String("fileUID", created.UID.String()), zap.Error(err))
			msg := err.Error()
			meta := &repository.StrategyStatusMeta{Error: &msg}
			if statusErr := s.repository.SetStrategyStatus(ctx, created.UID, embedStrategy, types.StatusFailed, meta); statusErr != nil {
				log.Error("failed to record embedding trigger failure",
					zap.String("fileUID", created.UID.String()), zap.Error(statusErr))
			}
		}
	}

	return created, nil
}

// embedTarget returns the matrix entry that tracks embedding progress.
func embedTarget(bundle strategy.Bundle) (types.Strategy, bool) {
	if !bundle.ShouldEmbed {
		return "", false
	}
	for _, st := range bundle.Strategies() {
		if st == types.FileSearchStrategy {
			return st, true
		}
	}
	return "", false
}

// skipExtraction reports whether the file's text should never be persisted
// on the record: programmatic formats mirrored into the sandbox are read by
// code, their raw text adds nothing.
func skipExtraction(bundle strategy.Bundle, filename string) bool {
	return bundle.PrimaryStrategy == types.CodeExecutorStrategy &&
		strategy.IsProgrammaticExtension(classifier.Extension(filename))
}

func validToolResource(r types.ToolResource) bool {
	switch r {
	case types.FileSearchResource, types.CodeExecutorResource,
		types.ImageResource, types.ContextResource:
		return true
	}
	return false
}
