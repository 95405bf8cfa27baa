// Package handler exposes the subsystem's single HTTP route: the embedding
// service's completion callback. All other transport belongs to the chat
// platform that embeds this subsystem.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/loomchat/attachment-backend/pkg/rag"
	"github.com/loomchat/attachment-backend/pkg/service"
)

// embeddingCompletePayload is the body the embedding service posts back once
// an asynchronous run finishes.
type embeddingCompletePayload struct {
	FileID       string `json:"file_id"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message"`
}

// NewMux returns the handler serving the embedding completion callback and a
// liveness probe.
func NewMux(svc service.Service, log *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle(rag.CallbackPath, embeddingCompleteHandler(svc, log))
	return mux
}

func embeddingCompleteHandler(svc service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var payload embeddingCompletePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		fileUID, err := uuid.FromString(payload.FileID)
		if err != nil {
			http.Error(w, "invalid file_id", http.StatusBadRequest)
			return
		}

		err = svc.CompleteEmbedding(r.Context(), service.CompleteEmbeddingParams{
			FileUID:      fileUID,
			Success:      payload.Success,
			ErrorMessage: payload.ErrorMessage,
		})
		if err != nil {
			log.Error("failed to record embedding completion",
				zap.String("fileUID", fileUID.String()), zap.Error(err))
			http.Error(w, "failed to record completion", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
