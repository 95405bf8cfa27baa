package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/loomchat/attachment-backend/pkg/rag"
	"github.com/loomchat/attachment-backend/pkg/service"
)

// stubService embeds the interface and overrides the one method the handler
// uses.
type stubService struct {
	service.Service
	params []service.CompleteEmbeddingParams
	err    error
}

func (s *stubService) CompleteEmbedding(_ context.Context, params service.CompleteEmbeddingParams) error {
	if s.err != nil {
		return s.err
	}
	s.params = append(s.params, params)
	return nil
}

func TestEmbeddingCompleteCallback(t *testing.T) {
	c := qt.New(t)

	svc := &stubService{}
	mux := NewMux(svc, zap.NewNop())

	fileUID := uuid.Must(uuid.NewV4())
	body := `{"file_id": "` + fileUID.String() + `", "success": true}`
	req := httptest.NewRequest(http.MethodPost, rag.CallbackPath, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(svc.params, qt.HasLen, 1)
	c.Check(svc.params[0].FileUID, qt.Equals, fileUID)
	c.Check(svc.params[0].Success, qt.IsTrue)
}

func TestEmbeddingCompleteCallback_Failure(t *testing.T) {
	c := qt.New(t)

	svc := &stubService{}
	mux := NewMux(svc, zap.NewNop())

	fileUID := uuid.Must(uuid.NewV4())
	body := `{"file_id": "` + fileUID.String() + `", "success": false, "error_message": "no extractable text"}`
	req := httptest.NewRequest(http.MethodPost, rag.CallbackPath, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(svc.params, qt.HasLen, 1)
	c.Check(svc.params[0].Success, qt.IsFalse)
	c.Check(svc.params[0].ErrorMessage, qt.Equals, "no extractable text")
}

func TestEmbeddingCompleteCallback_BadRequests(t *testing.T) {
	c := qt.New(t)

	svc := &stubService{}
	mux := NewMux(svc, zap.NewNop())

	// Wrong method.
	req := httptest.NewRequest(http.MethodGet, rag.CallbackPath, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	c.Check(rec.Code, qt.Equals, http.StatusMethodNotAllowed)

	// Malformed body.
	req = httptest.NewRequest(http.MethodPost, rag.CallbackPath, strings.NewReader("{"))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	c.Check(rec.Code, qt.Equals, http.StatusBadRequest)

	// Invalid file UID.
	req = httptest.NewRequest(http.MethodPost, rag.CallbackPath, strings.NewReader(`{"file_id": "nope"}`))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	c.Check(rec.Code, qt.Equals, http.StatusBadRequest)
}
