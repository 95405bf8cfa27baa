package rag

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/loomchat/attachment-backend/config"
	"github.com/loomchat/attachment-backend/pkg/errorsx"
	"github.com/loomchat/attachment-backend/pkg/types"
)

func newTestClient(t *testing.T, handler http.Handler) Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.RAGConfig{APIURL: srv.URL}
	tokens := NewTokenIssuer("test-secret", 0, nil)
	return NewClient(cfg, "http://public.example.com", tokens, zap.NewNop())
}

func TestClient_ExtractText(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.URL.Path, qt.Equals, "/extract")
		c.Check(r.Header.Get("Authorization"), qt.Not(qt.Equals), "")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"known_type": true,
			"text":       "hello world",
		})
	}))

	text, err := client.ExtractText(ctx, ExtractTextParams{
		UserUID:  uuid.Must(uuid.NewV4()),
		Filename: "notes.txt",
		Mimetype: "text/plain",
		Content:  []byte("hello world"),
	})
	c.Assert(err, qt.IsNil)
	c.Check(text, qt.Equals, "hello world")
}

func TestClient_ExtractText_SendsMode(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Assert(r.ParseMultipartForm(1<<20), qt.IsNil)
		c.Check(r.FormValue("mode"), qt.Equals, ExtractModeOCR)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"known_type": true,
			"text":       "scanned text",
		})
	}))

	text, err := client.ExtractText(ctx, ExtractTextParams{
		UserUID:  uuid.Must(uuid.NewV4()),
		Filename: "scan.png",
		Mimetype: "image/png",
		Content:  []byte{0x89, 0x50},
		Mode:     ExtractModeOCR,
	})
	c.Assert(err, qt.IsNil)
	c.Check(text, qt.Equals, "scanned text")
}

func TestClient_ExtractText_UnknownType(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"known_type": false})
	}))

	_, err := client.ExtractText(ctx, ExtractTextParams{
		UserUID:  uuid.Must(uuid.NewV4()),
		Filename: "blob.bin",
		Mimetype: "application/octet-stream",
	})
	c.Check(errors.Is(err, errorsx.ErrUnsupportedFileType), qt.IsTrue)
}

func TestClient_EmbedFile_SendsCallback(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	fileUID := uuid.Must(uuid.NewV4())
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.URL.Path, qt.Equals, "/embed")
		c.Assert(r.ParseMultipartForm(1<<20), qt.IsNil)
		c.Check(r.FormValue("file_id"), qt.Equals, fileUID.String())
		c.Check(r.FormValue("callback_url"), qt.Equals, "http://public.example.com"+CallbackPath)

		var metadata StorageMetadata
		c.Assert(json.Unmarshal([]byte(r.FormValue("storage_metadata")), &metadata), qt.IsNil)
		c.Check(metadata.Source, qt.Equals, types.MinIOSource)

		_ = json.NewEncoder(w).Encode(map[string]any{"known_type": true})
	}))

	err := client.EmbedFile(ctx, EmbedFileParams{
		FileUID:   fileUID,
		EntityUID: uuid.Must(uuid.NewV4()),
		UserUID:   uuid.Must(uuid.NewV4()),
		Filename:  "report.pdf",
		Mimetype:  "application/pdf",
		StorageMetadata: StorageMetadata{
			Source:   types.MinIOSource,
			Filepath: "ent-x/file-y/report.pdf",
		},
	})
	c.Assert(err, qt.IsNil)
}

func TestClient_DeleteDocuments_SendsBatch(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	fileUIDs := []types.FileUIDType{uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, qt.Equals, http.MethodDelete)
		c.Check(r.URL.Path, qt.Equals, "/documents")
		c.Check(r.Header.Get("Content-Type"), qt.Equals, "application/json")

		var ids []string
		c.Assert(json.NewDecoder(r.Body).Decode(&ids), qt.IsNil)
		c.Check(ids, qt.DeepEquals, []string{fileUIDs[0].String(), fileUIDs[1].String()})
	}))

	err := client.DeleteDocuments(ctx, uuid.Must(uuid.NewV4()), fileUIDs)
	c.Assert(err, qt.IsNil)
}

func TestClient_DeleteDocuments_MissingIsSuccess(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, qt.Equals, http.MethodDelete)
		w.WriteHeader(http.StatusNotFound)
	}))

	err := client.DeleteDocuments(ctx, uuid.Must(uuid.NewV4()), []types.FileUIDType{uuid.Must(uuid.NewV4())})
	c.Check(err, qt.IsNil)
}

func TestClient_DeleteDocuments_ServerError(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := client.DeleteDocuments(ctx, uuid.Must(uuid.NewV4()), []types.FileUIDType{uuid.Must(uuid.NewV4())})
	c.Check(err, qt.IsNotNil)
}
