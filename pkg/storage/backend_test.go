package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gofrs/uuid"

	"github.com/loomchat/attachment-backend/pkg/types"
)

type fakeBackend struct {
	source types.StorageSource
}

func (f *fakeBackend) Source() types.StorageSource { return f.source }
func (f *fakeBackend) RateLimited() bool           { return false }
func (f *fakeBackend) Upload(context.Context, UploadParams) (*UploadResult, error) {
	return &UploadResult{}, nil
}
func (f *fakeBackend) GetFile(context.Context, string) ([]byte, error) { return nil, nil }
func (f *fakeBackend) Delete(context.Context, string, *string) error   { return nil }
func (f *fakeBackend) ReadURL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

func TestRegistry_Routing(t *testing.T) {
	c := qt.New(t)

	localFake := &fakeBackend{source: types.LocalSource}
	providerFake := &fakeBackend{source: types.ProviderSource}

	r, err := NewRegistry(
		[]Backend{localFake, providerFake},
		map[string]string{
			string(types.ImageStrategy):       "provider",
			string(types.TextContextStrategy): "text",
		},
		"local",
	)
	c.Assert(err, qt.IsNil)

	b, ok := r.ForStrategy(types.ImageStrategy)
	c.Assert(ok, qt.IsTrue)
	c.Check(b.Source(), qt.Equals, types.ProviderSource)

	// No explicit entry falls back to the default backend.
	b, ok = r.ForStrategy(types.FileSearchStrategy)
	c.Assert(ok, qt.IsTrue)
	c.Check(b.Source(), qt.Equals, types.LocalSource)

	// The text source has no backend.
	_, ok = r.ForStrategy(types.TextContextStrategy)
	c.Check(ok, qt.IsFalse)
	c.Check(r.SourceForStrategy(types.TextContextStrategy), qt.Equals, types.TextSource)
}

func TestRegistry_MissingDefault(t *testing.T) {
	c := qt.New(t)

	_, err := NewRegistry([]Backend{&fakeBackend{source: types.LocalSource}}, nil, "minio")
	c.Check(err, qt.IsNotNil)
}

func TestRegistry_MissingStrategyBackend(t *testing.T) {
	c := qt.New(t)

	_, err := NewRegistry(
		[]Backend{&fakeBackend{source: types.LocalSource}},
		map[string]string{string(types.ImageStrategy): "gcs"},
		"local",
	)
	c.Check(err, qt.IsNotNil)
}

func TestObjectPath(t *testing.T) {
	c := qt.New(t)

	entityUID := uuid.FromStringOrNil("8b9d8f9c-6a65-4267-9c43-b9b0b74d23ea")
	fileUID := uuid.FromStringOrNil("f1b4ef43-2a61-4d43-9eaf-3a7f2c3b4d5e")

	p := ObjectPath(entityUID, fileUID, "../sneaky/report.pdf")
	c.Check(p, qt.Equals, "ent-"+entityUID.String()+"/file-"+fileUID.String()+"/report.pdf")
	c.Check(strings.Contains(p, ".."), qt.IsFalse)
}
