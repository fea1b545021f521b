package documents

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	memoranda map[uuid.UUID]*Memorandum
	versions  []*MemorandumVersion
}

func newFakeStore() *fakeStore {
	return &fakeStore{memoranda: map[uuid.UUID]*Memorandum{}}
}

func (f *fakeStore) GetByRequest(ctx context.Context, kind RequestKind, requestID uuid.UUID) (*Memorandum, error) {
	for _, m := range f.memoranda {
		if m.RequestKind == kind && m.RequestID == requestID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Create(ctx context.Context, m *Memorandum) error {
	copied := *m
	f.memoranda[m.ID] = &copied
	return nil
}

func (f *fakeStore) Update(ctx context.Context, m *Memorandum) error {
	copied := *m
	f.memoranda[m.ID] = &copied
	return nil
}

func (f *fakeStore) CreateVersion(ctx context.Context, v *MemorandumVersion) error {
	copied := *v
	f.versions = append(f.versions, &copied)
	return nil
}

func (f *fakeStore) ListVersions(ctx context.Context, memorandumID uuid.UUID) ([]MemorandumVersion, error) {
	var out []MemorandumVersion
	for i := len(f.versions) - 1; i >= 0; i-- {
		if f.versions[i].MemorandumID == memorandumID {
			out = append(out, *f.versions[i])
		}
	}
	return out, nil
}

func (f *fakeStore) GetVersion(ctx context.Context, memorandumID uuid.UUID, versionNumber int) (*MemorandumVersion, error) {
	for _, v := range f.versions {
		if v.MemorandumID == memorandumID && v.VersionNumber == versionNumber {
			copied := *v
			return &copied, nil
		}
	}
	return nil, nil
}

type fakeObjectStore struct {
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[bucket+"/"+key] = data
	return nil
}

func (f *fakeObjectStore) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, bucket, key string) error {
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeObjectStore) PresignedURL(ctx context.Context, bucket, key string, expiration time.Duration) (string, error) {
	return "https://example.com/" + bucket + "/" + key, nil
}

func newTestService() (*Service, *fakeStore, *fakeObjectStore) {
	store := newFakeStore()
	objects := newFakeObjectStore()
	return NewService(store, objects, "portal-memoranda", zap.NewNop()), store, objects
}

func TestUploadCreatesFirstVersion(t *testing.T) {
	service, store, objects := newTestService()
	requestID := uuid.New()
	uploader := uuid.New()

	m, err := service.Upload(context.Background(), UploadInput{
		Kind:        KindSecureDirectory,
		RequestID:   requestID,
		FileName:    "mou_signed.pdf",
		ContentType: "application/pdf",
		FileSize:    4,
		Content:     strings.NewReader("%PDF"),
		UploadedBy:  uploader,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, m.CurrentVersion)
	assert.Contains(t, m.S3Key, requestID.String())
	assert.Contains(t, m.S3Key, "v1")
	require.Len(t, store.versions, 1)
	assert.Equal(t, []byte("%PDF"), objects.objects["portal-memoranda/"+m.S3Key])
}

func TestUploadBumpsVersionAndKeepsHistory(t *testing.T) {
	service, store, _ := newTestService()
	requestID := uuid.New()
	uploader := uuid.New()

	first, err := service.Upload(context.Background(), UploadInput{
		Kind:       KindNewProject,
		RequestID:  requestID,
		FileName:   "mou.pdf",
		Content:    strings.NewReader("first"),
		UploadedBy: uploader,
	})
	require.NoError(t, err)

	second, err := service.Upload(context.Background(), UploadInput{
		Kind:          KindNewProject,
		RequestID:     requestID,
		FileName:      "mou_corrected.pdf",
		Content:       strings.NewReader("second"),
		ChangeSummary: "corrected signature page",
		UploadedBy:    uploader,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.CurrentVersion)
	assert.NotEqual(t, first.S3Key, second.S3Key)
	require.Len(t, store.versions, 2)

	versions, err := service.ListVersions(context.Background(), KindNewProject, requestID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].VersionNumber)

	// The first upload stays retrievable after the correction lands.
	v, body, err := service.DownloadVersion(
		context.Background(), KindNewProject, requestID, 1)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.Equal(t, 1, v.VersionNumber)
}

func TestDownloadStreamsLatest(t *testing.T) {
	service, _, _ := newTestService()
	requestID := uuid.New()

	_, err := service.Upload(context.Background(), UploadInput{
		Kind:       KindSecureDirectory,
		RequestID:  requestID,
		FileName:   "mou.pdf",
		Content:    strings.NewReader("content"),
		UploadedBy: uuid.New(),
	})
	require.NoError(t, err)

	m, body, err := service.Download(context.Background(), KindSecureDirectory, requestID)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
	assert.Equal(t, "mou.pdf", m.FileName)
}

func TestGetMissingMemorandum(t *testing.T) {
	service, _, _ := newTestService()

	_, err := service.Get(context.Background(), KindNewProject, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = service.PresignedURL(
		context.Background(), KindNewProject, uuid.New(), time.Minute)
	assert.ErrorIs(t, err, ErrNotFound)
}
