package documents

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rc-portal/allocation-portal-backend/pkg/storage"
)

// ErrNotFound is returned when a request has no memorandum on file.
var ErrNotFound = fmt.Errorf("no memorandum on file")

// Service stores and retrieves signed memorandum-of-understanding
// documents. Uploading never overwrites: each upload becomes a new
// version and the record points at the latest.
type Service struct {
	store   Store
	objects storage.ObjectStore
	bucket  string
	logger  *zap.Logger
}

func NewService(store Store, objects storage.ObjectStore, bucket string, logger *zap.Logger) *Service {
	return &Service{store: store, objects: objects, bucket: bucket, logger: logger}
}

// UploadInput describes one memorandum upload.
type UploadInput struct {
	Kind          RequestKind
	RequestID     uuid.UUID
	FileName      string
	ContentType   string
	FileSize      int64
	Content       io.Reader
	ChangeSummary string
	UploadedBy    uuid.UUID
}

func (s *Service) objectKey(kind RequestKind, requestID uuid.UUID, version int, fileName string) string {
	return fmt.Sprintf("memoranda/%s/%s/v%d/%s", kind, requestID, version, fileName)
}

// Upload stores the document and records it against the request,
// creating the memorandum on first upload and bumping the version on
// subsequent ones.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*Memorandum, error) {
	m, err := s.store.GetByRequest(ctx, in.Kind, in.RequestID)
	if err != nil {
		return nil, err
	}

	version := 1
	if m != nil {
		version = m.CurrentVersion + 1
	}
	key := s.objectKey(in.Kind, in.RequestID, version, in.FileName)
	if err := s.objects.Upload(ctx, s.bucket, key, in.Content); err != nil {
		return nil, err
	}

	if m == nil {
		m = &Memorandum{
			ID:             uuid.New(),
			RequestKind:    in.Kind,
			RequestID:      in.RequestID,
			FileName:       in.FileName,
			ContentType:    in.ContentType,
			FileSize:       in.FileSize,
			S3Bucket:       s.bucket,
			S3Key:          key,
			CurrentVersion: version,
			UploadedBy:     in.UploadedBy,
		}
		if err := s.store.Create(ctx, m); err != nil {
			return nil, err
		}
	} else {
		m.FileName = in.FileName
		m.ContentType = in.ContentType
		m.FileSize = in.FileSize
		m.S3Key = key
		m.CurrentVersion = version
		if err := s.store.Update(ctx, m); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreateVersion(ctx, &MemorandumVersion{
		ID:            uuid.New(),
		MemorandumID:  m.ID,
		VersionNumber: version,
		S3Key:         key,
		ChangeSummary: in.ChangeSummary,
		UploadedBy:    in.UploadedBy,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("Stored memorandum of understanding",
		zap.String("request_kind", string(in.Kind)),
		zap.String("request_id", in.RequestID.String()),
		zap.Int("version", version))
	return m, nil
}

// Get returns the memorandum record for a request.
func (s *Service) Get(ctx context.Context, kind RequestKind, requestID uuid.UUID) (*Memorandum, error) {
	m, err := s.store.GetByRequest(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}
	return m, nil
}

// Download streams the latest uploaded document.
func (s *Service) Download(ctx context.Context, kind RequestKind, requestID uuid.UUID) (*Memorandum, io.ReadCloser, error) {
	m, err := s.Get(ctx, kind, requestID)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.objects.Download(ctx, m.S3Bucket, m.S3Key)
	if err != nil {
		return nil, nil, err
	}
	return m, body, nil
}

// DownloadVersion streams one historical upload.
func (s *Service) DownloadVersion(ctx context.Context, kind RequestKind, requestID uuid.UUID, version int) (*MemorandumVersion, io.ReadCloser, error) {
	m, err := s.Get(ctx, kind, requestID)
	if err != nil {
		return nil, nil, err
	}
	v, err := s.store.GetVersion(ctx, m.ID, version)
	if err != nil {
		return nil, nil, err
	}
	if v == nil {
		return nil, nil, ErrNotFound
	}
	body, err := s.objects.Download(ctx, m.S3Bucket, v.S3Key)
	if err != nil {
		return nil, nil, err
	}
	return v, body, nil
}

// ListVersions returns the upload history, newest first.
func (s *Service) ListVersions(ctx context.Context, kind RequestKind, requestID uuid.UUID) ([]MemorandumVersion, error) {
	m, err := s.Get(ctx, kind, requestID)
	if err != nil {
		return nil, err
	}
	return s.store.ListVersions(ctx, m.ID)
}

// PresignedURL returns a short-lived direct download link for the
// latest document.
func (s *Service) PresignedURL(ctx context.Context, kind RequestKind, requestID uuid.UUID, expiration time.Duration) (string, error) {
	m, err := s.Get(ctx, kind, requestID)
	if err != nil {
		return "", err
	}
	return s.objects.PresignedURL(ctx, m.S3Bucket, m.S3Key, expiration)
}
