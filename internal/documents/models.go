package documents

import (
	"time"

	"github.com/google/uuid"
)

// RequestKind names which request type a memorandum belongs to. The two
// request types that carry a memorandum-of-understanding review step
// each store at most one memorandum per request.
type RequestKind string

const (
	KindNewProject      RequestKind = "new-project"
	KindSecureDirectory RequestKind = "secure-directory"
)

// Memorandum is the signed memorandum-of-understanding document
// attached to a request. The file content lives in object storage; the
// record tracks the current version.
type Memorandum struct {
	ID             uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestKind    RequestKind `gorm:"not null;index:idx_memoranda_request,unique" json:"request_kind"`
	RequestID      uuid.UUID   `gorm:"type:uuid;not null;index:idx_memoranda_request,unique" json:"request_id"`
	FileName       string      `gorm:"not null" json:"file_name"`
	ContentType    string      `json:"content_type"`
	FileSize       int64       `json:"file_size"`
	S3Bucket       string      `gorm:"not null" json:"s3_bucket"`
	S3Key          string      `gorm:"not null" json:"s3_key"`
	CurrentVersion int         `gorm:"not null;default:1" json:"current_version"`
	UploadedBy     uuid.UUID   `gorm:"type:uuid;not null" json:"uploaded_by"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// MemorandumVersion is one historical upload of a memorandum. Every
// upload, including the first, has a version row; re-uploading a
// corrected document never destroys the previous file.
type MemorandumVersion struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	MemorandumID  uuid.UUID `gorm:"type:uuid;not null;index" json:"memorandum_id"`
	VersionNumber int       `gorm:"not null" json:"version_number"`
	S3Key         string    `gorm:"not null" json:"s3_key"`
	ChangeSummary string    `json:"change_summary"`
	UploadedBy    uuid.UUID `gorm:"type:uuid;not null" json:"uploaded_by"`
	CreatedAt     time.Time `json:"created_at"`
}
