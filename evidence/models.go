package evidence

import "time"

// Kind classifies a piece of submitted evidence.
type Kind string

const (
	KindDocument       Kind = "document"
	KindPhoto          Kind = "photo"
	KindCorrespondence Kind = "correspondence"
	KindReceipt        Kind = "receipt"
	KindContract       Kind = "contract"
	KindOther          Kind = "other"
)

// ReviewStatus is the mediator's verdict on a piece of evidence.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewAccepted ReviewStatus = "accepted"
	ReviewRejected ReviewStatus = "rejected"
)

// FileMeta describes the stored file. StorageKey points into the blob
// store owned by the surrounding platform.
type FileMeta struct {
	Name        string
	ContentType string
	SizeBytes   int64
	StorageKey  string
}

// Record mirrors the dispute_evidence table. Rows are created on
// submission and mutated only by review; superseded evidence stays for
// audit.
type Record struct {
	ID        string
	DisputeID string

	Name        string
	Description string
	Kind        Kind
	File        FileMeta

	SubmitterID   string
	SubmitterName string
	SubmitterRole string

	ReviewStatus ReviewStatus
	ReviewerID   *string
	ReviewerName *string
	ReviewNotes  *string
	ReviewedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func validKind(k Kind) bool {
	switch k {
	case KindDocument, KindPhoto, KindCorrespondence, KindReceipt, KindContract, KindOther:
		return true
	default:
		return false
	}
}
