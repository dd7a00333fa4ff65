package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/docshield/docshield-backend/internal/domain"
	"github.com/docshield/docshield-backend/internal/platform/logger"
)

// ErrRegistryUnavailable reports that the registry backend could not be
// reached. Callers must distinguish it from a lookup miss: an outage reported
// as "not found" would let an unverifiable document read as fraudulent, and a
// fraudulent one slip through a retry.
var ErrRegistryUnavailable = errors.New("registry unavailable")

// DocumentRepo is the registry access contract. FindByID returns (nil, nil)
// on a genuine miss; connectivity problems surface as ErrRegistryUnavailable.
type DocumentRepo interface {
	Upsert(ctx context.Context, rec *domain.DocumentRecord) error
	FindByID(ctx context.Context, docID string) (*domain.DocumentRecord, error)
	ListAll(ctx context.Context) ([]*domain.DocumentRecord, error)
	Backend() string
}

type gormDocumentRepo struct {
	db      *gorm.DB
	log     *logger.Logger
	backend string
}

func NewGormDocumentRepo(db *gorm.DB, baseLog *logger.Logger, backend string) DocumentRepo {
	return &gormDocumentRepo{
		db:      db,
		log:     baseLog.With("repo", "DocumentRepo", "backend", backend),
		backend: backend,
	}
}

func (r *gormDocumentRepo) Upsert(ctx context.Context, rec *domain.DocumentRecord) error {
	if rec == nil || rec.DocID == "" {
		return errors.New("document record requires doc_id")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "doc_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"holder_name", "doc_type", "issue_date", "expiry_date",
				"additional", "file_hash", "visual_hash", "perceptual_hash",
				"text_features", "bound_hash", "verify_url",
			}),
		}).
		Create(rec).Error
}

func (r *gormDocumentRepo) FindByID(ctx context.Context, docID string) (*domain.DocumentRecord, error) {
	if docID == "" {
		return nil, nil
	}
	var rec domain.DocumentRecord
	err := r.db.WithContext(ctx).
		Where("doc_id = ?", docID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *gormDocumentRepo) ListAll(ctx context.Context) ([]*domain.DocumentRecord, error) {
	var recs []*domain.DocumentRecord
	err := r.db.WithContext(ctx).
		Order("issued_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *gormDocumentRepo) Backend() string { return r.backend }
