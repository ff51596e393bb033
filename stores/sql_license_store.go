package stores

import (
	"context"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/entitlement"
)

// SQLLicenseStore persists license records in SQL (squealx). The content id
// is the primary key, Save upserts.
type SQLLicenseStore struct {
	db *squealx.DB
}

func NewSQLLicenseStore(db *squealx.DB) *SQLLicenseStore {
	return &SQLLicenseStore{db: db}
}

func (s *SQLLicenseStore) FindByContentID(ctx context.Context, contentID string) (*entitlement.LicenseRecord, error) {
	q := `SELECT content_id, owner_subject_id, created_at, expiry_at FROM licenses WHERE content_id = :content_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"content_id": contentID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, nil
	}
	var cid, owner string
	var createdRaw, expiryRaw interface{}
	if err := r.Scan(&cid, &owner, &createdRaw, &expiryRaw); err != nil {
		return nil, err
	}
	return &entitlement.LicenseRecord{
		ContentID:      cid,
		OwnerSubjectID: owner,
		CreatedAt:      scanTime(createdRaw),
		ExpiryAt:       scanTime(expiryRaw),
	}, nil
}

func (s *SQLLicenseStore) Save(ctx context.Context, record *entitlement.LicenseRecord) error {
	q := `INSERT INTO licenses(content_id, owner_subject_id, created_at, expiry_at) VALUES(:content_id, :owner_subject_id, :created_at, :expiry_at)
		ON CONFLICT(content_id) DO UPDATE SET owner_subject_id = :owner_subject_id, created_at = :created_at, expiry_at = :expiry_at`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"content_id":       record.ContentID,
		"owner_subject_id": record.OwnerSubjectID,
		"created_at":       record.CreatedAt,
		"expiry_at":        record.ExpiryAt,
	})
	return err
}

func (s *SQLLicenseStore) DeleteByContentID(ctx context.Context, contentID string) error {
	q := `DELETE FROM licenses WHERE content_id = :content_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"content_id": contentID})
	return err
}

func (s *SQLLicenseStore) FindAll(ctx context.Context) ([]*entitlement.LicenseRecord, error) {
	q := `SELECT content_id, owner_subject_id, created_at, expiry_at FROM licenses`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*entitlement.LicenseRecord, 0)
	for r.Next() {
		var cid, owner string
		var createdRaw, expiryRaw interface{}
		if err := r.Scan(&cid, &owner, &createdRaw, &expiryRaw); err != nil {
			return nil, err
		}
		out = append(out, &entitlement.LicenseRecord{
			ContentID:      cid,
			OwnerSubjectID: owner,
			CreatedAt:      scanTime(createdRaw),
			ExpiryAt:       scanTime(expiryRaw),
		})
	}
	return out, nil
}
