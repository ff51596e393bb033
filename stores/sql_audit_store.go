package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/entitlement"
)

// SQLAuditStore persists the decision log in SQL
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) (*SQLAuditStore, error) {
	return &SQLAuditStore{db: db}, nil
}

func (s *SQLAuditStore) LogDecision(ctx context.Context, entry *entitlement.AuditEntry) error {
	metaB, _ := json.Marshal(entry.Metadata)
	q := `INSERT INTO decision_log(id, timestamp, subject_id, content_id, eligible, reason, trace_id, metadata_json) VALUES(:id, :timestamp, :subject_id, :content_id, :eligible, :reason, :trace_id, :metadata_json)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":            entry.ID,
		"timestamp":     entry.Timestamp,
		"subject_id":    entry.SubjectID,
		"content_id":    entry.ContentID,
		"eligible":      boolToInt(entry.Eligible),
		"reason":        entry.Reason,
		"trace_id":      entry.TraceID,
		"metadata_json": string(metaB),
	})
	return err
}

func (s *SQLAuditStore) GetDecisionLog(ctx context.Context, filter entitlement.AuditFilter) ([]*entitlement.AuditEntry, error) {
	q := `SELECT id, timestamp, subject_id, content_id, eligible, reason, trace_id, metadata_json FROM decision_log WHERE 1=1`
	params := map[string]any{}
	if filter.SubjectID != "" {
		q += " AND subject_id = :subject_id"
		params["subject_id"] = filter.SubjectID
	}
	if filter.ContentID != "" {
		q += " AND content_id = :content_id"
		params["content_id"] = filter.ContentID
	}
	if !filter.StartTime.IsZero() {
		q += " AND timestamp >= :start"
		params["start"] = filter.StartTime
	}
	if !filter.EndTime.IsZero() {
		q += " AND timestamp <= :end"
		params["end"] = filter.EndTime
	}
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	} else {
		q += " LIMIT 100"
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*entitlement.AuditEntry, 0)
	for r.Next() {
		var id, subject, content, reason, traceID, metaJSON string
		var timestampRaw interface{}
		var eligibleInt int
		if err := r.Scan(&id, &timestampRaw, &subject, &content, &eligibleInt, &reason, &traceID, &metaJSON); err != nil {
			return nil, err
		}
		entry := &entitlement.AuditEntry{
			ID:        id,
			Timestamp: scanTime(timestampRaw),
			SubjectID: subject,
			ContentID: content,
			Eligible:  eligibleInt != 0,
			Reason:    reason,
			TraceID:   traceID,
		}
		_ = json.Unmarshal([]byte(metaJSON), &entry.Metadata)
		out = append(out, entry)
	}
	return out, nil
}
