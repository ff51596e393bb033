package stores

import (
	"context"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/entitlement"
)

// SQLRuleStore lists per-content access rules from SQL (squealx).
type SQLRuleStore struct {
	db *squealx.DB
}

func NewSQLRuleStore(db *squealx.DB) *SQLRuleStore {
	return &SQLRuleStore{db: db}
}

func (s *SQLRuleStore) PutRule(ctx context.Context, rule *entitlement.Rule) error {
	q := `INSERT OR IGNORE INTO rules(content_id, required_role, required_permission) VALUES(:content_id, :required_role, :required_permission)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"content_id":          rule.ContentID,
		"required_role":       rule.RequiredRole,
		"required_permission": rule.RequiredPermission,
	})
	return err
}

func (s *SQLRuleStore) FindRulesByContentID(ctx context.Context, contentID string) ([]*entitlement.Rule, error) {
	q := `SELECT content_id, required_role, required_permission FROM rules WHERE content_id = :content_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"content_id": contentID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*entitlement.Rule, 0)
	for r.Next() {
		var cid, role, perm string
		if err := r.Scan(&cid, &role, &perm); err != nil {
			return nil, err
		}
		out = append(out, &entitlement.Rule{ContentID: cid, RequiredRole: role, RequiredPermission: perm})
	}
	return out, nil
}
