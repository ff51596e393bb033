package stores

import (
	"context"

	"github.com/oarkflow/squealx"
)

// SQLRoleMembershipStore implements RoleMembershipStore backed by a SQL DB (squealx)
type SQLRoleMembershipStore struct {
	db *squealx.DB
}

func NewSQLRoleMembershipStore(db *squealx.DB) *SQLRoleMembershipStore {
	return &SQLRoleMembershipStore{db: db}
}

func (s *SQLRoleMembershipStore) AssignRole(ctx context.Context, subjectID, roleName string) error {
	q := `INSERT OR IGNORE INTO role_members(subject_id, role_name) VALUES(:subject_id, :role_name)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"subject_id": subjectID, "role_name": roleName})
	return err
}

func (s *SQLRoleMembershipStore) RevokeRole(ctx context.Context, subjectID, roleName string) error {
	q := `DELETE FROM role_members WHERE subject_id = :subject_id AND role_name = :role_name`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"subject_id": subjectID, "role_name": roleName})
	return err
}

func (s *SQLRoleMembershipStore) ListRoles(ctx context.Context, subjectID string) ([]string, error) {
	out := make([]string, 0)
	q := `SELECT role_name FROM role_members WHERE subject_id = :subject_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"subject_id": subjectID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	for r.Next() {
		var role string
		if err := r.Scan(&role); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}
