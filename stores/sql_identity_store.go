package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/entitlement"
)

// SQLIdentityStore resolves subjects and roles from SQL (squealx).
// Role lists and permission lists are stored as JSON columns.
type SQLIdentityStore struct {
	db *squealx.DB
}

func NewSQLIdentityStore(db *squealx.DB) *SQLIdentityStore {
	return &SQLIdentityStore{db: db}
}

func (s *SQLIdentityStore) PutSubject(ctx context.Context, subject *entitlement.Subject) error {
	roles, _ := json.Marshal(subject.Roles)
	attrs, _ := json.Marshal(subject.Attrs)
	q := `INSERT INTO subjects(id, roles_json, attrs_json) VALUES(:id, :roles_json, :attrs_json)
		ON CONFLICT(id) DO UPDATE SET roles_json = :roles_json, attrs_json = :attrs_json`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         subject.ID,
		"roles_json": string(roles),
		"attrs_json": string(attrs),
	})
	return err
}

func (s *SQLIdentityStore) PutRole(ctx context.Context, role *entitlement.Role) error {
	perms, _ := json.Marshal(role.Permissions)
	q := `INSERT INTO roles(name, permissions_json) VALUES(:name, :permissions_json)
		ON CONFLICT(name) DO UPDATE SET permissions_json = :permissions_json`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"name":             role.Name,
		"permissions_json": string(perms),
	})
	return err
}

func (s *SQLIdentityStore) FindSubject(ctx context.Context, id string) (*entitlement.Subject, error) {
	q := `SELECT id, roles_json, attrs_json FROM subjects WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, nil
	}
	var idv, rolesJSON, attrsJSON string
	if err := r.Scan(&idv, &rolesJSON, &attrsJSON); err != nil {
		return nil, err
	}
	subject := &entitlement.Subject{ID: idv}
	_ = json.Unmarshal([]byte(rolesJSON), &subject.Roles)
	_ = json.Unmarshal([]byte(attrsJSON), &subject.Attrs)
	return subject, nil
}

func (s *SQLIdentityStore) FindRoleByName(ctx context.Context, name string) (*entitlement.Role, error) {
	q := `SELECT name, permissions_json FROM roles WHERE name = :name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, nil
	}
	var namev, permsJSON string
	if err := r.Scan(&namev, &permsJSON); err != nil {
		return nil, err
	}
	role := &entitlement.Role{Name: namev}
	_ = json.Unmarshal([]byte(permsJSON), &role.Permissions)
	return role, nil
}
