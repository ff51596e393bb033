package stores

import (
	"context"
	"sync"

	"github.com/oarkflow/entitlement"
)

// MemoryIdentityStore keeps subjects and roles in-memory for testing/demo.
// Absent records come back as (nil, nil).
type MemoryIdentityStore struct {
	mu       sync.RWMutex
	subjects map[string]*entitlement.Subject
	roles    map[string]*entitlement.Role
}

func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{
		subjects: make(map[string]*entitlement.Subject),
		roles:    make(map[string]*entitlement.Role),
	}
}

func (s *MemoryIdentityStore) PutSubject(ctx context.Context, subject *entitlement.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subject.ID] = subject
	return nil
}

func (s *MemoryIdentityStore) PutRole(ctx context.Context, role *entitlement.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[role.Name] = role
	return nil
}

func (s *MemoryIdentityStore) FindSubject(ctx context.Context, id string) (*entitlement.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[id]
	if !ok {
		return nil, nil
	}
	dup := *subject
	return &dup, nil
}

func (s *MemoryIdentityStore) FindRoleByName(ctx context.Context, name string) (*entitlement.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[name]
	if !ok {
		return nil, nil
	}
	dup := *role
	return &dup, nil
}

// MemoryLicenseStore keeps license records in-memory, one per content id.
type MemoryLicenseStore struct {
	mu       sync.RWMutex
	licenses map[string]*entitlement.LicenseRecord
}

func NewMemoryLicenseStore() *MemoryLicenseStore {
	return &MemoryLicenseStore{licenses: make(map[string]*entitlement.LicenseRecord)}
}

func (s *MemoryLicenseStore) FindByContentID(ctx context.Context, contentID string) (*entitlement.LicenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.licenses[contentID]
	if !ok {
		return nil, nil
	}
	dup := *record
	return &dup, nil
}

func (s *MemoryLicenseStore) Save(ctx context.Context, record *entitlement.LicenseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *record
	s.licenses[record.ContentID] = &dup
	return nil
}

func (s *MemoryLicenseStore) DeleteByContentID(ctx context.Context, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.licenses, contentID)
	return nil
}

func (s *MemoryLicenseStore) FindAll(ctx context.Context) ([]*entitlement.LicenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entitlement.LicenseRecord, 0, len(s.licenses))
	for _, record := range s.licenses {
		dup := *record
		out = append(out, &dup)
	}
	return out, nil
}

// MemoryRuleStore keeps access rules in-memory, grouped by content id.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[string][]*entitlement.Rule
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[string][]*entitlement.Rule)}
}

func (s *MemoryRuleStore) PutRule(ctx context.Context, rule *entitlement.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *rule
	s.rules[rule.ContentID] = append(s.rules[rule.ContentID], &dup)
	return nil
}

func (s *MemoryRuleStore) FindRulesByContentID(ctx context.Context, contentID string) ([]*entitlement.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules := s.rules[contentID]
	out := make([]*entitlement.Rule, 0, len(rules))
	for _, rule := range rules {
		dup := *rule
		out = append(out, &dup)
	}
	return out, nil
}

// MemoryRoleMembershipStore keeps subject->role assignments in memory.
type MemoryRoleMembershipStore struct {
	mu    sync.RWMutex
	store map[string]map[string]bool
}

func NewMemoryRoleMembershipStore() *MemoryRoleMembershipStore {
	return &MemoryRoleMembershipStore{store: make(map[string]map[string]bool)}
}

func (m *MemoryRoleMembershipStore) AssignRole(ctx context.Context, subjectID, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[subjectID]; !ok {
		m.store[subjectID] = make(map[string]bool)
	}
	m.store[subjectID][roleName] = true
	return nil
}

func (m *MemoryRoleMembershipStore) RevokeRole(ctx context.Context, subjectID, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[subjectID]; !ok {
		return nil
	}
	delete(m.store[subjectID], roleName)
	return nil
}

func (m *MemoryRoleMembershipStore) ListRoles(ctx context.Context, subjectID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0)
	if set, ok := m.store[subjectID]; ok {
		for name := range set {
			out = append(out, name)
		}
	}
	return out, nil
}

// MemoryAuditStore keeps the decision log in memory.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []*entitlement.AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{entries: make([]*entitlement.AuditEntry, 0)}
}

func (s *MemoryAuditStore) LogDecision(ctx context.Context, entry *entitlement.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryAuditStore) GetDecisionLog(ctx context.Context, filter entitlement.AuditFilter) ([]*entitlement.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*entitlement.AuditEntry, 0)
	for _, entry := range s.entries {
		if filter.SubjectID != "" && entry.SubjectID != filter.SubjectID {
			continue
		}
		if filter.ContentID != "" && entry.ContentID != filter.ContentID {
			continue
		}
		if !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime) {
			continue
		}
		result = append(result, entry)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}
