package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	"github.com/generyand/umdc-cec-system-sub001/internal/repository"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return a.err
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type dispatcherStub struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (d *dispatcherStub) Dispatch(ctx context.Context, notifications ...models.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, notifications...)
}

func (d *dispatcherStub) forUser(userID string) []models.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.Notification
	for _, n := range d.sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type userDirectoryStub struct {
	users   map[string]models.User
	listErr error
}

func newUserDirectory(users ...models.User) *userDirectoryStub {
	dir := &userDirectoryStub{users: make(map[string]models.User)}
	for _, u := range users {
		dir.users[u.ID] = u
	}
	return dir
}

func (d *userDirectoryStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (d *userDirectoryStub) ListActiveByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	var out []models.User
	for _, u := range d.users {
		if u.Role == role && u.Active {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// workflowStore is an in-memory proposals table plus approval ledger that honours the same
// conditional-update contract as the SQL repositories.
type workflowStore struct {
	mu        sync.Mutex
	proposals map[string]models.Proposal
	steps     map[string][]models.ApprovalStep
}

func newWorkflowStore() *workflowStore {
	return &workflowStore{
		proposals: make(map[string]models.Proposal),
		steps:     make(map[string][]models.ApprovalStep),
	}
}

// seed stores a PENDING proposal positioned at step with earlier chain roles already approved.
func (w *workflowStore) seed(p models.Proposal, chain ApprovalChain, step models.UserRole, stepUpdated time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p.Status = models.ProposalStatusPending
	current := step
	p.CurrentApprovalStep = &current
	w.proposals[p.ID] = p

	reached := false
	for i, role := range chain.Roles() {
		s := models.ApprovalStep{
			ID:         fmt.Sprintf("%s-step-%d", p.ID, i),
			ProposalID: p.ID,
			Role:       role,
			Position:   i,
			Status:     models.ApprovalStatusPending,
			CreatedAt:  p.CreatedAt,
			UpdatedAt:  p.CreatedAt,
		}
		switch {
		case role == step:
			reached = true
			s.IsActive = true
			s.UpdatedAt = stepUpdated
		case !reached:
			s.Status = models.ApprovalStatusApproved
		}
		w.steps[p.ID] = append(w.steps[p.ID], s)
	}
}

func (w *workflowStore) proposal(id string) models.Proposal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.proposals[id]
}

func (w *workflowStore) ledger(id string) []models.ApprovalStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.ApprovalStep(nil), w.steps[id]...)
}

func (w *workflowStore) Create(ctx context.Context, exec sqlx.ExtContext, proposal *models.Proposal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if proposal.ID == "" {
		proposal.ID = fmt.Sprintf("proposal-%d", len(w.proposals)+1)
	}
	w.proposals[proposal.ID] = *proposal
	return nil
}

func (w *workflowStore) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.proposals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (w *workflowStore) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Proposal, error) {
	return w.GetByID(ctx, id)
}

func (w *workflowStore) UpdateState(ctx context.Context, exec sqlx.ExtContext, params repository.UpdateProposalStateParams) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.proposals[params.ID]
	if !ok || p.Status != params.ExpectedStatus || !sameRole(p.CurrentApprovalStep, params.ExpectedStep) {
		return sql.ErrNoRows
	}
	p.Status = params.Status
	p.CurrentApprovalStep = params.Step
	p.UpdatedAt = params.UpdatedAt
	w.proposals[params.ID] = p
	return nil
}

func (w *workflowStore) ListPendingByStep(ctx context.Context, step models.UserRole) ([]models.Proposal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []models.Proposal
	for _, p := range w.proposals {
		if p.Status == models.ProposalStatusPending && p.CurrentApprovalStep != nil && *p.CurrentApprovalStep == step {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (w *workflowStore) CreateSteps(ctx context.Context, exec sqlx.ExtContext, proposalID string, chain []models.UserRole, at time.Time) ([]models.ApprovalStep, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	steps := make([]models.ApprovalStep, 0, len(chain))
	for i, role := range chain {
		steps = append(steps, models.ApprovalStep{
			ID:         fmt.Sprintf("%s-step-%d", proposalID, i),
			ProposalID: proposalID,
			Role:       role,
			Position:   i,
			Status:     models.ApprovalStatusPending,
			IsActive:   i == 0,
			CreatedAt:  at,
			UpdatedAt:  at,
		})
	}
	w.steps[proposalID] = steps
	return steps, nil
}

func (w *workflowStore) ListByProposal(ctx context.Context, proposalID string) ([]models.ApprovalStep, error) {
	return w.ledger(proposalID), nil
}

func (w *workflowStore) Decide(ctx context.Context, exec sqlx.ExtContext, params repository.DecideStepParams) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	steps := w.steps[params.ProposalID]
	for i := range steps {
		s := &steps[i]
		if s.Role != params.Role {
			continue
		}
		if s.Status != models.ApprovalStatusPending || !s.IsActive {
			return sql.ErrNoRows
		}
		decidedBy := params.DecidedBy
		decidedAt := params.DecidedAt
		s.Status = params.Status
		s.Comment = params.Comment
		s.ApprovedBy = &decidedBy
		s.ApprovedAt = &decidedAt
		s.IsActive = false
		s.UpdatedAt = decidedAt
		return nil
	}
	return sql.ErrNoRows
}

func (w *workflowStore) Activate(ctx context.Context, exec sqlx.ExtContext, proposalID string, role models.UserRole, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	steps := w.steps[proposalID]
	for i := range steps {
		if steps[i].Role == role && steps[i].Status == models.ApprovalStatusPending {
			steps[i].IsActive = true
			steps[i].UpdatedAt = at
			return nil
		}
	}
	return sql.ErrNoRows
}

func (w *workflowStore) ResetForResubmission(ctx context.Context, exec sqlx.ExtContext, proposalID string, firstRole models.UserRole, at time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	steps := w.steps[proposalID]
	if len(steps) == 0 {
		return sql.ErrNoRows
	}
	for i := range steps {
		steps[i].Status = models.ApprovalStatusPending
		steps[i].Comment = nil
		steps[i].ApprovedBy = nil
		steps[i].ApprovedAt = nil
		steps[i].IsActive = steps[i].Role == firstRole
		steps[i].UpdatedAt = at
	}
	return nil
}

func sameRole(a, b *models.UserRole) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type materializerStub struct {
	calls []string
	err   error
}

func (m *materializerStub) CreateFromProposal(ctx context.Context, tx *sqlx.Tx, proposal *models.Proposal) (*models.Activity, error) {
	m.calls = append(m.calls, proposal.ID)
	if m.err != nil {
		return nil, m.err
	}
	return &models.Activity{
		ID:         "activity-" + proposal.ID,
		Title:      proposal.Title,
		TargetDate: proposal.TargetDate,
		Status:     models.ActivityStatusUpcoming,
		ProposalID: &proposal.ID,
	}, nil
}

// memoryCache is a CacheRepository backed by a map.
type memoryCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			delete(m.items, k)
		}
	}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok
}

func strPtr(v string) *string {
	return &v
}
