package account

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/teamspace/internal/model"
	"github.com/hitoshi/teamspace/internal/repository"
	"github.com/hitoshi/teamspace/internal/security"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn        func(ctx context.Context, email string) (*model.User, error)
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity, workspace *model.Workspace) error
	linkIdentityFn       func(ctx context.Context, identity *model.Identity, revokePassword bool) error
	updateLastLoginFn    func(ctx context.Context, id string, at time.Time) error
	deleteByIDFn         func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity, workspace *model.Workspace) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity, workspace)
	}
	return nil
}

func (m *mockUserRepo) LinkIdentity(ctx context.Context, identity *model.Identity, revokePassword bool) error {
	if m.linkIdentityFn != nil {
		return m.linkIdentityFn(ctx, identity, revokePassword)
	}
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if m.updateLastLoginFn != nil {
		return m.updateLastLoginFn(ctx, id, at)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockIdentityRepo struct {
	findFn         func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
	listByUserIDFn func(ctx context.Context, userID string) ([]*model.Identity, error)
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findFn != nil {
		return m.findFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

func (m *mockIdentityRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Identity, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

type mockSessionRepo struct {
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error { return nil }
func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error { return nil }
func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

type mockURLGuard struct {
	validateFn func(rawURL string) error
}

func (m *mockURLGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockURLGuard) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

type mockMetrics struct {
	created []string
}

func (m *mockMetrics) RecordLogin(string, string) {}
func (m *mockMetrics) RecordSerializeFailure() {}
func (m *mockMetrics) RecordAccountCreated(provider string) { m.created = append(m.created, provider) }
func (m *mockMetrics) RecordHTTPStatus(int) {}
func (m *mockMetrics) RecordRequestLatency(time.Duration) {}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.IdentityRepository = (*mockIdentityRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ security.URLGuard = (*mockURLGuard)(nil)
