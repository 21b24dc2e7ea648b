// Package account はアカウントの作成・照合・退会のドメインロジックを提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/teamspace/internal/metrics"
	"github.com/hitoshi/teamspace/internal/model"
	"github.com/hitoshi/teamspace/internal/repository"
	"github.com/hitoshi/teamspace/internal/security"
)

// DefaultWorkspaceName は新規アカウントに作成されるワークスペース名。
const DefaultWorkspaceName = "My Workspace"

const (
	minPasswordLength = 8
	// bcryptは72バイトを超える入力を扱えない
	maxPasswordBytes = 72
)

// LoginOrCreateInput は外部IdPでのログイン時に渡されるプロフィール情報。
type LoginOrCreateInput struct {
	Provider      string
	DisplayName   string
	ProviderID    string
	Picture       string
	Email         string
	EmailVerified bool // IdPがメールアドレスの所有を確認済みか
}

// LoginOrCreateResult はLoginOrCreateAccountの結果。
type LoginOrCreateResult struct {
	User    *model.User
	Created bool // 新規にアカウントを作成した場合true
}

// VerifyUserInput はメールアドレスとパスワードによる照合の入力。
type VerifyUserInput struct {
	Email    string
	Password string
}

// RegisterInput はメールアドレスでの新規登録の入力。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Config はアカウントサービスの設定。
type Config struct {
	BcryptCost int // 0の場合はbcrypt.DefaultCost
}

// Service はアカウント管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	guard       security.URLGuard
	sanitizer   security.NameSanitizer
	metrics     metrics.MetricsCollector
	config      Config
	now         func() time.Time

	dummyHashOnce sync.Once
	dummyHash     []byte
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	guard security.URLGuard,
	sanitizer security.NameSanitizer,
	collector metrics.MetricsCollector,
	config Config,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		guard:       guard,
		sanitizer:   sanitizer,
		metrics:     collector,
		config:      config,
		now:         time.Now,
	}
}

// LoginOrCreateAccount は外部IdPのプロフィールに対応するアカウントを返す。
// identityが登録済みならそのユーザーでログインし、
// 未登録でも同じメールアドレスのユーザーがいればidentityを紐付ける。
// どちらもない場合はユーザー、identity、デフォルトワークスペースを同時に作成する。
// 紐付けと作成はIdPが確認済みのメールアドレスに限る。
// 同じIdPのidentityが既に紐付いたユーザーには紐付けない。
// 紐付け先にパスワードがある場合は、そのパスワードと既存セッションを無効にする。
func (s *Service) LoginOrCreateAccount(ctx context.Context, in LoginOrCreateInput) (*LoginOrCreateResult, error) {
	if in.ProviderID == "" {
		return nil, model.NewProviderIDMissingError(in.Provider)
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, in.Provider, in.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		user, err := s.userRepo.FindByID(ctx, identity.UserID.String())
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("identity %s references missing user %s", identity.ID, identity.UserID)
		}
		if err := s.completeLogin(ctx, user); err != nil {
			return nil, err
		}
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID.String()),
			slog.String("provider", in.Provider),
		)
		return &LoginOrCreateResult{User: user}, nil
	}

	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, model.NewInvalidInputError("メールアドレスが取得できませんでした")
	}
	if !in.EmailVerified {
		slog.Warn("unverified email rejected",
			slog.String("provider", in.Provider),
		)
		return nil, model.NewEmailNotVerifiedError(in.Provider)
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		if !existing.IsActive {
			return nil, model.NewAccountInactiveError()
		}
		linked, err := s.identRepo.ListByUserID(ctx, existing.ID.String())
		if err != nil {
			return nil, fmt.Errorf("failed to list identities: %w", err)
		}
		for _, l := range linked {
			if l.Provider == in.Provider {
				slog.Warn("identity link refused: provider already linked",
					slog.String("user_id", existing.ID.String()),
					slog.String("provider", in.Provider),
				)
				return nil, model.NewIdentityConflictError(in.Provider)
			}
		}
		link := &model.Identity{
			ID:             uuid.New(),
			UserID:         existing.ID,
			Provider:       in.Provider,
			ProviderUserID: in.ProviderID,
			CreatedAt:      s.now(),
		}
		revokePassword := existing.Password != nil
		if err := s.userRepo.LinkIdentity(ctx, link, revokePassword); err != nil {
			return nil, fmt.Errorf("failed to link identity: %w", err)
		}
		if revokePassword {
			existing.Password = nil
			if s.sessionRepo != nil {
				if err := s.sessionRepo.DeleteByUserID(ctx, existing.ID.String()); err != nil {
					return nil, fmt.Errorf("failed to revoke sessions: %w", err)
				}
			}
		}
		if err := s.completeLogin(ctx, existing); err != nil {
			return nil, err
		}
		slog.Info("identity linked to existing user",
			slog.String("user_id", existing.ID.String()),
			slog.String("provider", in.Provider),
			slog.Bool("password_revoked", revokePassword),
		)
		return &LoginOrCreateResult{User: existing}, nil
	}

	user, err := s.createAccount(ctx, in.DisplayName, email, s.avatarURL(in.Picture), nil, in.Provider, in.ProviderID)
	if err != nil {
		return nil, err
	}
	return &LoginOrCreateResult{User: user, Created: true}, nil
}

// VerifyUser はメールアドレスとパスワードを照合し、一致したユーザーを返す。
// ユーザーが存在しない場合もパスワード不一致と同じエラーを返す。
func (s *Service) VerifyUser(ctx context.Context, in VerifyUserInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user == nil || user.Password == nil {
		// 応答時間からユーザーの存在を推測されないよう、同じコストで比較だけ行う
		_ = bcrypt.CompareHashAndPassword(s.dummyPasswordHash(), []byte(in.Password))
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(in.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, fmt.Errorf("failed to compare password: %w", err)
	}

	if err := s.completeLogin(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Register はメールアドレスとパスワードで新規アカウントを作成する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, model.NewInvalidInputError("メールアドレスの形式が正しくありません")
	}
	if len(in.Password) < minPasswordLength {
		return nil, model.NewInvalidInputError(fmt.Sprintf("パスワードは%d文字以上で入力してください", minPasswordLength))
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, model.NewInvalidInputError(fmt.Sprintf("パスワードは%dバイト以内で入力してください", maxPasswordBytes))
	}
	if s.sanitizer.Sanitize(in.Name) == "" {
		return nil, model.NewInvalidInputError("名前を入力してください")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailAlreadyExistsError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashed := string(hash)

	user, err := s.createAccount(ctx, in.Name, email, nil, &hashed, model.ProviderEmail, email)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, model.NewEmailAlreadyExistsError()
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: sessions → user（+ CASCADE: identities, workspaces）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// セッションストアがRedisの場合はCASCADEで消えないため明示的に削除する
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}

// createAccount はユーザー、identity、デフォルトワークスペースを作成する。
func (s *Service) createAccount(ctx context.Context, name, email string, picture, passwordHash *string, provider, providerUserID string) (*model.User, error) {
	now := s.now()

	displayName := s.sanitizer.Sanitize(name)
	if displayName == "" {
		displayName = localPart(email)
	}

	user := &model.User{
		ID:             uuid.New(),
		Name:           displayName,
		Email:          email,
		ProfilePicture: picture,
		IsActive:       true,
		LastLogin:      &now,
		Password:       passwordHash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	identity := &model.Identity{
		ID:             uuid.New(),
		UserID:         user.ID,
		Provider:       provider,
		ProviderUserID: providerUserID,
		CreatedAt:      now,
	}
	workspace := &model.Workspace{
		ID:        uuid.New(),
		Name:      DefaultWorkspaceName,
		OwnerID:   user.ID,
		CreatedAt: now,
	}

	if err := s.userRepo.CreateWithIdentity(ctx, user, identity, workspace); err != nil {
		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}
	if user.CurrentWorkspaceID == nil {
		wsID := workspace.ID
		user.CurrentWorkspaceID = &wsID
	}

	s.metrics.RecordAccountCreated(provider)
	slog.Info("new user created",
		slog.String("user_id", user.ID.String()),
		slog.String("email", email),
		slog.String("provider", provider),
	)
	return user, nil
}

// completeLogin は無効化チェックと最終ログイン日時の更新を行う。
func (s *Service) completeLogin(ctx context.Context, user *model.User) error {
	if !user.IsActive {
		return model.NewAccountInactiveError()
	}
	now := s.now()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID.String(), now); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	user.LastLogin = &now
	user.UpdatedAt = now
	return nil
}

// avatarURL は安全なURLのみを採用する。危険なURLは破棄してログに残す。
func (s *Service) avatarURL(raw string) *string {
	if s.guard == nil {
		return nil
	}
	safe, err := security.SafeAvatarURL(s.guard, raw)
	if err != nil {
		slog.Warn("profile picture URL rejected",
			slog.String("url", raw),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return safe
}

func (s *Service) dummyPasswordHash() []byte {
	s.dummyHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("teamspace-dummy-password"), s.config.BcryptCost)
		if err != nil {
			h = []byte{}
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
