// Package auth はログインストラテジーとセッションへのシリアライズを提供する。
//
// ストラテジーは資格情報の検証やアカウントの検索・作成をaccountパッケージに委譲し、
// 結果をResultとして返す。エラーはResult.Errだけで伝わり、panicも呼び出し元へは漏らさない。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/teamspace/internal/account"
	"github.com/hitoshi/teamspace/internal/model"
)

// ストラテジー名。メトリクスのラベルとログに使用する。
const (
	StrategyGoogle = "google"
	StrategyLocal  = "local"
)

// ProviderProfile は外部IdPが認証済みとして返したユーザー情報。
// アカウントの解決に1回だけ使われる。
type ProviderProfile struct {
	Provider      string
	ID            string // IdPが払い出すsubject ID。アカウント照合の永続キー
	DisplayName   string
	Email         string
	EmailVerified bool // IdPがメールアドレスの所有を確認済みか
	Picture       string
}

// Result はストラテジーの認証結果。
// 成功時はPrincipalのみ、失敗時はErrのみが設定される。
type Result struct {
	Principal *model.User
	Err       error
	// Message はユーザーに表示できる失敗理由。ローカルログインの失敗時のみ設定される。
	Message string
}

// OK は認証に成功したかを返す。
func (r Result) OK() bool {
	return r.Err == nil && r.Principal != nil
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*ProviderProfile, error)
}

// AccountResolver は外部IdPのプロフィールからアカウントを検索または作成する。
type AccountResolver interface {
	LoginOrCreateAccount(ctx context.Context, in account.LoginOrCreateInput) (*account.LoginOrCreateResult, error)
}

// CredentialVerifier はメールアドレスとパスワードを照合する。
type CredentialVerifier interface {
	VerifyUser(ctx context.Context, in account.VerifyUserInput) (*model.User, error)
}

// errNoPrincipal は委譲先がエラーなしでユーザーを返さなかった場合のエラー。
var errNoPrincipal = errors.New("account service returned no user")

// GoogleStrategy はGoogleでのログインをアカウントに対応付ける。
// 状態を持たないため複数のリクエストから同時に使用できる。
type GoogleStrategy struct {
	resolver AccountResolver
}

// NewGoogleStrategy はGoogleStrategyを生成する。
func NewGoogleStrategy(resolver AccountResolver) *GoogleStrategy {
	return &GoogleStrategy{resolver: resolver}
}

// Authenticate はプロフィールに対応するアカウントを解決する。
// subject IDがない場合はアカウント解決を呼ばずに失敗する。
// 成功時のPrincipalはAccountResolverが返したポインタそのもの。
func (s *GoogleStrategy) Authenticate(ctx context.Context, r *http.Request, profile ProviderProfile) (res Result) {
	defer recoverInto(&res, StrategyGoogle)

	if profile.ID == "" {
		return Result{Err: model.NewProviderIDMissingError("Google")}
	}

	out, err := s.resolver.LoginOrCreateAccount(ctx, account.LoginOrCreateInput{
		Provider:      model.ProviderGoogle,
		DisplayName:   profile.DisplayName,
		ProviderID:    profile.ID,
		Picture:       profile.Picture,
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
	})
	if err != nil {
		return Result{Err: err}
	}
	if out == nil || out.User == nil {
		return Result{Err: errNoPrincipal}
	}

	return Result{Principal: out.User}
}

// LocalStrategy はメールアドレスとパスワードでのログインを扱う。
type LocalStrategy struct {
	verifier CredentialVerifier
}

// NewLocalStrategy はLocalStrategyを生成する。
func NewLocalStrategy(verifier CredentialVerifier) *LocalStrategy {
	return &LocalStrategy{verifier: verifier}
}

// Authenticate は資格情報を照合する。
// 失敗時はErrに加えて、ユーザーに表示するMessageを設定する。
func (s *LocalStrategy) Authenticate(ctx context.Context, email, password string) (res Result) {
	defer recoverInto(&res, StrategyLocal)

	user, err := s.verifier.VerifyUser(ctx, account.VerifyUserInput{Email: email, Password: password})
	if err != nil {
		return Result{Err: err, Message: displayMessage(err)}
	}
	if user == nil {
		return Result{Err: errNoPrincipal, Message: errNoPrincipal.Error()}
	}

	return Result{Principal: user}
}

// displayMessage はAPIErrorであればそのメッセージを、それ以外はエラー文字列を返す。
func displayMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// recoverInto は委譲先のpanicをResult.Errに変換する。
func recoverInto(res *Result, strategy string) {
	if p := recover(); p != nil {
		err := fmt.Errorf("%s strategy panicked: %v", strategy, p)
		slog.Error("panic recovered in auth strategy",
			slog.String("strategy", strategy),
			slog.String("error", err.Error()),
		)
		*res = Result{Err: err}
		if strategy == StrategyLocal {
			res.Message = err.Error()
		}
	}
}
