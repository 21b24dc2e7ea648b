// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeProviderIDMissing  = "PROVIDER_ID_MISSING"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAccountInactive    = "ACCOUNT_INACTIVE"
	ErrCodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	ErrCodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	ErrCodeIdentityConflict   = "IDENTITY_CONFLICT"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFTokenInvalid   = "CSRF_TOKEN_INVALID"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// ErrMalformedAccount はセッションへの射影に必要な項目が欠けたアカウントレコードを表す。
var ErrMalformedAccount = errors.New("malformed account record")

// NewProviderIDMissingError はIdPから利用者ID(sub)が返されなかった場合のエラーを生成する。
func NewProviderIDMissingError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderIDMissing,
		Message:  fmt.Sprintf("%sのユーザーID(sub)が取得できませんでした。", provider),
		Category: "auth",
		Action:   "もう一度ログインをお試しください。",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワードが一致しない場合のエラーを生成する。
// ユーザーの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAccountInactiveError は無効化されたアカウントでログインしようとした場合のエラーを生成する。
func NewAccountInactiveError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountInactive,
		Message:  "このアカウントは無効化されています。",
		Category: "auth",
		Action:   "管理者にお問い合わせください。",
	}
}

// NewEmailAlreadyExistsError は登録済みのメールアドレスで新規登録しようとした場合のエラーを生成する。
func NewEmailAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyExists,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "ログイン画面からログインしてください。",
	}
}

// NewEmailNotVerifiedError はIdPがメールアドレスの所有を確認していない場合のエラーを生成する。
func NewEmailNotVerifiedError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotVerified,
		Message:  fmt.Sprintf("%sアカウントのメールアドレスが確認されていません。", provider),
		Category: "auth",
		Action:   "メールアドレスの確認を済ませてから再度ログインしてください。",
	}
}

// NewIdentityConflictError は同じIdPの別アカウントが既に紐付いたユーザーに紐付けようとした場合のエラーを生成する。
func NewIdentityConflictError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeIdentityConflict,
		Message:  fmt.Sprintf("このメールアドレスのユーザーには別の%sアカウントが紐付いています。", provider),
		Category: "auth",
		Action:   "以前に使用したアカウントでログインしてください。",
	}
}

// NewInvalidInputError は入力値が不正な場合のエラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthorizedError は未認証リクエストのエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewRateLimitedError はログイン試行などがレート制限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFTokenInvalidError はCSRFトークンが欠落または一致しない場合のエラーを生成する。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "リクエストを検証できませんでした。",
		Category: "auth",
		Action:   "ページを再読み込みして再度お試しください。",
	}
}

// NewInternalError は内部エラーの利用者向け表現を生成する。
// 詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
