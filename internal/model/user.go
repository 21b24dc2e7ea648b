// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/google/uuid"
)

// 認証プロバイダー識別子。identities.providerに格納される。
const (
	ProviderGoogle = "google"
	ProviderEmail  = "email"
)

// User はアカウントレコードを表す。
// アカウントサービスのみが作成・更新する。
type User struct {
	ID                 uuid.UUID
	Name               string
	Email              string
	ProfilePicture     *string
	IsActive           bool
	LastLogin          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Password           *string    // bcryptハッシュ。Googleのみで登録したユーザーはnil
	CurrentWorkspaceID *uuid.UUID // 未選択の場合はnil
}

// ToAccount はUser自身を返す。
// リポジトリ層のレコード型と同じ取り出し口でセッションコーデックに渡すために用意している。
func (u *User) ToAccount() (*User, error) {
	return u, nil
}

// Identity は外部IdPまたはメールアドレスとの紐付け情報を表す。
type Identity struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Workspace はユーザーが所属するワークスペースを表す。
// 新規アカウント作成時にデフォルトのワークスペースが1つ作られる。
type Workspace struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	CreatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// DataにはログインしたユーザーのSessionUserがそのまま保持される。
type Session struct {
	ID        string
	UserID    string
	Data      *SessionUser
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionUser はセッションストアに保存されるユーザー情報の射影。
// Userとはポインタを共有しない値のコピーで、ログイン時に作られ、再ログインまで変更されない。
//
// Passwordはomitemptyを付けず、未設定の場合はJSONでnullとして明示的に保存する。
// CurrentWorkspaceIDは未設定の場合キー自体を出力しない。
type SessionUser struct {
	ID                 string     `json:"_id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	ProfilePicture     *string    `json:"profilePicture"`
	IsActive           bool       `json:"isActive"`
	LastLogin          *time.Time `json:"lastLogin"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	Password           *string    `json:"password"`
	CurrentWorkspaceID string     `json:"currentWorkspaceId,omitempty"`
}
