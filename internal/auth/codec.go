package auth

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/teamspace/internal/model"
)

// AccountSource はセッションに射影できるアカウントを表す。
// model.Userは自身を、repository.UserRecordはNULL許容カラムをアンラップした値を返す。
type AccountSource interface {
	ToAccount() (*model.User, error)
}

// SessionCodec はアカウントとセッションに保存する射影の相互変換を行う。
type SessionCodec struct{}

// Serialize はアカウントからセッション用の射影を作る。
// 射影はアカウントとポインタを共有しない。
// 取り出しに失敗した場合は射影を返さずにエラーを返す。
func (SessionCodec) Serialize(src AccountSource) (su *model.SessionUser, err error) {
	defer func() {
		if p := recover(); p != nil {
			su, err = nil, fmt.Errorf("panic while serializing account: %v: %w", p, model.ErrMalformedAccount)
		}
	}()

	if src == nil {
		return nil, fmt.Errorf("nil account source: %w", model.ErrMalformedAccount)
	}

	u, err := src.ToAccount()
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap account: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("account source returned nil: %w", model.ErrMalformedAccount)
	}
	if u.ID == uuid.Nil {
		return nil, fmt.Errorf("account has no id: %w", model.ErrMalformedAccount)
	}

	su = &model.SessionUser{
		ID:             u.ID.String(),
		Name:           u.Name,
		Email:          u.Email,
		ProfilePicture: copyString(u.ProfilePicture),
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
		// nilのままJSONではnullとして保存される
		Password: copyString(u.Password),
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		su.LastLogin = &t
	}
	if u.CurrentWorkspaceID != nil {
		su.CurrentWorkspaceID = u.CurrentWorkspaceID.String()
	}

	return su, nil
}

// Deserialize はセッションに保存された射影をそのままリクエストの認証済みユーザーとして返す。
// アカウントストアへの再取得は行わない。
func (SessionCodec) Deserialize(su *model.SessionUser) (*model.SessionUser, error) {
	return su, nil
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
