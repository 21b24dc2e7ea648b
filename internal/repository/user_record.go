package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/teamspace/internal/model"
)

// UserRecord はusersテーブルの1行をNULL許容カラムのまま保持する。
// ToAccountでドメインのmodel.Userに変換でき、セッションコーデックにもそのまま渡せる。
type UserRecord struct {
	ID                 uuid.UUID
	Name               string
	Email              string
	ProfilePicture     sql.NullString
	IsActive           bool
	LastLogin          sql.NullTime
	Password           sql.NullString
	CurrentWorkspaceID uuid.NullUUID
	CreatedAt          sql.NullTime
	UpdatedAt          sql.NullTime
}

// userColumns はUserRecord.scanTargetsと同じ順序のSELECT列。
const userColumns = `id, name, email, profile_picture, is_active, last_login, password, current_workspace_id, created_at, updated_at`

func (r *UserRecord) scanTargets() []any {
	return []any{
		&r.ID, &r.Name, &r.Email, &r.ProfilePicture, &r.IsActive,
		&r.LastLogin, &r.Password, &r.CurrentWorkspaceID, &r.CreatedAt, &r.UpdatedAt,
	}
}

// ToAccount はNULL許容カラムをアンラップしたmodel.Userを返す。
// IDが空のレコードはmodel.ErrMalformedAccountを返す。
func (r *UserRecord) ToAccount() (*model.User, error) {
	if r == nil || r.ID == uuid.Nil {
		return nil, fmt.Errorf("user record has no id: %w", model.ErrMalformedAccount)
	}

	u := &model.User{
		ID:       r.ID,
		Name:     r.Name,
		Email:    r.Email,
		IsActive: r.IsActive,
	}
	if r.ProfilePicture.Valid {
		p := r.ProfilePicture.String
		u.ProfilePicture = &p
	}
	if r.LastLogin.Valid {
		t := r.LastLogin.Time
		u.LastLogin = &t
	}
	if r.Password.Valid {
		p := r.Password.String
		u.Password = &p
	}
	if r.CurrentWorkspaceID.Valid {
		w := r.CurrentWorkspaceID.UUID
		u.CurrentWorkspaceID = &w
	}
	if r.CreatedAt.Valid {
		u.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		u.UpdatedAt = r.UpdatedAt.Time
	}
	return u, nil
}
