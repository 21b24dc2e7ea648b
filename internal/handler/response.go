package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/teamspace/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 1 << 16

// userResponse は/auth/meなどで返すログインユーザーの公開表現。
// パスワードハッシュは含めない。
type userResponse struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	ProfilePicture     *string    `json:"profilePicture"`
	IsActive           bool       `json:"isActive"`
	LastLogin          *time.Time `json:"lastLogin"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	CurrentWorkspaceID string     `json:"currentWorkspaceId,omitempty"`
}

// toUserResponse はセッションに保存されたユーザー情報を公開表現に変換する。
func toUserResponse(su *model.SessionUser) userResponse {
	return userResponse{
		ID:                 su.ID,
		Name:               su.Name,
		Email:              su.Email,
		ProfilePicture:     su.ProfilePicture,
		IsActive:           su.IsActive,
		LastLogin:          su.LastLogin,
		CreatedAt:          su.CreatedAt,
		UpdatedAt:          su.UpdatedAt,
		CurrentWorkspaceID: su.CurrentWorkspaceID,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディを1つのJSONオブジェクトとしてdstに読み込む。
// 未知のフィールドや後続データがある場合はエラーを返す。
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
