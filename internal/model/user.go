// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービスで管理するユーザーを表す。
// IDとCreatedAtはストアが採番・設定し、以降変更されない。
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Bio       *string   `json:"bio"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserInput は作成・更新リクエストで受け取るユーザー属性。
// id とタイムスタンプはクライアントから受け付けない。
type UserInput struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Email string  `json:"email" validate:"required,mailaddr,max=150"`
	Bio   *string `json:"bio" validate:"omitempty,max=500"`
}

// HasBio はBioが設定されているかを返す。
func (u *User) HasBio() bool {
	return u.Bio != nil
}
