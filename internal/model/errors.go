// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// APIError はクライアントに返すビジネスルール違反エラーを表す。
// Messageはそのままレスポンスの error フィールドに載る。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, user, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeDuplicateEmail = "DUPLICATE_EMAIL"
	ErrCodeUserNotFound   = "USER_NOT_FOUND"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// NewDuplicateEmailError はユーザー作成時のメールアドレス重複エラーを生成する。
func NewDuplicateEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  fmt.Sprintf("User with email %s already exists", email),
		Category: "user",
	}
}

// NewEmailAlreadyExistsError はユーザー更新時のメールアドレス重複エラーを生成する。
func NewEmailAlreadyExistsError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  fmt.Sprintf("Email %s already exists", email),
		Category: "user",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("User not found with id: %d", id),
		Category: "user",
	}
}

// NewInvalidRequestError はリクエストの形式不正エラーを生成する。
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
	}
}

// IsDuplicateEmail はerrがメールアドレス重複エラーかを返す。
func (e *APIError) IsDuplicateEmail() bool {
	return e.Code == ErrCodeDuplicateEmail
}

// IsNotFound はerrがユーザー未検出エラーかを返す。
func (e *APIError) IsNotFound() bool {
	return e.Code == ErrCodeUserNotFound
}

// ValidationError はフィールド単位の入力検証エラー。
// Fieldsのキーはリクエストボディ上のJSONフィールド名。
type ValidationError struct {
	Fields map[string]string
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
