// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/userapi/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindAll は全ユーザーを取得する。
	FindAll(ctx context.Context) ([]model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスの完全一致でユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// ExistsByEmail は指定メールアドレスのユーザーが存在するかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// FindByNameContaining は名前に部分文字列を含むユーザーを大文字小文字を区別せずに検索する。
	FindByNameContaining(ctx context.Context, namePart string) ([]model.User, error)

	// FindCreatedAfter は作成日時が指定時刻以降（境界を含む）のユーザーを取得する。
	FindCreatedAfter(ctx context.Context, t time.Time) ([]model.User, error)

	// Save はIDが0なら新規作成、それ以外は更新を行い、永続化後のユーザーを返す。
	// メールアドレスの一意制約違反はDuplicateEmailエラー、
	// 更新対象が存在しない場合はUserNotFoundエラーを返す。
	Save(ctx context.Context, user *model.User) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 削除行が0件の場合はUserNotFoundエラーを返す。
	DeleteByID(ctx context.Context, id int64) error

	// ExistsByID は指定IDのユーザーが存在するかを返す。
	ExistsByID(ctx context.Context, id int64) (bool, error)

	// Count は全ユーザー数を返す。
	Count(ctx context.Context) (int64, error)

	// CountWithBio はBioが設定されているユーザー数を返す。
	CountWithBio(ctx context.Context) (int64, error)
}
