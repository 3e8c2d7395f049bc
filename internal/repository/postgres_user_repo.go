package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/userapi/internal/model"
)

// pgUniqueViolation はPostgreSQLの一意制約違反エラーコード。
const pgUniqueViolation = "23505"

// emailUniqueConstraint はusers.emailの一意制約名（マイグレーションで定義）。
const emailUniqueConstraint = "users_email_unique"

const userColumns = `id, name, email, bio, created_at, updated_at`

// likeEscaper はLIKEパターンのメタ文字をエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db, now: time.Now}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	user := &model.User{}
	var bio sql.NullString
	if err := s.Scan(&user.ID, &user.Name, &user.Email, &bio, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	if bio.Valid {
		user.Bio = &bio.String
	}
	return user, nil
}

// FindAll は全ユーザーをID順で取得する。
func (r *PostgresUserRepo) FindAll(ctx context.Context) ([]model.User, error) {
	return r.queryUsers(ctx, "find all users",
		`SELECT `+userColumns+` FROM users ORDER BY id`,
	)
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// ExistsByEmail は指定メールアドレスのユーザーが存在するかを返す。
func (r *PostgresUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence by email: %w", err)
	}
	return exists, nil
}

// FindByNameContaining は名前の部分一致（大文字小文字無視）でユーザーを検索する。
// 入力中の % と _ はワイルドカードではなく文字として扱う。
func (r *PostgresUserRepo) FindByNameContaining(ctx context.Context, namePart string) ([]model.User, error) {
	return r.queryUsers(ctx, "search users by name",
		`SELECT `+userColumns+` FROM users WHERE name ILIKE '%' || $1 || '%' ORDER BY id`,
		likeEscaper.Replace(namePart),
	)
}

// FindCreatedAfter は作成日時がt以降のユーザーを取得する。
func (r *PostgresUserRepo) FindCreatedAfter(ctx context.Context, t time.Time) ([]model.User, error) {
	return r.queryUsers(ctx, "find users created after",
		`SELECT `+userColumns+` FROM users WHERE created_at >= $1 ORDER BY created_at, id`,
		t,
	)
}

// Save はIDが0なら新規作成、それ以外は更新を行う。
// タイムスタンプはPostgreSQLの精度（マイクロ秒）に丸めてから書き込む。
func (r *PostgresUserRepo) Save(ctx context.Context, user *model.User) (*model.User, error) {
	now := r.now().UTC().Truncate(time.Microsecond)

	if user.ID == 0 {
		saved, err := scanUser(r.db.QueryRowContext(ctx,
			`INSERT INTO users (name, email, bio, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $4)
			 RETURNING `+userColumns,
			user.Name, user.Email, nullableString(user.Bio), now,
		))
		if err != nil {
			return nil, r.translateWriteError(err, user, "insert")
		}
		return saved, nil
	}

	// created_at より前の時刻で上書きしないよう GREATEST を取る
	saved, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users
		 SET name = $1, email = $2, bio = $3, updated_at = GREATEST($4, created_at)
		 WHERE id = $5
		 RETURNING `+userColumns,
		user.Name, user.Email, nullableString(user.Bio), now, user.ID,
	))
	if err == sql.ErrNoRows {
		return nil, model.NewUserNotFoundError(user.ID)
	}
	if err != nil {
		return nil, r.translateWriteError(err, user, "update")
	}
	return saved, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 削除行が0件の場合はUserNotFoundエラーを返す。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewUserNotFoundError(id)
	}
	return nil
}

// ExistsByID は指定IDのユーザーが存在するかを返す。
func (r *PostgresUserRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence by ID: %w", err)
	}
	return exists, nil
}

// Count は全ユーザー数を返す。
func (r *PostgresUserRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CountWithBio はBioが設定されているユーザー数を返す。
func (r *PostgresUserRepo) CountWithBio(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE bio IS NOT NULL`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users with bio: %w", err)
	}
	return count, nil
}

// queryUsers は複数行を返すクエリを実行してユーザーのスライスに変換する。
// 該当なしの場合は空スライス（nilではない）を返す。
func (r *PostgresUserRepo) queryUsers(ctx context.Context, op, query string, args ...any) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// translateWriteError はINSERT/UPDATE時のドライバエラーをドメインエラーに変換する。
// email の一意制約違反は事前チェックをすり抜けた重複として扱う。
func (r *PostgresUserRepo) translateWriteError(err error, user *model.User, op string) error {
	if isEmailUniqueViolation(err) {
		if user.ID == 0 {
			return model.NewDuplicateEmailError(user.Email)
		}
		return model.NewEmailAlreadyExistsError(user.Email)
	}
	return fmt.Errorf("failed to %s user: %w", op, err)
}

func isEmailUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pgUniqueViolation && pqErr.Constraint == emailUniqueConstraint
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
