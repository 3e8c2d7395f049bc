// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/userapi/internal/model"
	"github.com/hitoshi/userapi/internal/repository"
)

// Sanitizer は自由記述テキストのサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// EventRecorder はユーザー操作のビジネスイベントを記録するインターフェース。
// metrics.Collectorが実装する。
type EventRecorder interface {
	RecordUserCreated()
	RecordUserUpdated()
	RecordUserDeleted()
	RecordDuplicateEmail()
}

// Service はユーザー管理のサービス層。
// メールアドレスの一意性とユーザーの存在確認を担う。
//
// 存在確認→書き込みの2段階は原子的ではない。競合時はDBの一意制約と
// 削除件数0の検出が最終的な判定になる。
type Service struct {
	userRepo  repository.UserRepository
	sanitizer Sanitizer
	recorder  EventRecorder
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// sanitizer、recorderはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	sanitizer Sanitizer,
	recorder EventRecorder,
) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		userRepo:  userRepo,
		sanitizer: sanitizer,
		recorder:  recorder,
		now:       time.Now,
	}
}

// ListAll は全ユーザーを返す。
func (s *Service) ListAll(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}

	slog.Info("ユーザー一覧を取得しました", slog.Int("count", len(users)))
	return users, nil
}

// GetByID は指定IDのユーザーを返す。存在しない場合はnilを返す（エラーではない）。
func (s *Service) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		slog.Info("ユーザーが見つかりません", slog.Int64("user_id", id))
	}
	return user, nil
}

// GetByEmail は指定メールアドレスのユーザーを返す。存在しない場合はnilを返す。
func (s *Service) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// Create は新しいユーザーを作成する。
// 同じメールアドレスのユーザーが既に存在する場合はDuplicateEmailエラーを返す。
func (s *Service) Create(ctx context.Context, input model.UserInput) (*model.User, error) {
	exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("メールアドレスの重複確認に失敗しました: %w", err)
	}
	if exists {
		slog.Warn("メールアドレスが既に使用されています", slog.String("email", input.Email))
		s.recorder.RecordDuplicateEmail()
		return nil, model.NewDuplicateEmailError(input.Email)
	}

	saved, err := s.userRepo.Save(ctx, &model.User{
		Name:  input.Name,
		Email: input.Email,
		Bio:   s.cleanBio(input.Bio),
	})
	if err != nil {
		return nil, s.wrapWriteError("ユーザーの作成に失敗しました", err)
	}

	s.recorder.RecordUserCreated()
	slog.Info("ユーザーを作成しました",
		slog.Int64("user_id", saved.ID),
		slog.String("email", saved.Email),
	)
	return saved, nil
}

// Update は既存ユーザーの名前・メールアドレス・Bioを置き換える。
// IDとCreatedAtは変更しない。
func (s *Service) Update(ctx context.Context, id int64, input model.UserInput) (*model.User, error) {
	existing, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing == nil {
		slog.Warn("更新対象のユーザーが見つかりません", slog.Int64("user_id", id))
		return nil, model.NewUserNotFoundError(id)
	}

	// メールアドレスを変更する場合のみ重複を確認する
	if existing.Email != input.Email {
		exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
		if err != nil {
			return nil, fmt.Errorf("メールアドレスの重複確認に失敗しました: %w", err)
		}
		if exists {
			slog.Warn("メールアドレスが既に使用されています", slog.String("email", input.Email))
			s.recorder.RecordDuplicateEmail()
			return nil, model.NewEmailAlreadyExistsError(input.Email)
		}
	}

	updated := *existing
	updated.Name = input.Name
	updated.Email = input.Email
	updated.Bio = s.cleanBio(input.Bio)

	saved, err := s.userRepo.Save(ctx, &updated)
	if err != nil {
		return nil, s.wrapWriteError("ユーザーの更新に失敗しました", err)
	}

	s.recorder.RecordUserUpdated()
	slog.Info("ユーザーを更新しました",
		slog.Int64("user_id", saved.ID),
		slog.String("email", saved.Email),
	)
	return saved, nil
}

// Delete は指定IDのユーザーを物理削除する。
func (s *Service) Delete(ctx context.Context, id int64) error {
	exists, err := s.userRepo.ExistsByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ユーザーの存在確認に失敗しました: %w", err)
	}
	if !exists {
		slog.Warn("削除対象のユーザーが見つかりません", slog.Int64("user_id", id))
		return model.NewUserNotFoundError(id)
	}

	if err := s.userRepo.DeleteByID(ctx, id); err != nil {
		return s.wrapWriteError("ユーザーの削除に失敗しました", err)
	}

	s.recorder.RecordUserDeleted()
	slog.Info("ユーザーを削除しました", slog.Int64("user_id", id))
	return nil
}

// Search は名前の部分一致（大文字小文字無視）でユーザーを検索する。
func (s *Service) Search(ctx context.Context, namePart string) ([]model.User, error) {
	users, err := s.userRepo.FindByNameContaining(ctx, namePart)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}

	slog.Info("名前でユーザーを検索しました",
		slog.String("name", namePart),
		slog.Int("count", len(users)),
	)
	return users, nil
}

// maxRecentDays はRecentの基準時刻を計算する日数の上限（約2000年）。
// これを超える値ではAddDateがオーバーフローし、PostgreSQLのtimestamptzの範囲も外れる。
const maxRecentDays = 730000

// Recent は直近days日以内に作成されたユーザーを返す。
// daysが0以下でも補正しない。負の値では未来の時刻が基準になり、結果は通常空になる。
func (s *Service) Recent(ctx context.Context, days int) ([]model.User, error) {
	if days < -maxRecentDays {
		// 基準時刻が遥か未来になるため、該当するユーザーはいない
		slog.Info("最近作成されたユーザーを取得しました",
			slog.Int("days", days),
			slog.Int("count", 0),
		)
		return []model.User{}, nil
	}
	if days > maxRecentDays {
		days = maxRecentDays
	}
	cutoff := s.now().AddDate(0, 0, -days)

	users, err := s.userRepo.FindCreatedAfter(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("最近のユーザーの取得に失敗しました: %w", err)
	}

	slog.Info("最近作成されたユーザーを取得しました",
		slog.Time("cutoff", cutoff),
		slog.Int("count", len(users)),
	)
	return users, nil
}

// Stats はユーザー数の集計値。
type Stats struct {
	Total   int64 `json:"total"`
	WithBio int64 `json:"withBio"`
}

// CountWithBio はBioが設定されているユーザー数を返す。
func (s *Service) CountWithBio(ctx context.Context) (int64, error) {
	count, err := s.userRepo.CountWithBio(ctx)
	if err != nil {
		return 0, fmt.Errorf("Bio設定済みユーザー数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CountStats はユーザー総数とBio設定済みユーザー数を返す。
func (s *Service) CountStats(ctx context.Context) (*Stats, error) {
	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー数の取得に失敗しました: %w", err)
	}
	withBio, err := s.CountWithBio(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Total: total, WithBio: withBio}, nil
}

// cleanBio はBioをサニタイズし、空になった場合はnilにする。
func (s *Service) cleanBio(bio *string) *string {
	if bio == nil {
		return nil
	}
	cleaned := *bio
	if s.sanitizer != nil {
		cleaned = s.sanitizer.Sanitize(cleaned)
	}
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// wrapWriteError はリポジトリの書き込みエラーを呼び出し元に返す形に変換する。
// 一意制約違反・対象なしはドメインエラーのまま返し、それ以外は永続化エラーとしてラップする。
func (s *Service) wrapWriteError(msg string, err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsDuplicateEmail() {
			s.recorder.RecordDuplicateEmail()
		}
		return apiErr
	}
	return fmt.Errorf("%s: %w", msg, err)
}

type noopRecorder struct{}

func (noopRecorder) RecordUserCreated()    {}
func (noopRecorder) RecordUserUpdated()    {}
func (noopRecorder) RecordUserDeleted()    {}
func (noopRecorder) RecordDuplicateEmail() {}
