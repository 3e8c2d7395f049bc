package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/userapi/internal/middleware"
	"github.com/hitoshi/userapi/internal/model"
	"github.com/hitoshi/userapi/internal/user"
)

// DefaultRecentDays は /recent で days が省略された場合の日数。
const DefaultRecentDays = 7

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	ListAll(ctx context.Context) ([]model.User, error)
	// GetByID は存在しない場合 nil, nil を返す。
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByEmail は存在しない場合 nil, nil を返す。
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, input model.UserInput) (*model.User, error)
	Update(ctx context.Context, id int64, input model.UserInput) (*model.User, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, namePart string) ([]model.User, error)
	Recent(ctx context.Context, days int) ([]model.User, error)
	CountStats(ctx context.Context) (*user.Stats, error)
}

// InputValidator はリクエストボディの検証インターフェース。
// 検証前に前後の空白を除去するため、inputを書き換えることがある。
type InputValidator interface {
	ValidateUserInput(input *model.UserInput) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service     UserServiceInterface
	validator   InputValidator
	defaultDays int
}

// NewUserHandler はUserHandlerを生成する。
// defaultDaysが0以下の場合はDefaultRecentDaysを使う。
func NewUserHandler(service UserServiceInterface, validator InputValidator, defaultDays int) *UserHandler {
	if defaultDays <= 0 {
		defaultDays = DefaultRecentDays
	}
	return &UserHandler{
		service:     service,
		validator:   validator,
		defaultDays: defaultDays,
	}
}

// healthResponse は /api/users/health のレスポンス。
type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// runtimeInfoResponse は /api/users/thread-info のレスポンス。
// リクエストを処理しているgoroutineとランタイムの情報を返す。
type runtimeInfoResponse struct {
	Goroutines int       `json:"goroutines"`
	GOMAXPROCS int       `json:"gomaxprocs"`
	NumCPU     int       `json:"numCpu"`
	GoVersion  string    `json:"goVersion"`
	RequestID  string    `json:"requestId"`
	Timestamp  time.Time `json:"timestamp"`
}

// ListUsers は全ユーザーを返す。
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser は指定IDのユーザーを返す。存在しない場合はボディなしの404。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if u == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GetUserByEmail はメールアドレスの完全一致でユーザーを返す。
// GET /api/users/email/{email}
func (h *UserHandler) GetUserByEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	u, err := h.service.GetByEmail(r.Context(), email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if u == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// CreateUser はユーザーを作成する。
// POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	input, ok := h.readUserInput(w, r)
	if !ok {
		return
	}

	created, err := h.service.Create(r.Context(), *input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateUser はユーザーの名前・メールアドレス・Bioを置き換える。
// PUT /api/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}
	input, ok := h.readUserInput(w, r)
	if !ok {
		return
	}

	updated, err := h.service.Update(r.Context(), id, *input)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteUser はユーザーを削除する。
// DELETE /api/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchUsers は名前の部分一致でユーザーを検索する。
// GET /api/users/search?name=
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("name") {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "Required parameter 'name' is not present")
		return
	}

	users, err := h.service.Search(r.Context(), query.Get("name"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// RecentUsers は直近days日以内に作成されたユーザーを返す。
// GET /api/users/recent?days=7
func (h *UserHandler) RecentUsers(w http.ResponseWriter, r *http.Request) {
	days := h.defaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid value for parameter 'days': %s", raw))
			return
		}
		days = int(n)
	}

	users, err := h.service.Recent(r.Context(), days)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Stats はユーザー総数とBio設定済みユーザー数を返す。
// GET /api/users/stats
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.CountStats(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Health はユーザーサービスの稼働状態を返す。DBには問い合わせない。
// GET /api/users/health
func (h *UserHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "UP",
		Service:   "UserService",
		Timestamp: time.Now().UTC(),
	})
}

// RuntimeInfo はリクエスト処理中のランタイム情報を返す。
// GET /api/users/thread-info
func (h *UserHandler) RuntimeInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, runtimeInfoResponse{
		Goroutines: runtime.NumGoroutine(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		NumCPU:     runtime.NumCPU(),
		GoVersion:  runtime.Version(),
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		Timestamp:  time.Now().UTC(),
	})
}

// readUserInput はボディをデコードして検証する。
// 失敗時はレスポンスを書き込み、falseを返す。
func (h *UserHandler) readUserInput(w http.ResponseWriter, r *http.Request) (*model.UserInput, bool) {
	var input model.UserInput
	if err := decodeJSON(w, r, &input); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}

	if err := h.validator.ValidateUserInput(&input); err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return &input, true
}

// parseUserID はパスパラメータ {id} を数値に変換する。
// 失敗時は400を書き込み、falseを返す。
func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid user id: %s", raw))
		return 0, false
	}
	return id, true
}
