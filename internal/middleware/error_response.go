package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// InternalServerErrorMessage は500応答でクライアントに返す固定メッセージ。
const InternalServerErrorMessage = "Internal server error"

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Error:     message,
		Timestamp: time.Now().UTC(),
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, InternalServerErrorMessage)
}
