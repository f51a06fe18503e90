package middleware

import "net/http"

// NewSecurityHeadersMiddleware はJSON APIのセキュリティ関連ヘッダーを付与するミドルウェアを返す。
// 認証済みレスポンスを中間キャッシュに残さないようno-storeを指定する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
