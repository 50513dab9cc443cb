package respond

import (
	"regexp"
)

var (
	// ベンダー認証トークンパターン（32桁の16進数）
	// 注意: メッセージSID（SM + 32桁）を巻き込まないよう単語境界で区切る
	vendorTokenPattern = regexp.MustCompile(`\b[0-9a-f]{32}\b`)

	// Basic認証ヘッダパターン
	basicAuthPattern = regexp.MustCompile(`(?i)(basic )[a-zA-Z0-9+/=]{8,}`)

	// URL埋め込みクレデンシャルパターン（DSNやSMTPリレーURL内）
	urlCredentialPattern = regexp.MustCompile(`://([^:/?#]+):([^@]+)@`)
)

// SanitizeError は機密情報をマスクしたエラーメッセージを返す
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()

	// ベンダートークンのマスク
	msg = vendorTokenPattern.ReplaceAllString(msg, "****")
	msg = basicAuthPattern.ReplaceAllString(msg, "${1}****")

	// URL内パスワードのマスク
	msg = urlCredentialPattern.ReplaceAllString(msg, "://$1:****@")

	return msg
}
