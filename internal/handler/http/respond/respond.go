// Package respond writes JSON responses and keeps internal error detail
// out of client-facing bodies.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// safeFragments marks validation-style messages that may be echoed back
// to the caller verbatim. Anything else is treated as internal detail.
var safeFragments = []string{
	"required",
	"invalid",
	"not found",
	"already exists",
	"must be",
	"must not",
	"cannot be",
	"too long",
	"too short",
	"unknown",
	"exceed",
	"disabled",
	"unsupported",
}

// JSON writes v as a JSON body with the given status code. A nil v sends
// just the status line and headers.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// ヘッダー送信済みのためエラー応答は返せない。ログのみ。
		slog.Default().Error("failed to encode JSON response",
			slog.Int("status_code", code),
			slog.Any("error", err))
	}
}

// Error writes the error message as {"error": ...} with the given status.
func Error(w http.ResponseWriter, code int, err error) {
	JSON(w, code, map[string]string{"error": err.Error()})
}

// SafeError returns validation-style errors to the caller as-is, and
// replaces everything else (all 5xx, driver errors, anything not matching
// safeFragments) with a generic body while logging the sanitized detail.
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}

	msg := err.Error()

	// 500系は内容に関係なく内部エラー扱い
	safe := code < 500 && containsSafeFragment(msg)

	if safe {
		JSON(w, code, map[string]string{"error": msg})
		return
	}

	slog.Default().Error("internal server error",
		slog.String("status", http.StatusText(code)),
		slog.Int("code", code),
		slog.Any("error", SanitizeError(err)))
	JSON(w, code, map[string]string{"error": "internal server error"})
}

func containsSafeFragment(msg string) bool {
	lower := strings.ToLower(msg)
	for _, frag := range safeFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
