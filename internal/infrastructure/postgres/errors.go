package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// PostgreSQL のエラーコード
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidText         = "22P02"
)

// pqCode は pq.Error のエラーコードを返す（それ以外は空文字）
func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// isInvalidUUID は UUID として解釈できないIDが渡されたかを返す
// 存在しないIDと同じ扱いにする
func isInvalidUUID(err error) bool {
	return pqCode(err) == codeInvalidText
}
