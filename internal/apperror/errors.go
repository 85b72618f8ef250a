package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はドメインエラーの分類
type Kind string

const (
	KindNotAuthorized     Kind = "not_authorized"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotEditable       Kind = "not_editable"
	KindAlreadyArchived   Kind = "already_archived"
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindSessionExpired    Kind = "session_expired"
	KindServer            Kind = "server_error"
)

// Detail はフィールド単位のエラー詳細
type Detail struct {
	Path string `json:"path"`
	Info string `json:"info"`
}

// Error はワークフロー・リポジトリ層で共通のエラー
type Error struct {
	Kind    Kind
	Message string
	Details []Detail
}

// Error implements error.
func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, apperror.NotFound("")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus returns the status code used on the wire for this kind.
func (e *Error) HTTPStatus() int {
	return StatusFor(e.Kind)
}

// New は新しいエラーを作成
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf はフォーマット付きでエラーを作成
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details ...Detail) *Error {
	cp := *e
	cp.Details = append(append([]Detail(nil), e.Details...), details...)
	return &cp
}

func NotAuthorized(message string) *Error     { return New(KindNotAuthorized, message) }
func InvalidTransition(message string) *Error { return New(KindInvalidTransition, message) }
func NotEditable(message string) *Error       { return New(KindNotEditable, message) }
func AlreadyArchived(message string) *Error   { return New(KindAlreadyArchived, message) }
func Validation(message string) *Error        { return New(KindValidation, message) }
func NotFound(message string) *Error          { return New(KindNotFound, message) }
func SessionExpired(message string) *Error    { return New(KindSessionExpired, message) }
func Server(message string) *Error            { return New(KindServer, message) }

// KindOf はエラーチェーンからKindを取り出す。ドメインエラーでなければServerを返す
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServer
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// StatusFor maps a kind to its HTTP status.
func StatusFor(kind Kind) int {
	switch kind {
	case KindNotAuthorized:
		return http.StatusForbidden
	case KindInvalidTransition, KindNotEditable, KindAlreadyArchived:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindSessionExpired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ParseKind converts a wire code back into a Kind. Unknown codes map to KindServer.
func ParseKind(code string) Kind {
	switch k := Kind(code); k {
	case KindNotAuthorized, KindInvalidTransition, KindNotEditable, KindAlreadyArchived,
		KindValidation, KindNotFound, KindSessionExpired, KindServer:
		return k
	default:
		return KindServer
	}
}
