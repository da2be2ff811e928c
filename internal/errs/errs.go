package errs

import (
	"errors"
	"fmt"
)

// Kind — вид ошибки конвейера. Транспорт маппит их в статусы сам.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindAccessDenied Kind = "access_denied"
	KindValidation   Kind = "validation"
	KindStore        Kind = "store_error"
	KindScript       Kind = "script_fault"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error // причина, если есть (обёрнутая ошибка стора и т.п.)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func AccessDenied(format string, args ...any) error {
	return &Error{Kind: KindAccessDenied, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Store(msg string, cause error) error {
	return &Error{Kind: KindStore, Msg: msg, Err: cause}
}

func Script(msg string, cause error) error {
	return &Error{Kind: KindScript, Msg: msg, Err: cause}
}

// KindOf возвращает вид ошибки; для «чужих» ошибок считаем store_error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

func IsKind(err error, k Kind) bool { return err != nil && KindOf(err) == k }
