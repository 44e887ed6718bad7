package health

import (
	"errors"
	"fmt"
)

var ErrUnsupportedType = errors.New("unsupported data type")

// ErrorKind класс ошибки синхронизации
type ErrorKind string

const (
	KindPermission   ErrorKind = "permission"
	KindQuery        ErrorKind = "query"
	KindUnitMismatch ErrorKind = "unit_mismatch"
	KindPersistence  ErrorKind = "persistence"
	KindDelivery     ErrorKind = "delivery"
	KindDecode       ErrorKind = "decode"
)

// Сентинелы для errors.Is: совпадение определяется только классом ошибки.
var (
	ErrPermission   = &Error{Kind: KindPermission}
	ErrQuery        = &Error{Kind: KindQuery}
	ErrUnitMismatch = &Error{Kind: KindUnitMismatch}
	ErrPersistence  = &Error{Kind: KindPersistence}
	ErrDelivery     = &Error{Kind: KindDelivery}
	ErrDecode       = &Error{Kind: KindDecode}
)

// Error структурированная ошибка с классом и контекстом
type Error struct {
	Kind     ErrorKind
	Op       string
	DataType DataType
	Err      error
	Context  map[string]any
}

// NewError оборачивает err в ошибку класса kind.
func NewError(kind ErrorKind, op string, t DataType, err error) *Error {
	return &Error{Kind: kind, Op: op, DataType: t, Err: err}
}

// With добавляет поле контекста и возвращает ту же ошибку.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.DataType != "" {
		msg += fmt.Sprintf(" [%s]", e.DataType)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по классу.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf возвращает класс первой структурированной ошибки в цепочке.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
