package core

import (
	"context"
	"errors"
)

// Status задает словарь статусов конверта результата.
type Status string

const (
	StatusOK          Status = "ok"
	StatusError       Status = "error"
	StatusTimeout     Status = "timeout"
	StatusUnavailable Status = "unavailable"
)

// Коды ошибок, общие для всех модулей.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeStartFailed     = "start_failed"
	CodeCanceled        = "canceled"
	CodeTimeout         = "timeout"
	CodeUnknownCommand  = "unknown_command"
)

// Response описывает унифицированный результат выполнения команды.
type Response struct {
	Status    Status      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// OK сообщает, завершилась ли команда со статусом ok.
func (r Response) OK() bool { return r.Status == StatusOK }

// Failure описывает причину неуспеха.
type Failure struct {
	Code    string
	Message string
}

// Result задает типизированный конверт, который возвращают helper-функции модулей.
// Data заполнен для ok; для timeout содержит частичный вывод, если он есть.
// Failure заполнен только при Status != ok.
type Result[T any] struct {
	Status  Status
	Data    T
	Failure *Failure

	attached bool
}

// OK строит успешный результат.
func OK[T any](data T) Result[T] {
	return Result[T]{Status: StatusOK, Data: data}
}

// Fail строит результат со статусом error.
func Fail[T any](code, msg string) Result[T] {
	return Result[T]{Status: StatusError, Failure: &Failure{Code: code, Message: msg}}
}

// Unavailable строит результат для отсутствующей внешней зависимости.
func Unavailable[T any](code, msg string) Result[T] {
	return Result[T]{Status: StatusUnavailable, Failure: &Failure{Code: code, Message: msg}}
}

// TimedOut строит результат для превышенного ожидания с частичными данными.
func TimedOut[T any](partial T, msg string) Result[T] {
	return Result[T]{Status: StatusTimeout, Data: partial, Failure: &Failure{Code: CodeTimeout, Message: msg}}
}

// WithData прикладывает данные к неуспешному результату.
func (r Result[T]) WithData(data T) Result[T] {
	r.Data = data
	r.attached = true
	return r
}

// Response стирает тип для передачи через реестр и транспорты.
func (r Result[T]) Response() Response {
	resp := Response{Status: r.Status}
	if r.Status == StatusOK || r.Status == StatusTimeout || r.attached {
		resp.Data = r.Data
	}
	if r.Failure != nil {
		resp.ErrorCode = r.Failure.Code
		resp.Error = r.Failure.Message
	}
	return resp
}

// CommandProvider определяет контракт для модулей.
type CommandProvider interface {
	Name() string
	Commands() []string
	Init(ctx context.Context) error
	Execute(ctx context.Context, cmd string, args Args) (Response, error)
}

// ErrInvalidArguments оборачивается модулями при невалидных аргументах вызова.
var ErrInvalidArguments = errInvalidArguments

// IsInvalidArguments проверяет, вызвана ли ошибка невалидными аргументами.
func IsInvalidArguments(err error) bool {
	return errors.Is(err, errInvalidArguments)
}
