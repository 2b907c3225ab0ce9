package errs

import (
	"github.com/pkg/errors"
)

const (
	CodeDuplicateStream = 1001
	CodeStreamNotExist  = 1002
	CodeConnectURL      = 2001
	CodeInvalidConfig   = 2002
	CodeUnknown         = 9999
)

var (
	ErrDuplicateStream = New(CodeDuplicateStream, "duplicate stream")
	ErrStreamNotExist  = New(CodeStreamNotExist, "stream not exist")
	ErrConnectURL      = New(CodeConnectURL, "connect url error")
	ErrInvalidConfig   = New(CodeInvalidConfig, "invalid config")
)

const (
	Success = "success"
)

type Error struct {
	Code int32
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func New(code int32, msg string) error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Code 返回错误码, 包装过的错误会先解开; StreamError 返回其分类错误码
func Code(e error) int32 {
	if e == nil {
		return 0
	}
	var se *StreamError
	if errors.As(e, &se) {
		return se.Code()
	}
	var err *Error
	if !errors.As(e, &err) {
		return CodeUnknown
	}
	if err == nil {
		return 0
	}
	return err.Code
}

func Msg(e error) string {
	if e == nil {
		return Success
	}
	var se *StreamError
	if errors.As(e, &se) {
		return se.Error()
	}
	var err *Error
	if !errors.As(e, &err) {
		return "unknown error: " + e.Error()
	}
	if err == nil {
		return Success
	}
	return err.Msg
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
