package errs

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// Category 推流错误的大类
type Category int

const (
	CategoryTransport Category = iota + 1
	CategoryEncoding
	CategoryConfiguration
	CategorySystem
)

func (c Category) String() string {
	switch c {
	case CategoryTransport:
		return "transport"
	case CategoryEncoding:
		return "encoding"
	case CategoryConfiguration:
		return "configuration"
	case CategorySystem:
		return "system"
	}
	return "unknown"
}

// Kind 具体的错误类型, 每个类型都有固定的分类、错误码和默认的可恢复标记
type Kind int

const (
	KindConnectionFailed Kind = iota + 1
	KindAuthenticationFailed
	KindNetworkError
	KindTimeout
	KindProtocolError

	KindHardwareEncoderFailed
	KindSoftwareEncoderFailed
	KindSettingsInvalid
	KindBufferOverflow
	KindFormatNotSupported

	KindInvalidParameter
	KindUnsupportedConfiguration
	KindConflictingSettings

	KindPermissionDenied
	KindResourceUnavailable
	KindOutOfMemory
	KindInvalidState
	KindUnknown
)

type kindMeta struct {
	category    Category
	code        int32
	recoverable bool
	name        string
}

var kinds = map[Kind]kindMeta{
	KindConnectionFailed:     {CategoryTransport, 3001, true, "connection failed"},
	KindAuthenticationFailed: {CategoryTransport, 3002, false, "authentication failed"},
	KindNetworkError:         {CategoryTransport, 3003, true, "network error"},
	KindTimeout:              {CategoryTransport, 3004, true, "timeout"},
	KindProtocolError:        {CategoryTransport, 3005, false, "protocol error"},

	KindHardwareEncoderFailed: {CategoryEncoding, 4001, true, "hardware encoder failed"},
	KindSoftwareEncoderFailed: {CategoryEncoding, 4002, false, "software encoder failed"},
	KindSettingsInvalid:       {CategoryEncoding, 4003, false, "encoding settings invalid"},
	KindBufferOverflow:        {CategoryEncoding, 4004, true, "encoding buffer overflow"},
	KindFormatNotSupported:    {CategoryEncoding, 4005, false, "format not supported"},

	KindInvalidParameter:         {CategoryConfiguration, 5001, false, "invalid parameter"},
	KindUnsupportedConfiguration: {CategoryConfiguration, 5002, false, "unsupported configuration"},
	KindConflictingSettings:      {CategoryConfiguration, 5003, false, "conflicting settings"},

	KindPermissionDenied:    {CategorySystem, 6001, false, "permission denied"},
	KindResourceUnavailable: {CategorySystem, 6002, true, "resource unavailable"},
	KindOutOfMemory:         {CategorySystem, 6003, true, "out of memory"},
	KindInvalidState:        {CategorySystem, 6004, false, "invalid state"},
	KindUnknown:             {CategorySystem, CodeUnknown, false, "unknown error"},
}

func (k Kind) meta() kindMeta {
	if m, ok := kinds[k]; ok {
		return m
	}
	return kinds[KindUnknown]
}

func (k Kind) String() string {
	return k.meta().name
}

// Category 返回错误类型所属分类
func (k Kind) Category() Category {
	return k.meta().category
}

// StreamError 推流链路上的类型化错误, Recoverable 决定调用方是重试还是终止
type StreamError struct {
	Kind        Kind
	Msg         string
	Recoverable bool
	// Protocol 出错的传输协议, 非传输错误为空
	Protocol string
	// ErrorCode 底层返回的错误码, 仅 NetworkError 使用
	ErrorCode int
	Timeout   time.Duration
	cause     error
}

func newStreamError(kind Kind, msg string, cause error) *StreamError {
	return &StreamError{
		Kind:        kind,
		Msg:         msg,
		Recoverable: kind.meta().recoverable,
		cause:       cause,
	}
}

func (e *StreamError) Error() string {
	s := e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	switch e.Kind {
	case KindNetworkError:
		s = fmt.Sprintf("%s (code=%d)", s, e.ErrorCode)
	case KindTimeout:
		if e.Timeout > 0 {
			s = fmt.Sprintf("%s (after %s)", s, e.Timeout)
		}
	}
	if e.Protocol != "" {
		s = "[" + e.Protocol + "] " + s
	}
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *StreamError) Unwrap() error { return e.cause }

func (e *StreamError) Cause() error { return e.cause }

func (e *StreamError) Category() Category { return e.Kind.Category() }

func (e *StreamError) Code() int32 { return e.Kind.meta().code }

func ConnectionFailed(protocol, msg string, cause error) *StreamError {
	e := newStreamError(KindConnectionFailed, msg, cause)
	e.Protocol = protocol
	return e
}

func AuthenticationFailed(protocol, msg string) *StreamError {
	e := newStreamError(KindAuthenticationFailed, msg, nil)
	e.Protocol = protocol
	return e
}

func NetworkError(protocol, msg string, code int, cause error) *StreamError {
	e := newStreamError(KindNetworkError, msg, cause)
	e.Protocol = protocol
	e.ErrorCode = code
	return e
}

func TimeoutError(protocol, msg string, timeout time.Duration) *StreamError {
	e := newStreamError(KindTimeout, msg, nil)
	e.Protocol = protocol
	e.Timeout = timeout
	return e
}

func ProtocolError(protocol, msg string, cause error) *StreamError {
	e := newStreamError(KindProtocolError, msg, cause)
	e.Protocol = protocol
	return e
}

// EncodingError 构造编码类错误, kind 必须属于 CategoryEncoding
func EncodingError(kind Kind, msg string) *StreamError {
	if kind.Category() != CategoryEncoding {
		kind = KindSoftwareEncoderFailed
	}
	return newStreamError(kind, msg, nil)
}

// ConfigurationError 构造配置类错误, 配置错误一律不可恢复
func ConfigurationError(kind Kind, msg string) *StreamError {
	if kind.Category() != CategoryConfiguration {
		kind = KindInvalidParameter
	}
	return newStreamError(kind, msg, nil)
}

func SystemError(kind Kind, msg string, cause error) *StreamError {
	if kind.Category() != CategorySystem {
		kind = KindUnknown
	}
	return newStreamError(kind, msg, cause)
}

func InvalidState(format string, args ...interface{}) *StreamError {
	return newStreamError(KindInvalidState, fmt.Sprintf(format, args...), nil)
}

func Unknown(msg string, cause error) *StreamError {
	return newStreamError(KindUnknown, msg, cause)
}

// AsStreamError 从错误链中取出 StreamError
func AsStreamError(err error) (*StreamError, bool) {
	var se *StreamError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRecoverable 判断错误是否可以走重试路径
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	return From(err).Recoverable
}

// From 把任意错误归类为 StreamError
func From(err error) *StreamError {
	if err == nil {
		return nil
	}
	if se, ok := AsStreamError(err); ok {
		return se
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return newStreamError(KindTimeout, "operation timed out", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return newStreamError(KindTimeout, "network timeout", err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return newStreamError(KindConnectionFailed, "connection refused", err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE), errors.Is(err, net.ErrClosed):
		return NetworkError("", "connection closed", -1, err)
	case errors.As(err, &netErr):
		return NetworkError("", "network failure", -1, err)
	case errors.Is(err, os.ErrPermission):
		return newStreamError(KindPermissionDenied, "", err)
	}
	return newStreamError(KindUnknown, "", err)
}
