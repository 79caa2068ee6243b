package watermark

import (
	"errors"
	"fmt"
)

// Kind 错误类别，调用方应根据 Kind 分支处理而不是匹配错误字符串
type Kind string

const (
	KindCapacity  Kind = "Capacity"
	KindEncoding  Kind = "Encoding"
	KindTruncated Kind = "Truncated"
	KindImage     Kind = "Image"
)

// Error 水印编解码的结构化错误
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Op == "" {
		return "watermark: " + e.Message
	}
	return "watermark: " + e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, op, msg string, cause error) error {
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

// IsKind 判断 err 是否为（或包装了）指定类别的 *Error
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
