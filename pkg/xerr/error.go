package xerr

import "errors"

// Error 错误码和信息，可选携带底层原因
type Error struct {
	code    int32
	message string
	cause   error
}

// NewError 生成一个error
func NewError(code int32, message string) *Error {
	return &Error{
		code:    code,
		message: message,
	}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *Error) Code() int32 {
	return e.code
}

// Wrap 返回同错误码、附带原因的新错误，原错误实例保持不变
func (e *Error) Wrap(cause error) *Error {
	return &Error{
		code:    e.code,
		message: e.message,
		cause:   cause,
	}
}

// Wrapf 同 Wrap，额外补充一段描述
func (e *Error) Wrapf(cause error, detail string) *Error {
	return &Error{
		code:    e.code,
		message: e.message + " (" + detail + ")",
		cause:   cause,
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is 按错误码比较，errors.Is(err, xerr.ErrFrameCorrupt) 可穿透 Wrap
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.code == e.code
}

// CodeOf 取链路上第一个 *Error 的错误码，非 xerr 错误返回 ErrInternalCode
func CodeOf(err error) int32 {
	if err == nil {
		return ErrOKCode
	}
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ErrInternalCode
}
