package errors

import (
	stderrors "errors"
	"fmt"
)

type Error interface {
	error

	Code() int
	Message() string
	Cause() error
}

// DefaultCode is used when no code is given. It is set to 500, Internal Server Error
var DefaultCode = 500

type codedError struct {
	code  int
	msg   string
	cause error
}

func (err *codedError) Error() string {
	if err.cause == nil {
		return err.msg
	}

	return fmt.Sprintf("%s: %v", err.msg, err.cause)
}

func (err *codedError) Code() int       { return err.code }
func (err *codedError) Message() string { return err.msg }
func (err *codedError) Cause() error    { return err.cause }
func (err *codedError) Unwrap() error   { return err.cause }

type ErrorEnricher func(error) error

func WithCode(code int) ErrorEnricher {
	return func(err error) error {
		if err == nil {
			return nil
		}

		if err, ok := err.(*codedError); ok {
			err.code = code
			return err
		}

		return &codedError{
			msg:  err.Error(),
			code: code,
		}
	}
}

// WithCause attaches cause to the error. The code of a coded cause is kept
// unless another enricher overrides it.
func WithCause(cause error) ErrorEnricher {
	return func(err error) error {
		if err == nil {
			return nil
		}

		myErr, ok := err.(*codedError)
		if !ok {
			myErr = &codedError{msg: err.Error(), code: DefaultCode}
		}
		myErr.cause = cause

		var coded Error
		if stderrors.As(cause, &coded) {
			myErr.code = coded.Code()
		}
		return myErr
	}
}

func New(msg string, fs ...ErrorEnricher) error {
	var err error = &codedError{
		msg:  msg,
		code: DefaultCode,
	}

	for _, f := range fs {
		err = f(err)
	}

	return err
}

// Code returns the HTTP status carried by err, DefaultCode when there is none.
func Code(err error) int {
	var coded Error
	if stderrors.As(err, &coded) {
		return coded.Code()
	}
	return DefaultCode
}

// Message returns the client facing message of err. Errors without a code
// are hidden behind a generic message.
func Message(err error) string {
	var coded Error
	if stderrors.As(err, &coded) {
		return coded.Message()
	}
	return "Internal server error"
}

func Is(err, target error) bool { return stderrors.Is(err, target) }
