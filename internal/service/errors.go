package service

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrInternal          = errors.New("internal error")
)

// 用于携带具体的校验信息, errors.Is(err, ErrValidation) 仍然成立
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// 返回给调用者的错误信息, 内部错误不暴露细节
func PublicMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, ErrRecipientNotFound):
		return "recipient not found"
	case errors.Is(err, ErrNotFound):
		return "message not found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidation):
		return "invalid request"
	}
	return "internal server error"
}
