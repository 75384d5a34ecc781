package validator

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Verify validates the `validate` tags of a request struct and flattens the
// field errors into one message.
func Verify(req interface{}) error {
	err := instance().Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" failed on "+fe.Tag())
	}
	return &Error{msg: strings.Join(msgs, "; ")}
}

type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }
