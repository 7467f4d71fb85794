package middleware

import (
	"errors"

	"github.com/MrSnakeDoc/deltasync/internal/errs"
	"github.com/MrSnakeDoc/deltasync/internal/logger"
)

// ErrLogged marks an error whose message the user has already seen.
var ErrLogged = errors.New("already logged")

// FlagComboError prints the usage message for code and returns ErrLogged.
func FlagComboError(code errs.Code, a ...any) error {
	logger.LogError("%s", errs.Msg(code, a...))
	return ErrLogged
}

func IsLogged(err error) bool { return errors.Is(err, ErrLogged) }
