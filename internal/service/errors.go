package service

import (
	"errors"

	"github.com/emrgen/wikinote/internal/apperr"
)

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
