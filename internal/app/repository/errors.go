package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sifan077/linkpulse/internal/app/apperror"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// translate maps driver level failures onto the engine's error taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.ErrLinkNotFound
	case isUniqueViolation(err):
		return apperror.ErrSlugTaken
	default:
		return err
	}
}
