package repository

import (
	"errors"

	"github.com/amirasaad/giftfund/pkg/domain"
	"gorm.io/gorm"
)

// MapGormErrorToDomain converts GORM errors to domain errors so callers
// above the infra layer only ever see pkg/domain sentinels.
func MapGormErrorToDomain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrAlreadyExists
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return domain.ErrValidation
	default:
		return err
	}
}

// WrapError runs a GORM operation and maps its error.
//
//	err := WrapError(func() error {
//	    return r.db.WithContext(ctx).Create(model).Error
//	})
func WrapError(op func() error) error {
	return MapGormErrorToDomain(op())
}
