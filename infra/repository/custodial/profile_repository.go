package custodial

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirasaad/giftfund/infra/repository"
	"github.com/amirasaad/giftfund/pkg/domain"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	repo "github.com/amirasaad/giftfund/pkg/repository/custodial"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a gorm-backed ProfileRepository.
func NewProfileRepository(db *gorm.DB) repo.ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Get(ctx context.Context, userID string) (*custodial.ProfileRecord, error) {
	var m Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, repository.MapGormErrorToDomain(err)
	}
	return mapProfileToDomain(&m), nil
}

func (r *profileRepository) SetOrMerge(ctx context.Context, userID string, upd custodial.ProfileUpdate) error {
	m := &Profile{UserID: userID}
	columns := applyProfileUpdate(m, upd)
	conflict := clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}}
	if len(columns) == 0 {
		conflict.DoNothing = true
	} else {
		conflict.DoUpdates = clause.AssignmentColumns(append(columns, "updated_at"))
	}
	return repository.WrapError(func() error {
		return r.db.WithContext(ctx).Clauses(conflict).Create(m).Error
	})
}

func (r *profileRepository) Update(ctx context.Context, userID string, upd custodial.ProfileUpdate) error {
	var m Profile
	columns := applyProfileUpdate(&m, upd)
	if len(columns) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&Profile{}).
		Where("user_id = ?", userID).
		Select(append(columns, "updated_at")).
		Updates(&m)
	if result.Error != nil {
		return repository.MapGormErrorToDomain(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetSlugIfAbsent creates the profile if needed and writes slug only when no
// slug is stored yet. The conditional update makes concurrent first calls
// converge on whichever slug landed first.
func (r *profileRepository) SetSlugIfAbsent(ctx context.Context, userID, slug string) (string, error) {
	if slug == "" {
		return "", fmt.Errorf("set slug: %w: slug is required", domain.ErrValidation)
	}
	var stored Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&Profile{UserID: userID, ProfileSlug: slug}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Profile{}).
			Where("user_id = ? AND (profile_slug = '' OR profile_slug IS NULL)", userID).
			Update("profile_slug", slug).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).First(&stored).Error
	})
	if err != nil {
		return "", repository.MapGormErrorToDomain(err)
	}
	return stored.ProfileSlug, nil
}

// applyProfileUpdate copies the set fields of upd onto m and returns their
// column names.
func applyProfileUpdate(m *Profile, upd custodial.ProfileUpdate) []string {
	var columns []string
	if upd.DisplayName != nil {
		m.DisplayName = *upd.DisplayName
		columns = append(columns, "display_name")
	}
	if upd.Email != nil {
		m.Email = *upd.Email
		columns = append(columns, "email")
	}
	if upd.StripeAccountID != nil {
		m.StripeAccountID = *upd.StripeAccountID
		columns = append(columns, "stripe_account_id")
	}
	if upd.StripeAccountStatus != nil {
		m.StripeAccountStatus = *upd.StripeAccountStatus
		columns = append(columns, "stripe_account_status")
	}
	if upd.VirtualCardID != nil {
		m.VirtualCardID = *upd.VirtualCardID
		columns = append(columns, "virtual_card_id")
	}
	return columns
}
