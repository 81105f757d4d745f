// Package custodial provides gorm implementations of the custodial account
// and profile stores.
package custodial

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amirasaad/giftfund/infra/repository"
	"github.com/amirasaad/giftfund/pkg/domain"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	repo "github.com/amirasaad/giftfund/pkg/repository/custodial"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accountColumns are overwritten on Save; created_at is kept.
var accountColumns = []string{
	"external_account_id", "country", "business_type", "account_kind", "status",
	"charges_enabled", "payouts_enabled", "details_submitted",
	"requirements", "capabilities", "card_issuing_active",
	"cardholder_id", "virtual_card_id", "external_bank_last4", "updated_at",
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a gorm-backed AccountRepository.
func NewAccountRepository(db *gorm.DB) repo.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Get(ctx context.Context, userID string) (*custodial.AccountRecord, error) {
	return r.first(ctx, "user_id = ?", userID)
}

func (r *accountRepository) GetByExternalID(
	ctx context.Context,
	externalAccountID string,
) (*custodial.AccountRecord, error) {
	if externalAccountID == "" {
		return nil, nil
	}
	return r.first(ctx, "external_account_id = ?", externalAccountID)
}

func (r *accountRepository) first(ctx context.Context, query string, arg string) (*custodial.AccountRecord, error) {
	var m Account
	err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, repository.MapGormErrorToDomain(err)
	}
	return mapAccountToDomain(&m), nil
}

func (r *accountRepository) Save(ctx context.Context, rec *custodial.AccountRecord) error {
	if rec == nil || rec.UserID == "" {
		return fmt.Errorf("save account: %w: user id is required", domain.ErrValidation)
	}
	m := mapAccountToModel(rec)
	return repository.WrapError(func() error {
		return r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(accountColumns),
		}).Create(m).Error
	})
}

func (r *accountRepository) Update(ctx context.Context, userID string, upd custodial.AccountUpdate) error {
	updates, err := accountUpdates(upd)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&Account{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return repository.MapGormErrorToDomain(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func accountUpdates(upd custodial.AccountUpdate) (map[string]any, error) {
	updates := make(map[string]any)
	if upd.Status != nil {
		updates["status"] = string(*upd.Status)
	}
	if upd.ChargesEnabled != nil {
		updates["charges_enabled"] = *upd.ChargesEnabled
	}
	if upd.PayoutsEnabled != nil {
		updates["payouts_enabled"] = *upd.PayoutsEnabled
	}
	if upd.DetailsSubmitted != nil {
		updates["details_submitted"] = *upd.DetailsSubmitted
	}
	if upd.Requirements != nil {
		raw, err := json.Marshal(upd.Requirements)
		if err != nil {
			return nil, fmt.Errorf("encode requirements: %w", err)
		}
		updates["requirements"] = string(raw)
	}
	if upd.Capabilities != nil {
		raw, err := json.Marshal(upd.Capabilities)
		if err != nil {
			return nil, fmt.Errorf("encode capabilities: %w", err)
		}
		updates["capabilities"] = string(raw)
	}
	if upd.CardIssuingActive != nil {
		updates["card_issuing_active"] = *upd.CardIssuingActive
	}
	if upd.CardholderID != nil {
		updates["cardholder_id"] = *upd.CardholderID
	}
	if upd.VirtualCardID != nil {
		updates["virtual_card_id"] = *upd.VirtualCardID
	}
	if upd.ExternalBankLast4 != nil {
		updates["external_bank_last4"] = *upd.ExternalBankLast4
	}
	return updates, nil
}
