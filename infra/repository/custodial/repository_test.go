package custodial

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/amirasaad/giftfund/pkg/domain"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Account{}, &Profile{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func TestAccountRepository_GetAbsent(t *testing.T) {
	repo := NewAccountRepository(setupDB(t))
	ctx := context.Background()

	rec, err := repo.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = repo.GetByExternalID(ctx, "acct_missing")
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = repo.GetByExternalID(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAccountRepository_SaveAndGet(t *testing.T) {
	repo := NewAccountRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &custodial.AccountRecord{
		UserID:            "user-1",
		ExternalAccountID: "acct_1",
		Country:           "US",
		BusinessType:      custodial.BusinessTypeIndividual,
		AccountKind:       custodial.AccountKindCustom,
		Status:            custodial.StatusPending,
		Requirements:      map[string]any{"currently_due": []any{"individual.dob.day"}},
	}))

	rec, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "acct_1", rec.ExternalAccountID)
	assert.Equal(t, custodial.StatusPending, rec.Status)
	assert.Equal(t, []any{"individual.dob.day"}, rec.Requirements["currently_due"])
	assert.NotNil(t, rec.Capabilities)
	assert.False(t, rec.CreatedAt.IsZero())

	byExt, err := repo.GetByExternalID(ctx, "acct_1")
	require.NoError(t, err)
	require.NotNil(t, byExt)
	assert.Equal(t, "user-1", byExt.UserID)

	// Save again overwrites in place: still one row per user.
	rec.Country = "CA"
	require.NoError(t, repo.Save(ctx, rec))
	var count int64
	require.NoError(t, repo.(*accountRepository).db.Model(&Account{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	again, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "CA", again.Country)
}

func TestAccountRepository_UpdatePartial(t *testing.T) {
	repo := NewAccountRepository(setupDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &custodial.AccountRecord{
		UserID:            "user-1",
		ExternalAccountID: "acct_1",
		CardholderID:      "ich_1",
	}))

	status := custodial.StatusApproved
	require.NoError(t, repo.Update(ctx, "user-1", custodial.AccountUpdate{
		Status:            &status,
		CardIssuingActive: ptr(true),
		Capabilities:      map[string]any{"card_issuing": "active"},
	}))

	rec, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, custodial.StatusApproved, rec.Status)
	assert.True(t, rec.CardIssuingActive)
	assert.Equal(t, "active", rec.Capabilities["card_issuing"])
	assert.Equal(t, "ich_1", rec.CardholderID, "untouched fields survive")

	require.NoError(t, repo.Update(ctx, "user-1", custodial.AccountUpdate{}))
	err = repo.Update(ctx, "ghost", custodial.AccountUpdate{VirtualCardID: ptr("ic_1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountRepository_SaveRequiresUserID(t *testing.T) {
	repo := NewAccountRepository(setupDB(t))
	err := repo.Save(context.Background(), &custodial.AccountRecord{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProfileRepository_SetOrMergeAndUpdate(t *testing.T) {
	repo := NewProfileRepository(setupDB(t))
	ctx := context.Background()

	prof, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, prof)

	err = repo.Update(ctx, "user-1", custodial.ProfileUpdate{Email: ptr("a@example.com")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.SetOrMerge(ctx, "user-1", custodial.ProfileUpdate{
		DisplayName: ptr("Ada"),
		Email:       ptr("a@example.com"),
	}))
	require.NoError(t, repo.SetOrMerge(ctx, "user-1", custodial.ProfileUpdate{
		StripeAccountID:     ptr("acct_1"),
		StripeAccountStatus: ptr("pending"),
	}))
	require.NoError(t, repo.Update(ctx, "user-1", custodial.ProfileUpdate{VirtualCardID: ptr("ic_1")}))

	prof, err = repo.Get(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, prof)
	assert.Equal(t, "Ada", prof.DisplayName, "merge keeps earlier fields")
	assert.Equal(t, "acct_1", prof.StripeAccountID)
	assert.Equal(t, "pending", prof.StripeAccountStatus)
	assert.Equal(t, "ic_1", prof.VirtualCardID)

	require.NoError(t, repo.SetOrMerge(ctx, "user-2", custodial.ProfileUpdate{}))
	empty, err := repo.Get(ctx, "user-2")
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestProfileRepository_SetSlugIfAbsent(t *testing.T) {
	repo := NewProfileRepository(setupDB(t))
	ctx := context.Background()

	first, err := repo.SetSlugIfAbsent(ctx, "user-1", "ada-12345678")
	require.NoError(t, err)
	assert.Equal(t, "ada-12345678", first)

	second, err := repo.SetSlugIfAbsent(ctx, "user-1", "ada-renamed-12345678")
	require.NoError(t, err)
	assert.Equal(t, "ada-12345678", second)

	require.NoError(t, repo.SetOrMerge(ctx, "user-2", custodial.ProfileUpdate{DisplayName: ptr("Bob")}))
	slug, err := repo.SetSlugIfAbsent(ctx, "user-2", "bob-87654321")
	require.NoError(t, err)
	assert.Equal(t, "bob-87654321", slug)

	_, err = repo.SetSlugIfAbsent(ctx, "user-3", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProfileRepository_SetSlugIfAbsentConcurrent(t *testing.T) {
	repo := NewProfileRepository(setupDB(t))
	ctx := context.Background()

	results := make([]string, 6)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slug, err := repo.SetSlugIfAbsent(ctx, "user-1", fmt.Sprintf("candidate-%d", i))
			if assert.NoError(t, err) {
				results[i] = slug
			}
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, results[0], got)
	}
}

func TestAccountRepository_UpdateNotFound_Postgres(t *testing.T) {
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	repo := NewAccountRepository(db)
	mock.ExpectExec(`UPDATE "custodial_accounts" SET (.+) WHERE user_id = \$(\d+)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Update(context.Background(), "ghost", custodial.AccountUpdate{VirtualCardID: ptr("ic_1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetByExternalID_Postgres(t *testing.T) {
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	repo := NewAccountRepository(db)
	rows := sqlmock.NewRows([]string{"user_id", "external_account_id", "status", "capabilities"}).
		AddRow("user-1", "acct_1", "approved", `{"card_issuing":"active"}`)
	mock.ExpectQuery(`SELECT \* FROM "custodial_accounts" WHERE external_account_id = \$1`).
		WillReturnRows(rows)

	rec, err := repo.GetByExternalID(context.Background(), "acct_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, custodial.StatusApproved, rec.Status)
	assert.Equal(t, "active", rec.Capabilities["card_issuing"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
