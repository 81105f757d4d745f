//go:build integration

package infra_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amirasaad/giftfund/infra"
	repo "github.com/amirasaad/giftfund/infra/repository/custodial"
	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/amirasaad/giftfund/pkg/domain/custodial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	pg, err := tcpostgres.Run(
		ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("giftfund"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDBConnection(&config.DB{Url: dsn}, "test")
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))
	// Second run is a no-op.
	require.NoError(t, infra.RunMigrations(db))
	return db
}

func TestPostgresStores(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	accounts := repo.NewAccountRepository(db)
	profiles := repo.NewProfileRepository(db)

	t.Run("account round trip", func(t *testing.T) {
		require.NoError(t, accounts.Save(ctx, &custodial.AccountRecord{
			UserID:            "user-1",
			ExternalAccountID: "acct_1",
			Country:           "US",
			BusinessType:      custodial.BusinessTypeIndividual,
			AccountKind:       custodial.AccountKindCustom,
			Status:            custodial.StatusPending,
			Capabilities:      map[string]any{"card_issuing": "inactive"},
		}))

		active := true
		approved := custodial.StatusApproved
		require.NoError(t, accounts.Update(ctx, "user-1", custodial.AccountUpdate{
			Status:            &approved,
			CardIssuingActive: &active,
			Capabilities:      map[string]any{"card_issuing": "active"},
		}))

		rec, err := accounts.GetByExternalID(ctx, "acct_1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "user-1", rec.UserID)
		assert.Equal(t, custodial.StatusApproved, rec.Status)
		assert.True(t, rec.CardIssuingActive)
		assert.Equal(t, "active", rec.Capabilities["card_issuing"])
	})

	t.Run("absent account", func(t *testing.T) {
		rec, err := accounts.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("slug is written once under contention", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			results []string
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				slug, err := profiles.SetSlugIfAbsent(ctx, "user-2", custodial.Slugify("Ada Lovelace", "user-2")+string(rune('a'+i)))
				assert.NoError(t, err)
				mu.Lock()
				results = append(results, slug)
				mu.Unlock()
			}(i)
		}
		wg.Wait()
		for _, got := range results {
			assert.Equal(t, results[0], got)
		}
	})

	t.Run("profile merge keeps unrelated fields", func(t *testing.T) {
		name := "Grace"
		acct := "acct_3"
		require.NoError(t, profiles.SetOrMerge(ctx, "user-3", custodial.ProfileUpdate{DisplayName: &name}))
		require.NoError(t, profiles.SetOrMerge(ctx, "user-3", custodial.ProfileUpdate{StripeAccountID: &acct}))

		p, err := profiles.Get(ctx, "user-3")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Grace", p.DisplayName)
		assert.Equal(t, "acct_3", p.StripeAccountID)
	})
}
