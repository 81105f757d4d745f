package infra

import (
	"testing"

	"github.com/amirasaad/giftfund/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBConnection_RequiresURL(t *testing.T) {
	_, err := NewDBConnection(nil, "test")
	require.Error(t, err)
	_, err = NewDBConnection(&config.DB{}, "test")
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, 25, orDefault(0, 25))
	assert.Equal(t, 25, orDefault(-1, 25))
	assert.Equal(t, 4, orDefault(4, 25))
}
