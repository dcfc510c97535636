package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("satay-skewer-7")
	require.NoError(t, err)
	assert.NotEqual(t, "satay-skewer-7", hash)

	assert.True(t, CheckPassword(hash, "satay-skewer-7"))
	assert.False(t, CheckPassword(hash, "wrong-password"))
	assert.False(t, CheckPassword("not-a-hash", "satay-skewer-7"))
}
