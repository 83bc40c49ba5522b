package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_Check(t *testing.T) {
	h, err := HashPassword([]byte("pw1"), TestKDFParams)
	require.NoError(t, err)

	ok, err := CheckPassword([]byte("pw1"), h)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword([]byte("pw2"), h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_Salted(t *testing.T) {
	a, err := HashPassword([]byte("pw"), TestKDFParams)
	require.NoError(t, err)
	b, err := HashPassword([]byte("pw"), TestKDFParams)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestCheckPassword_Malformed(t *testing.T) {
	_, err := CheckPassword([]byte("pw"), "not-a-hash")
	require.Error(t, err)
}
