package securemem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBytes_MovesSecret(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	b, err := FromBytes(src)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, []byte{0, 0, 0, 0}, src)

	err = b.Use(func(secret []byte) error {
		assert.Equal(t, []byte{1, 2, 3, 4}, secret)
		return nil
	})
	require.NoError(t, err)
}

func TestFromBytes_Empty(t *testing.T) {
	_, err := FromBytes(nil)
	require.Error(t, err)
}

func TestClose_ZeroesAndBlocksUse(t *testing.T) {
	b, err := FromBytes([]byte("secret"))
	require.NoError(t, err)

	var view []byte
	require.NoError(t, b.Use(func(s []byte) error {
		view = make([]byte, len(s))
		copy(view, s)
		return nil
	}))
	assert.Equal(t, "secret", string(view))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	err = b.Use(func([]byte) error { return nil })
	require.ErrorIs(t, err, ErrClosed)
}

func TestUse_PropagatesError(t *testing.T) {
	b, err := FromBytes([]byte("k"))
	require.NoError(t, err)
	defer b.Close()

	boom := errors.New("boom")
	require.ErrorIs(t, b.Use(func([]byte) error { return boom }), boom)
}
