package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealAndOpenField(t *testing.T) {
	encoded, err := GenerateEncryptionKey()
	require.NoError(t, err)
	key := KeyFromString(encoded)
	require.Len(t, key, 32)

	sealed, err := SealField("cloud-token", key)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, FieldPrefix))
	assert.NotContains(t, sealed, "cloud-token")

	opened, err := OpenField(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "cloud-token", opened)
}

func TestFieldsWithoutKey(t *testing.T) {
	assert.Nil(t, KeyFromString("  "))

	sealed, err := SealField("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", sealed)

	opened, err := OpenField("plain", KeyFromString("passphrase"))
	require.NoError(t, err)
	assert.Equal(t, "plain", opened)

	_, err = OpenField(FieldPrefix+"AAAA", nil)
	assert.Error(t, err)
}

func TestOpenFieldWrongKey(t *testing.T) {
	sealed, err := SealField("cloud-token", KeyFromString("first passphrase"))
	require.NoError(t, err)

	_, err = OpenField(sealed, KeyFromString("second passphrase"))
	assert.Error(t, err)
}
