package serialization_test

import (
	"testing"

	"github.com/Dryik/migration-tool/pkg/batch/support/util/serialization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskedCopy(t *testing.T) {
	in := map[string]interface{}{"username": "admin", "password": "secret"}
	out := serialization.MaskedCopy(in, []string{"password", "api_key"})

	assert.Equal(t, "admin", out["username"])
	assert.Equal(t, serialization.MaskValue, out["password"])
	assert.NotContains(t, out, "api_key")
	assert.Equal(t, "secret", in["password"])
	assert.Empty(t, serialization.MaskedCopy(nil, []string{"password"}))
}

func TestUnmarshalDocument(t *testing.T) {
	type doc struct {
		Model string `json:"model"`
	}

	var d doc
	ok, err := serialization.UnmarshalDocument("batch state", []byte(`{"model":"res.partner"}`), &d)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "res.partner", d.Model)

	ok, err = serialization.UnmarshalDocument("batch state", []byte("null"), &d)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = serialization.UnmarshalDocument("batch state", []byte("{not json"), &d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to deserialize batch state")
}

func TestIDs(t *testing.T) {
	data, err := serialization.MarshalIDs(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	ids, err := serialization.UnmarshalIDs([]byte("[3,1,2]"))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)

	ids, err = serialization.UnmarshalIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCanonicalPairs_OrderIndependent(t *testing.T) {
	a, err := serialization.CanonicalPairs([][2]string{{"sale", "1.2"}, {"base", "17.0"}})
	require.NoError(t, err)
	b, err := serialization.CanonicalPairs([][2]string{{"base", "17.0"}, {"sale", "1.2"}})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, `[["base","17.0"],["sale","1.2"]]`, string(a))
}
