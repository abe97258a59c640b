package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapEnvironmentExpander(t *testing.T) {
	e := NewMapEnvironmentExpander(map[string]string{"ODOO_PASSWORD": "pw", "HOST": "erp"})

	out, err := e.Expand([]byte("url: https://${HOST}\npassword: $ODOO_PASSWORD\nmissing: '${NOPE}'"))
	require.NoError(t, err)
	assert.Equal(t, "url: https://erp\npassword: pw\nmissing: ''", string(out))
}
