package configmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapGet(t *testing.T) {
	flags := Simple{"passive": "false"}
	env := Simple{"passive": "true", "epsv4": "false"}
	m := New().AddGetter(flags).AddGetter(env)

	value, ok := m.Get("passive")
	assert.True(t, ok)
	assert.Equal(t, "false", value)

	value, ok = m.Get("epsv4")
	assert.True(t, ok)
	assert.Equal(t, "false", value)

	value, ok = m.Get("potato")
	assert.False(t, ok)
	assert.Equal(t, "", value)
}

func TestSimpleString(t *testing.T) {
	assert.Equal(t, "", Simple(nil).String())
	assert.Equal(t, "a='1',b='it''s'", Simple{"b": "it's", "a": "1"}.String())
}
