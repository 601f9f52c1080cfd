package uigen

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHandle(t *testing.T) {
	h := ContentHandle("export default 1;")
	assert.Len(t, h, handleLen)
	assert.Equal(t, h, ContentHandle("export default 1;"))
	assert.NotEqual(t, h, ContentHandle("export default 2;"))
}

func TestModuleRegistryServed(t *testing.T) {
	r, err := NewModuleRegistry(8, "/_modules/")
	require.NoError(t, err)
	assert.False(t, r.Inline())

	url := r.Register("/App.jsx", "export default 1;")
	handle := ContentHandle("export default 1;")
	assert.Equal(t, "/_modules/"+handle+".js", url)

	// identical code shares one entry
	assert.Equal(t, url, r.Register("/Other.jsx", "export default 1;"))
	assert.Equal(t, 1, r.Len())

	for _, key := range []string{handle, handle + ".js"} {
		mod, ok := r.Lookup(key)
		require.True(t, ok, key)
		assert.Equal(t, "/App.jsx", mod.Path)
		assert.Equal(t, "export default 1;", mod.Code)
	}
	_, ok := r.Lookup("0000000000000000")
	assert.False(t, ok)
}

func TestModuleRegistryInline(t *testing.T) {
	r, err := NewModuleRegistry(8, "")
	require.NoError(t, err)
	assert.True(t, r.Inline())

	url := r.Register("/App.jsx", "export default 1;")
	require.True(t, strings.HasPrefix(url, "data:text/javascript;base64,"))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:text/javascript;base64,"))
	require.NoError(t, err)
	assert.Equal(t, "export default 1;", string(decoded))
}

func TestModuleRegistryEviction(t *testing.T) {
	r, err := NewModuleRegistry(1, "/m/")
	require.NoError(t, err)
	r.Register("/a.js", "a")
	r.Register("/b.js", "b")
	assert.Equal(t, 1, r.Len())
	_, ok := r.Lookup(ContentHandle("a"))
	assert.False(t, ok)
	_, ok = r.Lookup(ContentHandle("b"))
	assert.True(t, ok)

	_, err = NewModuleRegistry(0, "")
	assert.Error(t, err)
}
