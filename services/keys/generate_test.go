package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	t.Run("writes a loadable keypair", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "secrets")
		privatePath := filepath.Join(dir, "jwt_private.pem")
		publicPath := filepath.Join(dir, "jwt_public.pem")

		require.NoError(t, Generate(privatePath, publicPath, 2048))

		info, err := os.Stat(privatePath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		pair, err := newProvider(privatePath, publicPath).Load()
		require.NoError(t, err)
		assert.Equal(t, 2048, pair.Verification.N.BitLen())
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		dir := t.TempDir()
		privatePath := filepath.Join(dir, "jwt_private.pem")
		publicPath := filepath.Join(dir, "jwt_public.pem")
		require.NoError(t, os.WriteFile(privatePath, []byte("existing"), 0o600))

		err := Generate(privatePath, publicPath, 2048)

		assert.ErrorIs(t, err, os.ErrExist)
		content, _ := os.ReadFile(privatePath)
		assert.Equal(t, "existing", string(content))
	})

	t.Run("rejects small keys", func(t *testing.T) {
		dir := t.TempDir()
		err := Generate(filepath.Join(dir, "a.pem"), filepath.Join(dir, "b.pem"), 1024)
		assert.ErrorIs(t, err, ErrKeyTooSmall)
	})
}
