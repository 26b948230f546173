package testutils

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/tokenchain/autherr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory SQLite database. The pool is limited
// to one connection so concurrent tests serialize on it instead of each
// connection seeing an empty database.
func SetupTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if len(models) > 0 {
		err = db.AutoMigrate(models...)
		require.NoError(t, err)
	}

	return db
}

func CleanupTestDB(t *testing.T, db *gorm.DB, tables ...string) {
	t.Helper()

	for _, table := range tables {
		err := db.Exec("DELETE FROM " + table).Error
		require.NoError(t, err)
	}
}

// AssertAuthKind fails unless err is an authentication error of the given kind.
func AssertAuthKind(t *testing.T, expected autherr.Kind, err error) {
	t.Helper()

	require.Error(t, err)
	kind, ok := autherr.KindOf(err)
	require.True(t, ok, "expected authentication error, got %v", err)
	require.Equal(t, expected, kind)
}

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

// TestKey returns a 2048-bit RSA key shared by every test in the process.
func TestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})

	return testKey
}

// GenerateTestKeys writes the shared test keypair to PEM files in a temp dir
// and returns their paths.
func GenerateTestKeys(t *testing.T) (privatePath, publicPath string) {
	t.Helper()
	return WriteKeyFiles(t, TestKey(t))
}

func WriteKeyFiles(t *testing.T, key *rsa.PrivateKey) (privatePath, publicPath string) {
	t.Helper()

	dir := t.TempDir()
	privatePath = filepath.Join(dir, "jwt_private.pem")
	publicPath = filepath.Join(dir, "jwt_public.pem")

	privateBytes, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	publicBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	WriteFile(t, privatePath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateBytes}))
	WriteFile(t, publicPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicBytes}))

	return privatePath, publicPath
}

func WriteFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, content, 0o600))
}
