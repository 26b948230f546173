package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// Generate writes a new RSA keypair as PKCS#8 and PKIX PEM files. Existing
// files are never overwritten.
func Generate(privatePath, publicPath string, bits int) error {
	if bits < minKeyBits {
		return ErrKeyTooSmall
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	privateBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to encode private key: %w", err)
	}

	publicBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to encode public key: %w", err)
	}

	if err := writePEM(privatePath, "PRIVATE KEY", privateBytes, 0o600); err != nil {
		return err
	}

	return writePEM(publicPath, "PUBLIC KEY", publicBytes, 0o644)
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return f.Close()
}
