package keys

import (
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tech-arch1tect/tokenchain/autherr"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/zap"
)

const minKeyBits = 2048

var (
	ErrNotPEM          = errors.New("content is not PEM encoded")
	ErrUnexpectedBlock = errors.New("unexpected PEM block type")
	ErrKeyTooSmall     = errors.New("RSA key is smaller than 2048 bits")
	ErrKeyMismatch     = errors.New("public key does not match private key")
)

// KeyPair holds the signing and verification halves of the RS256 keypair.
type KeyPair struct {
	Signing      *rsa.PrivateKey
	Verification *rsa.PublicKey
}

type Provider interface {
	Load() (*KeyPair, error)
}

// FileProvider reads the keypair from PEM files. The first successful load is
// cached for the life of the process; failed loads are retried on next call.
type FileProvider struct {
	privatePath string
	publicPath  string
	logger      *logging.Service

	mu   sync.Mutex
	pair *KeyPair
}

func NewFileProvider(cfg config.AuthConfig, logger *logging.Service) *FileProvider {
	return &FileProvider{
		privatePath: cfg.PrivateKeyPath,
		publicPath:  cfg.PublicKeyPath,
		logger:      logger,
	}
}

func (p *FileProvider) Load() (*KeyPair, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pair != nil {
		return p.pair, nil
	}

	signing, err := loadPrivateKey(p.privatePath)
	if err != nil {
		return nil, err
	}

	verification, err := loadPublicKey(p.publicPath)
	if err != nil {
		return nil, err
	}

	if signing.PublicKey.N.Cmp(verification.N) != 0 || signing.PublicKey.E != verification.E {
		return nil, &autherr.KeyLoadError{Path: p.publicPath, Err: ErrKeyMismatch}
	}

	p.pair = &KeyPair{Signing: signing, Verification: verification}

	if p.logger != nil {
		p.logger.Info("token signing keys loaded",
			zap.String("private_key_path", p.privatePath),
			zap.String("public_key_path", p.publicPath),
			zap.Int("bits", verification.N.BitLen()))
	}

	return p.pair, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := readPEM(path, "RSA PRIVATE KEY", "PRIVATE KEY")
	if err != nil {
		return nil, err
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, &autherr.KeyLoadError{Path: path, Err: err}
	}

	if key.N.BitLen() < minKeyBits {
		return nil, &autherr.KeyLoadError{Path: path, Err: ErrKeyTooSmall}
	}

	return key, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := readPEM(path, "PUBLIC KEY", "RSA PUBLIC KEY")
	if err != nil {
		return nil, err
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, &autherr.KeyLoadError{Path: path, Err: err}
	}

	if key.N.BitLen() < minKeyBits {
		return nil, &autherr.KeyLoadError{Path: path, Err: ErrKeyTooSmall}
	}

	return key, nil
}

func readPEM(path string, allowedTypes ...string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &autherr.KeyLoadError{Path: path, Err: err}
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, &autherr.KeyLoadError{Path: path, Err: ErrNotPEM}
	}

	for _, allowed := range allowedTypes {
		if block.Type == allowed {
			return data, nil
		}
	}

	return nil, &autherr.KeyLoadError{Path: path, Err: fmt.Errorf("%w: %s", ErrUnexpectedBlock, block.Type)}
}

// StaticProvider serves a keypair that is already in memory.
type StaticProvider struct {
	pair *KeyPair
}

func NewStaticProvider(signing *rsa.PrivateKey) *StaticProvider {
	return &StaticProvider{pair: &KeyPair{Signing: signing, Verification: &signing.PublicKey}}
}

func (p *StaticProvider) Load() (*KeyPair, error) {
	return p.pair, nil
}
