package transform

import (
	"context"
	"crypto/rand"
	"io"

	"github.com/walteh/deployrc/pkg/target"
	"github.com/zalando/go-keyring"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// KeyringService is the OS keyring service holding target passwords
const KeyringService = "deployrc"

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

// scrypt cost parameters
var (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// ErrDecrypt is returned when encrypted content cannot be opened
var ErrDecrypt = errors.Base("decrypting content failed")

// 🔑 SecretSource resolves the password of a target. An empty password disables encryption.
type SecretSource interface {
	Password(t *target.Target) (string, error)
}

// 🔐 KeyringSecrets returns the inline target password, or looks up PasswordKeyring in the OS keyring
type KeyringSecrets struct {
	Service string
}

// Password implements SecretSource
func (k KeyringSecrets) Password(t *target.Target) (string, error) {
	if t == nil {
		return "", nil
	}
	if t.Password != "" {
		return t.Password, nil
	}
	if t.PasswordKeyring == "" {
		return "", nil
	}

	service := k.Service
	if service == "" {
		service = KeyringService
	}

	pw, err := keyring.Get(service, t.PasswordKeyring)
	if err != nil {
		return "", errors.Errorf("reading password of %q from keyring: %w", t.PasswordKeyring, err)
	}
	return pw, nil
}

// 🔒 WithPassword appends encryption to tr when the target has a password
func WithPassword(tr Transformer, t *target.Target, secrets SecretSource) (Transformer, error) {
	if secrets == nil {
		secrets = KeyringSecrets{}
	}

	pw, err := secrets.Password(t)
	if err != nil {
		return nil, err
	}
	if pw == "" {
		return tr, nil
	}

	return Chain(tr, func(_ context.Context, data []byte, _ Context) ([]byte, error) {
		return Encrypt(data, pw)
	}), nil
}

func deriveKey(password string, salt []byte) (*[keySize]byte, error) {
	k, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, errors.Errorf("deriving key: %w", err)
	}
	var key [keySize]byte
	copy(key[:], k)
	return &key, nil
}

// Encrypt seals data with a key derived from password.
// Format: [salt:16][nonce:24][secretbox]
func Encrypt(data []byte, password string) ([]byte, error) {
	header := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(rand.Reader, header); err != nil {
		return nil, errors.Errorf("generating salt and nonce: %w", err)
	}

	key, err := deriveKey(password, header[:saltSize])
	if err != nil {
		return nil, err
	}

	var nonce [nonceSize]byte
	copy(nonce[:], header[saltSize:])

	return secretbox.Seal(header, data, &nonce, key), nil
}

// Decrypt opens content produced by Encrypt
func Decrypt(data []byte, password string) ([]byte, error) {
	if len(data) < saltSize+nonceSize+secretbox.Overhead {
		return nil, errors.Errorf("%w: content too short", ErrDecrypt)
	}

	key, err := deriveKey(password, data[:saltSize])
	if err != nil {
		return nil, err
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[saltSize:saltSize+nonceSize])

	out, ok := secretbox.Open(nil, data[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return nil, errors.Errorf("%w: wrong password or corrupted content", ErrDecrypt)
	}
	return out, nil
}
