package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// EnvelopeKey is the variable holding the ciphertext of an encrypted snapshot.
const EnvelopeKey = "__encrypted__"

var (
	// ErrInvalidKey is returned for keys that are not 32 bytes.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes (AES-256)")
	// ErrMissingEnvelope is returned when loading a snapshot that was not encrypted.
	ErrMissingEnvelope = errors.New("snapshot is missing encrypted data envelope")
	// ErrDecrypt is returned when no configured key opens the envelope.
	ErrDecrypt = errors.New("decryption failed with all available keys")
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts new snapshots.
	ActiveKey []byte

	// FallbackKeys are tried after ActiveKey when decrypting, for key rotation.
	FallbackKeys [][]byte
}

// sealed is what gets encrypted: everything carrying process data.
type sealed struct {
	Variables map[string]any    `json:"variables,omitempty"`
	WorkItems []domain.WorkItem `json:"work_items,omitempty"`
}

type encryptionMiddleware struct {
	next   ports.SnapshotStore
	config EncryptionConfig
}

// NewEncryptionMiddleware encrypts variables and work items with AES-GCM.
// Structural fields (state, node instances, completed ids) stay readable for monitoring.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, ErrInvalidKey
	}
	for _, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key: %w", ErrInvalidKey)
		}
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, key string, snapshot *domain.ProcessSnapshot) error {
	plainText, err := json.Marshal(sealed{Variables: snapshot.Variables, WorkItems: snapshot.WorkItems})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot data: %w", err)
	}
	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	envelope := *snapshot
	envelope.Variables = map[string]any{EnvelopeKey: base64.StdEncoding.EncodeToString(ciphertext)}
	envelope.WorkItems = nil
	return m.next.Save(ctx, key, &envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, key string) (*domain.ProcessSnapshot, error) {
	envelope, err := m.next.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	encoded, ok := envelope.Variables[EnvelopeKey].(string)
	if !ok {
		return nil, ErrMissingEnvelope
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, err
	}

	var data sealed
	if err := json.Unmarshal(plainText, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted snapshot: %w", err)
	}
	envelope.Variables = data.Variables
	envelope.WorkItems = data.WorkItems
	return envelope, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	for _, key := range append([][]byte{activeKey}, fallbackKeys...) {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, ErrDecrypt
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
