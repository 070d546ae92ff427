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

	"github.com/aretw0/outline/pkg/domain"
	"github.com/aretw0/outline/pkg/ports"
)

// EnvelopeNodeID is the id of the single node carrying an encrypted snapshot.
const EnvelopeNodeID = "__encrypted__"

const envelopeKey = "ciphertext"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are older keys tried when the active key fails.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.SnapshotStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that stores each snapshot as an
// AES-GCM sealed envelope. Only the project id and version stay readable.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &encryptionMiddleware{next: next, config: config}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, projectID string, snap *domain.Snapshot) error {
	envelope, err := seal(snap, m.config.ActiveKey)
	if err != nil {
		return err
	}
	return m.next.Save(ctx, projectID, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, projectID string) (*domain.Snapshot, error) {
	envelope, err := m.next.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !isEnvelope(envelope) {
		return nil, errors.New("snapshot is missing encrypted data envelope")
	}
	return unseal(envelope, m.config)
}

// seal returns an envelope carrying snap encrypted with key.
func seal(snap *domain.Snapshot, key []byte) (*domain.Snapshot, error) {
	plainText, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	encoded, err := sealBytes(plainText, key)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt snapshot: %w", err)
	}
	return &domain.Snapshot{
		Meta: domain.Meta{
			ID:            snap.Meta.ID,
			LatestVersion: snap.Meta.LatestVersion,
		},
		Nodes: []domain.Node{{
			ID:      EnvelopeNodeID,
			Payload: map[string]string{envelopeKey: encoded},
		}},
		Edges:     []domain.Edge{},
		UpdatedAt: snap.UpdatedAt,
		Status:    snap.Status,
	}, nil
}

// sealBytes encrypts plain with key and returns it base64 encoded.
func sealBytes(plain, key []byte) (string, error) {
	ciphertext, err := encrypt(plain, key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// unsealBytes reverses sealBytes, trying every configured key.
func unsealBytes(encoded string, config EncryptionConfig) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	return decryptWithRotation(ciphertext, config.ActiveKey, config.FallbackKeys)
}

func isEnvelope(snap *domain.Snapshot) bool {
	if snap == nil || len(snap.Nodes) != 1 || snap.Nodes[0].ID != EnvelopeNodeID {
		return false
	}
	_, ok := snap.Nodes[0].Payload[envelopeKey]
	return ok
}

// unseal decrypts an envelope made by seal, trying every configured key.
func unseal(envelope *domain.Snapshot, config EncryptionConfig) (*domain.Snapshot, error) {
	plainText, err := unsealBytes(envelope.Nodes[0].Payload[envelopeKey], config)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt snapshot: %w", err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(plainText, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted snapshot: %w", err)
	}
	return &snap, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, projectID string) error {
	return m.next.Delete(ctx, projectID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
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

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	for _, key := range append([][]byte{activeKey}, fallbackKeys...) {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
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

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
