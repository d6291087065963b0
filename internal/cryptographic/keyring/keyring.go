// Package keyring owns symmetric key material: a single user-wide key
// plus per-group keys, generated on first use and persisted through the
// local cache store's settings records. Keys leave the device only via
// the explicit Export path.
package keyring

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"

	"ledgerchat/internal/cryptographic/encryption"
	"ledgerchat/internal/cryptographic/kdf"
)

const (
	keySize = 32

	settingUserKey     = "crypto.user_key"
	settingGroupPrefix = "crypto.group_key."

	stretchInfo = "ledgerchat envelope key v1"
)

// Settings is the persistence the keyring needs; implemented by the
// cache store.
type Settings interface {
	GetSetting(key string) (string, bool, error)
	PutSetting(key, value string) error
	DeleteSetting(key string) error
}

type Keyring struct {
	mu       sync.Mutex
	settings Settings
	cache    map[string][]byte
}

func New(settings Settings) *Keyring {
	return &Keyring{
		settings: settings,
		cache:    make(map[string][]byte),
	}
}

// UserKey returns the user-wide key, generating and persisting one on
// first use.
func (k *Keyring) UserKey() ([]byte, error) {
	return k.obtain(settingUserKey)
}

// GroupKey returns the key for groupID, generating one on first use.
func (k *Keyring) GroupKey(groupID string) ([]byte, error) {
	if groupID == "" {
		return nil, errors.New("empty group id")
	}
	return k.obtain(settingGroupPrefix + groupID)
}

func (k *Keyring) obtain(setting string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if key, ok := k.cache[setting]; ok {
		return key, nil
	}

	stored, ok, err := k.settings.GetSetting(setting)
	if err != nil {
		return nil, fmt.Errorf("read key record: %w", err)
	}
	if ok {
		key, err := base64.StdEncoding.DecodeString(stored)
		if err == nil && len(key) == keySize {
			k.cache[setting] = key
			return key, nil
		}
		// malformed record, fall through and regenerate
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := k.settings.PutSetting(setting, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("persist key record: %w", err)
	}
	k.cache[setting] = key
	return key, nil
}

// Export returns the user key as a portable string for cross-device
// recovery, generating the key first if absent.
func (k *Keyring) Export() (string, error) {
	key, err := k.UserKey()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// ExportGroup returns the portable form of a group key.
func (k *Keyring) ExportGroup(groupID string) (string, error) {
	key, err := k.GroupKey(groupID)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Import replaces the user key with serialized, validating it by an
// encrypt/decrypt round trip before committing.
func (k *Keyring) Import(serialized string) error {
	return k.importInto(settingUserKey, serialized)
}

// ImportGroup replaces the key for groupID.
func (k *Keyring) ImportGroup(groupID, serialized string) error {
	if groupID == "" {
		return errors.New("empty group id")
	}
	return k.importInto(settingGroupPrefix+groupID, serialized)
}

func (k *Keyring) importInto(setting, serialized string) error {
	if serialized == "" {
		return errors.New("empty key material")
	}

	key, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil || len(key) != keySize {
		// not a raw exported key, stretch it as a recovery phrase
		key = make([]byte, keySize)
		if _, err := kdf.HKDF([]byte(serialized), nil, []byte(stretchInfo), key); err != nil {
			return fmt.Errorf("stretch key phrase: %w", err)
		}
	}

	if err := roundTrip(key); err != nil {
		return errors.Wrap(err, "imported key failed validation")
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.settings.PutSetting(setting, base64.StdEncoding.EncodeToString(key)); err != nil {
		return fmt.Errorf("persist key record: %w", err)
	}
	k.cache[setting] = key
	return nil
}

// Reset destroys the user key and generates a fresh one. Anything
// encrypted under the old key becomes undecryptable.
func (k *Keyring) Reset() error {
	return k.reset(settingUserKey)
}

// ResetGroup destroys and regenerates the key for groupID.
func (k *Keyring) ResetGroup(groupID string) error {
	if groupID == "" {
		return errors.New("empty group id")
	}
	return k.reset(settingGroupPrefix + groupID)
}

func (k *Keyring) reset(setting string) error {
	k.mu.Lock()
	delete(k.cache, setting)
	k.mu.Unlock()
	if err := k.settings.DeleteSetting(setting); err != nil {
		return fmt.Errorf("delete key record: %w", err)
	}
	_, err := k.obtain(setting)
	return err
}

func roundTrip(key []byte) error {
	probe := []byte("keyring round-trip probe")
	sealed, err := encryption.AEADEncrypt(key, probe)
	if err != nil {
		return err
	}
	plain, err := encryption.AEADDecrypt(key, sealed)
	if err != nil {
		return err
	}
	if !bytes.Equal(plain, probe) {
		return errors.New("round trip mismatch")
	}
	return nil
}
