package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the secure-store service identifier.
	ServiceName = "inword"

	// KeyAccount stores the device KB key.
	KeyAccount = "kb_key"

	// BackupFlagAccount stores whether the user enabled key backup.
	BackupFlagAccount = "kb_backup_flag"
)

// Vault owns the device-resident symmetric key. It is the only component
// that mutates the key, and only on explicit user action; there is no
// implicit rotation. The OS secure store is the primary backend; when it
// cannot be reached the vault degrades to 0600 files under the data
// directory, which weakens confidentiality to filesystem permissions but
// changes no behavior.
type Vault struct {
	service  string
	fallback *fileStore
	useFile  bool
}

// NewVault probes the OS secure store and degrades to a file store under
// dataDir when the probe fails. The degradation is logged as a warning.
func NewVault(dataDir string) *Vault {
	v := &Vault{service: ServiceName, fallback: newFileStore(dataDir)}
	if err := probeSecureStore(v.service); err != nil {
		v.useFile = true
		log.Warn().Err(err).
			Str("path", v.fallback.dir).
			Msg("secure store unavailable, using file-resident key")
	}
	return v
}

func probeSecureStore(service string) error {
	_, err := keyring.Get(service, KeyAccount)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrSecureStoreUnavailable, err)
}

// UsingFallback reports whether the key lives in the file fallback rather
// than the OS secure store.
func (v *Vault) UsingFallback() bool {
	return v.useFile
}

// GetOrCreateKey returns the device key, generating and persisting one on
// first use. Repeated calls return the same key until DeleteKey.
func (v *Vault) GetOrCreateKey() (string, error) {
	key, err := v.get(KeyAccount)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("read kb key: %w", err)
	}

	key, err = GenerateKey()
	if err != nil {
		return "", err
	}
	if err := v.set(KeyAccount, key); err != nil {
		return "", fmt.Errorf("store kb key: %w", err)
	}
	log.Info().Bool("fallback_store", v.useFile).Msg("generated new kb key")
	return key, nil
}

// HasKey reports whether a device key is stored.
func (v *Vault) HasKey() bool {
	_, err := v.get(KeyAccount)
	return err == nil
}

// SetKey overwrites the device key. Restore flows use this after
// unwrapping a backup.
func (v *Vault) SetKey(key string) error {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(raw) != KeySize {
		return ErrInvalidKey
	}
	if err := v.set(KeyAccount, key); err != nil {
		return fmt.Errorf("store kb key: %w", err)
	}
	return nil
}

// DeleteKey removes the device key. Everything encrypted under it becomes
// permanently unrecoverable; there is no undo.
func (v *Vault) DeleteKey() error {
	if err := v.del(KeyAccount); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete kb key: %w", err)
	}
	log.Warn().Msg("kb key deleted")
	return nil
}

// BackupEnabled reports the key-backup flag; absent means disabled.
func (v *Vault) BackupEnabled() (bool, error) {
	val, err := v.get(BackupFlagAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read backup flag: %w", err)
	}
	return val == "true", nil
}

// SetBackupEnabled stores the key-backup flag.
func (v *Vault) SetBackupEnabled(enabled bool) error {
	val := "false"
	if enabled {
		val = "true"
	}
	if err := v.set(BackupFlagAccount, val); err != nil {
		return fmt.Errorf("store backup flag: %w", err)
	}
	return nil
}

// ExportWrapped wraps the device key under a passphrase and returns the
// wrapped blob. The caller decides where the blob lives; the CLI stores it
// in the KB row's encrypted_key_backup column.
func (v *Vault) ExportWrapped(passphrase string) (string, error) {
	key, err := v.get(KeyAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoKey
	}
	if err != nil {
		return "", fmt.Errorf("read kb key: %w", err)
	}
	return WrapKey(key, passphrase)
}

// ImportWrapped unwraps a backup blob and installs the recovered key,
// overwriting any existing one.
func (v *Vault) ImportWrapped(wrapped, passphrase string) error {
	key, err := UnwrapKey(wrapped, passphrase)
	if err != nil {
		return err
	}
	return v.SetKey(key)
}

func (v *Vault) get(account string) (string, error) {
	if v.useFile {
		val, err := v.fallback.get(account)
		if errors.Is(err, os.ErrNotExist) {
			return "", keyring.ErrNotFound
		}
		return val, err
	}
	return keyring.Get(v.service, account)
}

func (v *Vault) set(account, value string) error {
	if v.useFile {
		return v.fallback.set(account, value)
	}
	return keyring.Set(v.service, account, value)
}

func (v *Vault) del(account string) error {
	if v.useFile {
		return v.fallback.del(account)
	}
	return keyring.Delete(v.service, account)
}

// fileStore keeps secrets as 0600 files under dataDir/keys. It is the
// weaker fallback for platforms without a reachable secure store.
type fileStore struct {
	dir string
}

func newFileStore(dataDir string) *fileStore {
	return &fileStore{dir: filepath.Join(dataDir, "keys")}
}

func (f *fileStore) path(account string) string {
	return filepath.Join(f.dir, account)
}

func (f *fileStore) get(account string) (string, error) {
	data, err := os.ReadFile(f.path(account))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *fileStore) set(account, value string) error {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	return os.WriteFile(f.path(account), []byte(value), 0600)
}

func (f *fileStore) del(account string) error {
	err := os.Remove(f.path(account))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
