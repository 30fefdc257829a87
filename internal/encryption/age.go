package encryption

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"riverbank/internal/config"
	"riverbank/internal/riverbank"
)

// sealedPrefix marks an origin address sealed with age.
const sealedPrefix = "age:"

// AgeKeys manages the X25519 key pair used to seal origin addresses.
// The public key is stored in plaintext so the server can seal without any
// secret; the private key is encrypted with an operator passphrase using
// age's scrypt-based passphrase encryption and is only needed to reveal.
type AgeKeys struct {
	publicKeyPath  string
	privateKeyPath string
}

// NewAgeKeys creates AgeKeys from configuration.
func NewAgeKeys(cfg config.SealingConfig) *AgeKeys {
	return &AgeKeys{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup generates a new key pair. It refuses to overwrite existing keys,
// since that would make every sealed origin unreadable.
func (k *AgeKeys) Setup(passphrase string) error {
	if k.IsConfigured() {
		return fmt.Errorf("keys already exist at %s", k.publicKeyPath)
	}
	if passphrase == "" {
		return fmt.Errorf("passphrase cannot be empty")
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, p := range []string{k.publicKeyPath, k.privateKeyPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(k.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	privFile, err := os.OpenFile(k.privateKeyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating private key file: %w", err)
	}
	defer privFile.Close()

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	w, err := age.Encrypt(privFile, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing encrypted private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted private key: %w", err)
	}
	return nil
}

// IsConfigured returns true if both key files exist.
func (k *AgeKeys) IsConfigured() bool {
	if _, err := os.Stat(k.publicKeyPath); err != nil {
		return false
	}
	if _, err := os.Stat(k.privateKeyPath); err != nil {
		return false
	}
	return true
}

// Sealer loads the public key and returns a sealer for it.
func (k *AgeKeys) Sealer() (*AgeSealer, error) {
	pubData, err := os.ReadFile(k.publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(pubData))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients found in public key file")
	}
	return NewAgeSealer(recipients[0]), nil
}

// Unlock decrypts the private key with passphrase and returns an Opener.
func (k *AgeKeys) Unlock(passphrase string) (*Opener, error) {
	privData, err := os.ReadFile(k.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(privData), scrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}

	identities, err := age.ParseIdentities(r)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in private key")
	}
	return NewOpener(identities[0]), nil
}

// AgeSealer encrypts origin addresses to a single age recipient.
type AgeSealer struct {
	recipient age.Recipient
}

var _ riverbank.OriginSealer = (*AgeSealer)(nil)

func NewAgeSealer(recipient age.Recipient) *AgeSealer {
	return &AgeSealer{recipient: recipient}
}

// Seal returns "age:" followed by the base64 age ciphertext of origin.
// Every call produces a different ciphertext.
func (s *AgeSealer) Seal(origin string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return "", fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, origin); err != nil {
		return "", fmt.Errorf("encrypting origin: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing encryption: %w", err)
	}
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(buf.Bytes()), nil
}

// IsSealed reports whether value was produced by AgeSealer.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}

// Opener reveals sealed origin addresses with an unlocked identity.
type Opener struct {
	identity age.Identity
}

func NewOpener(identity age.Identity) *Opener {
	return &Opener{identity: identity}
}

// Open decrypts a sealed origin. Values that were never sealed are returned as-is.
func (o *Opener) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}

	ciphertext, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decoding sealed origin: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), o.identity)
	if err != nil {
		return "", fmt.Errorf("decrypting origin: %w", err)
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading origin: %w", err)
	}
	return string(plain), nil
}
