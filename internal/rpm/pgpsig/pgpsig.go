// Package pgpsig signs and verifies package headers with OpenPGP keys,
// producing the detached binary signatures that rpm stores in the
// signature header.
package pgpsig

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
	"github.com/open-edge-platform/rpmkit/internal/utils/network"
)

var (
	ErrNoPrivateKey = errors.New("key has no private part")
	ErrNoKeys       = errors.New("no OpenPGP keys found")
)

func defaultConfig() *packet.Config {
	return &packet.Config{DefaultHash: crypto.SHA256}
}

// Signer signs with one OpenPGP entity whose private key is decrypted.
type Signer struct {
	entity *openpgp.Entity
	config *packet.Config
}

// NewSigner wraps e. An encrypted private key is unlocked with passphrase.
func NewSigner(e *openpgp.Entity, passphrase []byte) (*Signer, error) {
	if e.PrivateKey == nil {
		return nil, ErrNoPrivateKey
	}
	if e.PrivateKey.Encrypted {
		if err := e.PrivateKey.Decrypt(passphrase); err != nil {
			return nil, fmt.Errorf("unlocking private key: %w", err)
		}
	}
	for _, sub := range e.Subkeys {
		if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
			if err := sub.PrivateKey.Decrypt(passphrase); err != nil {
				return nil, fmt.Errorf("unlocking private subkey: %w", err)
			}
		}
	}
	return &Signer{entity: e, config: defaultConfig()}, nil
}

// KeyID is the hex id of the signing key.
func (s *Signer) KeyID() string {
	return s.entity.PrimaryKey.KeyIdString()
}

func (s *Signer) Sign(data []byte) ([]byte, error) {
	return s.SignStream(bytes.NewReader(data))
}

func (s *Signer) SignStream(r io.Reader) ([]byte, error) {
	var sig bytes.Buffer
	if err := openpgp.DetachSign(&sig, s.entity, r, s.config); err != nil {
		return nil, err
	}
	return sig.Bytes(), nil
}

// Verifier checks detached signatures against a key ring. It only reads
// the key ring and is safe for concurrent use.
type Verifier struct {
	keys   openpgp.EntityList
	config *packet.Config
}

// NewVerifier returns a verifier trusting keys.
func NewVerifier(keys openpgp.EntityList) *Verifier {
	return &Verifier{keys: keys, config: defaultConfig()}
}

func (v *Verifier) Verify(data, signature []byte) error {
	return v.VerifyStream(bytes.NewReader(data), signature)
}

func (v *Verifier) VerifyStream(r io.Reader, signature []byte) error {
	_, err := openpgp.CheckDetachedSignature(v.keys, r, bytes.NewReader(signature), v.config)
	return err
}

// ReadKeyRing parses armored or binary OpenPGP keys.
func ReadKeyRing(data []byte) (openpgp.EntityList, error) {
	var (
		keys openpgp.EntityList
		err  error
	)
	if bytes.Contains(data, []byte("-----BEGIN PGP")) {
		keys, err = openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	} else {
		keys, err = openpgp.ReadKeyRing(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("reading key ring: %w", err)
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	return keys, nil
}

// LoadKeyRing reads keys from a local path or an https URL.
func LoadKeyRing(ctx context.Context, source string) (openpgp.EntityList, error) {
	log := logger.Logger()

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "https://") {
		data, err = network.FetchURL(ctx, network.NewSecureHTTPClient(), source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("loading keys from %s: %w", source, err)
	}
	log.Infof("fetched OpenPGP key material (%d bytes) from %s", len(data), source)
	return ReadKeyRing(data)
}

// LoadSigner reads a private key file and unlocks it with passphrase.
func LoadSigner(path string, passphrase []byte) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}
	keys, err := ReadKeyRing(data)
	if err != nil {
		return nil, err
	}
	for _, e := range keys {
		if e.PrivateKey != nil {
			return NewSigner(e, passphrase)
		}
	}
	return nil, ErrNoPrivateKey
}

// GenerateKey creates an RSA key pair for package signing.
func GenerateKey(name, email string, bits int) (*openpgp.Entity, error) {
	cfg := defaultConfig()
	cfg.Algorithm = packet.PubKeyAlgoRSA
	cfg.RSABits = bits
	e, err := openpgp.NewEntity(name, "package signing", email, cfg)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return e, nil
}

// WriteArmored writes the public key of e, or the full private key when
// private is set, in ASCII armor.
func WriteArmored(w io.Writer, e *openpgp.Entity, private bool) error {
	blockType := openpgp.PublicKeyType
	if private {
		blockType = openpgp.PrivateKeyType
	}
	aw, err := armor.Encode(w, blockType, nil)
	if err != nil {
		return err
	}
	if private {
		err = e.SerializePrivate(aw, defaultConfig())
	} else {
		err = e.Serialize(aw)
	}
	if err != nil {
		aw.Close()
		return fmt.Errorf("serializing key: %w", err)
	}
	return aw.Close()
}
