package main

import (
	"context"
	"fmt"

	"github.com/open-edge-platform/rpmkit/internal/rpm/pgpsig"
	"github.com/open-edge-platform/rpmkit/internal/utils/config"
)

// loadSigner opens the private key named by keyFile or, when empty, by the
// configuration.
func loadSigner(keyFile string) (*pgpsig.Signer, error) {
	helpers := config.NewConfigHelpers(globalConfig)
	if keyFile == "" {
		var err error
		if keyFile, err = helpers.SigningKeyFile(); err != nil {
			return nil, fmt.Errorf("no signing key given: use --key or set signing.key_file")
		}
	}
	return pgpsig.LoadSigner(keyFile, helpers.Passphrase())
}

// loadVerifier loads public keys from source or, when empty, from the
// configured key source.
func loadVerifier(ctx context.Context, source string) (*pgpsig.Verifier, error) {
	if source == "" {
		source = config.NewConfigHelpers(globalConfig).VerifyKeySource()
	}
	if source == "" {
		return nil, fmt.Errorf("no verification key given: use --key or set verify.key_source")
	}
	keys, err := pgpsig.LoadKeyRing(ctx, source)
	if err != nil {
		return nil, err
	}
	return pgpsig.NewVerifier(keys), nil
}
