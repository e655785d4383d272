package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/rpmkit/internal/rpm/pgpsig"
	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

type keygenOptions struct {
	name       string
	email      string
	bits       int
	privateOut string
	publicOut  string
}

// createKeygenCommand creates the keygen subcommand
func createKeygenCommand() *cobra.Command {
	opts := &keygenOptions{}
	keygenCmd := &cobra.Command{
		Use:   "keygen [flags]",
		Short: "Generate an OpenPGP key pair for package signing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeKeygen(cmd, opts)
		},
	}
	keygenCmd.Flags().StringVar(&opts.name, "name", "", "Name of the key owner (required)")
	keygenCmd.Flags().StringVar(&opts.email, "email", "", "Email address of the key owner")
	keygenCmd.Flags().IntVar(&opts.bits, "bits", 3072, "RSA key size in bits")
	keygenCmd.Flags().StringVar(&opts.privateOut, "out-private", "signing-key.asc", "Where to write the armored private key")
	keygenCmd.Flags().StringVar(&opts.publicOut, "out-public", "signing-key.pub.asc", "Where to write the armored public key")
	_ = keygenCmd.MarkFlagRequired("name")
	return keygenCmd
}

func executeKeygen(cmd *cobra.Command, opts *keygenOptions) error {
	log := logger.Logger()
	if opts.bits < 2048 {
		return fmt.Errorf("key size %d is too small, use at least 2048 bits", opts.bits)
	}

	log.Infof("generating %d-bit RSA key for %q", opts.bits, opts.name)
	e, err := pgpsig.GenerateKey(opts.name, opts.email, opts.bits)
	if err != nil {
		return err
	}

	if err := writeKeyFile(opts.privateOut, 0600, func(f *os.File) error {
		return pgpsig.WriteArmored(f, e, true)
	}); err != nil {
		return err
	}
	if err := writeKeyFile(opts.publicOut, 0644, func(f *os.File) error {
		return pgpsig.WriteArmored(f, e, false)
	}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "key %X\nprivate: %s\npublic:  %s\n",
		e.PrimaryKey.KeyId, opts.privateOut, opts.publicOut)
	return nil
}

func writeKeyFile(path string, perm os.FileMode, write func(*os.File) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
