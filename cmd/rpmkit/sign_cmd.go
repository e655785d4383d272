package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/rpmkit/internal/rpm"
	"github.com/open-edge-platform/rpmkit/internal/rpm/batch"
	"github.com/open-edge-platform/rpmkit/internal/utils/config"
	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

type signOptions struct {
	keyFile string
}

// createSignCommand creates the sign subcommand
func createSignCommand() *cobra.Command {
	opts := &signOptions{}
	signCmd := &cobra.Command{
		Use:   "sign [flags] PACKAGE_FILE...",
		Short: "Sign packages in place",
		Long: `Sign replaces the signature header of each package with fresh digests
and two OpenPGP signatures: one over the main header and one over the
main header and payload. Files are rewritten atomically.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeSign(cmd, opts, args)
		},
	}
	signCmd.Flags().StringVar(&opts.keyFile, "key", "", "Private key file (overrides config)")
	return signCmd
}

func executeSign(cmd *cobra.Command, opts *signOptions, paths []string) error {
	log := logger.Logger()

	signer, err := loadSigner(opts.keyFile)
	if err != nil {
		return err
	}
	log.Infof("signing %d packages with key %s", len(paths), signer.KeyID())

	results := batch.Run(commandContext(cmd), paths, batch.Options{
		Workers:     config.NewConfigHelpers(globalConfig).Workers(),
		Description: "signing",
		Progress:    cmd.ErrOrStderr(),
	}, func(_ context.Context, path string) (string, error) {
		return signFile(path, signer)
	})

	for _, r := range results {
		if r.OK {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: signed\n", r.Path)
		}
	}
	if failed := batch.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d packages failed to sign, first: %s: %w", len(failed), len(results), failed[0].Path, failed[0].Error)
	}
	return nil
}

func signFile(path string, signer rpm.Signer) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	pkg, err := rpm.ParsePackage(f)
	f.Close()
	if err != nil {
		return "", err
	}
	name, _ := pkg.Metadata.NEVRA()
	if err := pkg.Sign(signer); err != nil {
		return name, err
	}
	return name, writePackageFile(path, pkg)
}
