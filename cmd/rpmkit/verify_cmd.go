package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/rpmkit/internal/rpm"
	"github.com/open-edge-platform/rpmkit/internal/rpm/batch"
	"github.com/open-edge-platform/rpmkit/internal/utils/config"
	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

type verifyOptions struct {
	keySource   string
	noSignature bool
	reportDir   string
}

// createVerifyCommand creates the verify subcommand
func createVerifyCommand() *cobra.Command {
	opts := &verifyOptions{}
	verifyCmd := &cobra.Command{
		Use:   "verify [flags] PACKAGE_FILE...",
		Short: "Verify package digests and signatures",
		Long: `Verify checks the size and digest entries of each package and, unless
--no-signature is given, both OpenPGP signatures against the public keys
from --key or the configured key source (a file or an https URL).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeVerify(cmd, opts, args)
		},
	}
	verifyCmd.Flags().StringVar(&opts.keySource, "key", "", "Public key file or https URL (overrides config)")
	verifyCmd.Flags().BoolVar(&opts.noSignature, "no-signature", false, "Only check digests")
	verifyCmd.Flags().StringVar(&opts.reportDir, "report", "", "Directory to append a verification report to")
	return verifyCmd
}

func executeVerify(cmd *cobra.Command, opts *verifyOptions, paths []string) error {
	log := logger.Logger()

	var verifier rpm.Verifier
	if !opts.noSignature {
		v, err := loadVerifier(commandContext(cmd), opts.keySource)
		if err != nil {
			return err
		}
		verifier = v
	}

	results := batch.VerifyAll(commandContext(cmd), paths, verifier, batch.Options{
		Workers:  config.NewConfigHelpers(globalConfig).Workers(),
		Progress: cmd.ErrOrStderr(),
	})

	report := logger.NewReport("verify")
	for _, r := range results {
		if r.OK {
			report.Addf("%s: OK", r.Path)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%s)\n", r.Path, r.NEVRA)
		} else {
			report.Addf("%s: FAILED: %v", r.Path, r.Error)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: FAILED: %v\n", r.Path, r.Error)
		}
	}
	if opts.reportDir != "" {
		path, err := report.WriteToDir(opts.reportDir)
		if err != nil {
			return err
		}
		log.Infof("verification report written to %s", path)
	}

	if failed := batch.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d packages failed verification", len(failed), len(results))
	}
	log.Infof("all %d packages verified", len(results))
	return nil
}
