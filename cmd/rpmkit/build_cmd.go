package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/rpmkit/internal/rpm"
	"github.com/open-edge-platform/rpmkit/internal/rpm/builder"
	"github.com/open-edge-platform/rpmkit/internal/utils/config"
	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

type buildOptions struct {
	output  string
	sign    bool
	keyFile string
}

// createBuildCommand creates the build subcommand
func createBuildCommand() *cobra.Command {
	opts := &buildOptions{}
	buildCmd := &cobra.Command{
		Use:   "build [flags] MANIFEST_FILE",
		Short: "Build a package from a YAML manifest",
		Long: `Build assembles a package from a YAML manifest describing its metadata,
dependencies, scripts, changelog and files. The package is written to
--output, or to NAME-VERSION-RELEASE.ARCH.rpm next to the manifest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeBuild(cmd, opts, args[0])
		},
	}

	buildCmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output package path")
	buildCmd.Flags().BoolVar(&opts.sign, "sign", false, "Sign the package after building it")
	buildCmd.Flags().StringVar(&opts.keyFile, "key", "", "Private key for --sign (overrides config)")
	return buildCmd
}

func executeBuild(cmd *cobra.Command, opts *buildOptions, manifest string) error {
	log := logger.Logger()

	compression, err := config.NewConfigHelpers(globalConfig).Compression()
	if err != nil {
		return err
	}
	b, err := builder.LoadManifest(manifest, compression)
	if err != nil {
		return err
	}

	var pkg *rpm.Package
	if opts.sign {
		signer, err := loadSigner(opts.keyFile)
		if err != nil {
			return err
		}
		log.Infof("signing with key %s", signer.KeyID())
		pkg, err = b.BuildAndSign(signer)
		if err != nil {
			return err
		}
	} else {
		if pkg, err = b.Build(); err != nil {
			return err
		}
	}

	output := opts.output
	if output == "" {
		nevra := fmt.Sprintf("%s-%s-%s.%s.rpm", b.Name, b.Version, b.Release, b.Arch)
		output = filepath.Join(filepath.Dir(manifest), nevra)
	}
	if err := writePackageFile(output, pkg); err != nil {
		return err
	}
	log.Infof("wrote %s", output)
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}
