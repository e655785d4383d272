package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/open-edge-platform/rpmkit/internal/rpm"
	"github.com/open-edge-platform/rpmkit/internal/rpm/processor"
	"github.com/open-edge-platform/rpmkit/internal/utils/config"
	"github.com/open-edge-platform/rpmkit/internal/utils/logger"
)

const processBufferSize = 1 << 20

type processOptions struct {
	keySource string
	progress  bool
}

// createProcessCommand creates the process subcommand
func createProcessCommand() *cobra.Command {
	opts := &processOptions{}
	processCmd := &cobra.Command{
		Use:   "process [flags] INPUT DEST...",
		Short: "Copy a package to several destinations while checking it",
		Long: `Process reads one package from INPUT ("-" for standard input) and writes
it to every DEST in a single pass. The payload size and digests are checked
while streaming, and when a key is available the signatures are verified
before any destination is moved into place.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeProcess(cmd, opts, args[0], args[1:])
		},
	}
	processCmd.Flags().StringVar(&opts.keySource, "key", "", "Public key file or https URL for signature checks")
	processCmd.Flags().BoolVar(&opts.progress, "progress", false, "Show a byte counter on standard error")
	return processCmd
}

func executeProcess(cmd *cobra.Command, opts *processOptions, input string, dests []string) error {
	log := logger.Logger()
	start := time.Now()

	in, err := openInput(cmd, input)
	if err != nil {
		return err
	}
	defer in.Close()

	br := bufio.NewReaderSize(in, processBufferSize)
	md, err := rpm.ParseMetadata(br)
	if err != nil {
		return fmt.Errorf("reading package metadata from %s: %w", input, err)
	}
	nevra, _ := md.NEVRA()
	log.Infof("processing %s from %s to %d destination(s)", nevra, input, len(dests))

	staged := make([]*stagedFile, 0, len(dests))
	abortAll := func() {
		for _, s := range staged {
			s.Abort()
		}
	}
	for _, dest := range dests {
		s, err := createStaged(dest)
		if err != nil {
			abortAll()
			return err
		}
		staged = append(staged, s)
	}

	proc := processor.New()
	proc.AddVerifier(processor.NewSizeVerifier())
	proc.AddVerifier(processor.NewDigestVerifier())
	for _, s := range staged {
		proc.AddDestination(s)
	}
	if opts.progress {
		proc.AddDestination(progressbar.NewOptions64(-1,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription(nevra),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
		))
	}

	n, err := proc.Process(md, br)
	if err != nil {
		abortAll()
		return fmt.Errorf("processing %s: %w", input, err)
	}

	if err := checkStagedSignature(cmd, opts, staged[0]); err != nil {
		abortAll()
		return err
	}

	var commitErr error
	for i, s := range staged {
		if err := s.Commit(); err != nil {
			commitErr = errors.Join(commitErr, err)
			for _, rest := range staged[i+1:] {
				rest.Abort()
			}
			break
		}
	}
	if commitErr != nil {
		return commitErr
	}

	log.Infof("wrote %d bytes to %d destination(s) in %s", n, len(dests), time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes\n", nevra, n)
	return nil
}

// checkStagedSignature re-reads a finished staging file and verifies its
// signatures. It does nothing only when neither --key nor the configuration
// names a key source; a source that cannot be loaded is an error.
func checkStagedSignature(cmd *cobra.Command, opts *processOptions, s *stagedFile) error {
	log := logger.Logger()
	source := opts.keySource
	if source == "" {
		source = config.NewConfigHelpers(globalConfig).VerifyKeySource()
	}
	if source == "" {
		log.Debugf("no key source configured, skipping signature check")
		return nil
	}
	v, err := loadVerifier(commandContext(cmd), source)
	if err != nil {
		return fmt.Errorf("loading verification keys: %w", err)
	}

	f, err := os.Open(s.Name())
	if err != nil {
		return err
	}
	defer f.Close()
	pkg, err := rpm.ParsePackage(bufio.NewReaderSize(f, processBufferSize))
	if err != nil {
		return fmt.Errorf("re-reading %s: %w", s.Name(), err)
	}
	if err := pkg.VerifySignature(v); err != nil {
		return fmt.Errorf("verifying signature: %w", err)
	}
	log.Debugf("signature of %s verified", s.dest)
	return nil
}

func openInput(cmd *cobra.Command, input string) (io.ReadCloser, error) {
	if input == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(input)
}
