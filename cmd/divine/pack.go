package main

import (
	"fmt"
	"os"

	"github.com/ast-ral/divine/artifact"
	"github.com/ast-ral/divine/infrastructure/chunkdir"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack <wasm>",
		Short: "Split a WebAssembly module into hex chunk files",
		Long: `Hex-encode a WebAssembly module and write it as data_0.txt, data_1.txt, ...
in the chunk directory. Existing chunk files starting at data_0.txt are
removed first.`,
		Args: cobra.ExactArgs(1),
		RunE: runPack,
	}
	cmd.Flags().String("dir", "", "Chunk directory (default: chunks.dir from config)")
	cmd.Flags().Bool("sweep", false, "Remove every stale chunk file, not only the leading run")
	return cmd
}

func runPack(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	dirPath := cfg.Chunks.Dir
	if d, _ := cmd.Flags().GetString("dir"); d != "" {
		dirPath = d
	}
	sweep := cfg.Chunks.Sweep
	if cmd.Flags().Changed("sweep") {
		sweep, _ = cmd.Flags().GetBool("sweep")
	}

	wasm, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	dir := chunkdir.New(dirPath)
	writer := artifact.NewWriter(dir, artifact.WithSweep(sweep), artifact.WithLogger(logger))
	chunks, err := writer.Package(wasm)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "packed %s (%s) into %d chunks in %s\n",
		args[0], humanize.Bytes(uint64(len(wasm))), len(chunks), dir.Path())
	fmt.Fprintf(cmd.OutOrStdout(), "digest %s\n", artifact.Sum(wasm))
	return nil
}
