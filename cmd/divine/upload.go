package main

import (
	"fmt"

	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/infrastructure/chunkdir"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload packaged chunks into the record store",
		Long: `Read data_0.txt, data_1.txt, ... from the chunk directory until the first
missing index and append each to the stored artifact. The stored artifact
is cleared first unless --no-clear is given.`,
		Args: cobra.NoArgs,
		RunE: runUpload,
	}
	cmd.Flags().String("dir", "", "Chunk directory (default: chunks.dir from config)")
	cmd.Flags().Bool("no-clear", false, "Append to the stored artifact instead of replacing it")
	return cmd
}

func runUpload(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	dirPath := a.cfg.Chunks.Dir
	if d, _ := cmd.Flags().GetString("dir"); d != "" {
		dirPath = d
	}
	chunks, err := chunkdir.New(dirPath).ReadAll()
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks in %s", dirPath)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if noClear, _ := cmd.Flags().GetBool("no-clear"); !noClear {
		resp, err := a.service.Handle(ctx, a.caller, entities.Request{Clear: true})
		if err != nil {
			return err
		}
		if !resp.OK {
			return fmt.Errorf("caller %q may not clear the artifact", a.caller.CallerID)
		}
	}

	total := 0
	for _, chunk := range chunks {
		resp, err := a.service.Handle(ctx, a.caller, entities.Request{Upload: chunk.Text})
		if err != nil {
			return fmt.Errorf("upload chunk %d: %w", chunk.Index, err)
		}
		if !resp.OK {
			return fmt.Errorf("caller %q may not upload", a.caller.CallerID)
		}
		total += len(chunk.Text) / 2
		fmt.Fprintf(out, "chunk %d: %s\n", chunk.Index, resp.Msg)
	}

	fmt.Fprintf(out, "uploaded %d chunks (%s)\n", len(chunks), humanize.Bytes(uint64(total)))
	return nil
}
