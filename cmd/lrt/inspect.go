package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/wippyai/js-runtime/bytecode"
)

func newInspectCommand(a *app) *cobra.Command {
	var noDecode bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Describe a bytecode container or self-contained executable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			data, err := afero.ReadFile(a.fs, args[0])
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:       %s\n", args[0])
			blob := data
			if embedded, ok := bytecode.ExtractExecutable(data); ok {
				fmt.Fprintf(out, "executable: %d byte image\n", len(data)-len(embedded)-bytecode.TrailerLength)
				blob = embedded
			}

			h, err := bytecode.ReadHeader(blob)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "version:    %s\n", bytecode.Version)
			fmt.Fprintf(out, "compressed: %t\n", h.Compressed)
			if h.Compressed {
				fmt.Fprintf(out, "declared:   %d\n", h.Size)
			}
			fmt.Fprintf(out, "payload:    %d\n", len(blob)-h.Offset)

			if noDecode {
				return nil
			}
			payload, err := s.rt.Codec().Decode(blob)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "decoded:    %d\n", len(payload))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noDecode, "no-decode", false, "only read the header")
	return cmd
}
