package main

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/wippyai/js-runtime/engine"
)

func newLoadCommand(a *app) *cobra.Command {
	var exe string
	cmd := &cobra.Command{
		Use:   "load [entry]...",
		Short: "Resolve and declare entry modules, then list what was declared",
		Long: `Resolve each entry from the working directory and declare it into a
recording engine. Every declared module is listed with how it was declared
and the import.meta.url it received.

With --exe the bytecode appended to a self-contained executable is
declared instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if exe == "" && len(args) == 0 {
				return fmt.Errorf("load: an entry or --exe is required")
			}
			ctx := cmd.Context()
			s, err := a.session(ctx)
			if err != nil {
				return err
			}

			if exe != "" {
				image, err := afero.ReadFile(a.fs, exe)
				if err != nil {
					return fmt.Errorf("read executable: %w", err)
				}
				if _, err := s.rt.LoadExecutable(ctx, image); err != nil {
					return err
				}
			}
			for _, entry := range args {
				name, err := s.rt.Entry(ctx, entry)
				if err != nil {
					return err
				}
				if _, err := s.rt.Load(ctx, name); err != nil {
					return err
				}
			}

			printModules(cmd.OutOrStdout(), s.rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&exe, "exe", "", "self-contained executable to load the embedded entry from")
	return cmd
}

func printModules(w io.Writer, rec *engine.Recorder) {
	for _, name := range rec.Names() {
		m := rec.Get(name)
		url := m.URL()
		if url == "" {
			url = "-"
		}
		fmt.Fprintf(w, "%-8s %8d  %s  %s\n", m.Kind(), len(m.Data()), name, url)
	}
}
