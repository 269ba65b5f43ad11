package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCommand(a *app) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "resolve <specifier>...",
		Short: "Print the canonical module name of each specifier",
		Example: `  lrt resolve ./main.js
  lrt resolve lodash --from /app/src/index.js
  lrt resolve node:path --platform node`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			base := from
			if base == "" {
				base = s.rt.Kernel().Node().Cwd()
			}
			out := cmd.OutOrStdout()
			for _, spec := range args {
				name, err := s.rt.Resolve(ctx, base, spec)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					fmt.Fprintln(out, name)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", spec, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "importing module or directory (default is the working directory)")
	return cmd
}
