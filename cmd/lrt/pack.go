package main

import (
	"fmt"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/js-runtime/bytecode"
)

type packOptions struct {
	out  string
	exe  string
	raw  bool
	jobs int
}

func newPackCommand(a *app) *cobra.Command {
	var o packOptions
	cmd := &cobra.Command{
		Use:   "pack <payload>...",
		Short: "Wrap compiled payloads in bytecode containers",
		Long: `Wrap each payload file in a bytecode container next to it, or in the
--out directory. Containers are zstd-compressed with the configured
dictionary unless --raw is given.

With --exe a single payload is appended to a runtime image, producing a
self-contained executable at --out.`,
		Example: `  lrt pack dist/*.js -o build
  lrt pack main.js --exe ./lrt-runtime -o app`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			codec := s.rt.Codec()

			if o.exe != "" {
				if len(args) != 1 || o.out == "" {
					return fmt.Errorf("pack --exe takes one payload and an --out path")
				}
				return packExecutable(a.fs, codec, args[0], o)
			}

			if o.jobs < 1 {
				o.jobs = 1
			}
			written := make([]string, len(args))
			var mu sync.Mutex
			g, ctx := errgroup.WithContext(ctx)
			g.SetLimit(o.jobs)
			for i, in := range args {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					dst, err := packFile(a.fs, codec, in, o)
					if err != nil {
						return err
					}
					mu.Lock()
					written[i] = dst
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			for _, dst := range written {
				fmt.Fprintln(cmd.OutOrStdout(), dst)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "output directory, or output file with --exe")
	cmd.Flags().StringVar(&o.exe, "exe", "", "runtime image to append the container to")
	cmd.Flags().BoolVar(&o.raw, "raw", false, "store payloads uncompressed")
	cmd.Flags().IntVarP(&o.jobs, "jobs", "j", goruntime.GOMAXPROCS(0), "parallel encoders")
	return cmd
}

// containerPath maps a payload file to its ".lrt" destination.
func containerPath(in, outDir string) string {
	name := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + bytecode.FileExt
	if outDir == "" {
		return filepath.Join(filepath.Dir(in), name)
	}
	return filepath.Join(outDir, name)
}

func packFile(fs afero.Fs, codec *bytecode.Codec, in string, o packOptions) (string, error) {
	payload, err := afero.ReadFile(fs, in)
	if err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}
	blob, err := codec.Encode(payload, !o.raw)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", in, err)
	}
	dst := containerPath(in, o.out)
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := afero.WriteFile(fs, dst, blob, 0o644); err != nil {
		return "", fmt.Errorf("write container: %w", err)
	}
	return dst, nil
}

func packExecutable(fs afero.Fs, codec *bytecode.Codec, in string, o packOptions) error {
	payload, err := afero.ReadFile(fs, in)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	image, err := afero.ReadFile(fs, o.exe)
	if err != nil {
		return fmt.Errorf("read runtime image: %w", err)
	}
	blob, err := codec.Encode(payload, !o.raw)
	if err != nil {
		return fmt.Errorf("encode %s: %w", in, err)
	}
	return afero.WriteFile(fs, o.out, bytecode.AppendExecutable(image, blob), 0o755)
}
