package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/js-runtime/bytecode"
	"github.com/wippyai/js-runtime/registry"
	"github.com/wippyai/js-runtime/resolve"
)

func newRegistryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Build and list registry archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newRegistryBuildCommand(a), newRegistryListCommand(a))
	return cmd
}

func newRegistryBuildCommand(a *app) *cobra.Command {
	var (
		out     string
		sources bool
		raw     bool
	)
	cmd := &cobra.Command{
		Use:   "build <dir>",
		Short: "Collect the containers under a directory into an archive",
		Long: `Collect every .lrt container under dir into a CBOR registry archive.
Keys are the bundle-relative paths without extension.

With --sources, JavaScript files without a container beside them are
wrapped on the fly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("registry build: --out is required")
			}
			ctx := cmd.Context()
			dir := args[0]

			var reg *registry.Registry
			if sources {
				s, err := a.session(ctx)
				if err != nil {
					return err
				}
				if reg, err = buildWithSources(a.fs, s.rt.Codec(), dir, !raw); err != nil {
					return err
				}
			} else {
				var err error
				if reg, err = registry.FromFS(afero.NewIOFS(afero.NewBasePathFs(a.fs, dir)), "."); err != nil {
					return err
				}
			}

			var buf bytes.Buffer
			if err := reg.Archive(&buf); err != nil {
				return err
			}
			if err := afero.WriteFile(a.fs, out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write archive: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d modules -> %s\n", reg.Len(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "archive to write")
	cmd.Flags().BoolVar(&sources, "sources", false, "wrap JavaScript files that have no container")
	cmd.Flags().BoolVar(&raw, "raw", false, "store wrapped sources uncompressed")
	return cmd
}

func buildWithSources(fs afero.Fs, codec *bytecode.Codec, dir string, compress bool) (*registry.Registry, error) {
	modules := make(map[string][]byte)
	pending := make(map[string]string)

	err := afero.Walk(fs, dir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := registry.ModuleName(filepath.ToSlash(rel))
		ext := filepath.Ext(p)
		switch {
		case ext == bytecode.FileExt:
			data, err := afero.ReadFile(fs, p)
			if err != nil {
				return err
			}
			if _, err := bytecode.ReadHeader(data); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			modules[name] = data
		case resolve.IsSupportedExt(ext):
			pending[name] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(goruntime.GOMAXPROCS(0))
	for name, p := range pending {
		if _, ok := modules[name]; ok {
			continue
		}
		g.Go(func() error {
			src, err := afero.ReadFile(fs, p)
			if err != nil {
				return err
			}
			blob, err := codec.Encode(src, compress)
			if err != nil {
				return fmt.Errorf("encode %s: %w", p, err)
			}
			mu.Lock()
			modules[name] = blob
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return registry.New(modules), nil
}

func newRegistryListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive|dir>",
		Short: "List the modules of an archive or container directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(a.fs, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range reg.Entries() {
				kind := "raw"
				if h, err := bytecode.ReadHeader(e.Container); err == nil && h.Compressed {
					kind = "zstd"
				}
				fmt.Fprintf(out, "%-4s %8d  %s\n", kind, len(e.Container), e.Name)
			}
			return nil
		},
	}
}

func openRegistry(fs afero.Fs, p string) (*registry.Registry, error) {
	if ok, _ := afero.IsDir(fs, p); ok {
		return registry.FromFS(afero.NewIOFS(afero.NewBasePathFs(fs, p)), ".")
	}
	data, err := afero.ReadFile(fs, p)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return registry.Decode(data)
}
