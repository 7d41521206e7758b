package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/nodedist"
)

func (a *app) fetchNodeCmd() *cobra.Command {
	var (
		version string
		dest    string
		goos    string
		goarch  string
		mirror string
		verify bool
	)

	cmd := &cobra.Command{
		Use:   "fetch-node",
		Short: "Download the node executable of one release",
		Long: `Download a Node.js release tarball and extract bin/node to --dest.

Nothing is fetched when --dest already exists. Flags default to the
workspace configuration and the detected host.`,
		Example: `  wsbuild fetch-node --dest ./tmp/workspace/node
  wsbuild fetch-node --version 20.18.0 --os darwin --arch arm64 --dest ./node-darwin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)

			cfg, err := a.loadConfig(ctx)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("version") {
				cfg.Node.Version = version
			}
			if flags.Changed("os") {
				cfg.Node.OS = goos
			}
			if flags.Changed("arch") {
				cfg.Node.Arch = goarch
			}
			if flags.Changed("mirror") {
				cfg.Node.Mirror = mirror
			}
			if flags.Changed("verify") {
				cfg.Node.Verify = verify
				if !verify {
					cfg.Node.Keyring = ""
				}
			}

			targetOS, targetArch := cfg.NodeTarget()
			release, err := nodedist.NewRelease(cfg.Node.Version, targetOS, targetArch, cfg.Node.Mirror)
			if err != nil {
				return err
			}

			fetcher, err := a.newFetcher(cfg.Node)
			if err != nil {
				return err
			}

			res, err := fetcher.EnsureDownloaded(ctx, release, dest)
			if err != nil {
				return err
			}

			if res.Skipped {
				fmt.Fprintf(a.stdout, "%s already exists\n", res.Path)
				return nil
			}
			fmt.Fprintf(a.stdout, "%s (node %s %s/%s, verified: %s)\n",
				res.Path, release.Version, release.OS, release.Arch, res.Verified)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&dest, "dest", "", "destination file (required)")
	flags.StringVar(&version, "version", "", "Node.js version, e.g. 22.11.0")
	flags.StringVar(&goos, "os", "", "target OS in Go naming (linux, darwin, aix)")
	flags.StringVar(&goarch, "arch", "", "target architecture in Go naming (amd64, arm64, ...)")
	flags.StringVar(&mirror, "mirror", "", "release mirror base URL")
	flags.BoolVar(&verify, "verify", false, "check the archive against SHASUMS256.txt (--verify=false skips a configured check)")
	_ = cmd.MarkFlagRequired("dest")

	return cmd
}
