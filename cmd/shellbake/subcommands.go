package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/3cpo-dev/shellbake/internal/compile"
	"github.com/3cpo-dev/shellbake/internal/config"
	"github.com/3cpo-dev/shellbake/internal/manifest"
	"github.com/3cpo-dev/shellbake/internal/runner"
	"github.com/3cpo-dev/shellbake/internal/store"
	"github.com/3cpo-dev/shellbake/internal/task"
)

// loadTree parses the manifest and builds the task tree plus emit options.
func loadTree(cmd *cobra.Command) (task.Task, compile.Options, config.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, compile.Options{}, cfg, err
	}
	path, _ := cmd.Flags().GetString("manifest")
	f, err := manifest.Load(path)
	if err != nil {
		return nil, compile.Options{}, cfg, err
	}
	root, err := f.Build(manifest.DefaultRegistry())
	if err != nil {
		return nil, compile.Options{}, cfg, err
	}
	opts := compile.Options{Locale: cfg.Locale}
	if f.Locale != "" {
		opts.Locale = f.Locale
	}
	opts.Debug, _ = cmd.Flags().GetBool("debug")
	return root, opts, cfg, nil
}

// Compile a manifest to script text
func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a task manifest into a bash script",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, opts, cfg, err := loadTree(cmd)
			if err != nil {
				return err
			}
			script, err := compile.Script(root, opts)
			if err != nil {
				return err
			}
			if cache, _ := cmd.Flags().GetBool("cache"); cache {
				if err := cacheScript(cmd, cfg, root, script); err != nil {
					return err
				}
			}
			if out, _ := cmd.Flags().GetString("out"); out != "" {
				return os.WriteFile(out, []byte(script), 0700)
			}
			fmt.Print(script)
			return nil
		},
	}
	cmd.Flags().String("manifest", "shellbake.yaml", "task manifest file")
	cmd.Flags().String("out", "", "write the script here instead of stdout")
	cmd.Flags().Bool("debug", false, "emit set -o xtrace before the root call")
	cmd.Flags().Bool("cache", false, "store the compiled script in the cache")
	return cmd
}

func cacheScript(cmd *cobra.Command, cfg config.Config, root task.Task, script string) error {
	plan, err := compile.Resolve(root)
	if err != nil {
		return err
	}
	s, err := store.Open(cfg.Cache.Path, cfg.Cache.MemoryEntries)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Put(cmd.Context(), plan.Root.ID, plan.Root.QName, script); err != nil {
		return err
	}
	log.Info().Str("root_id", plan.Root.ID).Msg("cached compiled script")
	return nil
}

// Compile and execute
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile a task manifest and execute it",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, opts, cfg, err := loadTree(cmd)
			if err != nil {
				return err
			}
			script, err := compile.Script(root, opts)
			if err != nil {
				return err
			}
			if remote, _ := cmd.Flags().GetBool("remote"); remote {
				r := &runner.Remote{
					Addr:           cfg.Remote.Addr,
					User:           cfg.Remote.User,
					KeyPath:        cfg.Remote.KeyPath,
					KnownHostsPath: cfg.Remote.KnownHostsPath,
					Timeout:        15 * time.Second,
					Retries:        2,
					Backoff:        500 * time.Millisecond,
				}
				out, err := r.Run(cmd.Context(), script)
				fmt.Print(out)
				return err
			}
			l := &runner.Local{Shell: cfg.Shell}
			return l.Run(cmd.Context(), script)
		},
	}
	cmd.Flags().String("manifest", "shellbake.yaml", "task manifest file")
	cmd.Flags().Bool("debug", false, "emit set -o xtrace before the root call")
	cmd.Flags().Bool("remote", false, "execute on the configured remote host")
	return cmd
}

// Inspect or clear the script cache
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the compiled script cache",
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List cached scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			s, err := store.Open(cfg.Cache.Path, cfg.Cache.MemoryEntries)
			if err != nil {
				return err
			}
			defer s.Close()
			entries, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s\t%s\t%d\t%s\n", e.RootID, e.QName, e.Size, e.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			s, err := store.Open(cfg.Cache.Path, cfg.Cache.MemoryEntries)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Clear(cmd.Context())
		},
	}

	cmd.AddCommand(ls, clear)
	return cmd
}

// Initialize configuration
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "shellbake initialization command. Run this the first time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			path, err := config.WriteDefault(cfgPath)
			if err != nil {
				return err
			}
			fmt.Printf("config ready at %s\n", path)
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := runner.EnsureKnownHostsFile(cfg.Remote.KnownHostsPath); err != nil {
				return err
			}
			fmt.Printf("known_hosts ready at %s\n", cfg.Remote.KnownHostsPath)
			return nil
		},
	}
}
