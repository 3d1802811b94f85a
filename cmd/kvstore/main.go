// Command kvstore drives a store from the shell: one subcommand per store
// operation, one process per invocation. Transactions span invocations
// because their state lives in the snapshot files, not in the process.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"simplekv/pkg/config"
	"simplekv/pkg/kvlog"
	"simplekv/pkg/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		flagPath  string
		flagDebug bool
	)

	root := &cobra.Command{
		Use:           "kvstore",
		Short:         "ordered key-value store with snapshot transactions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagPath, "path", "", "store path (default from config)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "verbose logging")

	// openStore applies config, then flag overrides, and opens the store.
	openStore := func(cmd *cobra.Command) (*store.Store, *zap.Logger, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		if flagPath != "" {
			cfg.StorePath = flagPath
		}
		if flagDebug {
			cfg.Debug = true
		}
		log, err := kvlog.New(cfg.Debug)
		if err != nil {
			return nil, nil, err
		}
		s, err := store.OpenWith(store.Options{
			Path:           cfg.StorePath,
			BufferCapacity: cfg.BufferMaxEntries,
			Logger:         log,
		})
		if err != nil {
			log.Sync()
			return nil, nil, err
		}
		return s, log, nil
	}

	// run wraps a subcommand body with store open/close. The body must
	// flush anything it wants to survive the process exit; Close does not.
	run := func(body func(s *store.Store, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			s, log, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()
			defer s.Close()
			return body(s, cmd, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "create the store files if they do not exist",
			Args:  cobra.NoArgs,
			RunE: run(func(s *store.Store, cmd *cobra.Command, args []string) error {
				cmd.Println("store initialized")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "put <key> <value>",
			Short: "insert or overwrite a key",
			Args:  cobra.ExactArgs(2),
			RunE: run(func(s *store.Store, cmd *cobra.Command, args []string) error {
				if err := s.Write([]byte(args[0]), []byte(args[1])); err != nil {
					return err
				}
				// the buffer dies with this process, so persist now.
				return s.Flush()
			}),
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "print the value for a key",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(s *store.Store, cmd *cobra.Command, args []string) error {
				v, found, err := s.Read([]byte(args[0]))
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("key %q not found", args[0])
				}
				cmd.Println(string(v))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "range <low> <high>",
			Short: "print every pair with low <= key <= high",
			Args:  cobra.ExactArgs(2),
			RunE: run(func(s *store.Store, cmd *cobra.Command, args []string) error {
				pairs, err := s.ReadRange([]byte(args[0]), []byte(args[1]))
				if err != nil {
					return err
				}
				for _, p := range pairs {
					cmd.Printf("%s\t%s\n", p.Key, p.Value)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "flush",
			Short: "drain the write buffer into the tree",
			Args:  cobra.NoArgs,
			RunE: run(func(s *store.Store, cmd *cobra.Command, args []string) error {
				return s.Flush()
			}),
		},
		&cobra.Command{
			Use:   "begin-tx",
			Short: "open a transaction (or recover a crashed one)",
			Args:  cobra.NoArgs,
			RunE: run(func(s *store.Store, cmd *cobra.Command, args []string) error {
				return s.BeginTx()
			}),
		},
		&cobra.Command{
			Use:   "commit",
			Short: "make the open transaction durable",
			Args:  cobra.NoArgs,
			RunE: run(func(s *store.Store, cmd *cobra.Command, args []string) error {
				return s.Commit()
			}),
		},
		&cobra.Command{
			Use:   "size",
			Short: "print entry counts and tree height",
			Args:  cobra.NoArgs,
			RunE: run(func(s *store.Store, cmd *cobra.Command, args []string) error {
				size, err := s.Size()
				if err != nil {
					return err
				}
				cmd.Printf("entries:\t%d\n", size)
				cmd.Printf("on disk:\t%d\n", s.FileSize())
				cmd.Printf("height:\t%d\n", s.Height())
				return nil
			}),
		},
	)
	return root
}
