package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/meigma/rangezip"
	"github.com/meigma/rangezip/internal/catalog"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive>",
		Short: "List archive entries with modification time and size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.openArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%-46s %19s %12s\n", "File Name", "Modified    ", "Size")
			for e := range archive.All() {
				fmt.Fprintf(a.stdout, "%-46s %s %12d\n", e.Name, e.Modified, e.UncompressedSize)
			}
			return nil
		},
	}
}

func (a *app) testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <archive>",
		Short: "Verify the checksum of every entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.openArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			bad, err := archive.Test(rangezip.WithProgress(func(ev rangezip.ProgressEvent) {
				a.log.Debug("testing entry", "name", ev.Name, "index", ev.EntriesDone, "total", ev.EntriesTotal)
			}))
			if err != nil {
				return fmt.Errorf("test %s: %w", bad, err)
			}
			if bad != "" {
				fmt.Fprintf(a.stdout, "The following enclosed file is corrupted: %q\n", bad)
				return errors.New("archive test failed")
			}
			fmt.Fprintln(a.stdout, "Done testing")
			return nil
		},
	}
}

func (a *app) extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <archive> <dest> [names...]",
		Short: "Extract all or the named entries below dest",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.openArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			dest := args[1]

			opts := []rangezip.ExtractOption{
				rangezip.ExtractWithContext(cmd.Context()),
				rangezip.ExtractWithWorkers(a.cfg.Workers),
				rangezip.ExtractWithPreserveTimes(a.cfg.PreserveTimes),
				rangezip.ExtractWithPreserveMode(a.cfg.PreserveMode),
				rangezip.ExtractWithProgress(func(ev rangezip.ProgressEvent) {
					if ev.Stage == rangezip.StageExtracted {
						a.log.Info("extracted", "name", ev.Name, "size", ev.BytesTotal)
					}
				}),
			}

			if len(args) == 2 {
				paths, err := archive.ExtractAll(dest, opts...)
				if err != nil {
					return err
				}
				a.log.Info("extraction complete", "entries", len(paths), "dest", dest)
				return nil
			}

			for _, name := range args[2:] {
				e, ok := archive.Find(name)
				if !ok {
					return fmt.Errorf("%s: no entry named %q", args[0], name)
				}
				if _, err := archive.Extract(e, dest, opts...); err != nil {
					return err
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int("workers", 1, "number of entries extracted in parallel")
	flags.Bool("preserve-times", false, "apply modification times from the archive")
	flags.Bool("preserve-mode", false, "apply permission bits from the archive")
	_ = a.v.BindPFlag("workers", flags.Lookup("workers"))               //nolint:errcheck // static flag name
	_ = a.v.BindPFlag("preserve_times", flags.Lookup("preserve-times")) //nolint:errcheck // static flag name
	_ = a.v.BindPFlag("preserve_mode", flags.Lookup("preserve-mode"))   //nolint:errcheck // static flag name
	return cmd
}

func (a *app) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <archive> <name>",
		Short: "Write an entry's content to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.openArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			e, ok := archive.Find(args[1])
			if !ok {
				return fmt.Errorf("%s: no entry named %q", args[0], args[1])
			}
			s, err := archive.OpenEntry(e)
			if err != nil {
				return err
			}
			defer s.Close()

			_, err = io.Copy(a.stdout, s)
			return err
		},
	}
}

func (a *app) catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog <archive> <out.db>",
		Short: "Export the central directory to a SQLite database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.openArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := catalog.Export(cmd.Context(), archive, args[0], args[1]); err != nil {
				return fmt.Errorf("catalog: %w", err)
			}
			a.log.Info("catalog written", "entries", archive.Len(), "path", args[1])
			return nil
		},
	}
}
