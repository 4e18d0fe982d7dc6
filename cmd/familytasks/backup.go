package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/familytasks/internal/backup"
	"github.com/dukerupert/familytasks/internal/database"
)

func (r *rootCommand) backupManager() (*backup.Manager, error) {
	b := r.cfg.Backup
	if b.Passphrase == "" {
		return nil, errors.New("FAMILYTASKS_BACKUP_PASSPHRASE is required")
	}
	m, err := backup.NewManager(backup.Config{
		Endpoint:  b.Endpoint,
		Bucket:    b.Bucket,
		Prefix:    b.Prefix,
		Region:    b.Region,
		AccessKey: b.AccessKey,
		SecretKey: b.SecretKey,
	}, r.logger.With("component", "backup"))
	if errors.Is(err, backup.ErrNotConfigured) {
		return nil, errors.New("set FAMILYTASKS_BACKUP_BUCKET, _ACCESS_KEY and _SECRET_KEY to use backups")
	}
	return m, err
}

func newBackupCommand(root *rootCommand) *cobra.Command {
	var noPrune bool
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload an encrypted database snapshot",
		Long: `Snapshot the database, encrypt it with FAMILYTASKS_BACKUP_PASSPHRASE and upload
it to the configured bucket. Older snapshots beyond FAMILYTASKS_BACKUP_KEEP are
deleted afterwards (0 keeps everything).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := root.backupManager()
			if err != nil {
				return err
			}
			db, err := database.Open(root.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			obj, err := m.Run(cmd.Context(), db, root.cfg.Backup.Passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", obj.Key, obj.Size)

			if noPrune || root.cfg.Backup.Keep == 0 {
				return nil
			}
			n, err := m.Prune(cmd.Context(), root.cfg.Backup.Keep)
			if err != nil {
				return err
			}
			if n > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d old snapshots\n", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noPrune, "no-prune", false, "Keep every stored snapshot")
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := root.backupManager()
			if err != nil {
				return err
			}
			objects, err := m.List(cmd.Context())
			if err != nil {
				return err
			}
			return printSnapshots(cmd.OutOrStdout(), objects)
		},
	})
	return cmd
}

func newRestoreCommand(root *rootCommand) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace the database with a stored snapshot",
		Long: `Download a snapshot, decrypt it, verify its integrity and move it over
--db-path. Stop the server first.

Examples:
  familytasks restore
  familytasks restore --key familytasks/familytasks-2026-02-04T030000Z.db.enc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := root.backupManager()
			if err != nil {
				return err
			}
			restored, err := m.Restore(cmd.Context(), key, root.cfg.Backup.Passphrase, root.cfg.DBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", restored, root.cfg.DBPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Snapshot key (default: newest)")
	return cmd
}

func printSnapshots(w io.Writer, objects []backup.Object) error {
	if len(objects) == 0 {
		fmt.Fprintln(w, "No snapshots stored.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
	for _, o := range objects {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Key, o.Size, o.LastModified.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
