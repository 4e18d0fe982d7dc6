package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dukerupert/familytasks/internal/config"
	"github.com/dukerupert/familytasks/internal/logging"
)

type rootCommand struct {
	cmd    *cobra.Command
	cfg    config.Config
	logger *slog.Logger
}

func newRootCommand() *rootCommand {
	root := &rootCommand{}
	root.cmd = &cobra.Command{
		Use:   "familytasks",
		Short: "Household chores, points and a daily trivia question",
		Long: `familytasks tracks recurring household tasks per child, credits points when
a parent approves them, runs one trivia question per family per day and ranks
the children on a weekly leaderboard.

CONFIGURATION:
  Settings resolve as command-line flag > environment > .env file > default.

    FAMILYTASKS_PORT            HTTP port (default: 8080)
    FAMILYTASKS_DB_PATH         SQLite database file (default: familytasks.db)
    FAMILYTASKS_LOG_LEVEL       debug, info, warn, error (default: info)
    FAMILYTASKS_LOG_FORMAT      text or json (default: text)
    FAMILYTASKS_TIMEZONE        zone for "today" and week boundaries (default: UTC)
    FAMILYTASKS_SESSION_TTL     login session lifetime (default: 720h)
    FAMILYTASKS_TRIVIA_SECRET   key for question references (required in production)
    FAMILYTASKS_TRIVIA_POINTS   points for a correct answer (default: 5)
    FAMILYTASKS_QUIZAPI_KEY     enables external trivia questions
    FAMILYTASKS_BACKUP_*        BUCKET, PREFIX, REGION, ENDPOINT, ACCESS_KEY,
                                SECRET_KEY, PASSPHRASE, KEEP for "backup"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return root.loadConfig(cmd)
		},
	}

	flags := root.cmd.PersistentFlags()
	flags.String("db-path", "", "SQLite database file (overrides FAMILYTASKS_DB_PATH)")
	flags.String("log-level", "", "Log level (overrides FAMILYTASKS_LOG_LEVEL)")
	flags.String("log-format", "", "Log format (overrides FAMILYTASKS_LOG_FORMAT)")
	flags.String("timezone", "", "IANA time zone (overrides FAMILYTASKS_TIMEZONE)")

	root.cmd.AddCommand(
		newServeCommand(root),
		newMigrateCommand(root),
		newLeaderboardCommand(root),
		newBackupCommand(root),
		newRestoreCommand(root),
	)
	return root
}

func (r *rootCommand) Execute() error {
	return r.cmd.Execute()
}

func (r *rootCommand) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}
	r.cfg = cfg
	r.logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
	return nil
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	overrides := map[string]*string{
		"db-path":    &cfg.DBPath,
		"log-level":  &cfg.LogLevel,
		"log-format": &cfg.LogFormat,
		"timezone":   &cfg.Timezone,
		"port":       &cfg.Port,
	}
	for name, dst := range overrides {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	return cfg.Validate()
}
