package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sglre6355/dispatchbot/internal/app"
	"github.com/sglre6355/dispatchbot/internal/bot"
)

var syncDryRun bool

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Manage the application commands registered with Discord",
}

var commandsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile registered commands with the definition tree",
	Long: `Deploy every command in the definition tree without connecting to
the gateway. devOnly commands go to the guilds in DEV_GUILD_IDS, the
rest are registered globally. With --dry-run the differences are
printed and nothing is written.`,
	RunE: runCommandsSync,
}

func init() {
	commandsSyncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Print the changes without applying them")
	commandsCmd.AddCommand(commandsSyncCmd)
	rootCmd.AddCommand(commandsCmd)
}

func runCommandsSync(cmd *cobra.Command, _ []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	b := bot.NewBot(cfg, app.Definitions(), app.Modules()...)
	if db != nil {
		b.SetDatabase(db)
	}
	if err := b.Prepare(); err != nil {
		return err
	}

	if !syncDryRun {
		if err := b.SyncCommands(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Commands synced.")
		return nil
	}

	diffs, err := b.DiffCommands(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, sd := range diffs {
		fmt.Fprintf(out, "%s: %s\n", sd.Scope, sd.Diff)
		for _, c := range sd.Diff.ToCreate {
			fmt.Fprintf(out, "  + %s\n", c.Name)
		}
		for _, u := range sd.Diff.ToUpdate {
			fmt.Fprintf(out, "  ~ %s\n", u.Command.Name)
		}
		for _, d := range sd.Diff.ToDelete {
			fmt.Fprintf(out, "  - %s\n", d.Name)
		}
	}
	return nil
}
