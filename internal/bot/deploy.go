package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/sglre6355/dispatchbot/internal/commanddiff"
)

// Deployment is the command set destined for one scope.
type Deployment struct {
	Scope    commanddiff.Scope
	Commands []*discordgo.ApplicationCommand
}

// ScopeDiff is the pending change set of one scope.
type ScopeDiff struct {
	Scope commanddiff.Scope
	Diff  commanddiff.Diff
}

// PlanDeployments splits commands into scopes: devOnly commands go to every
// dev guild, the rest are global. Deleted commands are left out, so they are
// removed from the remote registry on the next sync.
func PlanDeployments(commands []*Command, devGuildIDs []string) []Deployment {
	global := Deployment{Scope: commanddiff.Global()}
	var dev []*discordgo.ApplicationCommand

	for _, cmd := range commands {
		switch {
		case cmd.Deleted:
			slog.Debug("skipped deleted command", "command", cmd.Name)
		case cmd.DevOnly:
			dev = append(dev, cmd.Definition)
		default:
			global.Commands = append(global.Commands, cmd.Definition)
		}
	}

	if len(dev) > 0 && len(devGuildIDs) == 0 {
		slog.Warn("skipped dev-only commands", "reason", "no dev guilds configured", "commands", len(dev))
	}

	deployments := []Deployment{global}
	for _, id := range devGuildIDs {
		deployments = append(deployments, Deployment{
			Scope:    commanddiff.Guild(id),
			Commands: dev,
		})
	}
	return deployments
}

// CommandSync pushes deployments to the remote command registry. Scopes are
// processed concurrently; writes within one scope are sequential.
type CommandSync struct {
	engine *commanddiff.Engine
	smart  bool
}

// NewCommandSync creates a CommandSync. When smart is set, each scope is
// diffed and only the differences are written; otherwise each scope is
// replaced in bulk.
func NewCommandSync(engine *commanddiff.Engine, smart bool) *CommandSync {
	return &CommandSync{engine: engine, smart: smart}
}

// Diff computes the pending change set of every deployment without writing.
func (c *CommandSync) Diff(ctx context.Context, deployments []Deployment) ([]ScopeDiff, error) {
	diffs := make([]ScopeDiff, len(deployments))

	var g errgroup.Group
	for idx, dep := range deployments {
		g.Go(func() error {
			diff, err := c.engine.Diff(ctx, dep.Commands, dep.Scope)
			if err != nil {
				return err
			}
			diffs[idx] = ScopeDiff{Scope: dep.Scope, Diff: diff}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return diffs, nil
}

// Sync brings every scope in line with its deployment.
func (c *CommandSync) Sync(ctx context.Context, deployments []Deployment) error {
	var g errgroup.Group
	for _, dep := range deployments {
		g.Go(func() error {
			if err := c.syncScope(ctx, dep); err != nil {
				slog.Error("failed to sync commands", "scope", dep.Scope.String(), "error", err)
				return fmt.Errorf("scope %s: %w", dep.Scope, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *CommandSync) syncScope(ctx context.Context, dep Deployment) error {
	if !c.smart {
		return c.engine.Register(ctx, dep.Commands, dep.Scope)
	}

	diff, err := c.engine.Diff(ctx, dep.Commands, dep.Scope)
	if err != nil {
		return err
	}
	if diff.Empty() {
		slog.Info("found commands up to date", "scope", dep.Scope.String())
		return nil
	}

	slog.Info("applying command diff", "scope", dep.Scope.String(), "diff", diff.String())
	return c.engine.Apply(ctx, diff, dep.Scope)
}
