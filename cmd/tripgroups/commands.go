package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"tripgroups/pkg/domain"
)

type rootFlags struct {
	json bool
}

func newRootCommand(deps runtimeDeps) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "tripgroups",
		Short:         "Assign trip participants to groups",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(deps.stdout)
	root.SetErr(deps.stderr)
	root.PersistentFlags().BoolVar(&flags.json, "json", false, "print results as JSON")

	run := func(mutates bool, fn func(context.Context, *app, printer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			a, err := openApp(ctx, deps)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close(context.WithoutCancel(ctx))) }()
			if err := fn(ctx, a, newPrinter(cmd.OutOrStdout(), flags.json)); err != nil {
				return err
			}
			if mutates {
				return a.save(ctx)
			}
			return nil
		}
	}

	root.AddCommand(
		newSelectCommand(run),
		newGroupsCommand(run),
		newAssignCommand(run),
		newUnassignCommand(run),
		newMoveCommand(run),
		newOptimizeCommand(run),
		newStatsCommand(run),
		newParticipantsCommand(run),
		newConfigsCommand(run),
		newWarningsCommand(run),
		newServeMetricsCommand(deps),
	)
	return root
}

type runner func(mutates bool, fn func(context.Context, *app, printer) error) func(*cobra.Command, []string) error

func newSelectCommand(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select <adventure>",
		Short: "Select the active adventure and load its participants",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return run(true, func(ctx context.Context, a *app, p printer) error {
			if err := a.engine.SelectAdventure(ctx, args[0]); err != nil {
				return err
			}
			return p.participants(a.engine.AvailableParticipants())
		})(c, args)
	}
	return cmd
}

func newGroupsCommand(run runner) *cobra.Command {
	groups := &cobra.Command{Use: "groups", Short: "Inspect and edit groups"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List groups with members and compatibility",
		Args:  cobra.NoArgs,
		RunE: run(false, func(_ context.Context, a *app, p printer) error {
			return p.groups(a.engine.Groups())
		}),
	}

	var (
		name    string
		maxSize int
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an empty group",
		Args:  cobra.NoArgs,
		RunE: run(true, func(ctx context.Context, a *app, p printer) error {
			g, err := a.engine.CreateGroup(ctx, name, maxSize)
			if err != nil {
				return err
			}
			return p.groups([]domain.Group{g})
		}),
	}
	create.Flags().StringVar(&name, "name", "", "group name (defaults to Group N)")
	create.Flags().IntVar(&maxSize, "max-size", 0, "capacity (defaults to the configured group size)")

	del := &cobra.Command{
		Use:   "delete <group>",
		Short: "Delete a group, returning its members to the pool",
		Args:  cobra.ExactArgs(1),
	}
	del.RunE = func(c *cobra.Command, args []string) error {
		return run(true, func(ctx context.Context, a *app, p printer) error {
			if err := a.engine.DeleteGroup(ctx, domain.GroupID(args[0])); err != nil {
				return err
			}
			return p.message("deleted group " + args[0])
		})(c, args)
	}

	groups.AddCommand(list, create, del)
	return groups
}

func newAssignCommand(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign <participant> <group>",
		Short: "Add an unassigned participant to a group",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return run(true, func(ctx context.Context, a *app, p printer) error {
			g, err := a.engine.AddParticipantToGroup(ctx, domain.ParticipantID(args[0]), domain.GroupID(args[1]))
			if err != nil {
				return err
			}
			return p.groups([]domain.Group{g})
		})(c, args)
	}
	return cmd
}

func newUnassignCommand(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unassign <participant> <group>",
		Short: "Remove a participant from a group",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return run(true, func(ctx context.Context, a *app, p printer) error {
			g, err := a.engine.RemoveParticipantFromGroup(ctx, domain.ParticipantID(args[0]), domain.GroupID(args[1]))
			if err != nil {
				return err
			}
			return p.groups([]domain.Group{g})
		})(c, args)
	}
	return cmd
}

func newMoveCommand(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <participant> <from> <to>",
		Short: "Move a participant between groups",
		Args:  cobra.ExactArgs(3),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		return run(true, func(ctx context.Context, a *app, p printer) error {
			g, err := a.engine.MoveParticipant(ctx, domain.ParticipantID(args[0]), domain.GroupID(args[1]), domain.GroupID(args[2]))
			if err != nil {
				return err
			}
			return p.groups([]domain.Group{g})
		})(c, args)
	}
	return cmd
}

func newOptimizeCommand(run runner) *cobra.Command {
	var opts domain.OptimizeOptions
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Replace all groups with an optimizer-generated partition",
		Args:  cobra.NoArgs,
		RunE: run(true, func(ctx context.Context, a *app, p printer) error {
			groups, err := a.engine.GenerateOptimalGroups(ctx, opts)
			if err != nil {
				return err
			}
			return p.groups(groups)
		}),
	}
	cmd.Flags().IntVar(&opts.GroupSize, "group-size", 0, "target group size")
	cmd.Flags().IntVar(&opts.MaxGroups, "max-groups", 0, "upper bound on generated groups")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "", "optimizer strategy name")
	cmd.Flags().Float64Var(&opts.MinCompatibility, "min-compatibility", 0, "minimum acceptable score")
	cmd.Flags().StringToStringVar(&opts.Constraints, "constraint", nil, "optimizer constraint key=value")
	return cmd
}

func newStatsCommand(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show group statistics",
		Args:  cobra.NoArgs,
		RunE: run(false, func(_ context.Context, a *app, p printer) error {
			return p.statistics(a.engine.Statistics())
		}),
	}
}

func newParticipantsCommand(run runner) *cobra.Command {
	var unassigned bool
	cmd := &cobra.Command{
		Use:   "participants",
		Short: "List the adventure's participants",
		Args:  cobra.NoArgs,
		RunE: run(false, func(_ context.Context, a *app, p printer) error {
			if unassigned {
				return p.participants(a.engine.UnassignedParticipants())
			}
			return p.participants(a.engine.AvailableParticipants())
		}),
	}
	cmd.Flags().BoolVar(&unassigned, "unassigned", false, "only participants not in any group")
	return cmd
}

func newConfigsCommand(run runner) *cobra.Command {
	configs := &cobra.Command{Use: "configs", Short: "Save and load named group arrangements"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved configurations, newest first",
		Args:  cobra.NoArgs,
		RunE: run(true, func(ctx context.Context, a *app, p printer) error {
			records, err := a.engine.ListConfigurations(ctx)
			if err != nil {
				return err
			}
			return p.configurations(records)
		}),
	}

	var description string
	save := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the current groups under a name",
		Args:  cobra.ExactArgs(1),
	}
	save.Flags().StringVar(&description, "description", "", "free-form description")
	save.RunE = func(c *cobra.Command, args []string) error {
		return run(true, func(ctx context.Context, a *app, p printer) error {
			record, err := a.engine.SaveConfiguration(ctx, args[0], description)
			if err != nil {
				return err
			}
			return p.configurations([]domain.GroupConfiguration{record})
		})(c, args)
	}

	load := &cobra.Command{
		Use:   "load <id>",
		Short: "Replace the current groups with a saved configuration",
		Args:  cobra.ExactArgs(1),
	}
	load.RunE = func(c *cobra.Command, args []string) error {
		return run(true, func(ctx context.Context, a *app, p printer) error {
			groups, err := a.engine.LoadConfiguration(ctx, args[0])
			if err != nil {
				return err
			}
			if err := p.groups(groups); err != nil {
				return err
			}
			return p.warnings(a.engine.Warnings())
		})(c, args)
	}

	configs.AddCommand(list, save, load)
	return configs
}

func newWarningsCommand(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "warnings",
		Short: "Show warnings raised while restoring the session",
		Args:  cobra.NoArgs,
		RunE: run(false, func(_ context.Context, a *app, p printer) error {
			return p.warnings(a.engine.Warnings())
		}),
	}
}

func newServeMetricsCommand(deps runtimeDeps) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics and a health probe until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()
			a, err := openApp(ctx, deps)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.close(context.WithoutCancel(ctx))) }()
			if addr == "" {
				addr = a.cfg.MetricsAddress
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			return serveMetrics(ctx, a, ln, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to TRIPGROUPS_METRICS_ADDR)")
	return cmd
}

func serveMetrics(ctx context.Context, a *app, ln net.Listener, out io.Writer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok adventure=" + a.engine.SelectedAdventure() + " groups=" + strconv.Itoa(len(a.engine.Groups())) + "\n"))
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	fmt.Fprintf(out, "serving metrics on http://%s/metrics\n", ln.Addr())
	a.logger.Info("metrics server started", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
