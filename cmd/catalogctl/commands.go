package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/timmy/dropcart/internal/app"
	"github.com/timmy/dropcart/internal/config"
	"github.com/timmy/dropcart/internal/domain"
	"github.com/timmy/dropcart/internal/logger"
	"github.com/timmy/dropcart/internal/matcher"
	"github.com/timmy/dropcart/internal/pricing"
	"github.com/timmy/dropcart/internal/repository"
	"github.com/timmy/dropcart/internal/service"
)

// withApp loads configuration, wires the services and hands them to fn.
func withApp(ctx context.Context, cmd *cli.Command, fn func(*app.App) error) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, logger.GetDefault())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.GetDefault().WithError(cerr).Warn("Failed to release resources")
		}
	}()
	return fn(a)
}

func printJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func jobCreateAction(ctx context.Context, cmd *cli.Command) error {
	req := service.CreateJobRequest{
		Kind:            domain.JobKind(cmd.String("kind")),
		Keywords:        cmd.StringSlice("keyword"),
		Categories:      cmd.StringSlice("category"),
		PageSize:        cmd.Int("page-size"),
		MaxPagesPerUnit: cmd.Int("max-pages"),
		TargetCount:     cmd.Int("target"),
		MinStock:        cmd.Int("min-stock"),
	}
	return withApp(ctx, cmd, func(a *app.App) error {
		job, err := a.Engine.CreateJob(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd, job)
	})
}

func jobStepAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *app.App) error {
		res, err := a.Engine.RunOneStep(ctx, cmd.String("id"))
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	})
}

func jobRunAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *app.App) error {
		res, err := a.Engine.RunToCompletion(ctx, cmd.String("id"), service.RunOptions{
			MaxSteps: cmd.Int("max-steps"),
		})
		if perr := printJSON(cmd, res); perr != nil {
			return perr
		}
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted after %d steps; run again to resume", res.Steps)
		}
		return err
	})
}

func jobStatusAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *app.App) error {
		job, err := a.Engine.Status(ctx, cmd.String("id"))
		if err != nil {
			return err
		}
		return printJSON(cmd, job)
	})
}

func jobCancelAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *app.App) error {
		job, err := a.Engine.Cancel(ctx, cmd.String("id"))
		if err != nil {
			return err
		}
		return printJSON(cmd, job)
	})
}

func jobListAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *app.App) error {
		jobs, total, err := a.Engine.ListJobs(ctx, repository.JobFilter{
			Kind:   domain.JobKind(cmd.String("kind")),
			Status: domain.JobStatus(cmd.String("status")),
			Limit:  cmd.Int("limit"),
		})
		if err != nil {
			return err
		}
		w := cmd.Root().Writer
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\titems=%d\tsteps=%d\n",
				j.ID, j.Kind, j.Status, j.Totals.ItemsAdded, j.Totals.Steps)
		}
		fmt.Fprintf(w, "%d of %d jobs\n", len(jobs), total)
		return nil
	})
}

func priceQuoteAction(ctx context.Context, cmd *cli.Command) error {
	var shipping *float64
	if cmd.IsSet("shipping") {
		v := cmd.Float("shipping")
		shipping = &v
	}
	return withApp(ctx, cmd, func(a *app.App) error {
		rules, err := a.Rules.RuleSet(ctx)
		if err != nil {
			return err
		}
		q, err := a.Pricing.ComputeRetail(cmd.Float("cost"), shipping, cmd.String("category"), rules)
		if errors.Is(err, pricing.ErrFloorUnreachable) {
			logger.GetDefault().WithField("retail", q.RetailLocal).Warn(err.Error())
			err = nil
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, q)
	})
}

func variantMatchAction(ctx context.Context, cmd *cli.Command) error {
	variants, err := parseVariants(cmd.StringSlice("variant"))
	if err != nil {
		return err
	}
	res, err := matcher.Match(cmd.String("label"), variants)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func variantResolveAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(a *app.App) error {
		res, err := a.Resolver.Resolve(ctx, cmd.String("product"), cmd.String("label"))
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	})
}

// parseVariants reads id=key pairs. A pair without "=" uses the value as both id and key.
func parseVariants(raw []string) ([]matcher.Variant, error) {
	out := make([]matcher.Variant, 0, len(raw))
	for _, r := range raw {
		id, key, found := strings.Cut(r, "=")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("invalid variant %q: want id=key", r)
		}
		if !found {
			key = id
		}
		out = append(out, matcher.Variant{ID: id, Key: strings.TrimSpace(key)})
	}
	return out, nil
}
