package service

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/dropcart/internal/catalog"
	"github.com/timmy/dropcart/internal/domain"
	"github.com/timmy/dropcart/internal/events"
	"github.com/timmy/dropcart/internal/logger"
	"github.com/timmy/dropcart/internal/pricing"
	"github.com/timmy/dropcart/internal/repository"
)

// step runs one unit of work for a running job and persists it atomically.
func (e *JobEngine) step(ctx context.Context, job *domain.Job) (StepResult, error) {
	params := job.Params
	units := job.Units()
	unitIdx, page := params.Cursor.Position()

	w := repository.StepWrite{
		JobID:           job.ID,
		ExpectedVersion: job.Version,
		Params:          params,
		Totals:          job.Totals,
	}
	w.Totals.Steps++

	if unitIdx >= len(units) || targetReached(params, params.Cursor) {
		w.Finish = true
		return e.persist(ctx, job, w, StepResult{})
	}

	if page > params.MaxPagesPerUnit {
		w.Params.Cursor = params.Cursor.NextUnit()
		w.Finish = exhausted(params, w.Params.Cursor, len(units))
		return e.persist(ctx, job, w, StepResult{Advanced: true})
	}

	unit := unitFor(job.Kind, units[unitIdx])
	ctx = logger.SetUnit(ctx, unit.String(), page)

	listings, err := e.catalog.ListPage(ctx, unit, page, params.PageSize)
	if err != nil {
		// A failing page is an empty page: the unit is given up and the job moves on.
		e.log(ctx).WithError(err).Warn("Catalog page failed, advancing to next unit")
		w.Totals.PageFailures++
		listings = nil
	} else {
		w.Totals.PagesFetched++
	}
	w.Totals.ItemsSeen += len(listings)

	res := StepResult{}
	next := params.Cursor
	if len(listings) < params.PageSize {
		next = next.NextUnit()
		res.Advanced = true
	} else {
		next = next.NextPage()
		if _, p := next.Position(); p > params.MaxPagesPerUnit {
			next = next.NextUnit()
			res.Advanced = true
		}
	}

	fresh, err := e.freshListings(ctx, job.ID, listings, &w.Totals)
	if err != nil {
		return StepResult{}, err
	}

	items, err := e.buildItems(ctx, job, unit, page, fresh, &w.Totals)
	if err != nil {
		return StepResult{}, err
	}
	if params.TargetCount > 0 {
		if remaining := params.TargetCount - params.Cursor.Collected(); len(items) > remaining {
			items = items[:remaining]
		}
	}

	w.Items = items
	w.Params.Cursor = next
	// SaveStep adds the inserted count to the cursor; after deduplication that is len(items).
	w.Finish = exhausted(params, next.AddCollected(len(items)), len(units))
	return e.persist(ctx, job, w, res)
}

// persist saves the step and turns the outcome into a StepResult.
func (e *JobEngine) persist(ctx context.Context, job *domain.Job, w repository.StepWrite, res StepResult) (StepResult, error) {
	saved, err := e.jobs.SaveStep(ctx, w)
	if err != nil {
		return StepResult{}, fmt.Errorf("failed to persist step: %w", err)
	}

	job.Params = saved.Params
	job.Totals = saved.Totals
	job.Version = saved.Version
	res.Added = saved.Inserted
	res.Status = job.Status

	e.publish(ctx, events.TypeStep, job, saved.Inserted)

	if !w.Finish {
		return res, nil
	}
	res.Done = true
	if !saved.Finished {
		// Canceled while the step was in flight; the work is kept, the status is not ours.
		current, err := e.jobs.Get(ctx, job.ID)
		if err != nil {
			return res, err
		}
		res.Status = current.Status
		return res, nil
	}

	job.Status = domain.JobStatusSuccess
	res.Status = job.Status
	logger.With(logger.Fields{
		"items_added": job.Totals.ItemsAdded,
		"steps":       job.Totals.Steps,
	}).WithStatus(string(job.Status)).Info(ctx, "Job finished")
	e.publish(ctx, events.TypeSucceeded, job, 0)

	if e.exporter != nil {
		url, err := e.exporter.Export(ctx, job)
		if err != nil {
			e.log(ctx).WithError(err).Warn("Failed to export job results")
		} else {
			res.ExportURL = url
		}
	}
	return res, nil
}

// freshListings drops listings repeated within the page or already stored for the job.
func (e *JobEngine) freshListings(ctx context.Context, jobID string, listings []catalog.Listing, totals *domain.JobTotals) ([]catalog.Listing, error) {
	if len(listings) == 0 {
		return nil, nil
	}
	inPage := make(map[string]bool, len(listings))
	unique := make([]catalog.Listing, 0, len(listings))
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		if l.SupplierID == "" || inPage[l.SupplierID] {
			totals.DuplicatesSkipped++
			continue
		}
		inPage[l.SupplierID] = true
		unique = append(unique, l)
		ids = append(ids, l.SupplierID)
	}

	existing, err := e.jobs.ExistingSupplierIDs(ctx, jobID, ids)
	if err != nil {
		return nil, err
	}
	fresh := unique[:0]
	for _, l := range unique {
		if existing[l.SupplierID] {
			totals.DuplicatesSkipped++
			continue
		}
		fresh = append(fresh, l)
	}
	return fresh, nil
}

// buildItems fetches details with bounded concurrency and prices every variant.
// A failed detail fetch skips that item only.
func (e *JobEngine) buildItems(ctx context.Context, job *domain.Job, unit catalog.Unit, page int, fresh []catalog.Listing, totals *domain.JobTotals) ([]domain.JobItem, error) {
	if len(fresh) == 0 {
		return nil, nil
	}

	products := make([]*catalog.Product, len(fresh))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.DetailConcurrency)
	for i, l := range fresh {
		g.Go(func() error {
			p, err := e.catalog.FetchDetail(gctx, l.SupplierID)
			if err != nil {
				e.log(ctx).WithField(logger.FieldSupplierID, l.SupplierID).WithError(err).
					Warn("Detail fetch failed, skipping item")
				return nil
			}
			products[i] = p
			return nil
		})
	}
	_ = g.Wait()

	rules, err := e.rules.RuleSet(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]domain.JobItem, 0, len(fresh))
	for i, p := range products {
		if p == nil {
			totals.DetailFailures++
			continue
		}
		item := e.candidate(fresh[i], p, unit, page, rules)
		if job.Params.MinStock > 0 && item.Metrics.StockSum < job.Params.MinStock {
			totals.FilteredOut++
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// candidate maps a supplier product into a priced job item.
func (e *JobEngine) candidate(l catalog.Listing, p *catalog.Product, unit catalog.Unit, page int, rules pricing.RuleSet) domain.JobItem {
	category := p.Category
	if category == "" {
		category = l.Category
	}
	title := p.Title
	if title == "" {
		title = l.Title
	}

	shipping := p.Shipping
	if shipping == nil {
		if est, ok := e.pricer.EstimateShipping(p.Parcel); ok {
			shipping = &est
		}
	}

	variants := p.Variants
	if len(variants) == 0 {
		variants = []catalog.Variant{{ID: l.SupplierID, Cost: p.Cost}}
	}

	item := domain.JobItem{
		SupplierID: l.SupplierID,
		Title:      title,
		Category:   category,
		Unit:       unit.String(),
		Page:       page,
		Currency:   p.Currency,
		Variants:   make(domain.VariantCandidates, 0, len(variants)),
	}
	minRetail := math.Inf(1)
	for _, v := range variants {
		cost := v.Cost
		if cost <= 0 {
			cost = p.Cost
		}
		vc := domain.VariantCandidate{
			VariantID:   v.ID,
			SKU:         v.SKU,
			Key:         v.Key,
			DisplayName: v.DisplayName,
			Size:        v.Size,
			Color:       v.Color,
			CostForeign: cost,
			Stock:       v.Stock,
		}
		q, err := e.pricer.ComputeRetail(cost, shipping, category, rules)
		vc.RetailLocal = q.RetailLocal
		if err != nil {
			vc.PricingError = err.Error()
		}

		item.Metrics.StockSum += v.Stock
		if err == nil && q.RetailLocal > 0 {
			item.Metrics.PricedVariants++
			minRetail = math.Min(minRetail, q.RetailLocal)
			item.Metrics.MaxRetail = math.Max(item.Metrics.MaxRetail, q.RetailLocal)
		}
		item.Variants = append(item.Variants, vc)
	}
	if item.Metrics.PricedVariants > 0 {
		item.Metrics.MinRetail = minRetail
	}
	return item
}

func unitFor(kind domain.JobKind, value string) catalog.Unit {
	if kind == domain.JobKindScanner {
		return catalog.Unit{Kind: catalog.UnitCategory, Value: value}
	}
	return catalog.Unit{Kind: catalog.UnitKeyword, Value: value}
}

func targetReached(p domain.JobParams, c domain.Cursor) bool {
	return p.TargetCount > 0 && c.Collected() >= p.TargetCount
}

// exhausted reports whether cursor c has no work left.
func exhausted(p domain.JobParams, c domain.Cursor, units int) bool {
	unit, _ := c.Position()
	return unit >= units || targetReached(p, c)
}
