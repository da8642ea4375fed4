package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the number of provider calls made at once.
const DefaultConcurrency = 4

// Request describes one month of availability for one service.
type Request struct {
	Organization domain.Organization
	// ServiceMinutes is the service duration, used when Settings has no slot length.
	ServiceMinutes int
	Settings       domain.SchedulingSettings
	Assignments    []domain.EmployeeAssignment
	Year           int
	Month          time.Month
}

// Result maps organisation-local dates ("2006-01-02") to their free slots.
// Dates without slots are absent.
type Result struct {
	Dates map[string][]domain.Slot `json:"dates"`
	// Failures maps employee IDs to the provider error that excluded them.
	Failures map[string]string `json:"failures,omitempty"`
}

// Calculator intersects employee calendars with business hours.
type Calculator struct {
	provider    ports.ScheduleProvider
	now         func() time.Time
	concurrency int
	logger      *slog.Logger
}

// Option configures the Calculator.
type Option func(*Calculator)

// WithClock overrides the time source used for lead time and horizon checks.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		c.now = now
	}
}

// WithConcurrency bounds the number of concurrent provider calls.
func WithConcurrency(n int) Option {
	return func(c *Calculator) {
		c.concurrency = n
	}
}

// WithLogger configures a logger for the Calculator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Calculator) {
		c.logger = logger
	}
}

// NewCalculator creates a calculator reading calendars from provider.
func NewCalculator(provider ports.ScheduleProvider, opts ...Option) *Calculator {
	c := &Calculator{
		provider:    provider,
		now:         time.Now,
		concurrency: DefaultConcurrency,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	return c
}

// Compute returns the bookable slots of the requested month.
//
// Employees whose calendar cannot be fetched are listed in Result.Failures and
// the remaining employees are used. If no calendar can be fetched at all the
// call fails with an error wrapping domain.ErrProviderUnavailable.
func (c *Calculator) Compute(ctx context.Context, req Request) (Result, error) {
	res := Result{Dates: map[string][]domain.Slot{}}
	if len(req.Assignments) == 0 {
		return res, nil
	}
	if req.Month < time.January || req.Month > time.December {
		return res, fmt.Errorf("%w: month %d", domain.ErrInvalidInput, req.Month)
	}

	loc, err := req.Organization.Location()
	if err != nil {
		return res, err
	}
	windows, err := parseHours(req.Organization.BusinessHours)
	if err != nil {
		return res, err
	}

	monthStart := time.Date(req.Year, req.Month, 1, 0, 0, 0, 0, loc)
	monthEnd := monthStart.AddDate(0, 1, 0)

	now := c.now()
	earliest := now.Add(req.Settings.LeadTime())
	horizon, limited := req.Settings.Horizon(now)
	if !monthEnd.After(earliest) || (limited && monthStart.After(horizon)) {
		return res, nil
	}

	free, failures, err := c.fetch(ctx, req.Assignments, monthStart, monthEnd)
	if err != nil {
		return res, err
	}
	if len(failures) > 0 {
		res.Failures = failures
	}

	slot := req.Settings.SlotLength(req.ServiceMinutes)
	need := slot + req.Settings.Buffer()
	step := req.Settings.Step(req.ServiceMinutes)

	for day := monthStart; day.Before(monthEnd); day = day.AddDate(0, 0, 1) {
		key := day.Format(domain.DateLayout)
		if req.Organization.IsClosed(key) {
			continue
		}
		seen := make(map[int64]bool)
		var slots []domain.Slot
		for _, w := range windows[day.Weekday()] {
			wStart := time.Date(day.Year(), day.Month(), day.Day(), 0, w.start, 0, 0, loc)
			wEnd := time.Date(day.Year(), day.Month(), day.Day(), 0, w.end, 0, 0, loc)

			for t := wStart; !t.Add(need).After(wEnd); t = t.Add(step) {
				if t.Before(earliest) {
					continue
				}
				if limited && t.After(horizon) {
					break
				}
				if seen[t.Unix()] {
					continue
				}
				ids := freeEmployees(req.Assignments, free, t, t.Add(need))
				if len(ids) == 0 {
					continue
				}
				seen[t.Unix()] = true
				slots = append(slots, domain.Slot{
					Time:        t.In(loc).Format("15:04"),
					Start:       t,
					End:         t.Add(slot),
					EmployeeIDs: ids,
				})
			}
		}
		if len(slots) > 0 {
			sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
			res.Dates[key] = slots
		}
	}

	c.logger.Debug("availability computed",
		"organization_id", req.Organization.ID,
		"month", monthStart.Format("2006-01"),
		"dates", len(res.Dates),
		"failures", len(failures))
	return res, nil
}

// fetch loads the merged free intervals of every assigned employee.
func (c *Calculator) fetch(ctx context.Context, assignments []domain.EmployeeAssignment, from, to time.Time) ([][]domain.Interval, map[string]string, error) {
	free := make([][]domain.Interval, len(assignments))
	var (
		mu       sync.Mutex
		failures = map[string]string{}
		lastErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, a := range assignments {
		g.Go(func() error {
			intervals, err := c.provider.FreeIntervals(gctx, a.ProviderEmployeeID, from, to)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				c.logger.Warn("failed to fetch employee calendar", "employee_id", a.EmployeeID, "error", err)
				mu.Lock()
				failures[a.EmployeeID] = err.Error()
				lastErr = err
				mu.Unlock()
				return nil
			}
			free[i] = domain.MergeIntervals(intervals)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if len(failures) == len(assignments) {
		if errors.Is(lastErr, domain.ErrProviderUnavailable) {
			return nil, nil, fmt.Errorf("no employee calendar could be fetched: %w", lastErr)
		}
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, lastErr)
	}
	return free, failures, nil
}

func freeEmployees(assignments []domain.EmployeeAssignment, free [][]domain.Interval, start, end time.Time) []string {
	var ids []string
	for i, a := range assignments {
		for _, iv := range free[i] {
			if iv.Covers(start, end) {
				ids = append(ids, a.EmployeeID)
				break
			}
		}
	}
	return ids
}

type window struct{ start, end int }

func parseHours(bh domain.BusinessHours) (map[time.Weekday][]window, error) {
	out := make(map[time.Weekday][]window)
	for d := time.Sunday; d <= time.Saturday; d++ {
		for _, r := range bh.For(d) {
			s, e, err := r.Minutes()
			if err != nil {
				return nil, err
			}
			out[d] = append(out[d], window{start: s, end: e})
		}
		sort.Slice(out[d], func(i, j int) bool { return out[d][i].start < out[d][j].start })
	}
	return out, nil
}
