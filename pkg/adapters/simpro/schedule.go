package simpro

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/tidwall/gjson"
)

// ListEmployees pages through the employee list.
func (c *Client) ListEmployees(ctx context.Context) ([]domain.ProviderEmployee, error) {
	var out []domain.ProviderEmployee
	for page, total := 1, 1; page <= total; page++ {
		q := url.Values{
			"columns":  {"ID,Name,PrimaryContact"},
			"pageSize": {strconv.Itoa(c.pageSize)},
			"page":     {strconv.Itoa(page)},
		}
		body, header, err := c.get(ctx, "employees", "/employees/", q)
		if err != nil {
			return nil, err
		}
		total = pages(header)

		res := gjson.ParseBytes(body)
		if !res.IsArray() {
			return nil, fmt.Errorf("employees: unexpected payload")
		}
		res.ForEach(func(_, e gjson.Result) bool {
			out = append(out, domain.ProviderEmployee{
				ID:    e.Get("ID").String(),
				Name:  e.Get("Name").String(),
				Email: e.Get("PrimaryContact.Email").String(),
			})
			return true
		})
	}
	return out, nil
}

// FreeIntervals returns the employee's availability minus its scheduled blocks.
func (c *Client) FreeIntervals(ctx context.Context, providerEmployeeID string, from, to time.Time) ([]domain.Interval, error) {
	// The provider filters by calendar date, inclusive on both ends.
	start := from.Format(dateLayout)
	end := to.Add(-time.Nanosecond).Format(dateLayout)

	body, _, err := c.get(ctx, "availability", "/employees/"+url.PathEscape(providerEmployeeID)+"/availability/",
		url.Values{"StartDate": {start}, "EndDate": {end}})
	if err != nil {
		return nil, err
	}
	available, err := parseIntervals(gjson.ParseBytes(body))
	if err != nil {
		return nil, fmt.Errorf("availability of %s: %w", providerEmployeeID, err)
	}
	if len(available) == 0 {
		return nil, nil
	}

	body, _, err = c.get(ctx, "schedules", "/schedules/", url.Values{
		"Staff.ID": {providerEmployeeID},
		"Date":     {"between(" + start + "," + end + ")"},
		"columns":  {"ID,Date,Blocks"},
	})
	if err != nil {
		return nil, err
	}
	var busy []domain.Interval
	for _, s := range gjson.ParseBytes(body).Array() {
		blocks, err := parseIntervals(s.Get("Blocks"))
		if err != nil {
			return nil, fmt.Errorf("schedule %s of %s: %w", s.Get("ID").String(), providerEmployeeID, err)
		}
		busy = append(busy, blocks...)
	}

	return clip(domain.SubtractIntervals(available, busy), from, to), nil
}

// parseIntervals reads an array of {ISO8601StartTime, ISO8601EndTime} objects.
func parseIntervals(arr gjson.Result) ([]domain.Interval, error) {
	var out []domain.Interval
	for _, r := range arr.Array() {
		s, err := time.Parse(time.RFC3339, r.Get("ISO8601StartTime").String())
		if err != nil {
			return nil, fmt.Errorf("bad start time: %w", err)
		}
		e, err := time.Parse(time.RFC3339, r.Get("ISO8601EndTime").String())
		if err != nil {
			return nil, fmt.Errorf("bad end time: %w", err)
		}
		out = append(out, domain.Interval{Start: s, End: e})
	}
	return out, nil
}

// clip trims the intervals to [from, to).
func clip(in []domain.Interval, from, to time.Time) []domain.Interval {
	var out []domain.Interval
	for _, iv := range in {
		if iv.Start.Before(from) {
			iv.Start = from
		}
		if iv.End.After(to) {
			iv.End = to
		}
		if !iv.Empty() {
			out = append(out, iv)
		}
	}
	return out
}
