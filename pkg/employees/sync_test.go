package employees_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/employees"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	employees []domain.ProviderEmployee
	err       error
}

func (p *stubProvider) ListEmployees(ctx context.Context) ([]domain.ProviderEmployee, error) {
	return p.employees, p.err
}

func (p *stubProvider) FreeIntervals(ctx context.Context, id string, from, to time.Time) ([]domain.Interval, error) {
	return nil, nil
}

type syncCounter struct{ ok, failed int }

func (c *syncCounter) ObserveEmployeeSync(err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

func sequentialIDs() func() string {
	var n atomic.Int32
	return func() string { return fmt.Sprintf("emp-%d", n.Add(1)) }
}

func TestSync_CreateUpdateDeactivate(t *testing.T) {
	ctx := context.Background()
	dir := memory.NewDirectory()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	provider := &stubProvider{employees: []domain.ProviderEmployee{
		{ID: "101", Name: "Zoe", Email: "zoe@example.com"},
		{ID: "102", Name: "Adam"},
	}}
	obs := &syncCounter{}
	syncer := employees.NewSyncer(provider, dir,
		employees.WithClock(func() time.Time { return now }),
		employees.WithIDGenerator(sequentialIDs()),
		employees.WithObserver(obs),
	)

	rep, err := syncer.Sync(ctx, "org")
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Created)

	list, err := dir.ListEmployees(ctx, "org")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Adam", list[0].Name)
	assert.True(t, list[0].Active)

	// A manual toggle must survive the next sync.
	zoe := list[1]
	zoe.Active = false
	require.NoError(t, dir.SaveEmployee(ctx, zoe))

	provider.employees = []domain.ProviderEmployee{{ID: "101", Name: "Zoe B", Email: "zoe@example.com"}}
	now = now.Add(time.Hour)
	rep, err = syncer.Sync(ctx, "org")
	require.NoError(t, err)
	assert.Equal(t, employees.Report{OrganizationID: "org", Updated: 1, Deactivated: 1, SyncedAt: now}, rep)

	got, err := dir.GetEmployee(ctx, zoe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Zoe B", got.Name)
	assert.False(t, got.Active)
	assert.True(t, got.SyncedAt.Equal(now))

	adam, err := dir.GetEmployee(ctx, list[0].ID)
	require.NoError(t, err)
	assert.False(t, adam.Active)

	assert.Equal(t, 2, obs.ok)
}

func TestSync_ProviderFailure(t *testing.T) {
	obs := &syncCounter{}
	syncer := employees.NewSyncer(&stubProvider{err: domain.ErrProviderUnavailable}, memory.NewDirectory(),
		employees.WithObserver(obs))

	_, err := syncer.Sync(context.Background(), "org")
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, 1, obs.failed)
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := employees.NewScheduler()
	ran := make(chan struct{}, 1)
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return errors.New("logged, not fatal")
	}))
	assert.Equal(t, 1, s.Len())

	s.Start()
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := employees.NewScheduler()
	err := s.Add("bad", "not a schedule", func(context.Context) error { return nil })
	assert.Error(t, err)
}
