package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/employees"
)

// NewHandler builds the HTTP API of the App.
func (a *App) NewHandler() (http.Handler, error) {
	opts := []httpAdapter.Option{
		httpAdapter.WithLogger(a.Logger),
		httpAdapter.WithCORSOrigins(a.Config.Server.CORSOrigins),
		httpAdapter.WithRequestValidation(a.Config.Server.ValidateOpenAPI),
		httpAdapter.WithMetricsHandler(a.Metrics.Handler()),
	}
	if a.Auth != nil {
		opts = append(opts, httpAdapter.WithAuthenticator(a.Auth))
	} else {
		a.Logger.Warn("no auth secret configured, organisations are read from the " + httpAdapter.OrganizationHeader + " header")
	}
	return httpAdapter.NewHandler(a.Service, opts...)
}

// NewScheduler registers the periodic employee sync and purge jobs.
func (a *App) NewScheduler() (*employees.Scheduler, error) {
	sched := employees.NewScheduler(employees.WithSchedulerLogger(a.Logger))
	sync, purge := a.Service.Jobs(a.SyncedOrganizations())

	if spec := a.Config.Schedule.Purge; spec != "" {
		if err := sched.Add("purge", spec, purge); err != nil {
			return nil, err
		}
	}
	if spec := a.Config.Schedule.EmployeeSync; spec != "" && a.Config.Provider.Enabled() && len(a.SyncedOrganizations()) > 0 {
		if err := sched.Add("employee-sync", spec, sync); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// Serve runs the HTTP API and the scheduler until ctx is done, then shuts
// both down and flushes open drafts.
func Serve(ctx context.Context, app *App) error {
	handler, err := app.NewHandler()
	if err != nil {
		return err
	}
	sched, err := app.NewScheduler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              app.Config.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		printSystemMessage("Starting Arbor Server on %s", srv.Addr)
		printSystemMessage("Store backend: %s", app.Config.Store.Backend)
		serverErrors <- srv.ListenAndServe()
	}()
	sched.Start()

	timeout := app.Config.Server.ShutdownTimeout.Std()
	shutdownCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), timeout)
	}

	select {
	case err := <-serverErrors:
		sctx, cancel := shutdownCtx()
		defer cancel()
		_ = sched.Stop(sctx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		if sc, ok := ctx.(*SignalContext); ok && sc.Signal() != nil {
			printSystemMessage("Start shutdown... Signal: %v", sc.Signal())
		}

		// Give outstanding requests a deadline for completion.
		sctx, cancel := shutdownCtx()
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := srv.Shutdown(sctx); err != nil {
			app.Logger.Warn("graceful shutdown did not complete", "timeout", timeout, "err", err)
			if err := srv.Close(); err != nil {
				app.Logger.Error("error killing server", "err", err)
			}
		}
		if err := sched.Stop(sctx); err != nil {
			app.Logger.Warn("scheduled jobs still running at shutdown", "err", err)
		}
		printSystemMessage("Arbor Server stopped gracefully")
		return nil
	}
}
