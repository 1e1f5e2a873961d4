package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/matchbox/internal/server"
	"github.com/alanyoungcy/matchbox/internal/server/handler"
	"github.com/alanyoungcy/matchbox/internal/server/ws"
	"github.com/alanyoungcy/matchbox/internal/service"
)

const shutdownTimeout = 10 * time.Second

func (a *App) deployService(deps *Dependencies) *service.DeployService {
	if deps.Deployer == nil {
		return nil
	}
	return service.NewDeployService(deps.Deployer, deps.Deployments, service.DeployOptions{
		Locks:     deps.Locks,
		Bus:       deps.SignalBus,
		Audit:     deps.Audit,
		Blobs:     deps.Blobs,
		Notifier:  deps.Notifier,
		LockTTL:   a.cfg.Deploy.LockTTL.Duration,
		TxTimeout: a.cfg.Deploy.TxTimeout.Duration,
	}, a.logger)
}

// ServerMode serves the HTTP API and the deployment WebSocket feed until
// ctx is cancelled, then drains in-flight deployments.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Checks, a.logger),
		Proxy: handler.NewProxyHandler(deps.Proxy,
			a.cfg.Proxy.CacheTTL.Duration, a.cfg.Proxy.StaleWhileRevalidate.Duration, a.logger),
		Markets:  handler.NewMarketHandler(deps.Resolver, a.logger),
		Sequence: handler.NewSequenceHandler(a.logger),
	}

	deploySvc := a.deployService(deps)
	if deploySvc != nil {
		handlers.Deploy = handler.NewDeployHandler(deploySvc, a.logger)
	}
	if deps.Reader != nil {
		handlers.Vaults = handler.NewVaultHandler(service.NewVaultService(deps.Reader, deps.Responses, a.logger), a.logger)
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{StartedAt: time.Now().UTC()})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutCtx)
		if deploySvc != nil {
			deploySvc.Wait()
		}
		return err
	})

	return g.Wait()
}

// DeployMode deploys the sequence in the configured legs file, resolving
// market URLs to condition ids first, and prints the final deployment.
func (a *App) DeployMode(ctx context.Context, deps *Dependencies) error {
	deploySvc := a.deployService(deps)
	if deploySvc == nil {
		return errors.New("app: deploy mode needs rpc, factory and wallet")
	}

	fileOwner, legs, err := LoadLegs(a.cfg.Deploy.LegsFile)
	if err != nil {
		return err
	}
	owner := a.cfg.Deploy.Owner
	if owner == "" {
		owner = fileOwner
	}

	legs, err = ResolveMarkets(ctx, deps.Resolver, legs)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "deploying sequence",
		slog.Int("legs", len(legs)),
		slog.String("owner", owner),
	)
	d, err := deploySvc.Deploy(ctx, owner, legs)
	if d.ID != "" {
		// A failed chain step still produced a recorded deployment.
		if perr := a.printJSON(d); perr != nil {
			return perr
		}
	}
	if err != nil {
		return fmt.Errorf("app: deploy: %w", err)
	}
	return nil
}

// StatusMode prints the configured vault's on-chain status.
func (a *App) StatusMode(ctx context.Context, deps *Dependencies) error {
	if deps.Reader == nil {
		return errors.New("app: status mode needs an rpc endpoint")
	}
	st, err := service.NewVaultService(deps.Reader, nil, a.logger).Status(ctx, a.cfg.Deploy.Vault)
	if err != nil {
		return fmt.Errorf("app: vault status: %w", err)
	}
	return a.printJSON(st)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("app: write output: %w", err)
	}
	return nil
}
