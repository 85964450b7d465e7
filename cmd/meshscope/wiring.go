package main

import (
	"go.uber.org/zap"

	"meshscope/internal/config"
	"meshscope/internal/devscan"
	"meshscope/internal/locator"
	"meshscope/internal/logging"
	"meshscope/internal/service"
	"meshscope/internal/transport"
)

// newEngine builds the discovery engine on a CoAP requester. Diagnostics
// from both go to bus.
func newEngine(cfg *config.Config, bus *service.EventBus) *devscan.Engine {
	client := transport.NewCoAPClient(transport.CoAPConfig{
		Port:          cfg.Transport.Port,
		Path:          cfg.Transport.Path,
		AckTimeout:    cfg.Transport.AckTimeout.Duration(),
		MaxRetransmit: cfg.Transport.MaxRetransmit,
	})
	client.SetEventPublisher(bus)

	engine := devscan.NewEngine(client, devscan.Config{MaxInFlight: cfg.Scan.MaxInFlight})
	engine.SetEventPublisher(bus)
	return engine
}

// coordinatorResolver returns a fixed address, or an mDNS lookup when the
// address is left empty
func coordinatorResolver(cfg *config.Config) service.CoordinatorResolver {
	if cfg.Coordinator.Address != "" {
		return service.StaticCoordinator(cfg.Coordinator.Address)
	}

	loc := locator.New()
	loc.Service = cfg.Coordinator.MDNS.Service
	loc.Domain = cfg.Coordinator.MDNS.Domain
	loc.Instance = cfg.Coordinator.MDNS.Instance
	loc.Timeout = cfg.Coordinator.MDNS.Timeout.Duration()
	return loc.Resolve
}

// reloadCoordinator rereads the config at path and hands the new resolver
// to set. An unreadable or invalid file leaves the current resolver alone.
func reloadCoordinator(path string, set func(service.CoordinatorResolver)) {
	cfg, _, err := config.LoadFromPath(path)
	if err != nil {
		logging.Warn("Ignoring config change", zap.String("path", path), zap.Error(err))
		return
	}
	set(coordinatorResolver(cfg))
	logging.Info("Coordinator reloaded",
		zap.String("address", cfg.Coordinator.Address),
		zap.Bool("mdns", cfg.Coordinator.MDNS.Enabled),
	)
}
