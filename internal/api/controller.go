package api

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/palmgrid/orvibo-core/internal/bridges/orvibo"
	"github.com/palmgrid/orvibo-core/internal/infrastructure/config"
	"github.com/palmgrid/orvibo-core/internal/infrastructure/logging"
	"github.com/palmgrid/orvibo-core/internal/signal"
)

// Controller abstracts the device operations the API exposes, keeping
// handlers testable without hardware on the segment.
type Controller interface {
	// Discover scans the local segment and returns responding devices.
	Discover(ctx context.Context) ([]orvibo.DeviceInfo, error)

	// Learn puts the device at addr into capture mode and waits for a
	// button press. An empty addr targets the first discovered blaster.
	// Returns the captured signal, or nil when the session timed out.
	Learn(ctx context.Context, addr, label string) ([]byte, error)

	// Emit transmits the stored signals named by labels through the
	// device at addr, in order. Returns false when the device refused
	// or could not be reached.
	Emit(ctx context.Context, addr string, labels []string) (bool, error)
}

// BridgeController drives real devices over UDP. It caches nothing; every
// operation opens its own short-lived socket.
type BridgeController struct {
	cfg     config.BridgeConfig
	signals signal.Repository
	logger  *logging.Logger
	stats   *orvibo.Stats
}

// NewBridgeController creates a controller backed by the Orvibo bridge.
func NewBridgeController(cfg config.BridgeConfig, signals signal.Repository, logger *logging.Logger, stats *orvibo.Stats) *BridgeController {
	return &BridgeController{
		cfg:     cfg,
		signals: signals,
		logger:  logger,
		stats:   stats,
	}
}

// Discover scans the segment, returning devices sorted by address.
func (b *BridgeController) Discover(ctx context.Context) ([]orvibo.DeviceInfo, error) {
	found, err := orvibo.Discover(ctx, b.discoverOptions())
	if err != nil {
		return nil, err
	}

	devices := make([]orvibo.DeviceInfo, 0, len(found))
	for _, info := range found {
		devices = append(devices, info)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Addr < devices[j].Addr })
	return devices, nil
}

// Learn captures a signal from the blaster at addr and stores it under
// label. Returns nil data without error when no button was pressed before
// the timeout.
func (b *BridgeController) Learn(ctx context.Context, addr, label string) ([]byte, error) {
	dev, err := b.openDevice(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	return dev.Learn(ctx, label)
}

// Emit plays back stored signals through the device at addr.
func (b *BridgeController) Emit(ctx context.Context, addr string, labels []string) (bool, error) {
	dev, err := b.openDevice(ctx, addr)
	if err != nil {
		return false, err
	}
	defer dev.Close()

	return dev.Emit(ctx, labels...)
}

// openDevice resolves addr (discovering the first blaster when empty) and
// dials it.
func (b *BridgeController) openDevice(ctx context.Context, addr string) (*orvibo.Device, error) {
	if addr == "" {
		resolved, err := b.firstBlaster(ctx)
		if err != nil {
			return nil, err
		}
		addr = resolved
	}

	return orvibo.NewDevice(ctx, addr, orvibo.DeviceOptions{
		Port:           b.cfg.Port,
		SendSlices:     b.cfg.SendSlices,
		ResponseSlices: b.cfg.ResponseSlices,
		LearnTimeout:   time.Duration(b.cfg.LearnTimeout) * time.Second,
		Signals:        b.signals,
		Logger:         b.logger,
		Stats:          b.stats,
	})
}

// firstBlaster returns the lowest-addressed IR blaster on the segment.
func (b *BridgeController) firstBlaster(ctx context.Context) (string, error) {
	devices, err := b.Discover(ctx)
	if err != nil {
		return "", err
	}
	for _, info := range devices {
		if info.Kind == orvibo.KindIRBlaster {
			return info.Addr, nil
		}
	}
	return "", fmt.Errorf("no blaster on segment: %w", orvibo.ErrDeviceNotFound)
}

func (b *BridgeController) discoverOptions() orvibo.DiscoverOptions {
	return orvibo.DiscoverOptions{
		BroadcastAddr: b.cfg.BroadcastAddr,
		ListenAddr:    b.cfg.ListenAddr,
		Port:          b.cfg.Port,
		SendSlices:    b.cfg.SendSlices,
		Logger:        b.logger,
		Stats:         b.stats,
	}
}
