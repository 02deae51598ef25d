package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/sofactl/internal/device"
)

// Adapter owns the host BLE device. It is created lazily on first use and shared by
// scanning and dialing.
type Adapter struct {
	mu     sync.Mutex
	dev    ble.Device
	logger *logrus.Logger
}

// NewAdapter creates an adapter. The underlying device is opened on first use.
func NewAdapter(logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) device() (ble.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dev != nil {
		return a.dev, nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}
	a.dev = dev
	return dev, nil
}

// Scan reports advertisements until ctx is done. Context expiry is not an error.
func (a *Adapter) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	dev, err := a.device()
	if err != nil {
		return err
	}

	err = dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(NewAdvertisement(adv))
	})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return NormalizeError(err)
}

// Peripheral returns a dialable handle for the given address.
func (a *Adapter) Peripheral(address, name string) device.Peripheral {
	return &BLEPeripheral{adapter: a, address: address, name: name}
}

// Close stops the host device if it was opened.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dev == nil {
		return nil
	}
	err := a.dev.Stop()
	a.dev = nil
	return NormalizeError(err)
}

// BLEPeripheral is a known address that can be connected to.
type BLEPeripheral struct {
	adapter *Adapter
	address string
	name    string
}

func (p *BLEPeripheral) Address() string {
	return p.address
}

func (p *BLEPeripheral) Name() string {
	return p.name
}

// Dial connects and discovers the full GATT profile. On discovery failure the
// half-open connection is cancelled.
func (p *BLEPeripheral) Dial(ctx context.Context) (device.Transport, error) {
	dev, err := p.adapter.device()
	if err != nil {
		return nil, err
	}

	logger := p.adapter.logger
	logger.WithField("address", p.address).Debug("Dialing peripheral...")

	client, err := dev.Dial(ctx, ble.NewAddr(strings.ToLower(p.address)))
	if err != nil {
		return nil, NormalizeError(err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cerr := client.CancelConnection(); cerr != nil {
			logger.WithFields(logrus.Fields{
				"address": p.address,
				"error":   cerr,
			}).Debug("Failed to cancel connection after discovery error")
		}
		return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	logger.WithFields(logrus.Fields{
		"address":  p.address,
		"services": len(profile.Services),
	}).Debug("Profile discovered")

	return newTransport(p.address, client, profile, logger), nil
}
