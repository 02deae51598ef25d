package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/sofactl/internal/device"
	"github.com/srg/sofactl/internal/ringchan"
)

// DefaultNamePrefix matches the advertised names of supported actuators.
const DefaultNamePrefix = "Sofa"

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// PeripheralFactory turns a sighting into something that can be dialed.
type PeripheralFactory func(address, name string) device.Peripheral

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

type DeviceEvent struct {
	Type     DeviceEventType
	Sighting Sighting
}

// Sighting is the latest advertisement seen from one address.
type Sighting struct {
	Address     string
	Name        string
	RSSI        int
	Connectable bool
	Services    []string
	FirstSeen   time.Time
	LastSeen    time.Time
}

// DisplayName returns the advertised name, or the address when the device is unnamed.
func (s Sighting) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Address
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool
	NamePrefix      string
	ServiceUUIDs    []string
	AllowList       []string
	BlockList       []string
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
		NamePrefix:      DefaultNamePrefix,
	}
}

// Scanner discovers actuators and remembers where they were seen.
// It implements device.Locator so a connection can be opened by address.
type Scanner struct {
	adapter    device.ScanningDevice
	peripheral PeripheralFactory
	devices    *hashmap.Map[string, Sighting]
	events     *ringchan.RingChannel[DeviceEvent]
	logger     *logrus.Logger

	// LookupTimeout bounds the on-demand scan Lookup runs for an unknown address.
	LookupTimeout time.Duration

	scanMu sync.Mutex // one scan on the adapter at a time
}

// NewScanner creates a scanner on top of a scanning adapter
func NewScanner(adapter device.ScanningDevice, peripheral PeripheralFactory, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		adapter:       adapter,
		peripheral:    peripheral,
		devices:       hashmap.New[string, Sighting](),
		events:        ringchan.New[DeviceEvent](100),
		logger:        logger,
		LookupTimeout: 10 * time.Second,
	}
}

func addressKey(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}

// Scan performs BLE discovery with provided options. Results are ordered by signal strength.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) ([]Sighting, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {} // No-op callback
	}

	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.logger.WithFields(logrus.Fields{
		"duration": opts.Duration,
		"prefix":   opts.NamePrefix,
	}).Info("Starting BLE scan...")
	progressCallback("Scanning")

	seen := make(map[string]struct{})
	err := s.adapter.Scan(ctx, !opts.DuplicateFilter, func(adv device.Advertisement) {
		if !shouldInclude(adv, opts) {
			return
		}
		sighting := s.record(adv)
		seen[addressKey(sighting.Address)] = struct{}{}
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	progressCallback("Processing results")

	results := make([]Sighting, 0, len(seen))
	for key := range seen {
		if sighting, ok := s.devices.Get(key); ok {
			results = append(results, sighting)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].RSSI != results[j].RSSI {
			return results[i].RSSI > results[j].RSSI
		}
		return results[i].Address < results[j].Address
	})

	s.logger.WithField("device_count", len(results)).Info("BLE scan completed")
	return results, nil
}

// record stores adv and publishes a discovery event.
func (s *Scanner) record(adv device.Advertisement) Sighting {
	key := addressKey(adv.Addr())
	now := time.Now()

	sighting := Sighting{
		Address:     adv.Addr(),
		Name:        adv.LocalName(),
		RSSI:        adv.RSSI(),
		Connectable: adv.Connectable(),
		Services:    adv.Services(),
		FirstSeen:   now,
		LastSeen:    now,
	}

	prev, existing := s.devices.Get(key)
	if existing {
		sighting.FirstSeen = prev.FirstSeen
		// Scan responses often omit the name.
		if sighting.Name == "" {
			sighting.Name = prev.Name
		}
	}
	s.devices.Set(key, sighting)

	event := DeviceEvent{Type: EventUpdated, Sighting: sighting}
	if !existing {
		event.Type = EventNew
		s.logger.WithFields(logrus.Fields{
			"device":  sighting.Name,
			"address": sighting.Address,
			"rssi":    sighting.RSSI,
		}).Info("Discovered new device")
	}
	s.events.Send(event)
	return sighting
}

// shouldInclude applies the allow/block, name prefix and service filters
func shouldInclude(adv device.Advertisement, opts *ScanOptions) bool {
	addr := addressKey(adv.Addr())

	for _, blocked := range opts.BlockList {
		if addr == addressKey(blocked) {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if addr == addressKey(a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if opts.NamePrefix != "" && !strings.HasPrefix(adv.LocalName(), opts.NamePrefix) {
		return false
	}

	if len(opts.ServiceUUIDs) > 0 {
		for _, required := range opts.ServiceUUIDs {
			for _, advUUID := range adv.Services() {
				if device.EqualUUID(required, advUUID) {
					return true
				}
			}
		}
		return false
	}

	return true
}

// Get returns the last sighting of address.
func (s *Scanner) Get(address string) (Sighting, bool) {
	return s.devices.Get(addressKey(address))
}

// Devices returns every sighting recorded so far.
func (s *Scanner) Devices() []Sighting {
	devs := make([]Sighting, 0, s.devices.Len())
	s.devices.Range(func(_ string, value Sighting) bool {
		devs = append(devs, value)
		return true
	})
	return devs
}

// Lookup resolves address to a dialable peripheral. Unknown addresses trigger a scan that
// ends as soon as the address is seen or LookupTimeout elapses.
func (s *Scanner) Lookup(ctx context.Context, address string) (device.Peripheral, error) {
	if s.peripheral == nil {
		return nil, fmt.Errorf("scanner: no peripheral factory: %w", device.ErrUnsupported)
	}
	if sighting, ok := s.Get(address); ok {
		return s.peripheral(sighting.Address, sighting.Name), nil
	}

	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	target := addressKey(address)
	scanCtx, cancel := context.WithTimeout(ctx, s.LookupTimeout)
	defer cancel()

	s.logger.WithField("address", address).Debug("Device not cached, scanning...")

	var once sync.Once
	err := s.adapter.Scan(scanCtx, false, func(adv device.Advertisement) {
		if addressKey(adv.Addr()) != target {
			return
		}
		s.record(adv)
		once.Do(cancel)
	})
	if sighting, ok := s.Get(address); ok {
		return s.peripheral(sighting.Address, sighting.Name), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan for %s failed: %w", address, err)
	}
	return nil, &device.NotFoundError{Resource: "device", UUIDs: []string{address}}
}

// Events return a read-only channel of device events
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events.C()
}

var _ device.Locator = (*Scanner)(nil)
