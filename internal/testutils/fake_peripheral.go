package testutils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/srg/sofactl/internal/device"
)

// WriteRecord is one frame received by a fake characteristic.
type WriteRecord struct {
	Time           time.Time
	Characteristic string
	Handle         uint16
	Data           []byte
	WithResponse   bool
}

// FakePeripheral is an in-memory device.Peripheral that records every write.
type FakePeripheral struct {
	address string
	name    string
	profile DeviceProfileConfig

	dialDelay  time.Duration
	writeDelay time.Duration

	mu           sync.Mutex
	dialFailures int
	dialErr      error
	dialTimes    []time.Time
	transport    *FakeTransport
	closes       int
	writeErr     error
	writes       []WriteRecord
	writeSignal  chan struct{}
}

func (p *FakePeripheral) Address() string { return p.address }
func (p *FakePeripheral) Name() string    { return p.name }

// Dial opens a new fake session. Configured dial failures are consumed first.
func (p *FakePeripheral) Dial(ctx context.Context) (device.Transport, error) {
	p.mu.Lock()
	p.dialTimes = append(p.dialTimes, time.Now())
	attempt := len(p.dialTimes)
	failures, dialErr := p.dialFailures, p.dialErr
	p.mu.Unlock()

	if p.dialDelay > 0 {
		select {
		case <-time.After(p.dialDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if attempt <= failures {
		if dialErr == nil {
			dialErr = errors.New("connection refused")
		}
		return nil, fmt.Errorf("dial attempt %d: %w", attempt, dialErr)
	}

	t := p.newTransport()
	p.mu.Lock()
	p.transport = t
	p.mu.Unlock()
	return t, nil
}

func (p *FakePeripheral) newTransport() *FakeTransport {
	t := &FakeTransport{
		peripheral:   p,
		disconnected: make(chan struct{}),
	}
	handle := uint16(0x0010)
	for _, svcCfg := range p.profile.Services {
		svc := &fakeService{uuid: device.NormalizeUUID(svcCfg.UUID)}
		for _, charCfg := range svcCfg.Characteristics {
			svc.chars = append(svc.chars, &FakeCharacteristic{
				transport: t,
				uuid:      device.NormalizeUUID(charCfg.UUID),
				handle:    handle,
				props:     parseCharacteristicProperties(charCfg.Properties),
			})
			handle += 2
		}
		t.services = append(t.services, svc)
	}
	return t
}

// DropLink simulates a peripheral-initiated disconnect of the current session.
func (p *FakePeripheral) DropLink() {
	p.mu.Lock()
	t := p.transport
	p.mu.Unlock()
	if t != nil {
		t.drop()
	}
}

// SetWriteError makes every following write fail with err. Nil restores success.
func (p *FakePeripheral) SetWriteError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// DialCount returns the number of dial attempts so far.
func (p *FakePeripheral) DialCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dialTimes)
}

// DialTimes returns the start time of every dial attempt.
func (p *FakePeripheral) DialTimes() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Time(nil), p.dialTimes...)
}

// CloseCount returns how many sessions were closed by the client.
func (p *FakePeripheral) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// Writes returns a copy of the write log.
func (p *FakePeripheral) Writes() []WriteRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]WriteRecord(nil), p.writes...)
}

// CommandCodes returns byte 2 of every recorded frame, in write order.
func (p *FakePeripheral) CommandCodes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	codes := make([]byte, 0, len(p.writes))
	for _, w := range p.writes {
		if len(w.Data) > 2 {
			codes = append(codes, w.Data[2])
		}
	}
	return codes
}

// CountCode returns how many recorded frames carry the given command code.
func (p *FakePeripheral) CountCode(code byte) int {
	n := 0
	for _, c := range p.CommandCodes() {
		if c == code {
			n++
		}
	}
	return n
}

// WaitForWrites blocks until at least n writes were recorded or timeout elapses.
func (p *FakePeripheral) WaitForWrites(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		if len(p.writes) >= n {
			p.mu.Unlock()
			return true
		}
		if p.writeSignal == nil {
			p.writeSignal = make(chan struct{})
		}
		signal := p.writeSignal
		p.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		select {
		case <-signal:
		case <-time.After(remaining):
			return false
		}
	}
}

// WaitForCode blocks until a frame with the given code was recorded or timeout elapses.
func (p *FakePeripheral) WaitForCode(code byte, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.CountCode(code) > 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return p.CountCode(code) > 0
}

// ResetWrites clears the write log.
func (p *FakePeripheral) ResetWrites() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = nil
}

func (p *FakePeripheral) record(c *FakeCharacteristic, data []byte, withResponse bool) error {
	if p.writeDelay > 0 {
		time.Sleep(p.writeDelay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writeErr != nil {
		return p.writeErr
	}
	p.writes = append(p.writes, WriteRecord{
		Time:           time.Now(),
		Characteristic: c.uuid,
		Handle:         c.handle,
		Data:           append([]byte(nil), data...),
		WithResponse:   withResponse,
	})
	if p.writeSignal != nil {
		close(p.writeSignal)
		p.writeSignal = nil
	}
	return nil
}

// FakeTransport is one fake GATT session.
type FakeTransport struct {
	peripheral   *FakePeripheral
	services     []device.Service
	disconnected chan struct{}
	dropOnce     sync.Once
	closed       bool
	mu           sync.Mutex
}

func (t *FakeTransport) Address() string                { return t.peripheral.address }
func (t *FakeTransport) Services() []device.Service     { return t.services }
func (t *FakeTransport) Disconnected() <-chan struct{} { return t.disconnected }

// Close ends the session from the client side.
func (t *FakeTransport) Close() error {
	t.mu.Lock()
	already := t.closed
	t.closed = true
	t.mu.Unlock()
	if already {
		return nil
	}

	t.peripheral.mu.Lock()
	t.peripheral.closes++
	t.peripheral.mu.Unlock()
	t.drop()
	return nil
}

func (t *FakeTransport) drop() {
	t.dropOnce.Do(func() { close(t.disconnected) })
}

func (t *FakeTransport) alive() bool {
	select {
	case <-t.disconnected:
		return false
	default:
		return true
	}
}

type fakeService struct {
	uuid  string
	chars []device.Characteristic
}

func (s *fakeService) UUID() string                                { return s.uuid }
func (s *fakeService) GetCharacteristics() []device.Characteristic { return s.chars }

// FakeCharacteristic records writes into its peripheral.
type FakeCharacteristic struct {
	transport *FakeTransport
	uuid      string
	handle    uint16
	props     fakeProperties
}

func (c *FakeCharacteristic) UUID() string                      { return c.uuid }
func (c *FakeCharacteristic) Handle() uint16                    { return c.handle }
func (c *FakeCharacteristic) GetProperties() device.Properties { return c.props }

func (c *FakeCharacteristic) Write(data []byte, withResponse bool, _ time.Duration) error {
	if !c.transport.alive() {
		return fmt.Errorf("characteristic %s: %w", c.uuid, device.ErrNotConnected)
	}
	if withResponse && !c.props.write {
		return fmt.Errorf("characteristic %s: %w: write with response", c.uuid, device.ErrUnsupported)
	}
	if !withResponse && !c.props.writeNR {
		return fmt.Errorf("characteristic %s: %w: write without response", c.uuid, device.ErrUnsupported)
	}
	return c.transport.peripheral.record(c, data, withResponse)
}

type fakeProperty struct {
	value int
	name  string
}

func (p fakeProperty) Value() int        { return p.value }
func (p fakeProperty) KnownName() string { return p.name }

type fakeProperties struct {
	read, write, writeNR, notify bool
}

func flag(set bool, value int, name string) device.Property {
	if !set {
		return nil
	}
	return fakeProperty{value: value, name: name}
}

func (p fakeProperties) Read() device.Property   { return flag(p.read, 0x02, "Read") }
func (p fakeProperties) Write() device.Property  { return flag(p.write, 0x08, "Write") }
func (p fakeProperties) Notify() device.Property { return flag(p.notify, 0x10, "Notify") }
func (p fakeProperties) WriteWithoutResponse() device.Property {
	return flag(p.writeNR, 0x04, "WriteWithoutResponse")
}

// NewLocator resolves addresses to the given peripherals and reports everything else
// as not found.
func NewLocator(peripherals ...device.Peripheral) device.Locator {
	return device.LocatorFunc(func(_ context.Context, address string) (device.Peripheral, error) {
		for _, p := range peripherals {
			if p.Address() == address {
				return p, nil
			}
		}
		return nil, &device.NotFoundError{Resource: "device", UUIDs: []string{address}}
	})
}
