package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/sofactl/internal/device"
	"github.com/srg/sofactl/internal/groutine"
	"github.com/srg/sofactl/internal/protocol"
)

// Default GATT layout of the actuator.
const (
	DefaultServiceUUID = "0000ffe0-0000-1000-8000-00805f9b34fb"
	DefaultCharUUID    = "0000ffe1-0000-1000-8000-00805f9b34fb"
)

// ErrClosed is returned once the manager has been closed.
var ErrClosed = errors.New("connection manager closed")

// WriteStrategy selects which matching characteristics receive each frame.
type WriteStrategy string

const (
	// StrategyFirst writes to the first writable match only.
	StrategyFirst WriteStrategy = "first"
	// StrategyBroadcast writes to every writable match, one per duplicated service.
	StrategyBroadcast WriteStrategy = "broadcast"
)

// Valid reports whether s is a known strategy.
func (s WriteStrategy) Valid() bool {
	return s == StrategyFirst || s == StrategyBroadcast
}

// State is the connection manager state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures the BLE connection
type Options struct {
	Address              string
	ServiceUUID          string
	CharUUID             string
	Strategy             WriteStrategy
	WriteWithoutResponse bool
	ConnectTimeout       time.Duration
	MaxAttempts          int
	Backoff              time.Duration
	WriteTimeout         time.Duration
}

// DefaultOptions returns the actuator defaults for the given address
func DefaultOptions(address string) *Options {
	return &Options{
		Address:        address,
		ServiceUUID:    DefaultServiceUUID,
		CharUUID:       DefaultCharUUID,
		Strategy:       StrategyBroadcast,
		ConnectTimeout: 15 * time.Second,
		MaxAttempts:    4,
		Backoff:        250 * time.Millisecond,
		WriteTimeout:   2 * time.Second,
	}
}

// Session is one established link with its resolved write targets.
type Session struct {
	generation uint64
	transport  device.Transport
	targets    []device.Characteristic
	closed     chan struct{}
}

// Generation identifies the link; it increases with every successful connect.
func (s *Session) Generation() uint64 {
	return s.generation
}

// Targets returns the characteristics every frame is written to.
func (s *Session) Targets() []device.Characteristic {
	return s.targets
}

type disconnectEvent struct {
	generation uint64
}

// sleep waits between connection attempts; tests replace it to observe backoff.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Manager owns the link to one actuator. It connects lazily, heals after link loss
// and is the only writer of the session state.
type Manager struct {
	opts    Options
	locator device.Locator
	logger  *logrus.Logger

	connectSem chan struct{} // one connection attempt at a time; waiters honour ctx

	mu         sync.Mutex // guards the fields below
	state      State
	session    *Session
	generation uint64
	closed     bool
}

// NewManager creates a connection manager. Nothing is dialed until first use.
func NewManager(opts *Options, locator device.Locator, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultOptions("")
	}
	o := *opts
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	if !o.Strategy.Valid() {
		o.Strategy = StrategyBroadcast
	}
	return &Manager{
		opts:       o,
		locator:    locator,
		logger:     logger,
		connectSem: make(chan struct{}, 1),
	}
}

// Address returns the peripheral address this manager connects to.
func (m *Manager) Address() string {
	return m.opts.Address
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether a session is established.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

func (m *Manager) current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// EnsureConnected returns the live session, connecting first when there is none.
func (m *Manager) EnsureConnected(ctx context.Context) (*Session, error) {
	if s := m.current(); s != nil {
		return s, nil
	}
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	select {
	case m.connectSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-m.connectSem }()

	// Another caller may have connected while we waited.
	if s := m.current(); s != nil {
		return s, nil
	}
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	m.setState(StateConnecting)
	s, err := m.connect(ctx)
	if err != nil {
		m.setState(StateDisconnected)
		return nil, err
	}
	return s, nil
}

func (m *Manager) connect(ctx context.Context) (*Session, error) {
	logger := m.logger.WithField("address", m.opts.Address)

	if m.locator == nil {
		return nil, fmt.Errorf("no device locator configured: %w", device.ErrDeviceNotFound)
	}
	peripheral, err := m.locator.Lookup(ctx, m.opts.Address)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up %s: %w", m.opts.Address, err)
	}
	if peripheral == nil {
		return nil, &device.NotFoundError{Resource: "device", UUIDs: []string{m.opts.Address}}
	}

	var (
		transport device.Transport
		lastErr   error
	)
	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		logger.WithField("attempt", attempt).Debug("Connecting to device...")

		transport, lastErr = m.dial(ctx, peripheral)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		logger.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": m.opts.MaxAttempts,
			"error":        lastErr,
		}).Warn("Connection attempt failed")

		if attempt < m.opts.MaxAttempts {
			if err := sleep(ctx, m.opts.Backoff*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
	}
	if lastErr != nil {
		return nil, &device.ConnectionFailedError{
			Address:  m.opts.Address,
			Attempts: m.opts.MaxAttempts,
			Err:      lastErr,
		}
	}

	// Frames can only be written through a discovered handle, so a profile with no
	// writable characteristic at all is a failed connection rather than a degraded one.
	targets := resolveTargets(transport.Services(), m.opts.ServiceUUID, m.opts.CharUUID, m.opts.Strategy)
	if len(targets) == 0 {
		m.closeTransport(transport)
		return nil, &device.NotFoundError{
			Resource: "characteristic",
			UUIDs:    []string{device.NormalizeUUID(m.opts.ServiceUUID), device.NormalizeUUID(m.opts.CharUUID)},
		}
	}

	if err := ctx.Err(); err != nil {
		m.closeTransport(transport)
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.closeTransport(transport)
		return nil, m.closedError()
	}
	m.generation++
	s := &Session{
		generation: m.generation,
		transport:  transport,
		targets:    targets,
		closed:     make(chan struct{}),
	}
	m.session = s
	m.state = StateConnected
	m.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"generation": s.generation,
		"targets":    len(targets),
		"strategy":   m.opts.Strategy,
	}).Info("Connected to device")

	m.watch(s)
	return s, nil
}

func (m *Manager) dial(ctx context.Context, p device.Peripheral) (device.Transport, error) {
	dialCtx := ctx
	if m.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, m.opts.ConnectTimeout)
		defer cancel()
	}

	t, err := p.Dial(dialCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: connecting to %s after %v", device.ErrTimeout, m.opts.Address, m.opts.ConnectTimeout)
		}
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("dial %s returned no transport", m.opts.Address)
	}
	return t, nil
}

// watch turns the transport's disconnect notification into an event for this manager.
func (m *Manager) watch(s *Session) {
	disconnected := s.transport.Disconnected()
	if disconnected == nil {
		return
	}
	groutine.Go(context.Background(), fmt.Sprintf("ble-disconnect-watch-%d", s.generation), func(ctx context.Context) {
		select {
		case <-disconnected:
			m.handleDisconnect(disconnectEvent{generation: s.generation})
		case <-s.closed:
		}
	})
}

// handleDisconnect applies a device-initiated disconnect. Events for an older link are ignored.
func (m *Manager) handleDisconnect(ev disconnectEvent) {
	if !m.invalidate(ev.generation) {
		return
	}
	m.logger.WithFields(logrus.Fields{
		"address":    m.opts.Address,
		"generation": ev.generation,
	}).Info("Device disconnected")
}

// invalidate drops the session if it still belongs to generation. It reports whether
// anything was dropped.
func (m *Manager) invalidate(generation uint64) bool {
	m.mu.Lock()
	s := m.session
	if s == nil || s.generation != generation {
		m.mu.Unlock()
		return false
	}
	m.session = nil
	m.state = StateDisconnected
	close(s.closed)
	m.mu.Unlock()

	m.closeTransport(s.transport)
	return true
}

// Disconnect closes the link if there is one. It always leaves the manager disconnected
// and may be called any number of times.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.state = StateDisconnected
	if s != nil {
		close(s.closed)
	}
	m.mu.Unlock()

	if s == nil {
		return nil
	}

	m.logger.WithField("address", m.opts.Address).Info("Disconnecting from device...")
	if err := s.transport.Close(); err != nil {
		return fmt.Errorf("failed to close connection to %s: %w", m.opts.Address, err)
	}
	return nil
}

// Close disconnects and retires the manager: later writes fail instead of redialing.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Disconnect()
}

func (m *Manager) checkOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m.closedError()
	}
	return nil
}

func (m *Manager) closedError() error {
	return fmt.Errorf("%s: %w: %w", m.opts.Address, ErrClosed, device.ErrNotConnected)
}

func (m *Manager) closeTransport(t device.Transport) {
	if err := t.Close(); err != nil {
		m.logger.WithFields(logrus.Fields{
			"address": m.opts.Address,
			"error":   err,
		}).Debug("Failed to close transport")
	}
}

// Write sends one frame to every target of the current session, connecting first if needed.
// A failure that means the link is gone also drops the session so the next call reconnects.
func (m *Manager) Write(ctx context.Context, frame protocol.Frame) error {
	s, err := m.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data := frame.Bytes()
	for _, c := range s.targets {
		withResponse := useWriteWithResponse(c, m.opts.WriteWithoutResponse)
		if err := c.Write(data, withResponse, m.opts.WriteTimeout); err != nil {
			err = device.NormalizeError(err)
			if errors.Is(err, device.ErrNotConnected) && m.invalidate(s.generation) {
				m.logger.WithFields(logrus.Fields{
					"address":    m.opts.Address,
					"generation": s.generation,
				}).Warn("Link lost during write")
			}
			return &device.WriteFailedError{Characteristic: c.UUID(), Handle: c.Handle(), Err: err}
		}
	}

	m.logger.WithFields(logrus.Fields{
		"address": m.opts.Address,
		"frame":   frame.String(),
		"targets": len(s.targets),
	}).Trace("Frame written")
	return nil
}

// useWriteWithResponse prefers acknowledged writes unless unacknowledged ones were requested
// and are supported.
func useWriteWithResponse(c device.CharacteristicInfo, preferWithoutResponse bool) bool {
	if preferWithoutResponse && device.CanWriteWithoutResponse(c) {
		return false
	}
	return device.CanWrite(c)
}

// resolveTargets finds writable charUUID characteristics under every serviceUUID instance.
// When none exist there, any writable charUUID in the profile is accepted.
func resolveTargets(services []device.Service, serviceUUID, charUUID string, strategy WriteStrategy) []device.Characteristic {
	var matched []device.Characteristic
	collect := func(svc device.Service) {
		for _, c := range svc.GetCharacteristics() {
			if device.EqualUUID(c.UUID(), charUUID) && isWritable(c) {
				matched = append(matched, c)
			}
		}
	}

	for _, svc := range services {
		if device.EqualUUID(svc.UUID(), serviceUUID) {
			collect(svc)
		}
	}
	if len(matched) == 0 {
		for _, svc := range services {
			collect(svc)
		}
	}

	if strategy == StrategyFirst && len(matched) > 1 {
		matched = matched[:1]
	}
	return matched
}

func isWritable(c device.CharacteristicInfo) bool {
	return device.CanWrite(c) || device.CanWriteWithoutResponse(c)
}
