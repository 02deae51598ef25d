package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "device", "service", "characteristic"
	UUIDs    []string // One or more identifiers (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// Is makes every device-level NotFoundError match ErrDeviceNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound && e.Resource == "device"
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	BluetoothOff     ConnectionState = "bluetooth_off"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrBluetoothOff     = &ConnectionError{State: BluetoothOff}
)

// Operation errors
var (
	ErrDeviceNotFound   = errors.New("device not found")
	ErrConnectionFailed = errors.New("connection failed")
	ErrWriteFailed      = errors.New("write failed")
	ErrTimeout          = errors.New("timeout")
	ErrUnsupported      = errors.New("unsupported")
)

// ConnectionFailedError is returned once every connection attempt has been used up.
// It matches ErrConnectionFailed and unwraps to the last underlying error.
type ConnectionFailedError struct {
	Address  string
	Attempts int
	Err      error
}

func (e *ConnectionFailedError) Error() string {
	return fmt.Sprintf("connection to %s failed after %d attempt(s): %v", e.Address, e.Attempts, e.Err)
}

func (e *ConnectionFailedError) Unwrap() error { return e.Err }

func (e *ConnectionFailedError) Is(target error) bool { return target == ErrConnectionFailed }

// WriteFailedError reports a single frame write that failed on an established connection.
type WriteFailedError struct {
	Characteristic string
	Handle         uint16
	Err            error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("write to characteristic %s (handle 0x%04X) failed: %v", e.Characteristic, e.Handle, e.Err)
}

func (e *WriteFailedError) Unwrap() error { return e.Err }

func (e *WriteFailedError) Is(target error) bool { return target == ErrWriteFailed }

// NormalizeError maps known transport error strings to structured ConnectionError types.
// It ensures consistent handling even if the upstream library changes messages slightly.
// Returns wrapped errors to preserve original context.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return err
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "is bluetooth turned on"), containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "device not connected"), containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	case containsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", ErrAlreadyConnected, err)
	default:
		return err
	}
}

// containsIgnoreCase checks substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// Locator resolves a device address to a dialable peripheral.
// Implementations return an error matching ErrDeviceNotFound when the address is unknown.
type Locator interface {
	Lookup(ctx context.Context, address string) (Peripheral, error)
}

// LocatorFunc adapts a plain function to the Locator interface.
type LocatorFunc func(ctx context.Context, address string) (Peripheral, error)

func (f LocatorFunc) Lookup(ctx context.Context, address string) (Peripheral, error) {
	return f(ctx, address)
}

// Peripheral is a discovered device that can be connected to.
type Peripheral interface {
	Address() string
	Name() string
	// Dial opens a GATT session. The context bounds the connection attempt only.
	Dial(ctx context.Context) (Transport, error)
}

// Transport is an established GATT session.
type Transport interface {
	Address() string
	// Services returns every discovered service instance in discovery order.
	// Duplicate service UUIDs are preserved.
	Services() []Service
	// Disconnected is closed when the peripheral drops the link. May be nil when the
	// platform cannot report it.
	Disconnected() <-chan struct{}
	Close() error
}

// Service represents a GATT service interface
type Service interface {
	UUID() string
	GetCharacteristics() []Characteristic
}

// CharacteristicInfo represents characteristic metadata
type CharacteristicInfo interface {
	UUID() string
	Handle() uint16
	GetProperties() Properties
}

// CharacteristicWriter provides write operations
type CharacteristicWriter interface {
	Write(data []byte, withResponse bool, timeout time.Duration) error
}

// Characteristic combines info + operations
type Characteristic interface {
	CharacteristicInfo
	CharacteristicWriter
}

// Property represents a single BLE characteristic property
type Property interface {
	Value() int
	KnownName() string
}

// Properties represent a collection of BLE characteristic properties
type Properties interface {
	Read() Property
	Write() Property
	WriteWithoutResponse() Property
	Notify() Property
}

// CanWrite reports whether the characteristic accepts acknowledged writes.
func CanWrite(c CharacteristicInfo) bool {
	return hasProperty(c, Properties.Write)
}

// CanWriteWithoutResponse reports whether the characteristic accepts unacknowledged writes.
func CanWriteWithoutResponse(c CharacteristicInfo) bool {
	return hasProperty(c, Properties.WriteWithoutResponse)
}

func hasProperty(c CharacteristicInfo, get func(Properties) Property) bool {
	props := c.GetProperties()
	if props == nil {
		return false
	}
	p := get(props)
	return p != nil && p.Value() != 0
}

// Advertisement is the subset of advertising data the discovery layer consumes.
type Advertisement interface {
	Addr() string
	LocalName() string
	RSSI() int
	Connectable() bool
	Services() []string
}

// ScanningDevice represents a BLE adapter capable of scanning for advertisements
type ScanningDevice interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}
