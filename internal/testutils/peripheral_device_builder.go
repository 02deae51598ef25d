package testutils

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/srg/sofactl/internal/device"
)

// CharacteristicConfig represents a BLE characteristic configuration for mocking
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g., "write,write_without_response"
}

// ServiceConfig represents a BLE service configuration for mocking
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// DeviceProfileConfig represents the complete device profile for mocking.
// Services with the same UUID are kept as separate instances.
type DeviceProfileConfig struct {
	Services []ServiceConfig `json:"services"`
}

// PeripheralDeviceBuilder builds an in-memory peripheral with full service/characteristic support
type PeripheralDeviceBuilder struct {
	address string
	name    string
	profile DeviceProfileConfig

	dialFailures int
	dialErr      error
	dialDelay    time.Duration
	writeDelay   time.Duration
}

// NewPeripheralDeviceBuilder creates a new peripheral device builder
func NewPeripheralDeviceBuilder() *PeripheralDeviceBuilder {
	return &PeripheralDeviceBuilder{
		address: "AA:BB:CC:DD:EE:FF",
		name:    "Sofa Test",
		profile: DeviceProfileConfig{
			Services: []ServiceConfig{},
		},
	}
}

// WithAddress sets the peripheral address
func (b *PeripheralDeviceBuilder) WithAddress(address string) *PeripheralDeviceBuilder {
	b.address = address
	return b
}

// WithName sets the advertised name
func (b *PeripheralDeviceBuilder) WithName(name string) *PeripheralDeviceBuilder {
	b.name = name
	return b
}

// WithService adds a service to the device profile
func (b *PeripheralDeviceBuilder) WithService(uuid string) *PeripheralDeviceBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{
		UUID:            uuid,
		Characteristics: []CharacteristicConfig{},
	})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralDeviceBuilder) WithCharacteristic(uuid, properties string) *PeripheralDeviceBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}

	last := len(b.profile.Services) - 1
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics, CharacteristicConfig{
		UUID:       uuid,
		Properties: properties,
	})
	return b
}

// FromJSON fills the device profile from JSON
func (b *PeripheralDeviceBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralDeviceBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var config DeviceProfileConfig
	if err := json.Unmarshal([]byte(jsonStr), &config); err != nil {
		panic(fmt.Sprintf("PeripheralDeviceBuilder.FromJSON: failed to unmarshal: %v", err))
	}

	b.profile = config
	return b
}

// FailDials makes the first n dial attempts fail with err.
func (b *PeripheralDeviceBuilder) FailDials(n int, err error) *PeripheralDeviceBuilder {
	b.dialFailures = n
	b.dialErr = err
	return b
}

// WithDialDelay makes every dial block for d or until its context is done.
func (b *PeripheralDeviceBuilder) WithDialDelay(d time.Duration) *PeripheralDeviceBuilder {
	b.dialDelay = d
	return b
}

// WithWriteDelay makes every write take d.
func (b *PeripheralDeviceBuilder) WithWriteDelay(d time.Duration) *PeripheralDeviceBuilder {
	b.writeDelay = d
	return b
}

// GetServices returns the configured services
func (b *PeripheralDeviceBuilder) GetServices() []ServiceConfig {
	return b.profile.Services
}

// Build creates the fake peripheral with the configured profile
func (b *PeripheralDeviceBuilder) Build() *FakePeripheral {
	return &FakePeripheral{
		address:      b.address,
		name:         b.name,
		profile:      b.profile,
		dialFailures: b.dialFailures,
		dialErr:      b.dialErr,
		dialDelay:    b.dialDelay,
		writeDelay:   b.writeDelay,
	}
}

// parseCharacteristicProperties converts a comma separated property list.
// An empty list means "write".
func parseCharacteristicProperties(props string) fakeProperties {
	if strings.TrimSpace(props) == "" {
		return fakeProperties{write: true}
	}

	var p fakeProperties
	for _, name := range strings.Split(props, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "read":
			p.read = true
		case "write":
			p.write = true
		case "write_without_response", "write-without-response", "write_nr":
			p.writeNR = true
		case "notify":
			p.notify = true
		default:
			panic(fmt.Sprintf("unknown characteristic property %q", name))
		}
	}
	return p
}

// SofaProfileJSON is the GATT layout of a single-service actuator.
const SofaProfileJSON = `
{
	"services": [
		{
			"uuid": "0000ffe0-0000-1000-8000-00805f9b34fb",
			"characteristics": [
				{ "uuid": "0000ffe1-0000-1000-8000-00805f9b34fb", "properties": "write,write_without_response,notify" }
			]
		}
	]
}`

var _ device.Peripheral = (*FakePeripheral)(nil)
