// Package device defines the Bluetooth Low Energy (BLE) abstractions the actuator
// core is written against, together with the error taxonomy shared by every layer.
//
// The package contains no transport code. Concrete implementations live in:
//   - internal/device/go-ble: go-ble/ble backed peripherals, transports and characteristics
//   - scanner: advertisement-backed Locator used to resolve addresses to peripherals
//   - internal/testutils: in-memory fakes used by tests
package device
