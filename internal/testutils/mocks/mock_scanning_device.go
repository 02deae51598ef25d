package mocks

import (
	"context"

	"github.com/srg/sofactl/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockScanningDevice is a testify mock for device.ScanningDevice.
// Advertisements queued with Emit are delivered to the handler before Scan returns.
type MockScanningDevice struct {
	mock.Mock

	Advertisements []device.Advertisement
}

// Emit queues advertisements for the next Scan call.
func (m *MockScanningDevice) Emit(ads ...device.Advertisement) *MockScanningDevice {
	m.Advertisements = append(m.Advertisements, ads...)
	return m
}

func (m *MockScanningDevice) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	args := m.Called(ctx, allowDup, handler)
	for _, adv := range m.Advertisements {
		handler(adv)
	}
	return args.Error(0)
}

var _ device.ScanningDevice = (*MockScanningDevice)(nil)
