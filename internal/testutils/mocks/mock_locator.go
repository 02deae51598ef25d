package mocks

import (
	"context"

	"github.com/srg/sofactl/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockLocator is a testify mock for device.Locator
type MockLocator struct {
	mock.Mock
}

func (m *MockLocator) Lookup(ctx context.Context, address string) (device.Peripheral, error) {
	args := m.Called(ctx, address)
	var p device.Peripheral
	if v := args.Get(0); v != nil {
		p = v.(device.Peripheral)
	}
	return p, args.Error(1)
}

var _ device.Locator = (*MockLocator)(nil)
