package testutils

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/sofactl/internal/device"
	"github.com/stretchr/testify/suite"
)

// MockPeripheralSuite provides a reusable test suite backed by an in-memory peripheral.
//
// Basic usage (default single-service actuator profile):
//
//	type ManagerSuite struct {
//	    testutils.MockPeripheralSuite
//	}
//
//	func TestManagerSuite(t *testing.T) {
//	    suite.Run(t, new(ManagerSuite))
//	}
//
// Custom profile usage:
//
//	func (s *ManagerSuite) SetupTest() {
//	    s.WithPeripheral().
//	        WithService("ffe0").WithCharacteristic("ffe1", "write").
//	        WithService("ffe0").WithCharacteristic("ffe1", "write_without_response")
//
//	    s.MockPeripheralSuite.SetupTest() // Call parent last to apply configuration
//	}
type MockPeripheralSuite struct {
	suite.Suite

	Helper      *TestHelper
	Logger      *logrus.Logger
	TestTimeout time.Duration

	PeripheralBuilder *PeripheralDeviceBuilder
	Peripheral        *FakePeripheral
	Locator           device.Locator
}

// SetupSuite initializes the logger. Called once before all tests in the suite.
func (s *MockPeripheralSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.TestTimeout = 5 * time.Second
}

// SetupTest builds the configured peripheral and a locator that resolves it.
func (s *MockPeripheralSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = CreateSofaPeripheral()
	}
	s.Peripheral = s.PeripheralBuilder.Build()
	s.Locator = NewLocator(s.Peripheral)
}

// TearDownTest resets the peripheral builder after each test.
func (s *MockPeripheralSuite) TearDownTest() {
	s.PeripheralBuilder = nil
	s.Peripheral = nil
	s.Locator = nil
}

// WithPeripheral returns the peripheral builder for fluent configuration.
// Use this method to configure custom device profiles in the test setup.
func (s *MockPeripheralSuite) WithPeripheral() *PeripheralDeviceBuilder {
	if s.PeripheralBuilder == nil {
		s.PeripheralBuilder = NewPeripheralDeviceBuilder()
	}
	return s.PeripheralBuilder
}
