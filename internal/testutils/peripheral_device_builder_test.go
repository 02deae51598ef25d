package testutils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/sofactl/internal/device"
	"github.com/stretchr/testify/suite"
)

// PeripheralDeviceBuilderTestSuite tests PeripheralDeviceBuilder functionality
type PeripheralDeviceBuilderTestSuite struct {
	suite.Suite
}

func (s *PeripheralDeviceBuilderTestSuite) TestDuplicateServicesFromJSON() {
	// GOAL: Verify duplicated services stay separate instances with distinct handles
	//
	// TEST SCENARIO: JSON profile with two FFE0 services → dial → two services → unique handles

	p := CreateMockPeripheralDeviceFromJSON(`{
		"services": [
			{"uuid": "ffe0", "characteristics": [{"uuid": "ffe1", "properties": "write"}]},
			{"uuid": "0000ffe0-0000-1000-8000-00805f9b34fb", "characteristics": [{"uuid": "ffe1", "properties": "write_without_response"}]}
		]
	}`).Build()

	transport, err := p.Dial(context.Background())
	s.Require().NoError(err, "dial MUST succeed")

	services := transport.Services()
	s.Require().Len(services, 2, "duplicate services MUST be preserved")
	s.Equal("ffe0", services[0].UUID())
	s.Equal("ffe0", services[1].UUID(), "long UUID MUST be normalized")

	c1 := services[0].GetCharacteristics()[0]
	c2 := services[1].GetCharacteristics()[0]
	s.NotEqual(c1.Handle(), c2.Handle(), "handles MUST be unique")
	s.True(device.CanWrite(c1))
	s.False(device.CanWrite(c2))
	s.True(device.CanWriteWithoutResponse(c2))
}

func (s *PeripheralDeviceBuilderTestSuite) TestDialFailures() {
	// GOAL: Verify configured dial failures are consumed before success
	//
	// TEST SCENARIO: FailDials(2) → two errors → third dial succeeds

	boom := errors.New("boom")
	p := CreateSofaPeripheral().FailDials(2, boom).Build()

	_, err := p.Dial(context.Background())
	s.ErrorIs(err, boom)
	_, err = p.Dial(context.Background())
	s.ErrorIs(err, boom)
	_, err = p.Dial(context.Background())
	s.NoError(err, "third dial MUST succeed")
	s.Equal(3, p.DialCount())
}

func (s *PeripheralDeviceBuilderTestSuite) TestDialHonorsContext() {
	p := CreateSofaPeripheral().WithDialDelay(time.Second).Build()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Dial(ctx)
	s.ErrorIs(err, context.DeadlineExceeded, "slow dial MUST observe the deadline")
}

func (s *PeripheralDeviceBuilderTestSuite) TestWritesAreRecorded() {
	p := CreateSofaPeripheral().Build()
	transport, err := p.Dial(context.Background())
	s.Require().NoError(err)

	char := transport.Services()[0].GetCharacteristics()[0]
	s.Require().NoError(char.Write([]byte{0, 0, 1, 1, 1, 1, 0, 0}, true, time.Second))
	s.Require().NoError(char.Write([]byte{0, 0, 7, 1, 1, 1, 0, 0}, false, time.Second))

	s.True(p.WaitForWrites(2, time.Second))
	s.Equal([]byte{0x01, 0x07}, p.CommandCodes())
	s.Equal(1, p.CountCode(0x07))

	writes := p.Writes()
	s.True(writes[0].WithResponse)
	s.False(writes[1].WithResponse)
	s.False(writes[1].Time.Before(writes[0].Time), "timestamps MUST be ordered")
}

func (s *PeripheralDeviceBuilderTestSuite) TestWriteAfterDropLink() {
	// GOAL: Verify a dropped link surfaces as ErrNotConnected
	//
	// TEST SCENARIO: dial → DropLink → Disconnected closed → write fails with ErrNotConnected

	p := CreateSofaPeripheral().Build()
	transport, err := p.Dial(context.Background())
	s.Require().NoError(err)

	p.DropLink()

	select {
	case <-transport.Disconnected():
	default:
		s.Fail("Disconnected MUST be closed after DropLink")
	}

	err = transport.Services()[0].GetCharacteristics()[0].Write([]byte{0}, true, time.Second)
	s.ErrorIs(err, device.ErrNotConnected)
	s.Equal(0, p.CloseCount(), "peripheral-initiated drop MUST NOT count as client close")
}

func (s *PeripheralDeviceBuilderTestSuite) TestWriteErrorInjection() {
	p := CreateSofaPeripheral().Build()
	transport, err := p.Dial(context.Background())
	s.Require().NoError(err)
	char := transport.Services()[0].GetCharacteristics()[0]

	injected := errors.New("att: write rejected")
	p.SetWriteError(injected)
	s.ErrorIs(char.Write([]byte{0}, true, time.Second), injected)

	p.SetWriteError(nil)
	s.NoError(char.Write([]byte{0}, true, time.Second))
	s.Len(p.Writes(), 1, "failed writes MUST NOT be recorded")
}

func (s *PeripheralDeviceBuilderTestSuite) TestLocator() {
	p := CreateSofaPeripheral().WithAddress("11:22:33:44:55:66").Build()
	locator := NewLocator(p)

	found, err := locator.Lookup(context.Background(), "11:22:33:44:55:66")
	s.Require().NoError(err)
	s.Equal(p, found)

	_, err = locator.Lookup(context.Background(), "00:00:00:00:00:00")
	s.ErrorIs(err, device.ErrDeviceNotFound)
}

func TestPeripheralDeviceBuilderTestSuite(t *testing.T) {
	suite.Run(t, new(PeripheralDeviceBuilderTestSuite))
}
