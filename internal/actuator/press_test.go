package actuator

import (
	"context"
	"testing"
	"time"

	"github.com/srg/sofactl/internal/protocol"
	"github.com/srg/sofactl/internal/testutils"
	"github.com/srg/sofactl/pkg/connection"
	"github.com/stretchr/testify/suite"
)

// PressSuite drives the controller through a real connection manager and a fake peripheral.
type PressSuite struct {
	testutils.MockPeripheralSuite

	manager *connection.Manager
	ctrl    *Controller
}

func (s *PressSuite) SetupTest() {
	s.WithPeripheral().
		WithService("0000ffe0-0000-1000-8000-00805f9b34fb").WithCharacteristic("0000ffe1-0000-1000-8000-00805f9b34fb", "write").
		WithService("0000ffe0-0000-1000-8000-00805f9b34fb").WithCharacteristic("0000ffe1-0000-1000-8000-00805f9b34fb", "write")
	s.MockPeripheralSuite.SetupTest()
	s.newController()
}

func (s *PressSuite) newController() {
	s.manager = connection.NewManager(connection.DefaultOptions(s.Peripheral.Address()), s.Locator, s.Logger)

	opts := DefaultOptions()
	opts.CommandInterval = testInterval
	ctrl, err := NewController(s.manager, opts, s.Logger)
	s.Require().NoError(err)
	s.ctrl = ctrl
}

// rebuild swaps in a peripheral built from the configured profile plus per-test behaviour.
func (s *PressSuite) rebuild(builder *testutils.PeripheralDeviceBuilder) {
	s.Require().NoError(s.ctrl.Disconnect(context.Background()))
	s.Peripheral = builder.Build()
	s.Locator = testutils.NewLocator(s.Peripheral)
	s.newController()
}

func (s *PressSuite) TearDownTest() {
	s.NoError(s.ctrl.Disconnect(context.Background()))
	s.MockPeripheralSuite.TearDownTest()
}

func (s *PressSuite) TestPressBroadcastsToDuplicatedServices() {
	// GOAL: Verify a timed press reaches every duplicated service instance and ends stopped
	//
	// TEST SCENARIO: two FFE0 services → motor1_open for 25 intervals → ~25 frames per instance → one stop per instance

	s.Require().NoError(s.ctrl.SendCommand(protocol.Motor1Open, 25*testInterval))

	ctx, cancel := context.WithTimeout(context.Background(), s.TestTimeout)
	defer cancel()
	s.Require().NoError(s.ctrl.Wait(ctx))

	perHandle := map[uint16][]byte{}
	for _, w := range s.Peripheral.Writes() {
		perHandle[w.Handle] = append(perHandle[w.Handle], w.Data[2])
	}
	s.Require().Len(perHandle, 2, "both service instances MUST receive frames")

	for handle, codes := range perHandle {
		s.InDelta(26, len(codes), 2, "handle 0x%04X MUST receive ~25 frames plus stop", handle)
		s.Equal(byte(codeStop), codes[len(codes)-1], "handle 0x%04X MUST end with stop", handle)
	}
	s.Equal(1, s.Peripheral.DialCount())
}

func (s *PressSuite) TestLinkLossReconnects() {
	// GOAL: Verify a dropped link is healed by the next write
	//
	// TEST SCENARIO: loop running → link dropped → loop reconnects or ends errored → stop still delivered

	s.Require().NoError(s.ctrl.SendCommand(protocol.Motor2Open, 10*time.Second))
	s.Require().True(s.Peripheral.WaitForWrites(2, s.TestTimeout))

	s.Peripheral.DropLink()

	s.Eventually(func() bool { return !s.ctrl.IsRunning() || s.Peripheral.DialCount() > 1 }, s.TestTimeout, 5*time.Millisecond)

	s.ctrl.Stop(context.Background())
	s.True(s.Peripheral.WaitForCode(codeStop, s.TestTimeout), "stop MUST be delivered over a fresh link")
	s.GreaterOrEqual(s.Peripheral.DialCount(), 2)
}

func (s *PressSuite) TestPreemptLoopWaitingForConnection() {
	// GOAL: Verify a loop queued behind another loop's dial can be pre-empted at once
	//
	// TEST SCENARIO: dial takes 2s → motor2 loop dialing → motor1 loop queued for the link →
	//                motor1_close pre-empts it well before the dial completes

	s.rebuild(s.WithPeripheral().WithDialDelay(2 * time.Second))

	s.Require().NoError(s.ctrl.SendCommand(protocol.Motor2Open, 10*time.Second))
	s.Require().Eventually(func() bool { return s.Peripheral.DialCount() == 1 }, s.TestTimeout, 5*time.Millisecond)

	s.Require().NoError(s.ctrl.SendCommand(protocol.Motor1Open, 10*time.Second))
	time.Sleep(2 * testInterval)

	start := time.Now()
	s.Require().NoError(s.ctrl.SendCommand(protocol.Motor1Close, 10*time.Second))
	elapsed := time.Since(start)

	s.Less(elapsed, 500*time.Millisecond, "pre-empting a loop waiting for the link MUST NOT wait for the dial")
	cmd, running := s.ctrl.Running(protocol.ChannelMotor1)
	s.True(running)
	s.Equal(protocol.Motor1Close, cmd)
	s.Equal(1, s.Peripheral.DialCount(), "queued loops MUST NOT dial on their own")
}

func (s *PressSuite) TestDisconnectDuringTrailingStopDoesNotRedial() {
	// GOAL: Verify Disconnect waits for a trailing stop already on the wire and never reopens the link
	//
	// TEST SCENARIO: writes take 100ms → short press completes → Disconnect during its stop →
	//                stop reaches both instances → one dial only → StopSent delivered

	s.rebuild(s.WithPeripheral().WithWriteDelay(100 * time.Millisecond))

	s.Require().NoError(s.ctrl.SendCommand(protocol.Motor1Open, 50*time.Millisecond))
	s.Require().Eventually(func() bool { return !s.ctrl.IsRunning() }, s.TestTimeout, 5*time.Millisecond)

	s.Require().NoError(s.ctrl.Disconnect(context.Background()))

	s.Equal(2, s.Peripheral.CountCode(codeStop), "stop MUST reach both service instances")
	s.Equal(1, s.Peripheral.DialCount(), "nothing MAY redial after Disconnect")
	s.Equal(connection.StateDisconnected, s.manager.State())

	var states []State
	for ev := range s.ctrl.Events() {
		states = append(states, ev.State)
	}
	s.Contains(states, StateStopSent)
	s.ErrorIs(s.manager.Write(context.Background(), protocol.Encode(codeStop)), connection.ErrClosed)
	s.Equal(1, s.Peripheral.DialCount())
}

func TestPressSuite(t *testing.T) {
	suite.Run(t, new(PressSuite))
}
