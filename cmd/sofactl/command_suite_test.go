package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/srg/sofactl/internal/device"
	"github.com/srg/sofactl/internal/testutils"
	"github.com/srg/sofactl/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
)

// Test device addresses
const (
	TestDeviceAddress  = "AA:BB:CC:DD:EE:FF"
	ForeignDeviceAddr  = "99:88:77:66:55:44"
	MissingDeviceAddr  = "00:00:00:00:00:09"
	testConfigTemplate = `
log_level: error
command_interval: 20ms
connect_timeout: 1s
max_attempts: 1
backoff: 1ms
scan_timeout: 300ms
%s
`
)

// fakeAdapter stands in for the host radio: scans come from a mock and every address
// dials the suite's fake peripheral.
type fakeAdapter struct {
	*mocks.MockScanningDevice
	peripheral *testutils.FakePeripheral
	closes     atomic.Int32
}

func (a *fakeAdapter) Peripheral(address, name string) device.Peripheral {
	return a.peripheral
}

func (a *fakeAdapter) Close() error {
	a.closes.Add(1)
	return nil
}

// CommandTestSuite extends MockPeripheralSuite with command testing utilities.
type CommandTestSuite struct {
	testutils.MockPeripheralSuite

	adapter         *fakeAdapter
	originalAdapter func(*logrus.Logger) bleAdapter
	stderr          *bytes.Buffer
}

func (s *CommandTestSuite) SetupTest() {
	s.MockPeripheralSuite.SetupTest()

	scanning := (&mocks.MockScanningDevice{}).Emit(testutils.Advertisements(
		testutils.CreateMockAdvertisement("Sofa Test", TestDeviceAddress, -50).WithServices("ffe0"),
		testutils.CreateMockAdvertisement("Heart Rate", ForeignDeviceAddr, -70).WithServices("180d"),
	)...)
	scanning.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	s.adapter = &fakeAdapter{MockScanningDevice: scanning, peripheral: s.Peripheral}
	s.originalAdapter = newAdapter
	newAdapter = func(*logrus.Logger) bleAdapter { return s.adapter }

	resetCommandFlags()
}

func (s *CommandTestSuite) TearDownTest() {
	newAdapter = s.originalAdapter
	resetCommandFlags()
	s.MockPeripheralSuite.TearDownTest()
}

// WriteConfig writes a fast-timing config file with extra YAML lines and returns its path.
func (s *CommandTestSuite) WriteConfig(extra string) string {
	path := filepath.Join(s.T().TempDir(), "sofactl.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(fmt.Sprintf(testConfigTemplate, extra)), 0o600))
	return path
}

// ExecuteCommand runs the root command with args and returns what it printed to stdout.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	out := new(bytes.Buffer)
	s.stderr = new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(s.stderr)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return out.String(), err
}

// LastCode returns the command byte of the last recorded frame.
func (s *CommandTestSuite) LastCode() byte {
	codes := s.Peripheral.CommandCodes()
	s.Require().NotEmpty(codes, "at least one frame MUST have been written")
	return codes[len(codes)-1]
}

// resetCommandFlags restores every flag to its default between executions.
func resetCommandFlags() {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
}
