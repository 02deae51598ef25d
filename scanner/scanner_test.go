package scanner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/sofactl/internal/device"
	"github.com/srg/sofactl/internal/testutils"
	"github.com/srg/sofactl/internal/testutils/mocks"
	"github.com/srg/sofactl/scanner"
	"github.com/stretchr/testify/mock"
	suitelib "github.com/stretchr/testify/suite"
)

type ScannerTestSuite struct {
	suitelib.Suite

	helper  *testutils.TestHelper
	adapter *mocks.MockScanningDevice
	scanner *scanner.Scanner
	dialed  []string
}

func (suite *ScannerTestSuite) SetupTest() {
	suite.helper = testutils.NewTestHelper(suite.T())
	suite.dialed = nil

	suite.adapter = (&mocks.MockScanningDevice{}).Emit(testutils.Advertisements(
		testutils.CreateMockAdvertisement("Sofa Living Room", "AA:BB:CC:DD:EE:FF", -45).WithServices("ffe0"),
		testutils.CreateMockAdvertisement("Sofa Bedroom", "11:22:33:44:55:66", -67),
		testutils.CreateMockAdvertisement("Heart Rate", "99:88:77:66:55:44", -30).WithServices("180d"),
	)...)

	suite.scanner = scanner.NewScanner(suite.adapter, func(address, name string) device.Peripheral {
		suite.dialed = append(suite.dialed, address)
		return testutils.CreateSofaPeripheral().WithAddress(address).WithName(name).Build()
	}, suite.helper.Logger)
}

func (suite *ScannerTestSuite) TestDefaultScanOptions() {
	opts := scanner.DefaultScanOptions()

	suite.Equal(10*time.Second, opts.Duration)
	suite.True(opts.DuplicateFilter)
	suite.Equal("Sofa", opts.NamePrefix)
	suite.Nil(opts.AllowList)
}

func (suite *ScannerTestSuite) TestScanFiltersByNamePrefix() {
	// GOAL: Verify the default scan keeps only actuators and orders them by signal strength
	//
	// TEST SCENARIO: three advertisements, one foreign → two results → strongest first

	suite.adapter.On("Scan", mock.Anything, false, mock.Anything).Return(nil).Once()

	results, err := suite.scanner.Scan(context.Background(), scanner.DefaultScanOptions(), nil)

	suite.Require().NoError(err)
	suite.Require().Len(results, 2, "non-matching names MUST be filtered out")
	suite.Equal("AA:BB:CC:DD:EE:FF", results[0].Address)
	suite.Equal("Sofa Living Room", results[0].DisplayName())
	suite.Equal("11:22:33:44:55:66", results[1].Address)
	suite.adapter.AssertExpectations(suite.T())
}

func (suite *ScannerTestSuite) TestScanOptions() {
	tests := []struct {
		name     string
		opts     *scanner.ScanOptions
		expected []string
	}{
		{
			name:     "no prefix returns everything",
			opts:     &scanner.ScanOptions{},
			expected: []string{"99:88:77:66:55:44", "AA:BB:CC:DD:EE:FF", "11:22:33:44:55:66"},
		},
		{
			name:     "allow list",
			opts:     &scanner.ScanOptions{NamePrefix: "Sofa", AllowList: []string{"11:22:33:44:55:66"}},
			expected: []string{"11:22:33:44:55:66"},
		},
		{
			name:     "block list is case insensitive",
			opts:     &scanner.ScanOptions{NamePrefix: "Sofa", BlockList: []string{"aa:bb:cc:dd:ee:ff"}},
			expected: []string{"11:22:33:44:55:66"},
		},
		{
			name:     "service filter",
			opts:     &scanner.ScanOptions{ServiceUUIDs: []string{"0000ffe0-0000-1000-8000-00805f9b34fb"}},
			expected: []string{"AA:BB:CC:DD:EE:FF"},
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.adapter.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

			results, err := suite.scanner.Scan(context.Background(), tt.opts, nil)
			suite.Require().NoError(err)

			var got []string
			for _, r := range results {
				got = append(got, r.Address)
			}
			suite.Equal(tt.expected, got)
		})
	}
}

func (suite *ScannerTestSuite) TestScanReportsProgress() {
	suite.adapter.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	var phases []string
	_, err := suite.scanner.Scan(context.Background(), nil, func(phase string) { phases = append(phases, phase) })

	suite.NoError(err)
	suite.Equal([]string{"Scanning", "Processing results"}, phases)
}

func (suite *ScannerTestSuite) TestScanErrors() {
	suite.Run("adapter failure", func() {
		suite.adapter.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("hci0: busy")).Once()

		_, err := suite.scanner.Scan(context.Background(), nil, nil)
		suite.ErrorContains(err, "scan failed")
	})

	suite.Run("deadline is not an error", func() {
		suite.adapter.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(context.DeadlineExceeded).Once()

		results, err := suite.scanner.Scan(context.Background(), nil, nil)
		suite.NoError(err)
		suite.Len(results, 2)
	})
}

func (suite *ScannerTestSuite) TestEvents() {
	suite.adapter.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

	_, err := suite.scanner.Scan(context.Background(), nil, nil)
	suite.Require().NoError(err)
	_, err = suite.scanner.Scan(context.Background(), nil, nil)
	suite.Require().NoError(err)

	var newCount, updated int
	for i := 0; i < 4; i++ {
		select {
		case ev := <-suite.scanner.Events():
			if ev.Type == scanner.EventNew {
				newCount++
			} else {
				updated++
			}
		case <-time.After(time.Second):
			suite.FailNow("missing event")
		}
	}
	suite.Equal(2, newCount)
	suite.Equal(2, updated, "second scan MUST report updates")
}

func (suite *ScannerTestSuite) TestLookupUsesCache() {
	suite.adapter.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	_, err := suite.scanner.Scan(context.Background(), nil, nil)
	suite.Require().NoError(err)

	p, err := suite.scanner.Lookup(context.Background(), "aa:bb:cc:dd:ee:ff")

	suite.Require().NoError(err)
	suite.Equal("AA:BB:CC:DD:EE:FF", p.Address())
	suite.Equal("Sofa Living Room", p.Name())
	suite.adapter.AssertNumberOfCalls(suite.T(), "Scan", 1)
}

func (suite *ScannerTestSuite) TestLookupScansOnDemand() {
	// GOAL: Verify an unknown address triggers a scan and the device is resolved when seen
	//
	// TEST SCENARIO: empty cache → Lookup → scan sees the address → peripheral returned

	suite.adapter.On("Scan", mock.Anything, false, mock.Anything).Return(nil).Once()

	p, err := suite.scanner.Lookup(context.Background(), "11:22:33:44:55:66")

	suite.Require().NoError(err)
	suite.Equal("Sofa Bedroom", p.Name())
	suite.Equal([]string{"11:22:33:44:55:66"}, suite.dialed)

	_, cached := suite.scanner.Get("11:22:33:44:55:66")
	suite.True(cached)
	_, cached = suite.scanner.Get("AA:BB:CC:DD:EE:FF")
	suite.False(cached, "lookup MUST only record the requested device")
}

func (suite *ScannerTestSuite) TestLookupNotFound() {
	suite.adapter.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(context.DeadlineExceeded).Once()

	_, err := suite.scanner.Lookup(context.Background(), "00:00:00:00:00:01")

	suite.ErrorIs(err, device.ErrDeviceNotFound)
}

func (suite *ScannerTestSuite) TestLookupCancelled() {
	suite.adapter.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(context.Canceled).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := suite.scanner.Lookup(ctx, "00:00:00:00:00:01")

	suite.ErrorIs(err, context.Canceled)
}

func TestScannerTestSuite(t *testing.T) {
	suitelib.Run(t, new(ScannerTestSuite))
}
