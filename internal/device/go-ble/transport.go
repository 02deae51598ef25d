package goble

import (
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/sofactl/internal/device"
)

// BLETransport is an established GATT session backed by a go-ble client.
type BLETransport struct {
	address  string
	client   ble.Client
	services []device.Service
	logger   *logrus.Logger

	disconnected <-chan struct{}
	closed       chan struct{}
	closeOnce    sync.Once
}

func newTransport(address string, client ble.Client, profile *ble.Profile, logger *logrus.Logger) *BLETransport {
	t := &BLETransport{
		address: address,
		client:  client,
		logger:  logger,
		closed:  make(chan struct{}),
	}
	t.services = servicesFromProfile(profile, client, &sync.Mutex{})

	// Not every backend reports link loss; fall back to our own close signal.
	if dc, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		t.disconnected = dc.Disconnected()
	} else {
		t.disconnected = t.closed
	}
	return t
}

func (t *BLETransport) Address() string {
	return t.address
}

func (t *BLETransport) Services() []device.Service {
	return t.services
}

func (t *BLETransport) Disconnected() <-chan struct{} {
	return t.disconnected
}

// Close cancels the connection. Calling it more than once is a no-op.
func (t *BLETransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.client == nil {
			return
		}
		if cerr := t.client.CancelConnection(); cerr != nil {
			err = NormalizeError(cerr)
			t.logger.WithFields(logrus.Fields{
				"address": t.address,
				"error":   cerr,
			}).Debug("Cancel connection reported an error")
		}
	})
	return err
}
