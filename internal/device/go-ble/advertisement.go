package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/sofactl/internal/device"
)

// BLEAdvertisement is a snapshot of one received advertisement.
type BLEAdvertisement struct {
	addr        string
	localName   string
	rssi        int
	connectable bool
	services    []string
}

// NewAdvertisement copies the fields the registry needs out of a go-ble advertisement.
func NewAdvertisement(adv ble.Advertisement) device.Advertisement {
	services := make([]string, 0, len(adv.Services()))
	for _, u := range adv.Services() {
		services = append(services, device.NormalizeUUID(u.String()))
	}
	var addr string
	if adv.Addr() != nil {
		addr = adv.Addr().String()
	}
	return &BLEAdvertisement{
		addr:        addr,
		localName:   adv.LocalName(),
		rssi:        adv.RSSI(),
		connectable: adv.Connectable(),
		services:    services,
	}
}

func (a *BLEAdvertisement) Addr() string {
	return a.addr
}

func (a *BLEAdvertisement) LocalName() string {
	return a.localName
}

func (a *BLEAdvertisement) RSSI() int {
	return a.rssi
}

func (a *BLEAdvertisement) Connectable() bool {
	return a.connectable
}

func (a *BLEAdvertisement) Services() []string {
	return a.services
}
