package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/srg/sofactl/internal/device"
)

// AdvertisementBuilder builds fake advertisements for scanner tests.
type AdvertisementBuilder struct {
	adv fakeAdvertisement
}

// NewAdvertisementBuilder creates a builder for a connectable advertisement with RSSI -50.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: fakeAdvertisement{rssi: -50, connectable: true}}
}

// WithName sets the local name for the advertisement.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.name = name
	return b
}

// WithAddress sets the device address for the advertisement.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.addr = addr
	return b
}

// WithRSSI sets the signal strength for the advertisement.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.rssi = rssi
	return b
}

// WithServices adds service UUIDs to the advertisement.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	for _, u := range uuids {
		b.adv.services = append(b.adv.services, device.NormalizeUUID(u))
	}
	return b
}

// WithConnectable sets whether the device accepts connections.
func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.connectable = c
	return b
}

// FromJSON fills builder fields from a JSON string with format support.
// Panics on invalid JSON as this is intended for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	var data struct {
		Name        *string  `json:"name"`
		Address     *string  `json:"address"`
		RSSI        *int     `json:"rssi"`
		Services    []string `json:"services"`
		Connectable *bool    `json:"connectable"`
	}
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &data); err != nil {
		panic(fmt.Sprintf("AdvertisementBuilder.FromJSON: failed to unmarshal: %v", err))
	}

	if data.Name != nil {
		b.WithName(*data.Name)
	}
	if data.Address != nil {
		b.WithAddress(*data.Address)
	}
	if data.RSSI != nil {
		b.WithRSSI(*data.RSSI)
	}
	if data.Connectable != nil {
		b.WithConnectable(*data.Connectable)
	}
	b.WithServices(data.Services...)
	return b
}

// Build returns an immutable advertisement.
func (b *AdvertisementBuilder) Build() device.Advertisement {
	adv := b.adv
	adv.services = append([]string(nil), b.adv.services...)
	return &adv
}

// Advertisements builds every builder in order.
func Advertisements(builders ...*AdvertisementBuilder) []device.Advertisement {
	ads := make([]device.Advertisement, 0, len(builders))
	for _, b := range builders {
		ads = append(ads, b.Build())
	}
	return ads
}

type fakeAdvertisement struct {
	addr        string
	name        string
	rssi        int
	connectable bool
	services    []string
}

func (a *fakeAdvertisement) Addr() string       { return a.addr }
func (a *fakeAdvertisement) LocalName() string  { return a.name }
func (a *fakeAdvertisement) RSSI() int          { return a.rssi }
func (a *fakeAdvertisement) Connectable() bool  { return a.connectable }
func (a *fakeAdvertisement) Services() []string { return a.services }
