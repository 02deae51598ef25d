package goble

import (
	"sync"

	"github.com/go-ble/ble"
	"github.com/srg/sofactl/internal/device"
)

// ----------------------------
// BLE Service
// ----------------------------

// BLEService represents one GATT service instance and its characteristics.
type BLEService struct {
	uuid            string
	characteristics []device.Characteristic
}

func (s *BLEService) UUID() string {
	return s.uuid
}

func (s *BLEService) GetCharacteristics() []device.Characteristic {
	return s.characteristics
}

// servicesFromProfile flattens a discovered profile in discovery order.
// Unlike a UUID-keyed map, duplicated service instances are kept apart so each one's
// characteristics stay addressable.
func servicesFromProfile(profile *ble.Profile, writer charWriter, writeMutex *sync.Mutex) []device.Service {
	if profile == nil {
		return nil
	}
	services := make([]device.Service, 0, len(profile.Services))
	for _, bleSvc := range profile.Services {
		svc := &BLEService{uuid: device.NormalizeUUID(bleSvc.UUID.String())}
		for _, bleChar := range bleSvc.Characteristics {
			svc.characteristics = append(svc.characteristics, newCharacteristic(bleChar, writer, writeMutex))
		}
		services = append(services, svc)
	}
	return services
}
