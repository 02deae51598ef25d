package goble

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/sofactl/internal/device"
)

// DefaultWriteTimeout bounds a single characteristic write when the caller passes zero.
const DefaultWriteTimeout = 5 * time.Second

// charWriter is the part of ble.Client used for writes.
type charWriter interface {
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
}

// BLECharacteristic is a writable GATT characteristic bound to a live client.
type BLECharacteristic struct {
	uuid       string
	properties device.Properties
	BLEChar    *ble.Characteristic

	writer     charWriter
	writeMutex *sync.Mutex // shared by every characteristic of one connection
}

func newCharacteristic(c *ble.Characteristic, writer charWriter, writeMutex *sync.Mutex) *BLECharacteristic {
	return &BLECharacteristic{
		uuid:       device.NormalizeUUID(c.UUID.String()),
		properties: NewProperties(c.Property),
		BLEChar:    c,
		writer:     writer,
		writeMutex: writeMutex,
	}
}

func (c *BLECharacteristic) UUID() string {
	return c.uuid
}

func (c *BLECharacteristic) Handle() uint16 {
	return c.BLEChar.ValueHandle
}

func (c *BLECharacteristic) GetProperties() device.Properties {
	return c.properties
}

// Write sends data to the characteristic. Writes on the same connection are serialized.
// The call gives up after timeout; the underlying GATT operation may still complete later.
func (c *BLECharacteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	if c.writer == nil || c.BLEChar == nil {
		return fmt.Errorf("characteristic %s: %w", c.uuid, device.ErrNotConnected)
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}

	resultCh := make(chan error, 1)
	go func() {
		c.writeMutex.Lock()
		defer c.writeMutex.Unlock()
		resultCh <- c.writer.WriteCharacteristic(c.BLEChar, data, !withResponse)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-resultCh:
		if err != nil {
			return NormalizeError(err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: writing characteristic %s after %v", device.ErrTimeout, c.uuid, timeout)
	}
}
