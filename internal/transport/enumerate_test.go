// internal/transport/enumerate_test.go
package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	"github.com/tamzrod/sensorbus/internal/fault"
)

func listerOf(ports ...*enumerator.PortDetails) Lister {
	return func() ([]*enumerator.PortDetails, error) { return ports, nil }
}

func TestListPortsFiltersAndDescribes(t *testing.T) {
	r := NewRegistry(WithLister(listerOf(
		&enumerator.PortDetails{Name: "/dev/ttyS0"},
		&enumerator.PortDetails{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1A86", PID: "7523"},
		&enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001",
			Product: "FT232R USB UART", SerialNumber: "A50285BI"},
		&enumerator.PortDetails{Name: "/dev/ttyAMA0"},
	)))

	ports, err := r.ListPorts()
	require.NoError(t, err)
	require.Len(t, ports, 3)

	assert.Equal(t, "/dev/ttyAMA0", ports[0].Path)
	assert.Equal(t, "/dev/ttyAMA0", ports[0].String())

	assert.Equal(t, "FTDI FT232R USB UART (0403:6001) SN A50285BI at /dev/ttyUSB0", ports[1].String())
	assert.Equal(t, "WCH (1a86:7523) at /dev/ttyUSB1", ports[2].String())

	names, err := r.ListPortNames()
	require.NoError(t, err)
	assert.Len(t, names, 3)
}

func TestListPortsNoAdapters(t *testing.T) {
	r := NewRegistry(WithLister(listerOf(&enumerator.PortDetails{Name: "/dev/ttyS0"})))
	_, err := r.ListPorts()
	assert.True(t, fault.Is(err, fault.NoAdaptersFound))

	r = NewRegistry(WithLister(listerOf()))
	_, err = r.ListPorts()
	assert.True(t, fault.Is(err, fault.NoAdaptersFound))
}

func TestListPortsEnumerationError(t *testing.T) {
	r := NewRegistry(WithLister(func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no sysfs")
	}))
	_, err := r.ListPorts()
	assert.True(t, fault.Is(err, fault.IoFailure))
}
