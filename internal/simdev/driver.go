// internal/simdev/driver.go
package simdev

import (
	"fmt"
	"sync"

	"github.com/tamzrod/sensorbus/internal/transport"
)

// DriverName registers the simulator with a transport.Registry.
const DriverName = "sim"

// Bus maps port identifiers to simulated devices. It implements
// transport.Driver, so a registry can open simulated lines like real ones.
type Bus struct {
	mu      sync.Mutex
	devices map[string]*Device
	opens   map[string]int
	failing map[string]error
}

func NewBus() *Bus {
	return &Bus{
		devices: make(map[string]*Device),
		opens:   make(map[string]int),
		failing: make(map[string]error),
	}
}

// Attach places d on port.
func (b *Bus) Attach(port string, d *Device) {
	b.mu.Lock()
	b.devices[port] = d
	b.mu.Unlock()
}

// FailOpen makes every following open of port fail with err. A nil err
// clears the failure.
func (b *Bus) FailOpen(port string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failing, port)
		return
	}
	b.failing[port] = err
}

// Opens counts successful opens of port.
func (b *Bus) Opens(port string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens[port]
}

func (b *Bus) Open(cfg transport.LineConfig) (transport.Port, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.failing[cfg.Port]; err != nil {
		return nil, err
	}
	d, ok := b.devices[cfg.Port]
	if !ok {
		return nil, fmt.Errorf("simdev: no device on %s", cfg.Port)
	}
	b.opens[cfg.Port]++
	return &line{dev: d, baud: cfg.BaudRate}, nil
}

// line is one open simulated port. The device answers synchronously; the
// answer waits in rx until read.
type line struct {
	mu     sync.Mutex
	dev    *Device
	baud   int
	rx     []byte
	closed bool
}

func (l *line) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, fmt.Errorf("simdev: write on closed line")
	}
	l.rx = append(l.rx, l.dev.Handle(p, l.baud)...)
	return len(p), nil
}

func (l *line) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, fmt.Errorf("simdev: read on closed line")
	}
	n := copy(p, l.rx)
	l.rx = l.rx[n:]
	return n, nil
}

func (l *line) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func (l *line) Discard() error {
	l.mu.Lock()
	l.rx = nil
	l.mu.Unlock()
	return nil
}

func (l *line) Flush() error { return nil }

func (l *line) SetDirection(bool) error { return transport.ErrDirectionUnsupported }
