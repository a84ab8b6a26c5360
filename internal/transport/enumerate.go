// internal/transport/enumerate.go
package transport

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"

	"github.com/tamzrod/sensorbus/internal/fault"
)

// Lister enumerates host serial ports.
type Lister func() ([]*enumerator.PortDetails, error)

func hostPorts() ([]*enumerator.PortDetails, error) {
	return enumerator.GetDetailedPortsList()
}

// USB-serial bridge vendors commonly found on RS-485 adapters.
var knownVendors = map[string]string{
	"0403": "FTDI",
	"1a86": "WCH",
	"10c4": "Silicon Labs",
	"067b": "Prolific",
	"04d8": "Microchip",
}

// Device path patterns recognized as RS-485 capable adapters.
var adapterPatterns = []string{
	"ttyUSB*",
	"ttyACM*",
	"ttyRS485*",
	"ttyAMA*",
	"cu.usbserial*",
	"tty.usbserial*",
}

// PortInfo describes one candidate adapter.
type PortInfo struct {
	Path         string
	USB          bool
	VID          string
	PID          string
	Manufacturer string
	Product      string
	SerialNumber string
}

// String renders manufacturer/product/serial when known, else the raw path.
func (p PortInfo) String() string {
	var parts []string
	if p.Manufacturer != "" {
		parts = append(parts, p.Manufacturer)
	}
	if p.Product != "" {
		parts = append(parts, p.Product)
	}
	if p.VID != "" && p.PID != "" {
		parts = append(parts, fmt.Sprintf("(%s:%s)", p.VID, p.PID))
	}
	if p.SerialNumber != "" {
		parts = append(parts, "SN "+p.SerialNumber)
	}
	if len(parts) == 0 {
		return p.Path
	}
	return strings.Join(parts, " ") + " at " + p.Path
}

// ListPorts returns candidate RS-485 adapters sorted by path.
func (r *Registry) ListPorts() ([]PortInfo, error) {
	details, err := r.lister()
	if err != nil {
		return nil, fault.New(fault.IoFailure, "list ports", "", err)
	}

	var out []PortInfo
	for _, d := range details {
		if d == nil || !isAdapter(d) {
			continue
		}
		vid := strings.ToLower(d.VID)
		out = append(out, PortInfo{
			Path:         d.Name,
			USB:          d.IsUSB,
			VID:          vid,
			PID:          strings.ToLower(d.PID),
			Manufacturer: knownVendors[vid],
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
		})
	}

	if len(out) == 0 {
		return nil, fault.New(fault.NoAdaptersFound, "list ports", "", nil)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ListPortNames is ListPorts rendered for display.
func (r *Registry) ListPortNames() ([]string, error) {
	ports, err := r.ListPorts()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(ports))
	for i, p := range ports {
		out[i] = p.String()
	}
	return out, nil
}

func isAdapter(d *enumerator.PortDetails) bool {
	if d.IsUSB {
		return true
	}
	base := filepath.Base(d.Name)
	for _, pat := range adapterPatterns {
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}
