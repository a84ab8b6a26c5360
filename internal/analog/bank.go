// internal/analog/bank.go
package analog

import (
	"context"
	"fmt"
	"sort"
)

// Bank is a set of channels sharing one sampler, keyed by transducer name.
type Bank struct {
	channels map[string]*Channel
	order    []string
}

func NewBank(sampler Sampler, cfgs []TransducerConfig) (*Bank, error) {
	b := &Bank{channels: make(map[string]*Channel, len(cfgs))}
	for _, c := range cfgs {
		if _, dup := b.channels[c.Name]; dup {
			return nil, fmt.Errorf("analog: duplicate transducer %q", c.Name)
		}
		ch, err := NewChannel(c, sampler)
		if err != nil {
			return nil, err
		}
		b.channels[c.Name] = ch
		b.order = append(b.order, c.Name)
	}
	sort.Strings(b.order)
	return b, nil
}

// Channel returns the named channel.
func (b *Bank) Channel(name string) (*Channel, bool) {
	ch, ok := b.channels[name]
	return ch, ok
}

func (b *Bank) Names() []string { return append([]string(nil), b.order...) }

// ReadAll samples every channel in name order. The sampling CLI drives one
// card, so channels are sampled one after another. Failed channels appear in
// errs only.
func (b *Bank) ReadAll(ctx context.Context) (readings []Reading, errs map[string]error) {
	for _, name := range b.order {
		r, err := b.channels[name].Read(ctx)
		if err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[name] = err
			continue
		}
		readings = append(readings, r)
	}
	return readings, errs
}
