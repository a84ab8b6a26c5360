// internal/writer/builder.go
package writer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	cfg "github.com/tamzrod/sensorbus/internal/config"
	wmodbus "github.com/tamzrod/sensorbus/internal/writer/modbus"
)

// Sinks is everything the run loop delivers to.
type Sinks struct {
	Writer *Multi
	Status map[string]StatusWriter // port -> status writer

	closers []func() error
}

// Close releases every sink connection and returns the last error.
func (s *Sinks) Close() error {
	var last error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			last = err
		}
	}
	return last
}

// Build connects every configured sink.
// Assumes config has already passed Validate and Normalize.
func Build(ctx context.Context, c *cfg.Config, log *zap.Logger) (*Sinks, error) {
	if log == nil {
		log = zap.NewNop()
	}
	sb := c.Sensorbus
	s := &Sinks{Writer: NewMulti(), Status: make(map[string]StatusWriter)}

	fail := func(err error) (*Sinks, error) {
		_ = s.Close()
		return nil, err
	}

	// ---- modbus mirror ----
	if m := sb.Sinks.Modbus; m != nil {
		cli, err := wmodbus.NewEndpointClient(wmodbus.Config{
			Endpoint: m.Endpoint,
			Timeout:  time.Duration(m.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			return fail(fmt.Errorf("writer: modbus %s: %w", m.Endpoint, err))
		}
		s.closers = append(s.closers, cli.Close)

		plan := MirrorPlan{UnitID: m.UnitID, Slots: make(map[string]uint16)}
		for _, d := range sb.Devices {
			if d.Slot == nil {
				continue
			}
			plan.Slots[d.Port] = *d.Slot
			s.Status[d.Port] = NewDeviceStatusWriter(StatusPlan{
				UnitID:     m.StatusUnitID,
				Slot:       *d.Slot,
				DeviceName: d.Name,
			}, cli)
		}
		s.Writer.Add("modbus", NewModbusMirror(plan, cli))
		log.Info("modbus mirror ready", zap.String("endpoint", m.Endpoint), zap.Int("slots", len(plan.Slots)))
	}

	// ---- mqtt ----
	if m := sb.Sinks.MQTT; m != nil {
		if m.Broker == "" {
			return fail(fmt.Errorf("writer: mqtt broker required (sinks.mqtt.broker or SENSORBUS_MQTT_BROKER)"))
		}
		cli, err := DialMQTT(MQTTConfig{
			Broker:   m.Broker,
			ClientID: m.ClientID,
			Username: m.Username,
			Password: m.Password,
		})
		if err != nil {
			return fail(err)
		}
		s.closers = append(s.closers, cli.Close)
		s.Writer.Add("mqtt", NewMQTTSink(cli, m.TopicPrefix, m.QoS, m.Retained))
		log.Info("mqtt sink ready", zap.String("broker", m.Broker), zap.String("prefix", m.TopicPrefix))
	}

	// ---- redis ----
	if r := sb.Sinks.Redis; r != nil {
		if r.Addr == "" {
			return fail(fmt.Errorf("writer: redis addr required (sinks.redis.addr or SENSORBUS_REDIS_ADDR)"))
		}
		rdb := NewRedisClient(RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB})
		s.closers = append(s.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("writer: redis %s: %w", r.Addr, err))
		}
		s.Writer.Add("redis", NewRedisSink(rdb, r.KeyPrefix, time.Duration(r.TTLSeconds)*time.Second))
		log.Info("redis sink ready", zap.String("addr", r.Addr), zap.String("prefix", r.KeyPrefix))
	}

	return s, nil
}
