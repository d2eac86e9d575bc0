// Package tally keeps per-day attendance counters fed by attendance.marked events.
package tally

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"attendease/internal/attendance"
)

// Counts are the totals for one calendar day.
type Counts struct {
	Day        string `json:"date"`
	Present    int64  `json:"present"`
	Absent     int64  `json:"absent"`
	Suspicious int64  `json:"suspicious"`
}

// Counter stores and reads daily counts.
type Counter interface {
	Add(ctx context.Context, evt attendance.MarkedEvent) error
	Get(ctx context.Context, day string) (Counts, error)
}

func fields(evt attendance.MarkedEvent) ([]string, error) {
	switch evt.Status {
	case attendance.StatusPresent:
		return []string{"present"}, nil
	case attendance.StatusAbsent:
		if evt.Suspicious {
			return []string{"absent", "suspicious"}, nil
		}
		return []string{"absent"}, nil
	default:
		return nil, fmt.Errorf("tally: unknown status %q", evt.Status)
	}
}

// RedisCounter keeps one hash per day.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client, prefix: "attendance:tally:"}
}

func (r *RedisCounter) Add(ctx context.Context, evt attendance.MarkedEvent) error {
	names, err := fields(evt)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, name := range names {
			pipe.HIncrBy(ctx, r.prefix+evt.Day, name, 1)
		}
		return nil
	})
	return err
}

func (r *RedisCounter) Get(ctx context.Context, day string) (Counts, error) {
	vals, err := r.client.HGetAll(ctx, r.prefix+day).Result()
	if err != nil {
		return Counts{}, err
	}
	c := Counts{Day: day}
	c.Present, _ = strconv.ParseInt(vals["present"], 10, 64)
	c.Absent, _ = strconv.ParseInt(vals["absent"], 10, 64)
	c.Suspicious, _ = strconv.ParseInt(vals["suspicious"], 10, 64)
	return c, nil
}

// MemoryCounter keeps counts in process.
type MemoryCounter struct {
	mu   sync.Mutex
	days map[string]*Counts
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{days: make(map[string]*Counts)}
}

func (m *MemoryCounter) Add(ctx context.Context, evt attendance.MarkedEvent) error {
	names, err := fields(evt)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.days[evt.Day]
	if !ok {
		c = &Counts{Day: evt.Day}
		m.days[evt.Day] = c
	}
	for _, name := range names {
		switch name {
		case "present":
			c.Present++
		case "absent":
			c.Absent++
		case "suspicious":
			c.Suspicious++
		}
	}
	return nil
}

func (m *MemoryCounter) Get(ctx context.Context, day string) (Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.days[day]; ok {
		return *c, nil
	}
	return Counts{Day: day}, nil
}
