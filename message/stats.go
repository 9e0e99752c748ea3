package message

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/cachestream/errors"
	"github.com/c360/cachestream/metric"
)

// quantaSizes are the data-block size classes tracked by the indexed pool
// statistic. Blocks larger than the last class fall into the overflow
// class at index len(quantaSizes).
var quantaSizes = []int{512, 2048, 8192, 32768}

const numQuantaClasses = 5 // len(quantaSizes) + overflow

// PoolStat identifies one process-wide pool statistic.
type PoolStat uint8

// Pool statistics. StatQuantaAllocs is the only indexed statistic; every
// other statistic requires index 0.
const (
	StatAllocs PoolStat = iota
	StatFrees
	StatDups
	StatResets
	StatActive
	StatBytesInUse
	StatQuantaAllocs
)

var pool struct {
	allocs   atomic.Int64
	frees    atomic.Int64
	dups     atomic.Int64
	resets   atomic.Int64
	active   atomic.Int64
	bytes    atomic.Int64
	quanta   [numQuantaClasses]atomic.Int64
}

func quantaClass(size int) int {
	for i, q := range quantaSizes {
		if size <= q {
			return i
		}
	}
	return len(quantaSizes)
}

func recordAlloc() {
	pool.allocs.Add(1)
	pool.active.Add(1)
}

func recordFree() {
	pool.frees.Add(1)
	pool.active.Add(-1)
}

func recordDup() {
	pool.dups.Add(1)
	pool.active.Add(1)
}

func recordReset() {
	pool.resets.Add(1)
}

func recordBlockAlloc(size int) {
	pool.bytes.Add(int64(size))
	pool.quanta[quantaClass(size)].Add(1)
}

func recordBlockFree(size int) {
	pool.bytes.Add(-int64(size))
}

// PoolStatistics is a point-in-time snapshot of the process-wide message
// pool counters.
type PoolStatistics struct {
	Allocs      int64
	Frees       int64
	Dups        int64
	Resets      int64
	Active      int64
	BytesInUse  int64
	QuantaAllocs [numQuantaClasses]int64
}

// PoolStats returns a snapshot of the pool counters.
func PoolStats() PoolStatistics {
	s := PoolStatistics{
		Allocs:     pool.allocs.Load(),
		Frees:      pool.frees.Load(),
		Dups:       pool.dups.Load(),
		Resets:     pool.resets.Load(),
		Active:     pool.active.Load(),
		BytesInUse: pool.bytes.Load(),
	}
	for i := range pool.quanta {
		s.QuantaAllocs[i] = pool.quanta[i].Load()
	}
	return s
}

// Stat returns one pool statistic. Only StatQuantaAllocs is indexed, by
// block size class; passing a non-zero index with any other statistic is
// a parameter error, not a silent ignore.
func Stat(stat PoolStat, index int) (int64, error) {
	if stat == StatQuantaAllocs {
		if index < 0 || index >= numQuantaClasses {
			return 0, errors.WrapInvalid(errors.ErrInvalidParam, "Message", "Stat",
				fmt.Sprintf("quanta index %d out of range [0,%d)", index, numQuantaClasses))
		}
		return pool.quanta[index].Load(), nil
	}
	if index != 0 {
		return 0, errors.WrapInvalid(errors.ErrInvalidParam, "Message", "Stat",
			fmt.Sprintf("statistic %d is not indexed", stat))
	}
	switch stat {
	case StatAllocs:
		return pool.allocs.Load(), nil
	case StatFrees:
		return pool.frees.Load(), nil
	case StatDups:
		return pool.dups.Load(), nil
	case StatResets:
		return pool.resets.Load(), nil
	case StatActive:
		return pool.active.Load(), nil
	case StatBytesInUse:
		return pool.bytes.Load(), nil
	default:
		return 0, errors.WrapInvalid(errors.ErrInvalidParam, "Message", "Stat",
			fmt.Sprintf("unknown statistic %d", stat))
	}
}

// RegisterPoolMetrics exposes the pool counters through a metrics
// registry. The collectors read the atomic counters on scrape.
func RegisterPoolMetrics(registry *metric.MetricsRegistry) error {
	counters := []struct {
		name string
		help string
		load func() int64
	}{
		{"pool_allocs_total", "Total message envelopes allocated.", pool.allocs.Load},
		{"pool_frees_total", "Total message envelopes freed.", pool.frees.Load},
		{"pool_dups_total", "Total message envelopes duplicated.", pool.dups.Load},
		{"pool_resets_total", "Total message envelope resets.", pool.resets.Load},
	}
	for _, c := range counters {
		collector := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "cachestream",
			Subsystem: "message",
			Name:      c.name,
			Help:      c.help,
		}, func(load func() int64) func() float64 {
			return func() float64 { return float64(load()) }
		}(c.load))
		if err := registry.RegisterCounter("message", c.name, collector); err != nil {
			return err
		}
	}

	gauges := []struct {
		name string
		help string
		load func() int64
	}{
		{"pool_active", "Message envelopes currently allocated.", pool.active.Load},
		{"pool_bytes_in_use", "Bytes held by live attachment and property blocks.", pool.bytes.Load},
	}
	for _, g := range gauges {
		collector := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "cachestream",
			Subsystem: "message",
			Name:      g.name,
			Help:      g.help,
		}, func(load func() int64) func() float64 {
			return func() float64 { return float64(load()) }
		}(g.load))
		if err := registry.RegisterGauge("message", g.name, collector); err != nil {
			return err
		}
	}
	return nil
}
