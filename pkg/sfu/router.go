package sfu

import (
	"github.com/gammazero/workerpool"
	"github.com/pion/ion-rtp-sfu/pkg/buffer"
)

// RouterConfig defines router configurations
type RouterConfig struct {
	Workers     int             `mapstructure:"workers"`
	EventQueue  int             `mapstructure:"eventqueue"`
	HistorySize int             `mapstructure:"historysize"`
	Admission   AdmissionConfig `mapstructure:"admission"`
}

func (c RouterConfig) withDefaults() RouterConfig {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.EventQueue <= 0 {
		c.EventQueue = DefaultEventQueue
	}
	if c.HistorySize <= 0 {
		c.HistorySize = buffer.DefaultHistorySize
	}
	return c
}

// shards runs submitted work on single-worker pools so that all work for one
// ssrc executes in submission order.
type shards struct {
	pools []*workerpool.WorkerPool
}

func newShards(n int) *shards {
	if n <= 0 {
		n = 1
	}
	s := &shards{pools: make([]*workerpool.WorkerPool, n)}
	for i := range s.pools {
		s.pools[i] = workerpool.New(1)
	}
	return s
}

func (s *shards) submit(ssrc uint32, fn func()) {
	s.pools[ssrc%uint32(len(s.pools))].Submit(fn)
}

// stop waits for all submitted work.
func (s *shards) stop() {
	for _, wp := range s.pools {
		wp.StopWait()
	}
}
