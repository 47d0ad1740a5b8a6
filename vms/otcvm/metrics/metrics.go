// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/otcvm/utils/wrappers"
)

// Metrics tracks block production and transaction outcomes of the VM.
type Metrics struct {
	txs         *prometheus.CounterVec
	blocks      prometheus.Counter
	blockSize   prometheus.Histogram
	mempoolSize prometheus.Gauge
	height      prometheus.Gauge
}

func New(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		txs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "txs_processed",
				Help:      "Number of transactions processed",
			},
			[]string{"kind", "status"},
		),
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_processed",
			Help:      "Number of blocks processed",
		}),
		blockSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "block_txs",
			Help:      "Number of transactions per block",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		mempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mempool_size",
			Help:      "Number of transactions waiting in the mempool",
		}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "height",
			Help:      "Height of the last processed block",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.txs),
		registerer.Register(m.blocks),
		registerer.Register(m.blockSize),
		registerer.Register(m.mempoolSize),
		registerer.Register(m.height),
	)
	return m, errs.Err
}

func (m *Metrics) TxProcessed(kind, status string) {
	m.txs.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) BlockProcessed(height uint64, numTxs int) {
	m.blocks.Inc()
	m.blockSize.Observe(float64(numTxs))
	m.height.Set(float64(height))
}

func (m *Metrics) SetMempoolSize(n int) {
	m.mempoolSize.Set(float64(n))
}
