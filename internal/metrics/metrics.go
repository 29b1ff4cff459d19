package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Codec
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcnode_decode_errors_total",
		Help: "Total number of message decode failures by kind",
	}, []string{"kind"})

	WrongNetwork = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcnode_wrong_network_total",
		Help: "Total number of frames dropped for magic mismatch",
	})

	// Peer state
	PeersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btcnode_peers_active",
		Help: "Number of currently tracked peer connections",
	})

	PeerConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcnode_peer_connections_total",
		Help: "Total number of peer connection attempts",
	})

	PeerDisconnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcnode_peer_disconnections_total",
		Help: "Total number of peer disconnections",
	})

	HandshakeCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcnode_handshake_completed_total",
		Help: "Total number of completed verack handshakes",
	})

	HandshakeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcnode_handshake_failures_total",
		Help: "Total number of failed handshakes",
	})

	PingRTT = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "btcnode_ping_rtt_ms",
		Help:    "Ping round-trip time in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 200, 500, 1000, 2000, 5000},
	})

	PongNonceMismatch = promauto.NewCounter(prometheus.CounterOpts{
		Name: "btcnode_pong_nonce_mismatch_total",
		Help: "Total number of pong messages with a non-matching nonce",
	})

	// Expiring cache
	PendingInvSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "btcnode_cache_size",
		Help: "Current number of non-expired entries in an expiring cache",
	}, []string{"cache"})

	CacheSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcnode_cache_sweeps_total",
		Help: "Total number of expiring-cache sweep passes by cache name",
	}, []string{"cache"})

	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcnode_cache_evictions_total",
		Help: "Total number of entries evicted from an expiring cache",
	}, []string{"cache"})

	// Session dispatcher
	MessagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcnode_messages_handled_total",
		Help: "Total number of inbound messages handled by command",
	}, []string{"command"})

	FramesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcnode_frames_sent_total",
		Help: "Total number of outbound frames sent by command",
	}, []string{"command"})

	GetBlocksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcnode_getblocks_skipped_total",
		Help: "Total number of get_blocks invocations skipped by reason",
	}, []string{"reason"})

	BlockHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "btcnode_block_height",
		Help: "Highest block height recorded in the block store",
	})

	BlockStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcnode_blockstore_errors_total",
		Help: "Total number of block store operation errors",
	}, []string{"operation"})

	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "btcnode_db_query_duration_seconds",
		Help:    "Duration of block store database queries by operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// Script VM
	ScriptHalts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btcnode_script_halts_total",
		Help: "Total number of Script VM program terminations by result",
	}, []string{"result"})
)

// corsHandler wraps a handler with CORS headers so a local dashboard can scrape /metrics directly.
func corsHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartMetricsServer starts the Prometheus metrics HTTP server in a background goroutine.
func StartMetricsServer(addr string) {
	http.Handle("/metrics", corsHandler(promhttp.Handler()))
	go http.ListenAndServe(addr, nil)
}
