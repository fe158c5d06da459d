package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Loop metrics are labeled by market id.
var (
	LoopSuccess = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperbot_loop_success_total",
		Help: "Successful bot loop iterations",
	}, []string{"market_id"})

	LoopErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperbot_loop_errors_total",
		Help: "Failed bot loop iterations",
	}, []string{"market_id"})

	LoopDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paperbot_loop_duration_seconds",
		Help:    "Duration of a single bot loop iteration",
		Buckets: prometheus.DefBuckets,
	}, []string{"market_id"})

	LastPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paperbot_last_price",
		Help: "Last observed mid price",
	}, []string{"market_id"})

	Liquidity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paperbot_liquidity",
		Help: "Last observed liquidity, when the upstream reports one",
	}, []string{"market_id"})

	PnL = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "paperbot_pnl",
		Help: "Accumulated virtual PnL",
	}, []string{"market_id"})
)

var (
	FeedSource = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperbot_feed_source_total",
		Help: "Snapshots served per feed source",
	}, []string{"source"})

	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperbot_auth_attempts_total",
		Help: "Wallet verify attempts by outcome",
	}, []string{"outcome"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperbot_rate_limited_total",
		Help: "Requests rejected by the auth rate limiter",
	}, []string{"path"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paperbot_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
