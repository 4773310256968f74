package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var HttpResponses = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "spaproxy_http_responses_total",
}, []string{"method", "statusCode"})
var ResolveHits = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "spaproxy_resolve_hits_total",
}, []string{"property"})
var ResolveMisses = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "spaproxy_resolve_misses_total",
})
var SpaFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "spaproxy_spa_fallbacks_total",
}, []string{"property"})
var TraversalsRejected = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "spaproxy_traversals_rejected_total",
})
var IndexRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "spaproxy_index_rebuilds_total",
})
var IndexProperties = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "spaproxy_index_properties",
})

func init() {
	prometheus.MustRegister(HttpResponses)
	prometheus.MustRegister(ResolveHits)
	prometheus.MustRegister(ResolveMisses)
	prometheus.MustRegister(SpaFallbacks)
	prometheus.MustRegister(TraversalsRejected)
	prometheus.MustRegister(IndexRebuilds)
	prometheus.MustRegister(IndexProperties)
}
