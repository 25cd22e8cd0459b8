package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authsession"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultReplay  = "replay"
)

type Recorder struct {
	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	replays   prometheus.Counter
	reg       *prometheus.Registry
}

// NewRecorder registers the counters on a fresh registry together with the
// Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Refresh attempts by result.",
		}, []string{"result"}),
		replays: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replays_total",
			Help:      "Refresh token replays detected. Each one revoked a session.",
		}),
		reg: reg,
	}
}

func (r *Recorder) Login(result string) {
	r.logins.WithLabelValues(result).Inc()
}

func (r *Recorder) Refresh(result string) {
	r.refreshes.WithLabelValues(result).Inc()
}

func (r *Recorder) Replay() {
	r.replays.Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
