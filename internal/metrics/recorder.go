// Package metrics exports questionnaire and transport counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/m3rciful/fruitbot/internal/intake"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "fruitbot"

// Recorder implements intake.Recorder, router.Observer and sender.Observer.
type Recorder struct {
	sessions       prometheus.Counter
	answers        *prometheus.CounterVec
	ageRejected    prometheus.Counter
	completed      prometheus.Counter
	failures       *prometheus.CounterVec
	oracleDuration prometheus.Histogram
	handlers       *prometheus.HistogramVec
	sends          *prometheus.CounterVec
}

// New registers the collectors with reg, or the default registerer when nil.
// Collectors already registered under the same name are reused.
func New(namespace string, reg prometheus.Registerer) (*Recorder, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Questionnaires started or restarted.",
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_accepted_total",
			Help:      "Answers stored, by step.",
		}, []string{"step"}),
		ageRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "age_rejected_total",
			Help:      "Age answers that were not a plain number.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Questionnaires that produced a suggestion.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Questionnaires ended by an error, by reason.",
		}, []string{"reason"}),
		oracleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_duration_seconds",
			Help:      "Latency of suggestion oracle calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		handlers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Telegram update handling latency, by handler and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "status"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Outbound Telegram calls, by action and outcome.",
		}, []string{"action", "outcome"}),
	}

	var err error
	if r.sessions, err = register(reg, r.sessions); err != nil {
		return nil, err
	}
	if r.answers, err = register(reg, r.answers); err != nil {
		return nil, err
	}
	if r.ageRejected, err = register(reg, r.ageRejected); err != nil {
		return nil, err
	}
	if r.completed, err = register(reg, r.completed); err != nil {
		return nil, err
	}
	if r.failures, err = register(reg, r.failures); err != nil {
		return nil, err
	}
	if r.oracleDuration, err = register(reg, r.oracleDuration); err != nil {
		return nil, err
	}
	if r.handlers, err = register(reg, r.handlers); err != nil {
		return nil, err
	}
	if r.sends, err = register(reg, r.sends); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("metrics: register: %w", err)
	}
	return c, nil
}

func (r *Recorder) SessionStarted() { r.sessions.Inc() }

func (r *Recorder) AnswerAccepted(step intake.Step) {
	r.answers.WithLabelValues(step.String()).Inc()
}

func (r *Recorder) AgeRejected() { r.ageRejected.Inc() }

func (r *Recorder) Completed() { r.completed.Inc() }

func (r *Recorder) Failed(reason string) {
	r.failures.WithLabelValues(reason).Inc()
}

func (r *Recorder) OracleDuration(d time.Duration) {
	r.oracleDuration.Observe(d.Seconds())
}

// ObserveHandler records one routed update.
func (r *Recorder) ObserveHandler(handler, status string, elapsed time.Duration) {
	r.handlers.WithLabelValues(handler, status).Observe(elapsed.Seconds())
}

// SendDone records one outbound Telegram call.
func (r *Recorder) SendDone(action, outcome string, _ time.Duration) {
	r.sends.WithLabelValues(action, outcome).Inc()
}
