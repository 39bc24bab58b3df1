package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace prefixes every metric name. Characters Prometheus does not
// accept in a name are replaced by '_'. An empty namespace keeps the default.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if ns := metricName(namespace); ns != "" {
			m.namespace = ns
		}
	}
}

// WithCustomLabels attaches constant labels, such as the build version, to
// every metric.
func WithCustomLabels(labels map[string]string) Option {
	return func(m *Manager) {
		for k, v := range labels {
			if v != "" {
				m.customLabels[metricName(k)] = v
			}
		}
	}
}

// WithPrometheusRegistry registers the metrics on registry instead of the
// default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

func metricName(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
