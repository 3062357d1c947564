package config

import (
	"fmt"
	"time"
)

// ObservabilityConfig configures the side server exposing metrics and probes.
type ObservabilityConfig struct {
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout bounds reads and writes on the server and each readiness check.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz" validate:"startswith=/"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz" validate:"startswith=/"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics" validate:"startswith=/"`
}

// Validate checks the port and that the three paths do not collide.
func (o *ObservabilityConfig) Validate() error {
	if err := checkPort("observability", o.Port); err != nil {
		return err
	}
	seen := map[string]string{}
	for name, path := range map[string]string{
		"liveness":  o.LivenessPath,
		"readiness": o.ReadinessPath,
		"metrics":   o.MetricsPath,
	} {
		if other, dup := seen[path]; dup {
			return fmt.Errorf("observability %s and %s paths both use %q", name, other, path)
		}
		seen[path] = name
	}
	return nil
}
