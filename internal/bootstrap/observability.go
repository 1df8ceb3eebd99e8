package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/interviewlens/lens-api/config"
	"github.com/interviewlens/lens-api/internal/observability/notify/pagerduty"
	"github.com/interviewlens/lens-api/internal/observability/notify/slack"
	"github.com/interviewlens/lens-api/internal/observability/statsd"
	"github.com/interviewlens/lens-api/internal/service/failurenotifier"
)

// BuildMetricsSink constructs the StatsD client. A disabled config yields a
// no-op client rather than nil so callers never branch.
func BuildMetricsSink(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (*statsd.Client, error) {
	client, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.IsEnabled(),
		Address: cfg.StatsdAddress,
		Prefix:  "lensapi",
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create statsd client: %w", err)
	}
	return client, nil
}

// BuildFailureNotifier assembles the operator alerting fan-out from the
// enabled notification sinks.
func BuildFailureNotifier(cfg config.ObservabilityNotificationsConfig, logger *slog.Logger) (*failurenotifier.Service, error) {
	var sinks []failurenotifier.SinkRegistration

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:         cfg.Slack.WebhookURL,
			Channel:            cfg.Slack.Channel,
			Username:           cfg.Slack.Username,
			Timeout:            cfg.Timeout,
			RetryLimit:         cfg.RetryLimit,
			DashboardURLPrefix: cfg.Slack.DashboardURLPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("create slack sink: %w", err)
		}
		sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("create pagerduty sink: %w", err)
		}
		sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: logger,
		Sinks:  sinks,
	}), nil
}
