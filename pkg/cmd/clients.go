package cmd

import (
	"log/slog"

	"github.com/dukex/flowtransfer/pkg/apiclient"
	"github.com/dukex/flowtransfer/pkg/config"
	"github.com/dukex/flowtransfer/pkg/httpclient"
)

// NewAPIClients builds the SOURCE and TARGET clients from cfg.
func NewAPIClients(cfg *config.Config, logger *slog.Logger) (*apiclient.Client, *apiclient.Client, error) {
	opts := []httpclient.Option{
		httpclient.WithTimeout(cfg.HTTP.Timeout),
		httpclient.WithMaxAttempts(cfg.HTTP.MaxAttempts),
		httpclient.WithBaseDelay(cfg.HTTP.BaseDelay),
	}

	source, err := apiclient.New(cfg.Source, logger, opts...)
	if err != nil {
		return nil, nil, err
	}

	target, err := apiclient.New(cfg.Target, logger, opts...)
	if err != nil {
		return nil, nil, err
	}

	return source, target, nil
}

// StatsOf reports the HTTP counters of each client keyed by instance name.
func StatsOf(clients ...*apiclient.Client) func() map[string]httpclient.Stats {
	return func() map[string]httpclient.Stats {
		stats := make(map[string]httpclient.Stats, len(clients))
		for _, c := range clients {
			stats[c.Name()] = c.Stats()
		}

		return stats
	}
}
