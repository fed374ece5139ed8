// Command scope-exporter dials one or more LeCroy scopes, keeps their
// links alive with the background supervisor, and serves Prometheus
// metrics for all of them, in the spirit of the teacher's
// cmd/exporter_example1/2 daemons.
package main

import (
	"context"
	"flag"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/epics-modules/lecroyvicp"
	"github.com/epics-modules/lecroyvicp/metrics"
)

func main() {
	ips := flag.String("ips", "", "comma-separated list of scope IP addresses")
	channels := flag.Int("channels", 4, "analog channel count for every listed scope (2 or 4)")
	listen := flag.String("listen", ":9469", "address to serve /metrics on")
	flag.Parse()

	if *ips == "" {
		logrus.Fatal("scope-exporter: -ips is required")
	}

	collector := metrics.NewSessionCollector([]string{"instrument", "address"})
	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		logrus.Fatalf("scope-exporter: register collector: %v", err)
	}

	cfg := vicp.DefaultConfig()
	ctx := context.Background()

	for _, ip := range strings.Split(*ips, ",") {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}

		session, err := vicp.Dial(ip, *channels, cfg, nil)
		if err != nil {
			logrus.WithError(err).Warnf("scope-exporter: cannot create a session for %s, skipping it", ip)
			continue
		}

		collector.Add(session, []string{session.Model(), ip})
		session.StartSupervisor(ctx, cfg.RecoverInterval)
		logrus.Infof("scope-exporter: tracking %s (session %s)", ip, session.ID())
	}

	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logrus.Infof("scope-exporter: serving metrics on %s", *listen)
	logrus.Fatal(http.ListenAndServe(*listen, nil))
}
