package logic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/idelchi/modelseal/internal/config"
	"github.com/idelchi/modelseal/internal/license"
)

// MetricsPath serves the authority metrics.
const MetricsPath = "/metrics"

// RunFingerprint prints the device descriptor and fingerprint of this machine.
func RunFingerprint(ctx context.Context, probe license.Probe, out io.Writer) error {
	device, err := probe.Device(ctx)
	if err != nil {
		return fmt.Errorf("probing device: %w", err)
	}

	fmt.Fprintf(out, "MAC:         %s\n", device.MAC)
	fmt.Fprintf(out, "Hardware:    %s\n", device.Hardware)
	fmt.Fprintf(out, "Fingerprint: %s\n", device.Fingerprint())

	return nil
}

// RunRequestKey performs one key exchange and prints the recovered key.
func RunRequestKey(
	ctx context.Context,
	cfg *config.Config,
	logger *logrus.Logger,
	out io.Writer,
	opts ...license.ClientOption,
) error {
	client, err := NewLicenseClient(cfg, logger, opts...)
	if err != nil {
		return err
	}

	key, err := client.RequestKey(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, key)

	return nil
}

// NewAuthorityHandler loads the grants in cfg.Grants and returns the routes of the
// development authority, including the metrics endpoint backed by reg.
func NewAuthorityHandler(cfg *config.Config, logger *logrus.Logger, reg *prometheus.Registry) (http.Handler, error) {
	if cfg.Grants == "" {
		return nil, errors.New("serve requires --grants")
	}

	grants, err := license.LoadGrants(cfg.Grants)
	if err != nil {
		return nil, err
	}

	metrics, err := license.NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	authority, err := license.NewAuthority(grants, metrics, logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(license.VerifyKeyPath, authority)
	mux.Handle(MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	logger.WithField("grants", len(grants)).Info("grants loaded")

	return mux, nil
}

// RunServe runs the development authority on cfg.Listen until ctx is cancelled.
// TLS is used when both cfg.TLSCert and cfg.TLSKey are set.
func RunServe(ctx context.Context, cfg *config.Config, logger *logrus.Logger, out io.Writer) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, err := NewAuthorityHandler(cfg, logger, reg)
	if err != nil {
		return err
	}

	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return errors.New("--tls-cert and --tls-key must be set together")
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %q: %w", cfg.Listen, err)
	}

	const readHeaderTimeout = 10 * time.Second

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	scheme := "http"
	if cfg.TLSCert != "" {
		scheme = "https"
	}

	fmt.Fprintf(out, "Serving license authority on %s://%s%s\n", scheme, listener.Addr(), license.VerifyKeyPath)

	errs := make(chan error, 1)

	go func() {
		if scheme == "https" {
			errs <- server.ServeTLS(listener, cfg.TLSCert, cfg.TLSKey)
		} else {
			errs <- server.Serve(listener)
		}
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	const shutdownTimeout = 5 * time.Second

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down license authority")

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}

	return nil
}
