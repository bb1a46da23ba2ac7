package tls

import (
	"crypto/x509"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ExpiryRecorder receives the remaining lifetime of the served certificate.
type ExpiryRecorder interface {
	SetCertificateExpiryDays(days float64)
}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// Schedule is a standard cron expression or descriptor ("@every 12h").
	Schedule string

	// WarnDays logs a warning when fewer days remain.
	WarnDays int
}

// Monitor periodically reports how long the served certificate remains
// valid. It never replaces the certificate.
type Monitor struct {
	leaf     *x509.Certificate
	config   MonitorConfig
	recorder ExpiryRecorder
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewMonitor creates a monitor for leaf. recorder may be nil.
func NewMonitor(leaf *x509.Certificate, cfg MonitorConfig, recorder ExpiryRecorder, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		leaf:     leaf,
		config:   cfg,
		recorder: recorder,
		now:      time.Now,
		cron:     cron.New(),
		logger:   logger.With("component", "cert-monitor"),
	}
}

// Start runs one check immediately, then on the schedule.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	if _, err := cron.ParseStandard(m.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", m.config.Schedule, err)
	}
	if _, err := m.cron.AddFunc(m.config.Schedule, func() { m.Check() }); err != nil {
		return fmt.Errorf("failed to schedule certificate check: %w", err)
	}

	m.logCertificateInfo()
	m.Check()

	m.cron.Start()
	m.running = true

	m.logger.Info("certificate monitor started", "schedule", m.config.Schedule, "warn_days", m.config.WarnDays)
	return nil
}

// Stop stops the schedule and waits for a running check to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	<-m.cron.Stop().Done()
	m.running = false
}

// NextRun returns the next scheduled check, or nil when not running.
func (m *Monitor) NextRun() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.cron.Entries()
	if !m.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

// Check computes the remaining days, records them and logs a warning or
// an error when the certificate is close to or past expiry. It returns the
// remaining whole days.
func (m *Monitor) Check() int {
	now := m.now()
	days, warning := CheckCertificateExpiration(m.leaf, now, m.config.WarnDays)

	if m.recorder != nil {
		m.recorder.SetCertificateExpiryDays(m.leaf.NotAfter.Sub(now).Hours() / 24)
	}

	switch {
	case !now.Before(m.leaf.NotAfter):
		m.logger.Error("served certificate has expired", "not_after", m.leaf.NotAfter.Format(time.RFC3339))
	case warning != "":
		m.logger.Warn(warning, "days_until_expiry", days)
	default:
		m.logger.Debug("certificate expiry checked", "days_until_expiry", days)
	}

	return days
}

func (m *Monitor) logCertificateInfo() {
	info := ExtractCertificateInfo(m.leaf)
	m.logger.Info("serving certificate",
		"subject", info.Subject,
		"issuer", info.Issuer,
		"serial", info.SerialNumber,
		"not_after", info.NotAfter.Format(time.RFC3339),
		"dns_names", info.DNSNames,
	)
}
