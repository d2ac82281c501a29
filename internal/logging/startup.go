// Package logging writes the startup summary of regman's long-running commands.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nicholas-fedor/regman/internal/util"
)

// StartupInfo describes what a long-running command is about to do.
type StartupInfo struct {
	Version    string    // regman version.
	DataDir    string    // Storage directory.
	Registries int       // Number of configured registries.
	NextRun    time.Time // First scheduled refresh, zero when not scheduling.
	APIAddr    string    // HTTP API listen address, empty when not serving.
	Metrics    bool      // Whether /v1/metrics is exposed.
}

// WriteStartupMessage logs the startup summary unless --no-startup-message is set.
//
// Parameters:
//   - c: The cobra.Command instance, providing access to --no-startup-message.
//   - info: The summary to log.
func WriteStartupMessage(c *cobra.Command, info StartupInfo) {
	if noStartupMessage, _ := c.Flags().GetBool("no-startup-message"); noStartupMessage {
		return
	}

	log := logrus.NewEntry(logrus.StandardLogger())

	log.WithField("data_dir", info.DataDir).Info("regman ", info.Version)
	LogRegistryInfo(log, info.Registries)
	LogScheduleInfo(log, info.NextRun)

	if info.APIAddr != "" {
		log.Info("The HTTP API is enabled at " + info.APIAddr + ".")

		if info.Metrics {
			log.Info("Prometheus metrics are exposed at /v1/metrics.")
		}
	}

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		log.Warn("Trace-level logging enabled: request details are logged with credentials masked")
	}
}

// LogRegistryInfo logs how many registries are configured.
func LogRegistryInfo(log *logrus.Entry, count int) {
	switch count {
	case 0:
		log.Warn("No registries configured; add one with 'regman registry add'")
	case 1:
		log.Info("Managing 1 registry")
	default:
		log.Infof("Managing %d registries", count)
	}
}

// LogScheduleInfo logs the next scheduled refresh, if any.
func LogScheduleInfo(log *logrus.Entry, sched time.Time) {
	if sched.IsZero() {
		log.Debug("Periodic refresh is not enabled.")

		return
	}

	log.Info("Next scheduled run: " + sched.Format("2006-01-02 15:04:05 -0700 MST"))
	log.Info("Note that the next refresh will be performed in " + util.FormatDuration(time.Until(sched)))
}
