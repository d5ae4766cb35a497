// Package logging provides subsystem-tagged structured logging for the
// autograder service, backed by log/slog.
//
// All components log through the package-level helpers, naming their
// subsystem as the first argument:
//
//	logging.Info("SandboxPool", "Provisioned container for %s", language)
//	logging.Error("Pipeline", err, "Stage %s failed", tag)
//
// Output goes through a single slog text handler configured by Init. Tests
// and the serve-mode event buffer can additionally install a capture channel
// with InitWithCapture to observe entries programmatically.
package logging
