package common

import (
	"context"
	"fmt"
	"log/slog"
)

// DiagnosticKind classifies a reported problem by how the compiler recovers from it.
type DiagnosticKind int

const (
	// DiagnosticConfiguration covers missing bindings, missing entry points and conflicting
	// binding declarations. The affected pipeline or bind group is skipped.
	DiagnosticConfiguration DiagnosticKind = iota

	// DiagnosticData covers vertex layouts that overflow their stride and attribute data whose
	// element kind does not match the declared shader format. The draw is skipped.
	DiagnosticData

	// DiagnosticLifetime covers use of destroyed resources.
	DiagnosticLifetime

	// DiagnosticDevice covers device-level failures. These are fatal for the current submit.
	DiagnosticDevice
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagnosticConfiguration:
		return "configuration"
	case DiagnosticData:
		return "data"
	case DiagnosticLifetime:
		return "lifetime"
	case DiagnosticDevice:
		return "device"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", int(k))
	}
}

// Diagnostic is a single problem surfaced to the application.
type Diagnostic struct {
	// Kind classifies the problem.
	Kind DiagnosticKind
	// Subject is the label of the descriptor the problem relates to, if any.
	Subject string
	// Message is a human readable description.
	Message string
	// Err is the underlying error, suitable for errors.Is checks.
	Err error
}

func (d Diagnostic) String() string {
	if d.Subject == "" {
		return fmt.Sprintf("[%s] %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Kind, d.Subject, d.Message)
}

// Reporter receives diagnostics from the compiler.
type Reporter interface {
	// Report delivers one diagnostic. Implementations must not call back into the compiler.
	//
	// Parameters:
	//   - d: the diagnostic to deliver
	Report(d Diagnostic)
}

// ReporterFunc adapts a plain function to the Reporter interface.
type ReporterFunc func(d Diagnostic)

// Report calls f(d).
func (f ReporterFunc) Report(d Diagnostic) {
	f(d)
}

// LogReporter writes every diagnostic to the shared logger at warn level.
type LogReporter struct{}

// Report logs d through Logger().
func (LogReporter) Report(d Diagnostic) {
	level := slog.LevelWarn
	if d.Kind == DiagnosticDevice {
		level = slog.LevelError
	}
	Logger().Log(context.Background(), level, "[diagnostic] "+d.Message,
		slog.String("kind", d.Kind.String()),
		slog.String("subject", d.Subject),
		slog.Any("error", d.Err),
	)
}
