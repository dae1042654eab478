package status

import (
	"fmt"
)

// Formatter defines the messages a deploy run writes to its Output
type Formatter interface {
	// Deploying is appended before a file upload, the result follows on the same line
	Deploying(file, destination string) string
	// Result formats the outcome of a file upload or an operation
	Result(err error) string
	Canceled() string

	// Operation is appended before a target operation runs, the result follows on the same line
	Operation(event, name string) string
	CanceledByOperation(target string) string

	Start(target string) string
	Finished(target string) string
	FinishedWithErrors(target string, err error) string

	Progress(current, total int) string
}

// DefaultFormatter provides the plain text messages
type DefaultFormatter struct{}

// NewDefaultFormatter creates a new DefaultFormatter
func NewDefaultFormatter() *DefaultFormatter {
	return &DefaultFormatter{}
}

// Deploying implements Formatter
func (f *DefaultFormatter) Deploying(file, destination string) string {
	return fmt.Sprintf("Deploying file '%s' to '%s' ...", file, destination)
}

// Result implements Formatter
func (f *DefaultFormatter) Result(err error) string {
	if err != nil {
		return fmt.Sprintf("[Error: %v]", err)
	}
	return "[OK]"
}

// Canceled implements Formatter
func (f *DefaultFormatter) Canceled() string {
	return "[Canceled]"
}

// Operation implements Formatter
func (f *DefaultFormatter) Operation(event, name string) string {
	switch event {
	case "prepare":
		return fmt.Sprintf("Running operation '%s' for preparation ... ", name)
	case "beforeDeploy":
		return fmt.Sprintf("Running operation '%s' before deploy ... ", name)
	case "deployed":
		return fmt.Sprintf("Running operation '%s' after deployed ... ", name)
	default:
		return fmt.Sprintf("Running operation '%s' ... ", name)
	}
}

// CanceledByOperation implements Formatter
func (f *DefaultFormatter) CanceledByOperation(target string) string {
	return fmt.Sprintf("Deploying files to '%s' has been canceled by an operation.", target)
}

// Start implements Formatter
func (f *DefaultFormatter) Start(target string) string {
	return fmt.Sprintf("🚀 Start deploying files to '%s' ...", target)
}

// Finished implements Formatter
func (f *DefaultFormatter) Finished(target string) string {
	return fmt.Sprintf("✅ Deploying files to '%s' has been finished.", target)
}

// FinishedWithErrors implements Formatter
func (f *DefaultFormatter) FinishedWithErrors(target string, err error) string {
	return fmt.Sprintf("❌ [ERROR] Deploying files to '%s' failed: %v", target, err)
}

// Progress formats a progress message with percentage
func (f *DefaultFormatter) Progress(current, total int) string {
	var percentage float64
	if total == 0 {
		percentage = 0
		if current > 0 {
			percentage = 100
		}
	} else {
		percentage = float64(current) / float64(total) * 100
	}

	if current >= total {
		return fmt.Sprintf("✅ Progress: %d/%d (%.0f%%)", current, total, percentage)
	}
	return fmt.Sprintf("⏳ Progress: %d/%d (%.0f%%)", current, total, percentage)
}
