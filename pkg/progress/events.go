// Package progress carries scan lifecycle events from the engine to
// subscribers such as websocket clients and the CLI.
package progress

import "fmt"

type EventType string

const (
	// EventStatus reports scan lifecycle transitions.
	EventStatus EventType = "status"
	// EventPhase announces the start of a pipeline phase.
	EventPhase EventType = "phase"
	// EventModuleEnd reports that one module finished, well or not.
	EventModuleEnd EventType = "module_end"
	// EventLog carries free-form progress messages.
	EventLog EventType = "log"
	// EventError surfaces module and engine failures.
	EventError EventType = "error"
)

// Event is a single progress notification. Only the fields relevant to the
// event type are set.
type Event struct {
	Type    EventType      `json:"type"`
	ScanID  string         `json:"scan_id,omitempty"`
	Status  string         `json:"status,omitempty"`
	Message string         `json:"message,omitempty"`
	Phase   string         `json:"phase,omitempty"`
	Modules []string       `json:"modules,omitempty"`
	Module  string         `json:"module,omitempty"`
	Error   string         `json:"error,omitempty"`
	Summary map[string]int `json:"summary,omitempty"`
}

// StatusEvent reports a scan status change.
func StatusEvent(scanID, status, message string) Event {
	return Event{Type: EventStatus, ScanID: scanID, Status: status, Message: message}
}

// CompletedEvent reports scan completion with per type finding counts.
func CompletedEvent(scanID, message string, summary map[string]int) Event {
	return Event{Type: EventStatus, ScanID: scanID, Status: "completed", Message: message, Summary: summary}
}

// PhaseEvent announces a phase and the modules it will run.
func PhaseEvent(scanID, phase string, modules []string) Event {
	return Event{Type: EventPhase, ScanID: scanID, Phase: phase, Modules: modules}
}

// ModuleCompletedEvent reports a module that finished cleanly.
func ModuleCompletedEvent(scanID, module string) Event {
	return Event{Type: EventModuleEnd, ScanID: scanID, Module: module, Status: "completed"}
}

// ModuleFailedEvent reports a module that returned an error or panicked.
func ModuleFailedEvent(scanID, module string, err error) Event {
	return Event{Type: EventModuleEnd, ScanID: scanID, Module: module, Status: "failed", Error: err.Error()}
}

// LogEvent carries a progress message.
func LogEvent(scanID, format string, args ...any) Event {
	return Event{Type: EventLog, ScanID: scanID, Message: fmt.Sprintf(format, args...)}
}

// ErrorEvent surfaces a failure without ending the scan.
func ErrorEvent(scanID, format string, args ...any) Event {
	return Event{Type: EventError, ScanID: scanID, Message: fmt.Sprintf(format, args...)}
}
