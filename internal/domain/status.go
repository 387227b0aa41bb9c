package domain

import "time"

// Service states reported by the orchestrator.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ServiceState is the reachability of one backend service.
type ServiceState struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Port   int    `json:"port,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Online reports whether the service answered.
func (s ServiceState) Online() bool {
	return s.Status == StatusOnline
}

// ConnectionStatus is the last known state of all backend services.
type ConnectionStatus struct {
	Orchestrator ServiceState `json:"orchestrator"`
	SmartChem    ServiceState `json:"smartchem"`
	BioNeMo      ServiceState `json:"bionemo"`
	CheckedAt    time.Time    `json:"checked_at"`
}
