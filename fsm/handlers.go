package fsm

import "github.com/golang/glog"

// OutHandler is the host's transport sink: the FSM hands it a fully
// serialized BGP message and expects it written out synchronously.
// Returning false is treated as a transport failure and drives the FSM to
// Idle.
type OutHandler interface {
	HandleOut(b []byte) bool
}

// LogHandler receives the FSM's diagnostic trace. Stdout carries normal
// per-message trace (only emitted when Config.Verbose is set); Stderr
// carries warnings and errors, always emitted.
type LogHandler interface {
	Stdout(s string)
	Stderr(s string)
}

// GlogHandler is the default LogHandler, bridging to glog.
type GlogHandler struct{}

// NewGlogHandler creates a GlogHandler.
func NewGlogHandler() *GlogHandler {
	return &GlogHandler{}
}

// Stdout logs s at glog.Info.
func (GlogHandler) Stdout(s string) {
	glog.Info(s)
}

// Stderr logs s at glog.Warning.
func (GlogHandler) Stderr(s string) {
	glog.Warning(s)
}
