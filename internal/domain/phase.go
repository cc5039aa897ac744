package domain

import (
	"fmt"
	"strings"
)

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseLoading      Phase = "loading"
	PhaseReady        Phase = "ready"
	PhasePlaying      Phase = "playing"
	PhasePaused       Phase = "paused"
	PhaseDisconnected Phase = "disconnected"
)

// browser clients report media element events instead of phase names
var phaseAliases = map[string]Phase{
	"idle":         PhaseIdle,
	"init":         PhaseIdle,
	"loading":      PhaseLoading,
	"onload":       PhaseLoading,
	"ready":        PhaseReady,
	"oncanplay":    PhaseReady,
	"playing":      PhasePlaying,
	"onplaying":    PhasePlaying,
	"paused":       PhasePaused,
	"onpause":      PhasePaused,
	"disconnected": PhaseDisconnected,
	"close":        PhaseDisconnected,
}

func ParsePhase(s string) (Phase, error) {
	if p, ok := phaseAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p, nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidPhase, s)
}

func (p Phase) String() string {
	return string(p)
}
