package goe

import (
	"context"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Retrieval stages
const (
	StageIdle        = "idle"
	StageDiscovering = "discovering"
	StageTicketing   = "ticketing"
	StagePolling     = "polling"
	StageFinished    = "finished"
	StageFailed      = "failed"
)

const (
	eventDiscover = "discover"
	eventTicket   = "ticket"
	eventPoll     = "poll"
	eventFinish   = "finish"
	eventFail     = "fail"
)

// stageMachine tracks which protocol step a retrieval is in. Each
// FetchSessions call owns one; it is never shared between calls.
type stageMachine struct {
	fsm *fsm.FSM
}

func newStageMachine(logger *zap.Logger) *stageMachine {
	return &stageMachine{
		fsm: fsm.NewFSM(
			StageIdle,
			fsm.Events{
				{Name: eventDiscover, Src: []string{StageIdle}, Dst: StageDiscovering},
				{Name: eventTicket, Src: []string{StageDiscovering}, Dst: StageTicketing},
				{Name: eventPoll, Src: []string{StageTicketing}, Dst: StagePolling},
				{Name: eventFinish, Src: []string{StagePolling}, Dst: StageFinished},
				{Name: eventFail, Src: []string{StageIdle, StageDiscovering, StageTicketing, StagePolling}, Dst: StageFailed},
			},
			fsm.Callbacks{
				"after_event": func(_ context.Context, e *fsm.Event) {
					logger.Debug("retrieval stage changed",
						zap.String("from", e.Src),
						zap.String("to", e.Dst))
				},
			},
		),
	}
}

func (m *stageMachine) Current() string {
	return m.fsm.Current()
}

// advance fires event. The transition table is fixed, so an error here is a
// bug in the client and callers only log it.
func (m *stageMachine) advance(event string) error {
	return m.fsm.Event(context.Background(), event)
}
