package controller

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/pkg/log"
)

// Transaction with the connected vehicle. Vehicle info is accepted once per
// session; only a reset, on disconnect, allows the next one.
const (
	txnNone      = "none"
	txnReadyRcvd = "ready"
	txnEntryRcvd = "entry-info"
	txnExitRcvd  = "exit-info"

	txnReady     = "ready"
	txnEntryInfo = "entry-info"
	txnExitInfo  = "exit-info"
	txnReset     = "reset"
)

func newTransactionFSM() *fsm.FSM {
	return fsm.NewFSM(
		txnNone,
		fsm.Events{
			{Name: txnReady, Src: []string{txnNone}, Dst: txnReadyRcvd},
			{Name: txnEntryInfo, Src: []string{txnNone, txnReadyRcvd}, Dst: txnEntryRcvd},
			{Name: txnExitInfo, Src: []string{txnNone, txnReadyRcvd}, Dst: txnExitRcvd},
			{Name: txnReset, Src: []string{txnNone, txnReadyRcvd, txnEntryRcvd, txnExitRcvd}, Dst: txnNone},
		},
		fsm.Callbacks{},
	)
}

type phase string

// Barrier phases.
const (
	phaseClosedState phase = "closed"
	phaseOpening     phase = "opening"
	phaseOpenState   phase = "open"
	phaseClosing     phase = "closing"

	phaseOpen   = "open"
	phaseClose  = "close"
	phaseOpened = "opened"
	phaseClosed = "closed"
)

func newPhaseFSM(g core.Gate, logger log.Logger) *fsm.FSM {
	return fsm.NewFSM(
		string(phaseClosedState),
		fsm.Events{
			{Name: phaseOpen, Src: []string{string(phaseClosedState), string(phaseClosing)}, Dst: string(phaseOpening)},
			{Name: phaseOpened, Src: []string{string(phaseOpening)}, Dst: string(phaseOpenState)},
			{Name: phaseClose, Src: []string{string(phaseOpenState), string(phaseOpening)}, Dst: string(phaseClosing)},
			{Name: phaseClosed, Src: []string{string(phaseClosing)}, Dst: string(phaseClosedState)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug("Barrier phase changed", "target", g.String(), "from", e.Src, "to", e.Dst)
			},
		},
	)
}
