package pipeline

import (
	"errors"
	"fmt"

	"sitegen/internal/progress"
)

// Progress checkpoints. Pages share the range between pagesStart and pagesEnd.
const (
	headerStart = 5
	headerDone  = 12
	footerStart = 14
	footerDone  = 20
	pagesStart  = 20
	pagesEnd    = 90
	savingStart = 92
)

var ErrCancelled = errors.New("generation cancelled")

// PersistenceError is the only failure that ends a run in progress.Failed.
type PersistenceError struct {
	Stage string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Stage, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// pageSpan returns the start and done percentages of page i out of n.
func pageSpan(i, n int) (float64, float64) {
	if n < 1 {
		n = 1
	}
	span := float64(pagesEnd-pagesStart) / float64(n)
	base := pagesStart + float64(i)*span
	return base + span*0.1, base + span
}

func stageMessage(label string, fallback bool) string {
	if fallback {
		return "Using fallback content for " + label
	}
	return "Generated " + label
}

func stageState(stage string) progress.State {
	switch stage {
	case "header":
		return progress.GeneratingHeader
	case "footer":
		return progress.GeneratingFooter
	default:
		return progress.GeneratingPage
	}
}
