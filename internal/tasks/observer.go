package tasks

import (
	"time"

	"github.com/desertthunder/chartx/internal/models"
)

// Observer receives run measurements. Implementations must be safe for concurrent use by resolver workers.
type Observer interface {
	Extracted(source models.SourceTag, strategy string, entries int)
	Resolved(source models.SourceTag, c models.Confidence)
	Retried(op string)
	Added(source models.SourceTag, tracks int)
	BatchFailed(source models.SourceTag)
	Finished(source models.SourceTag, status models.RunStatus, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) Extracted(models.SourceTag, string, int) {}
func (nopObserver) Resolved(models.SourceTag, models.Confidence) {}
func (nopObserver) Retried(string) {}
func (nopObserver) Added(models.SourceTag, int) {}
func (nopObserver) BatchFailed(models.SourceTag) {}
func (nopObserver) Finished(models.SourceTag, models.RunStatus, time.Duration) {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
