package service

import (
	"time"

	"github.com/btorressz/idxflow-orderflow/internal/domain/model"
)

// advanceEpoch rolls g forward by every whole epoch that has elapsed at now
// and returns how many epochs were crossed. Calling it again with the same
// now is a no-op.
func advanceEpoch(g *model.GlobalState, now time.Time) uint64 {
	if g.EpochDuration <= 0 {
		return 0
	}
	elapsed := now.Sub(g.CurrentEpochStart)
	if elapsed < g.EpochDuration {
		return 0
	}

	k := elapsed / g.EpochDuration
	g.CurrentEpochStart = g.CurrentEpochStart.Add(k * g.EpochDuration)
	g.CurrentEpoch += uint64(k)
	return uint64(k)
}

// syncAccountEpoch lazily resets the volume window of a when it was last
// touched in an earlier epoch. Volume of the epoch right before the current
// one is kept as PreviousVolume so the just-closed epoch can still be claimed.
func syncAccountEpoch(a *model.UserAccount, epoch uint64) {
	if a.VolumeEpoch >= epoch {
		return
	}
	if a.VolumeEpoch+1 == epoch {
		a.PreviousVolume = a.RecordedVolume
	} else {
		a.PreviousVolume = 0
	}
	a.RecordedVolume = 0
	a.VolumeEpoch = epoch
}
