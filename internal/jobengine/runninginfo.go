package jobengine

import (
	"math"
	"time"
)

// performanceWindow is the rolling window the three running-info EMAs
// smooth over.
const performanceWindow = 600 * time.Second

// ema is a single exponential moving average over performanceWindow,
// re-derived from the elapsed time between samples rather than a fixed
// smoothing constant, so a slow sampler doesn't over-weight stale data.
type ema struct {
	value float64
	last time.Time
	set bool
}

func (e *ema) sample(rate float64, now time.Time) {
	if !e.set {
		e.value = rate
		e.last = now
		e.set = true
		return
	}
	elapsed := now.Sub(e.last)
	if elapsed <= 0 {
		return
	}
	alpha := 1 - math.Exp(-elapsed.Seconds()/performanceWindow.Seconds())
	e.value += alpha * (rate - e.value)
	e.last = now
}

// RunningInfo aggregates a job's in-progress run statistics: three rolling
// throughput averages, derived ETA, and the last error seen.
type RunningInfo struct {
	entriesPerSecond ema
	bytesPerSecond ema
	storageBytesPerSecond ema

	EntriesDone int64
	EntriesTotal int64
	BytesDone int64
	BytesTotal int64
	StorageBytesDone int64

	LastError string
	LastExecuted time.Time
}

// Sample records a progress update at now, updating the three EMAs from
// the delta against the previous totals.
func (r *RunningInfo) Sample(entriesDone, bytesDone, storageBytesDone int64, now time.Time) {
	dEntries := entriesDone - r.EntriesDone
	dBytes := bytesDone - r.BytesDone
	dStorage := storageBytesDone - r.StorageBytesDone

	var elapsed float64 = 1
	if !r.entriesPerSecond.last.IsZero() {
		if e := now.Sub(r.entriesPerSecond.last).Seconds(); e > 0 {
			elapsed = e
		}
	}

	r.entriesPerSecond.sample(float64(dEntries)/elapsed, now)
	r.bytesPerSecond.sample(float64(dBytes)/elapsed, now)
	r.storageBytesPerSecond.sample(float64(dStorage)/elapsed, now)

	r.EntriesDone = entriesDone
	r.BytesDone = bytesDone
	r.StorageBytesDone = storageBytesDone
}

// EntriesPerSecond returns the current smoothed entries/s rate.
func (r *RunningInfo) EntriesPerSecond() float64 { return r.entriesPerSecond.value }

// BytesPerSecond returns the current smoothed bytes/s rate.
func (r *RunningInfo) BytesPerSecond() float64 { return r.bytesPerSecond.value }

// StorageBytesPerSecond returns the current smoothed storage-bytes/s rate.
func (r *RunningInfo) StorageBytesPerSecond() float64 { return r.storageBytesPerSecond.value }

// EstimatedRestTime derives a remaining-time estimate from the bytes/s
// filter and the job's total expected work; zero if the rate is unknown or
// the job is already past its total.
func (r *RunningInfo) EstimatedRestTime() time.Duration {
	rate := r.bytesPerSecond.value
	if rate <= 0 {
		return 0
	}
	remaining := r.BytesTotal - r.BytesDone
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/rate) * time.Second
}

// Reset clears running-info back to its zero value.
func (r *RunningInfo) Reset() {
	*r = RunningInfo{}
}
