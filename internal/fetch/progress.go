package fetch

// ProgressFunc receives download progress updates.
type ProgressFunc func(event ProgressEvent)

// ProgressEvent describes the current state of a download. BytesTotal is -1
// when the server declared no length, and Percent is then 0.
type ProgressEvent struct {
	AppKey     string
	Attempt    int
	BytesDone  int64
	BytesTotal int64
	Percent    float64
}

// progressTracker reports at most once per whole percent so large files do
// not flood the callback.
type progressTracker struct {
	fn      ProgressFunc
	appKey  string
	attempt int
	total   int64
	last    int
}

func newProgressTracker(fn ProgressFunc, appKey string, attempt int, total int64) *progressTracker {
	return &progressTracker{fn: fn, appKey: appKey, attempt: attempt, total: total, last: -1}
}

func (p *progressTracker) update(done int64) {
	if p.fn == nil {
		return
	}
	event := ProgressEvent{AppKey: p.appKey, Attempt: p.attempt, BytesDone: done, BytesTotal: p.total}
	if p.total > 0 {
		event.Percent = float64(done) * 100 / float64(p.total)
		pct := int(event.Percent)
		if pct == p.last {
			return
		}
		p.last = pct
	}
	p.fn(event)
}
