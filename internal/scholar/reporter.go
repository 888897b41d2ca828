package scholar

import (
	"time"

	"github.com/dmfell/scholarscrape/internal/progress"
)

// Reporter stamps progress events with run and author identity before
// emitting them. The zero value discards everything, so callers never
// need nil checks around instrumentation.
type Reporter struct {
	Emitter progress.Emitter
	RunID   [16]byte
	Author  string
}

func (r Reporter) emit(evt progress.Event) {
	if r.Emitter == nil {
		return
	}
	evt.RunID = r.RunID
	evt.TS = time.Now().UTC()
	if evt.Author == "" {
		evt.Author = r.Author
	}
	r.Emitter.Emit(evt)
}

// RunStart marks the beginning of a batch run.
func (r Reporter) RunStart(note string) {
	r.emit(progress.Event{Stage: progress.StageRunStart, Note: note})
}

// RunDone marks the end of a batch run.
func (r Reporter) RunDone(dur time.Duration) {
	r.emit(progress.Event{Stage: progress.StageRunDone, Dur: dur})
}

// AuthorStart marks the beginning of one author scrape.
func (r Reporter) AuthorStart() {
	r.emit(progress.Event{Stage: progress.StageAuthorStart})
}

// AuthorDone marks a successful author scrape with its publication count.
func (r Reporter) AuthorDone(count int, dur time.Duration) {
	r.emit(progress.Event{Stage: progress.StageAuthorDone, Count: int64(count), Dur: dur})
}

// AuthorError marks a failed author scrape.
func (r Reporter) AuthorError(err error, dur time.Duration) {
	evt := progress.Event{Stage: progress.StageAuthorError, Dur: dur}
	if err != nil {
		evt.Note = err.Error()
	}
	r.emit(evt)
}

// Profile reports how many publications the profile listing yielded.
func (r Reporter) Profile(count int) {
	r.emit(progress.Event{Stage: progress.StageProfile, Count: int64(count)})
}

// FetchDone reports one completed target fetch on the given tier.
func (r Reporter) FetchDone(tier Tier, err error, dur time.Duration) {
	outcome := progress.OutcomeOK
	note := ""
	if err != nil {
		outcome = progress.OutcomeError
		note = err.Error()
	}
	r.emit(progress.Event{
		Stage:   progress.StageFetchDone,
		Tier:    string(tier),
		Outcome: outcome,
		Dur:     dur,
		Note:    note,
	})
}

// Escalation reports targets handed to the next tier.
func (r Reporter) Escalation(tier Tier, remaining int) {
	r.emit(progress.Event{
		Stage: progress.StageEscalation,
		Tier:  string(tier),
		Count: int64(remaining),
	})
}

// Blocked reports a classified block on the given URL.
func (r Reporter) Blocked(kind BlockKind, url string) {
	r.emit(progress.Event{
		Stage: progress.StageBlocked,
		Block: kind.String(),
		URL:   url,
	})
}

// Pause reports a breaker-driven pause.
func (r Reporter) Pause(d time.Duration) {
	r.emit(progress.Event{Stage: progress.StagePause, Dur: d})
}

// WithAuthor returns a copy of the reporter scoped to the given author.
func (r Reporter) WithAuthor(author string) Reporter {
	r.Author = author
	return r
}
