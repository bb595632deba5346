// Package timer provides the segment timer that tracks where playback is within a workout plan.
package timer

import (
	"github.com/cockroachdb/errors"
	"github.com/osa030/spinbox/internal/domain/plan"
	zlog "github.com/rs/zerolog/log"
)

// Errors
var (
	ErrNoPlan        = errors.New("no plan loaded")
	ErrOutOfRange    = errors.New("index out of range")
	ErrNoActiveMusic = errors.New("no music configured for segment")
	ErrPlanComplete  = errors.New("plan is complete")
)

const (
	// AutoSubSegment selects the first sub-segment when the segment has any.
	AutoSubSegment = -2
	// NoSubSegment marks a cursor without an active sub-segment.
	NoSubSegment = -1
	// FadeSeconds is the length of the linear fade-out ramp.
	FadeSeconds = 3
)

// Cadence is the tick source driving the timer. Navigation suspends it
// for the duration of a transition.
type Cadence interface {
	Suspend()
	Resume()
}

type nopCadence struct{}

func (nopCadence) Suspend() {}
func (nopCadence) Resume()  {}

// Cursor is the mutable playback position.
type Cursor struct {
	SegmentIndex            int
	SubSegmentIndex         int
	SegmentTimeRemaining    int
	SubSegmentTimeRemaining int
	SongElapsedSeconds      int
	Playing                 bool
}

// Timer is the segment timer state machine. It is not safe for concurrent use;
// the host serializes Tick and navigation calls.
type Timer struct {
	plan    *plan.Plan
	cursor  Cursor
	cadence Cadence

	suspended   bool
	songStopped bool // stop guidance already reported for the current song end
	complete    bool
}

// New creates a timer. A nil cadence is allowed.
func New(cadence Cadence) *Timer {
	if cadence == nil {
		cadence = nopCadence{}
	}
	return &Timer{
		cadence: cadence,
		cursor:  Cursor{SubSegmentIndex: NoSubSegment},
	}
}

// LoadPlan validates p, resets the cursor and activates the first segment.
func (t *Timer) LoadPlan(p *plan.Plan) ([]Event, error) {
	if p == nil {
		return nil, ErrNoPlan
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	t.plan = p
	t.cursor = Cursor{SubSegmentIndex: NoSubSegment}
	t.complete = false
	return t.LoadSegment(0, AutoSubSegment)
}

// Plan returns the loaded plan.
func (t *Timer) Plan() *plan.Plan {
	return t.plan
}

// Cursor returns a copy of the cursor.
func (t *Timer) Cursor() Cursor {
	return t.cursor
}

// Playing reports whether the timer is playing.
func (t *Timer) Playing() bool {
	return t.cursor.Playing
}

// Complete reports whether the last segment has ended.
func (t *Timer) Complete() bool {
	return t.complete
}

// LoadSegment activates the segment at index. subIndex may be AutoSubSegment.
// Playing state is preserved.
func (t *Timer) LoadSegment(index, subIndex int) ([]Event, error) {
	if t.plan == nil {
		return nil, ErrNoPlan
	}
	if index < 0 || index >= len(t.plan.Segments) {
		return nil, errors.Wrapf(ErrOutOfRange, "segment %d", index)
	}
	seg := &t.plan.Segments[index]

	sub := NoSubSegment
	if seg.HasSubSegments() {
		switch {
		case subIndex == AutoSubSegment || subIndex == NoSubSegment:
			sub = 0
		case subIndex < 0 || subIndex >= len(seg.SubSegments):
			return nil, errors.Wrapf(ErrOutOfRange, "sub-segment %d of segment %d", subIndex, index)
		default:
			sub = subIndex
		}
	} else if subIndex >= 0 {
		return nil, errors.Wrapf(ErrOutOfRange, "segment %d has no sub-segments", index)
	}

	var events []Event
	if seg.HasDurationMismatch() {
		zlog.Warn().
			Str("segment", seg.Name).
			Int("declared", seg.DurationSeconds).
			Int("computed", seg.SubSegmentTotal()).
			Msg("sub-segment durations do not match segment duration")
		events = append(events, Event{
			Type:            EventDurationMismatch,
			SegmentIndex:    index,
			SubSegmentIndex: sub,
			Mismatch: &DurationMismatch{
				SegmentName: seg.Name,
				Declared:    seg.DurationSeconds,
				Computed:    seg.SubSegmentTotal(),
			},
		})
	}

	t.cursor.SegmentIndex = index
	t.cursor.SubSegmentIndex = sub
	if sub == NoSubSegment {
		t.cursor.SubSegmentTimeRemaining = 0
		t.cursor.SegmentTimeRemaining = seg.EffectiveDuration()
	} else {
		t.cursor.SubSegmentTimeRemaining = seg.SubSegments[sub].DurationSeconds
		t.cursor.SegmentTimeRemaining = remainingFrom(seg, sub)
	}
	t.cursor.SongElapsedSeconds = seg.MusicStart() + t.Elapsed()
	t.songStopped = false
	t.complete = false

	ev := Event{
		Type:            EventSegmentActivated,
		SegmentIndex:    index,
		SubSegmentIndex: sub,
		Current:         t.currentActivity(),
		Next:            t.nextActivity(),
	}
	if _, ok := seg.Music(); ok {
		ev.MusicPositionMs = t.cursor.SongElapsedSeconds * 1000
	}
	events = append(events, ev)

	zlog.Debug().
		Int("segment", index).
		Int("sub_segment", sub).
		Int("remaining", t.cursor.SegmentTimeRemaining).
		Msg("segment activated")

	return events, nil
}

// Tick advances the timer by one second. It is a no-op unless playing.
func (t *Timer) Tick() []Event {
	if t.plan == nil || !t.cursor.Playing || t.suspended || t.complete {
		return nil
	}
	seg := &t.plan.Segments[t.cursor.SegmentIndex]
	var events []Event

	t.cursor.SegmentTimeRemaining--
	t.cursor.SongElapsedSeconds++

	if t.cursor.SubSegmentIndex != NoSubSegment {
		t.cursor.SubSegmentTimeRemaining--
		next := t.cursor.SubSegmentIndex + 1
		if t.cursor.SubSegmentTimeRemaining <= 0 && next < len(seg.SubSegments) {
			t.cursor.SubSegmentIndex = next
			t.cursor.SubSegmentTimeRemaining = seg.SubSegments[next].DurationSeconds
			events = append(events, t.subSegmentTransition(false))
		}
	}

	remaining := t.cursor.SegmentTimeRemaining
	if t.cursor.SubSegmentIndex != NoSubSegment {
		remaining = t.cursor.SubSegmentTimeRemaining
	}
	events = append(events, Event{
		Type:             EventCountdownTick,
		SegmentIndex:     t.cursor.SegmentIndex,
		SubSegmentIndex:  t.cursor.SubSegmentIndex,
		SecondsRemaining: max(remaining, 0),
	})

	if ev, ok := t.volumeGuidance(seg); ok {
		events = append(events, ev)
	}

	if t.cursor.SegmentTimeRemaining <= 0 {
		hasNext := t.cursor.SegmentIndex+1 < len(t.plan.Segments)
		events = append(events, Event{
			Type:            EventSegmentBoundary,
			SegmentIndex:    t.cursor.SegmentIndex,
			SubSegmentIndex: t.cursor.SubSegmentIndex,
			HasNext:         hasNext,
		})
		if !hasNext {
			t.cursor.Playing = false
			t.complete = true
			zlog.Info().Str("theme", t.plan.Theme).Msg("plan complete")
			return append(events, Event{
				Type:            EventPlanComplete,
				SegmentIndex:    t.cursor.SegmentIndex,
				SubSegmentIndex: t.cursor.SubSegmentIndex,
			})
		}
		loaded, err := t.LoadSegment(t.cursor.SegmentIndex+1, AutoSubSegment)
		if err != nil {
			// Unreachable: the index was checked above.
			zlog.Error().Err(err).Msg("failed to load next segment")
		}
		events = append(events, loaded...)
	}

	events = append(events, Event{
		Type:            EventProgressUpdate,
		SegmentIndex:    t.cursor.SegmentIndex,
		SubSegmentIndex: t.cursor.SubSegmentIndex,
		Fraction:        t.progress(),
	})

	return events
}

func (t *Timer) volumeGuidance(seg *plan.Segment) (Event, bool) {
	m, ok := seg.Music()
	if !ok {
		return Event{}, false
	}
	ev := Event{
		Type:            EventVolumeGuidance,
		SegmentIndex:    t.cursor.SegmentIndex,
		SubSegmentIndex: t.cursor.SubSegmentIndex,
	}

	if m.EndSeconds != nil {
		until := *m.EndSeconds - t.cursor.SongElapsedSeconds
		switch {
		case until <= 0:
			if t.songStopped {
				return Event{}, false
			}
			t.songStopped = true
			ev.StopMusic = true
			ev.Volume = 1
			return ev, true
		case until <= FadeSeconds && m.FadeOut:
			ev.Volume = float64(until) / FadeSeconds
			return ev, true
		}
		return Event{}, false
	}

	if m.FadeOut && t.cursor.SegmentTimeRemaining > 0 && t.cursor.SegmentTimeRemaining <= FadeSeconds {
		ev.Volume = float64(t.cursor.SegmentTimeRemaining) / FadeSeconds
		return ev, true
	}
	return Event{}, false
}

// NextSegment moves forward by one sub-segment when possible, else by one segment.
func (t *Timer) NextSegment() ([]Event, error) {
	if t.plan == nil {
		return nil, ErrNoPlan
	}
	seg := &t.plan.Segments[t.cursor.SegmentIndex]
	sub := t.cursor.SubSegmentIndex

	switch {
	case sub != NoSubSegment && sub+1 < len(seg.SubSegments):
		resume := t.suspend()
		defer resume()
		t.moveToSubSegment(sub + 1)
		return []Event{t.subSegmentTransition(true)}, nil
	case t.cursor.SegmentIndex+1 < len(t.plan.Segments):
		resume := t.suspend()
		defer resume()
		return t.LoadSegment(t.cursor.SegmentIndex+1, AutoSubSegment)
	default:
		return nil, errors.Wrap(ErrOutOfRange, "already at last segment")
	}
}

// PreviousSegment moves back by one sub-segment when possible, else to the
// last sub-segment of the previous segment.
func (t *Timer) PreviousSegment() ([]Event, error) {
	if t.plan == nil {
		return nil, ErrNoPlan
	}
	sub := t.cursor.SubSegmentIndex

	switch {
	case sub > 0:
		resume := t.suspend()
		defer resume()
		t.moveToSubSegment(sub - 1)
		return []Event{t.subSegmentTransition(true)}, nil
	case t.cursor.SegmentIndex > 0:
		prev := &t.plan.Segments[t.cursor.SegmentIndex-1]
		last := AutoSubSegment
		if prev.HasSubSegments() {
			last = len(prev.SubSegments) - 1
		}
		resume := t.suspend()
		defer resume()
		return t.LoadSegment(t.cursor.SegmentIndex-1, last)
	default:
		return nil, errors.Wrap(ErrOutOfRange, "already at first segment")
	}
}

// JumpToSegment activates the segment at index, preserving playing state.
func (t *Timer) JumpToSegment(index int) ([]Event, error) {
	if t.plan == nil {
		return nil, ErrNoPlan
	}
	if index < 0 || index >= len(t.plan.Segments) {
		return nil, errors.Wrapf(ErrOutOfRange, "segment %d", index)
	}
	resume := t.suspend()
	defer resume()
	return t.LoadSegment(index, AutoSubSegment)
}

// SeekToElapsed moves the cursor to the given elapsed seconds within the
// current segment, clamped to the segment's effective duration. The active
// sub-segment is re-resolved from the new position.
func (t *Timer) SeekToElapsed(elapsed int) ([]Event, error) {
	if t.plan == nil {
		return nil, ErrNoPlan
	}
	seg := &t.plan.Segments[t.cursor.SegmentIndex]
	duration := seg.EffectiveDuration()
	elapsed = min(max(elapsed, 0), duration)

	t.cursor.SegmentTimeRemaining = duration - elapsed
	t.cursor.SongElapsedSeconds = seg.MusicStart() + elapsed
	t.songStopped = false
	t.complete = false

	var events []Event
	if seg.HasSubSegments() {
		sub, subRemaining := locateSubSegment(seg, elapsed)
		changed := sub != t.cursor.SubSegmentIndex
		t.cursor.SubSegmentIndex = sub
		t.cursor.SubSegmentTimeRemaining = subRemaining
		if changed {
			events = append(events, t.subSegmentTransition(false))
		}
	}

	ev := Event{
		Type:            EventPositionChanged,
		SegmentIndex:    t.cursor.SegmentIndex,
		SubSegmentIndex: t.cursor.SubSegmentIndex,
	}
	if duration > 0 {
		ev.Fraction = float64(elapsed) / float64(duration)
	}
	if _, ok := seg.Music(); ok {
		ev.Seek = true
		ev.MusicPositionMs = t.cursor.SongElapsedSeconds * 1000
	}
	return append(events, ev), nil
}

// SkipTime seeks by delta seconds relative to the current elapsed time.
func (t *Timer) SkipTime(delta int) ([]Event, error) {
	if t.plan == nil {
		return nil, ErrNoPlan
	}
	duration := t.plan.Segments[t.cursor.SegmentIndex].EffectiveDuration()
	delta = min(max(delta, -duration), duration)
	return t.SeekToElapsed(t.Elapsed() + delta)
}

// SetPlaying sets the playing flag. Starting a completed plan fails with ErrPlanComplete.
func (t *Timer) SetPlaying(playing bool) ([]Event, error) {
	if t.plan == nil {
		return nil, ErrNoPlan
	}
	if playing && t.complete {
		return nil, ErrPlanComplete
	}
	if t.cursor.Playing == playing {
		return nil, nil
	}
	t.cursor.Playing = playing
	return []Event{{
		Type:            EventPlayStateChanged,
		SegmentIndex:    t.cursor.SegmentIndex,
		SubSegmentIndex: t.cursor.SubSegmentIndex,
		Playing:         playing,
	}}, nil
}

// Elapsed returns the seconds elapsed in the current segment.
func (t *Timer) Elapsed() int {
	if t.plan == nil {
		return 0
	}
	seg := &t.plan.Segments[t.cursor.SegmentIndex]
	return seg.EffectiveDuration() - t.cursor.SegmentTimeRemaining
}

// CurrentActivity returns a snapshot of the active segment or sub-segment.
func (t *Timer) CurrentActivity() (Activity, bool) {
	a := t.currentActivity()
	if a == nil {
		return Activity{}, false
	}
	return *a, true
}

// NextActivity returns a snapshot of what comes next: the next sub-segment,
// else the next segment's first sub-segment, else the next segment.
func (t *Timer) NextActivity() (Activity, bool) {
	a := t.nextActivity()
	if a == nil {
		return Activity{}, false
	}
	return *a, true
}

// MusicOffsetForSubSegment returns the track position in milliseconds at
// which the given sub-segment starts.
func (t *Timer) MusicOffsetForSubSegment(segmentIndex, subIndex int) (int, error) {
	if t.plan == nil {
		return 0, ErrNoPlan
	}
	if segmentIndex < 0 || segmentIndex >= len(t.plan.Segments) {
		return 0, errors.Wrapf(ErrOutOfRange, "segment %d", segmentIndex)
	}
	seg := &t.plan.Segments[segmentIndex]
	if subIndex < 0 || subIndex >= len(seg.SubSegments) {
		return 0, errors.Wrapf(ErrOutOfRange, "sub-segment %d of segment %d", subIndex, segmentIndex)
	}
	return musicOffsetMs(seg, subIndex), nil
}

// MusicPositionMs returns the current track position in milliseconds.
func (t *Timer) MusicPositionMs() (int, error) {
	if t.plan == nil {
		return 0, ErrNoPlan
	}
	if _, ok := t.plan.Segments[t.cursor.SegmentIndex].Music(); !ok {
		return 0, ErrNoActiveMusic
	}
	return t.cursor.SongElapsedSeconds * 1000, nil
}

func (t *Timer) suspend() func() {
	wasPlaying := t.cursor.Playing
	t.suspended = true
	t.cadence.Suspend()
	return func() {
		t.suspended = false
		if wasPlaying {
			t.cadence.Resume()
		}
	}
}

func (t *Timer) moveToSubSegment(sub int) {
	seg := &t.plan.Segments[t.cursor.SegmentIndex]
	t.cursor.SubSegmentIndex = sub
	t.cursor.SubSegmentTimeRemaining = seg.SubSegments[sub].DurationSeconds
	t.cursor.SegmentTimeRemaining = remainingFrom(seg, sub)
	t.cursor.SongElapsedSeconds = seg.MusicStart() + t.Elapsed()
	t.songStopped = false
}

// subSegmentTransition builds the transition event for the current cursor.
// seek is honored only when the segment has music.
func (t *Timer) subSegmentTransition(seek bool) Event {
	seg := &t.plan.Segments[t.cursor.SegmentIndex]
	ev := Event{
		Type:            EventSubSegmentTransition,
		SegmentIndex:    t.cursor.SegmentIndex,
		SubSegmentIndex: t.cursor.SubSegmentIndex,
		Current:         t.currentActivity(),
		Next:            t.nextActivity(),
	}
	if _, ok := seg.Music(); ok {
		ev.Seek = seek
		ev.MusicPositionMs = musicOffsetMs(seg, t.cursor.SubSegmentIndex)
	}
	return ev
}

func (t *Timer) progress() float64 {
	seg := &t.plan.Segments[t.cursor.SegmentIndex]
	duration, remaining := seg.EffectiveDuration(), t.cursor.SegmentTimeRemaining
	if t.cursor.SubSegmentIndex != NoSubSegment {
		duration = seg.SubSegments[t.cursor.SubSegmentIndex].DurationSeconds
		remaining = t.cursor.SubSegmentTimeRemaining
	}
	if duration <= 0 {
		return 0
	}
	f := float64(duration-remaining) / float64(duration)
	return min(max(f, 0), 1)
}

func (t *Timer) currentActivity() *Activity {
	if t.plan == nil {
		return nil
	}
	idx := t.cursor.SegmentIndex
	seg := &t.plan.Segments[idx]
	var a Activity
	if sub := t.cursor.SubSegmentIndex; sub != NoSubSegment {
		a = subSegmentActivity(&seg.SubSegments[sub], idx, sub, t.cursor.SubSegmentTimeRemaining)
	} else {
		a = segmentActivity(seg, idx, t.cursor.SegmentTimeRemaining)
	}
	return &a
}

func (t *Timer) nextActivity() *Activity {
	if t.plan == nil {
		return nil
	}
	idx := t.cursor.SegmentIndex
	seg := &t.plan.Segments[idx]
	var a Activity
	switch sub := t.cursor.SubSegmentIndex; {
	case sub != NoSubSegment && sub+1 < len(seg.SubSegments):
		next := &seg.SubSegments[sub+1]
		a = subSegmentActivity(next, idx, sub+1, next.DurationSeconds)
	case idx+1 < len(t.plan.Segments):
		nextSeg := &t.plan.Segments[idx+1]
		if nextSeg.HasSubSegments() {
			first := &nextSeg.SubSegments[0]
			a = subSegmentActivity(first, idx+1, 0, first.DurationSeconds)
		} else {
			a = segmentActivity(nextSeg, idx+1, nextSeg.EffectiveDuration())
		}
	default:
		return nil
	}
	return &a
}

// remainingFrom sums sub-segment durations from sub to the end of the segment.
func remainingFrom(seg *plan.Segment, sub int) int {
	total := 0
	for _, s := range seg.SubSegments[sub:] {
		total += s.DurationSeconds
	}
	return total
}

func musicOffsetMs(seg *plan.Segment, sub int) int {
	offset := seg.MusicStart()
	for _, s := range seg.SubSegments[:sub] {
		offset += s.DurationSeconds
	}
	return offset * 1000
}

// locateSubSegment resolves the sub-segment containing elapsed seconds and
// the time remaining in it. The end of the segment resolves to the last one.
func locateSubSegment(seg *plan.Segment, elapsed int) (int, int) {
	acc := 0
	last := len(seg.SubSegments) - 1
	for i, s := range seg.SubSegments {
		end := acc + s.DurationSeconds
		if elapsed < end || i == last {
			return i, end - elapsed
		}
		acc = end
	}
	return last, 0
}
