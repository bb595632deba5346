package player

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/spinbox/internal/app/notification"
	"github.com/osa030/spinbox/internal/app/timer"
	"github.com/osa030/spinbox/internal/domain/plan"
)

// Errors
var (
	ErrNoPlan        = errors.New("no plan loaded")
	ErrSessionClosed = errors.New("session is closed")
)

// Playback is the external music player.
type Playback interface {
	Play(ctx context.Context, uri string, positionMs int) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	SetVolume(ctx context.Context, fraction float64) error
}

// Broadcaster publishes notification payloads.
type Broadcaster interface {
	Broadcast(*structpb.Struct) error
}

// Config holds session configuration.
type Config struct {
	TimerOnly        bool          // Never call the external player
	Volume           float64       // Initial volume fraction
	AudioCues        bool          // Emit warning, countdown and transition cues
	WarningSeconds   int           // Remaining seconds that trigger the warning cue
	CountdownSeconds int           // Remaining seconds from which countdown cues start
	TickInterval     time.Duration // Clock interval, one second in production
	CommandTimeout   time.Duration // Timeout for playback commands issued from ticks
}

// Status is a snapshot of the session.
type Status struct {
	SessionID    string
	State        State
	Theme        string
	SegmentCount int
	Cursor       timer.Cursor
	Elapsed      int
	Current      *timer.Activity
	Next         *timer.Activity
	Volume       float64
	TimerOnly    bool
}

// Session runs one plan. A single mutex serializes ticks and navigation,
// so no tick observes a cursor mid-transition.
type Session struct {
	mu sync.Mutex

	id     string
	config Config

	timer    *timer.Timer
	clock    *Clock
	playback Playback
	cues     CueSink

	volume         float64
	timerOnly      bool
	started        bool
	songStartedFor int // segment index whose song was started, -1 if none

	broadcaster Broadcaster
	eventCh     chan timer.Event

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// NewSession creates a session. playback may be nil, which forces timer-only mode.
func NewSession(cfg Config, playback Playback, cues CueSink, broadcaster Broadcaster) *Session {
	if cues == nil {
		cues = nopCueSink{}
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:             uuid.New().String(),
		config:         cfg,
		playback:       playback,
		cues:           cues,
		volume:         clampFraction(cfg.Volume),
		timerOnly:      cfg.TimerOnly || playback == nil,
		songStartedFor: -1,
		broadcaster:    broadcaster,
		eventCh:        make(chan timer.Event, 64),
		ctx:            ctx,
		cancel:         cancel,
	}
	s.clock = NewClock(cfg.TickInterval, s.onClockTick)
	s.timer = timer.New(s.clock)

	go s.eventLoop()

	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Load loads a plan and activates its first segment. Any running clock is stopped.
func (s *Session) Load(ctx context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	s.clock.Stop()
	if s.timer.Playing() && !s.timerOnly {
		if err := s.playback.Pause(ctx); err != nil {
			zlog.Warn().Err(err).Msg("failed to pause playback before loading plan")
		}
	}

	t := timer.New(s.clock)
	events, err := t.LoadPlan(p)
	if err != nil {
		return errors.Wrap(err, "failed to load plan")
	}
	s.timer = t
	s.started = false
	s.songStartedFor = -1

	zlog.Info().
		Str("session_id", s.id).
		Str("theme", p.Theme).
		Int("segments", len(p.Segments)).
		Int("total_seconds", p.TotalSeconds()).
		Msg("plan loaded")

	s.dispatchLocked(ctx, events)
	return nil
}

// Play starts or resumes the timer and the current segment's song.
func (s *Session) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playLocked(ctx)
}

func (s *Session) playLocked(ctx context.Context) error {
	if s.timer.Plan() == nil {
		return ErrNoPlan
	}
	if s.timer.Playing() {
		return nil
	}
	events, err := s.timer.SetPlaying(true)
	if err != nil {
		return err
	}
	s.started = true

	s.startSongLocked(ctx, true)
	s.clock.Start()
	s.dispatchLocked(ctx, events)
	return nil
}

// Pause pauses the timer and the song.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauseLocked(ctx)
}

func (s *Session) pauseLocked(ctx context.Context) error {
	if s.timer.Plan() == nil {
		return ErrNoPlan
	}
	if !s.timer.Playing() {
		return nil
	}
	s.clock.Stop()
	events, err := s.timer.SetPlaying(false)
	if err != nil {
		return err
	}
	if !s.timerOnly {
		if err := s.playback.Pause(ctx); err != nil {
			zlog.Warn().Err(err).Msg("failed to pause playback")
		}
	}
	s.dispatchLocked(ctx, events)
	return nil
}

// Toggle switches between playing and paused.
func (s *Session) Toggle(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer.Playing() {
		return s.pauseLocked(ctx)
	}
	return s.playLocked(ctx)
}

// Next moves to the next sub-segment or segment.
func (s *Session) Next(ctx context.Context) error {
	return s.navigate(ctx, func() ([]timer.Event, error) {
		return s.timer.NextSegment()
	})
}

// Previous moves to the previous sub-segment or segment.
func (s *Session) Previous(ctx context.Context) error {
	return s.navigate(ctx, func() ([]timer.Event, error) {
		return s.timer.PreviousSegment()
	})
}

// Jump activates the segment at index.
func (s *Session) Jump(ctx context.Context, index int) error {
	return s.navigate(ctx, func() ([]timer.Event, error) {
		return s.timer.JumpToSegment(index)
	})
}

// Seek moves to elapsed seconds within the current segment.
func (s *Session) Seek(ctx context.Context, elapsed int) error {
	return s.navigate(ctx, func() ([]timer.Event, error) {
		return s.timer.SeekToElapsed(elapsed)
	})
}

// Skip moves by delta seconds within the current segment.
func (s *Session) Skip(ctx context.Context, delta int) error {
	return s.navigate(ctx, func() ([]timer.Event, error) {
		return s.timer.SkipTime(delta)
	})
}

// navigate runs op under the session lock. op is resolved after locking
// because Load may replace the timer.
func (s *Session) navigate(ctx context.Context, op func() ([]timer.Event, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer.Plan() == nil {
		return ErrNoPlan
	}
	events, err := op()
	if err != nil {
		return err
	}
	s.dispatchLocked(ctx, events)
	return nil
}

// SetVolume sets the base volume fraction. Fade guidance is applied relative to it.
func (s *Session) SetVolume(ctx context.Context, fraction float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volume = clampFraction(fraction)
	if s.timerOnly {
		return nil
	}
	return s.playback.SetVolume(ctx, s.volume)
}

// SetTimerOnly toggles timer-only mode. Leaving it while playing starts the current song.
func (s *Session) SetTimerOnly(ctx context.Context, timerOnly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playback == nil {
		return
	}
	if s.timerOnly == timerOnly {
		return
	}
	playing := s.timer.Playing()
	if timerOnly && playing {
		if err := s.playback.Pause(ctx); err != nil {
			zlog.Warn().Err(err).Msg("failed to pause playback")
		}
	}
	s.timerOnly = timerOnly
	s.songStartedFor = -1
	if !timerOnly && playing {
		s.startSongLocked(ctx, false)
	}
	zlog.Info().Bool("timer_only", timerOnly).Msg("timer-only mode changed")
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		SessionID: s.id,
		State:     s.stateLocked(),
		Cursor:    s.timer.Cursor(),
		Elapsed:   s.timer.Elapsed(),
		Volume:    s.volume,
		TimerOnly: s.timerOnly,
	}
	if p := s.timer.Plan(); p != nil {
		st.Theme = p.Theme
		st.SegmentCount = len(p.Segments)
	}
	if cur, ok := s.timer.CurrentActivity(); ok {
		st.Current = &cur
	}
	if next, ok := s.timer.NextActivity(); ok {
		st.Next = &next
	}
	return st
}

func (s *Session) stateLocked() State {
	switch {
	case s.timer.Plan() == nil || !s.started:
		return StateIdle
	case s.timer.Complete():
		return StateComplete
	case s.timer.Playing():
		return StatePlaying
	default:
		return StatePaused
	}
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close stops the clock and the event loop.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.clock.Stop()
	s.cancel()
}

func (s *Session) onClockTick(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stale tick from a run stopped while this one waited for the lock.
	if !s.clock.Current(generation) {
		return
	}
	s.tickLocked()
}

func (s *Session) tickLocked() {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.CommandTimeout)
	defer cancel()
	s.dispatchLocked(ctx, s.timer.Tick())
}

// startSongLocked starts the current segment's song. With allowResume the
// song is resumed when it was already started for this segment.
func (s *Session) startSongLocked(ctx context.Context, allowResume bool) {
	if s.timerOnly {
		return
	}
	idx := s.timer.Cursor().SegmentIndex
	m, ok := s.timer.Plan().Segments[idx].Music()
	if !ok {
		return
	}
	// Past the song's end time the song stays stopped until a seek moves back.
	if m.EndSeconds != nil && s.timer.Cursor().SongElapsedSeconds >= *m.EndSeconds {
		return
	}

	if allowResume && s.songStartedFor == idx {
		if err := s.playback.Resume(ctx); err != nil {
			zlog.Warn().Err(err).Msg("failed to resume playback")
		}
		return
	}

	positionMs, err := s.timer.MusicPositionMs()
	if err != nil {
		return
	}
	if err := s.playback.Play(ctx, m.URI, positionMs); err != nil {
		zlog.Error().Err(err).Str("uri", m.URI).Msg("failed to play song")
		return
	}
	s.songStartedFor = idx
	zlog.Info().Str("uri", m.URI).Str("song", m.Song).Int("position_ms", positionMs).Msg("song started")
}

func (s *Session) dispatchLocked(ctx context.Context, events []timer.Event) {
	for _, ev := range events {
		s.sendEventLocked(ev)
		s.handleEventLocked(ctx, ev)
	}
}

// handleEventLocked translates timer guidance into playback commands and cues.
func (s *Session) handleEventLocked(ctx context.Context, ev timer.Event) {
	switch ev.Type {
	case timer.EventSegmentActivated:
		if s.timer.Playing() {
			s.startSongLocked(ctx, false)
		} else {
			s.songStartedFor = -1
		}

	case timer.EventSubSegmentTransition:
		if !ev.Seek && s.config.AudioCues {
			s.cues.Transition()
		}
		if ev.Seek {
			s.seekLocked(ctx, ev)
		}

	case timer.EventPositionChanged:
		if ev.Seek {
			s.seekLocked(ctx, ev)
		}

	case timer.EventCountdownTick:
		if !s.config.AudioCues {
			return
		}
		switch n := ev.SecondsRemaining; {
		case n == s.config.WarningSeconds:
			s.cues.Warning()
		case n > 0 && n <= s.config.CountdownSeconds:
			s.cues.Countdown(n)
		}

	case timer.EventVolumeGuidance:
		if s.timerOnly {
			return
		}
		if ev.StopMusic {
			if err := s.playback.Pause(ctx); err != nil {
				zlog.Warn().Err(err).Msg("failed to stop song at end time")
			}
			s.songStartedFor = -1
			s.setPlaybackVolumeLocked(ctx, s.volume)
			return
		}
		s.setPlaybackVolumeLocked(ctx, ev.Volume*s.volume)

	case timer.EventSegmentBoundary:
		if !s.timerOnly {
			s.setPlaybackVolumeLocked(ctx, s.volume)
		}
		if s.config.AudioCues {
			s.cues.Transition()
		}

	case timer.EventPlanComplete:
		s.clock.Stop()
		if !s.timerOnly {
			if err := s.playback.Pause(ctx); err != nil {
				zlog.Warn().Err(err).Msg("failed to pause playback at plan end")
			}
		}
		zlog.Info().Str("session_id", s.id).Msg("class complete")
	}
}

// seekLocked repositions the song if it is loaded for the current segment.
// A song stopped at its end time is restarted while playing. Otherwise the
// next play starts it at the right position.
func (s *Session) seekLocked(ctx context.Context, ev timer.Event) {
	if s.timerOnly {
		return
	}
	if s.songStartedFor != ev.SegmentIndex {
		if s.timer.Playing() && ev.SegmentIndex == s.timer.Cursor().SegmentIndex {
			s.startSongLocked(ctx, false)
		}
		return
	}
	if err := s.playback.Seek(ctx, ev.MusicPositionMs); err != nil {
		zlog.Warn().Err(err).Int("position_ms", ev.MusicPositionMs).Msg("seek failed")
	}
}

func (s *Session) setPlaybackVolumeLocked(ctx context.Context, fraction float64) {
	if err := s.playback.SetVolume(ctx, fraction); err != nil {
		zlog.Warn().Err(err).Float64("volume", fraction).Msg("failed to set volume")
	}
}

// sendEventLocked sends an event to the loop without blocking.
func (s *Session) sendEventLocked(ev timer.Event) {
	select {
	case s.eventCh <- ev:
	default:
		zlog.Warn().Str("type", ev.Type.String()).Msg("event channel full, dropping event")
	}
}

// eventLoop broadcasts timer events.
func (s *Session) eventLoop() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("event loop panicked: %v", r)
			zlog.Info().Msg("restarting event loop")
			go s.eventLoop()
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.eventCh:
			s.broadcast(ev)
		}
	}
}

func (s *Session) broadcast(ev timer.Event) {
	if ev.Type != timer.EventProgressUpdate && ev.Type != timer.EventCountdownTick {
		zlog.Debug().Str("type", ev.Type.String()).Int("segment", ev.SegmentIndex).Msg("timer event")
	}
	if s.broadcaster == nil {
		return
	}
	payload, err := notification.EventStruct(ev)
	if err != nil {
		zlog.Error().Err(err).Msg("failed to build notification")
		return
	}
	payload.Fields["session_id"] = structpb.NewStringValue(s.id)
	if err := s.broadcaster.Broadcast(payload); err != nil {
		zlog.Error().Err(err).Str("type", ev.Type.String()).Msg("failed to broadcast event")
	}
}

func clampFraction(f float64) float64 {
	return min(max(f, 0), 1)
}
