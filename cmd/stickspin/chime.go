package main

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

// chime is the completion effect: two short rising notes per rotation.
// It implements spin.Effect.
type chime struct {
	rate   beep.SampleRate
	freq   float64
	note   time.Duration
	volume float64
	play   func(beep.Streamer)
	logger *slog.Logger
}

// newChime builds a chime that hands its streamer to play.
func newChime(cfg AudioConfig, play func(beep.Streamer), logger *slog.Logger) *chime {
	return &chime{
		rate:   beep.SampleRate(cfg.SampleRate),
		freq:   cfg.FrequencyHz,
		note:   time.Duration(cfg.NoteMS) * time.Millisecond,
		volume: cfg.Volume,
		play:   play,
		logger: logger,
	}
}

// newSpeakerChime initialises the speaker and returns a chime bound to it.
func newSpeakerChime(cfg AudioConfig, logger *slog.Logger) (*chime, error) {
	sr := beep.SampleRate(cfg.SampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("speaker init: %w", err)
	}
	return newChime(cfg, func(s beep.Streamer) { speaker.Play(s) }, logger), nil
}

func (c *chime) Play() {
	s, err := c.streamer()
	if err != nil {
		c.logger.Warn("chime unavailable", "error", err)
		return
	}
	c.play(s)
}

// streamer renders the two-note chime: root, gap, then a fifth above.
func (c *chime) streamer() (beep.Streamer, error) {
	first, err := c.tone(c.freq)
	if err != nil {
		return nil, err
	}
	second, err := c.tone(c.freq * 1.5)
	if err != nil {
		return nil, err
	}
	seq := beep.Seq(first, beep.Silence(c.rate.N(chimeGap)), second)
	return newVolume(seq, c.volume), nil
}

func (c *chime) tone(freq float64) (beep.Streamer, error) {
	sine, err := generators.SineTone(c.rate, freq)
	if err != nil {
		return nil, fmt.Errorf("sine tone %.0fHz: %w", freq, err)
	}
	n := c.rate.N(c.note)
	return newEnvelope(beep.Take(n, sine), n, c.rate.N(chimeAttack), c.rate.N(chimeRelease)), nil
}

// chimeEnvelope applies a linear attack and release to a finite stream.
type chimeEnvelope struct {
	streamer beep.Streamer
	position int
	attack   int
	release  int
	total    int
}

func newEnvelope(s beep.Streamer, total, attack, release int) beep.Streamer {
	if attack+release > total {
		attack, release = total/2, total-total/2
	}
	return &chimeEnvelope{streamer: s, attack: attack, release: release, total: total}
}

func (e *chimeEnvelope) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = e.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		vol := 1.0
		if e.position < e.attack {
			vol = float64(e.position) / float64(e.attack)
		}
		if remaining := e.total - e.position; remaining < e.release {
			vol = float64(remaining) / float64(e.release)
		}
		samples[i][0] *= vol
		samples[i][1] *= vol
		e.position++
	}
	return n, ok
}

func (e *chimeEnvelope) Err() error { return e.streamer.Err() }

// newVolume scales s linearly by vol; 0 silences it.
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}

// nopChime is used when audio is disabled or unavailable.
type nopChime struct{}

func (nopChime) Play() {}
