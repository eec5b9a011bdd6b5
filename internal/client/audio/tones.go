// Package audio synthesizes the call cues and feeds them to a playback sink.
package audio

import (
	"math"
	"time"
)

const (
	SampleRate  = 48_000
	NumChannels = 1

	samplesPerMs = SampleRate / 1000

	// peak level of each oscillator, as a fraction of full scale
	toneGain = 0.1
)

func samples(d time.Duration) int {
	return int(d.Milliseconds()) * samplesPerMs
}

// Ringback is one period of the outgoing call tone: 440 Hz and 480 Hz together for 2s,
// then 4s of silence.
func Ringback() []int16 {
	var (
		on     = samples(2 * time.Second)
		period = samples(6 * time.Second)
		fade   = samples(50 * time.Millisecond)
	)
	pcm := make([]int16, period)
	for i := range on {
		t := float64(i) / SampleRate
		v := toneGain * (math.Sin(2*math.Pi*440*t) + math.Sin(2*math.Pi*480*t))

		// ramp the last few ms down to avoid a click
		if rem := on - i; rem < fade {
			v *= float64(rem) / float64(fade)
		}
		pcm[i] = toPCM(v)
	}
	return pcm
}

// IncomingRing is one period of the incoming call trill: 600, 800 then 600 Hz in 0.1s
// steps, fading linearly to silence over 0.6s and repeating every 2s.
func IncomingRing() []int16 {
	var (
		on     = samples(600 * time.Millisecond)
		step   = samples(100 * time.Millisecond)
		period = samples(2 * time.Second)
	)
	pcm := make([]int16, period)

	// phase is carried across frequency steps so the waveform stays continuous
	phase := 0.0
	for i := range on {
		freq := 600.0
		if i >= step && i < 2*step {
			freq = 800
		}
		phase += 2 * math.Pi * freq / SampleRate
		envelope := 1 - float64(i)/float64(on)
		pcm[i] = toPCM(toneGain * envelope * math.Sin(phase))
	}
	return pcm
}

func toPCM(v float64) int16 {
	v = max(-1, min(1, v))
	return int16(v * math.MaxInt16)
}
