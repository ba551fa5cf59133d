package audioio

import "math"

// Resample converts audio from one sample rate to another using linear interpolation.
// This is a simple resampler suitable for speech audio.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)

	if newLen == 0 {
		return []int16{}
	}

	result := make([]int16, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			s1 := float64(samples[srcIdx])
			s2 := float64(samples[srcIdx+1])
			result[i] = int16(s1 + frac*(s2-s1))
		}
	}

	return result
}

// StereoToMono averages stereo samples to mono.
func StereoToMono(samples []int16) []int16 {
	mono := make([]int16, len(samples)/2)
	for i := range mono {
		left := int32(samples[i*2])
		right := int32(samples[i*2+1])
		mono[i] = int16((left + right) / 2)
	}
	return mono
}

// ToMono converts a chunk of any channel layout to mono at sampleRate.
// Stereo is averaged; wider layouts keep their first channel.
func ToMono(chunk AudioChunk, sampleRate int) AudioChunk {
	samples := chunk.Samples
	switch {
	case chunk.Channels == 2:
		samples = StereoToMono(samples)
	case chunk.Channels > 2:
		mono := make([]int16, len(samples)/chunk.Channels)
		for i := range mono {
			mono[i] = samples[i*chunk.Channels]
		}
		samples = mono
	}
	if chunk.SampleRate != sampleRate {
		samples = Resample(samples, chunk.SampleRate, sampleRate)
	}
	return AudioChunk{Samples: samples, SampleRate: sampleRate, Channels: 1}
}

// CalculateRMS calculates the root mean square of samples.
// Returns a value between 0.0 and 1.0.
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	return math.Sqrt(sum/float64(len(samples))) / 32767
}
