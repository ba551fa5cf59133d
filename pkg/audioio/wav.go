package audioio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the RIFF audio format tag for linear PCM.
const wavFormatPCM = 1

// ErrInvalidWAV is returned when a file is not a PCM16 WAV container.
var ErrInvalidWAV = errors.New("audioio: not a 16-bit PCM WAV file")

// WriteWAV encodes chunk as a 16-bit PCM WAV file at path.
// A partially written file is removed on error.
func WriteWAV(path string, chunk AudioChunk) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close wav: %w", cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	return EncodeWAV(f, chunk)
}

// EncodeWAV writes chunk as a 16-bit PCM WAV stream to w.
func EncodeWAV(w io.WriteSeeker, chunk AudioChunk) error {
	enc := wav.NewEncoder(w, chunk.SampleRate, 16, chunk.Channels, wavFormatPCM)

	data := make([]int, len(chunk.Samples))
	for i, s := range chunk.Samples {
		data[i] = int(s)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: chunk.Channels, SampleRate: chunk.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// ReadWAV decodes the WAV file at path.
func ReadWAV(path string) (AudioChunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return AudioChunk{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	return DecodeWAV(f)
}

// DecodeWAV decodes a 16-bit PCM WAV stream.
func DecodeWAV(r io.ReadSeeker) (AudioChunk, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return AudioChunk{}, ErrInvalidWAV
	}
	if dec.BitDepth != 16 || dec.WavAudioFormat != wavFormatPCM {
		return AudioChunk{}, fmt.Errorf("%w: format %d, %d bits", ErrInvalidWAV, dec.WavAudioFormat, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return AudioChunk{}, fmt.Errorf("decode wav: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}

	return AudioChunk{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}
