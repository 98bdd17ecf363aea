package mix

import (
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/cerr"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/pipeerrors"
)

// pcmBitDepth is the bit depth the engine uses for its own WAV
// intermediates and direct exports.
const pcmBitDepth = 24

// ReadWAV decodes an integer PCM WAV file into a Track.
func ReadWAV(path string) (*Track, error) {
	errctx := cerr.Field("path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, pipeerrors.MarkMissingFile(
			errctx.Wrap(err).Error("Failed to open WAV file"))
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, pipeerrors.MarkUnsupportedFormat(
			errctx.Error("File is not a valid WAV file"))
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, pipeerrors.MarkUnsupportedFormat(
			errctx.Wrap(err).Error("Failed to decode WAV samples"))
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}

	fullScale := float64(int64(1) << (bitDepth - 1))
	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / fullScale
	}

	return NewTrack(samples, buf.Format.NumChannels, buf.Format.SampleRate), nil
}

// WriteWAV encodes a track as integer PCM WAV at the engine bit depth.
func WriteWAV(path string, track *Track) error {
	errctx := cerr.Field("path", path)

	file, err := os.Create(path)
	if err != nil {
		return errctx.Wrap(err).Error("Failed to create WAV file")
	}
	defer file.Close()

	fullScale := float64(int64(1) << (pcmBitDepth - 1))
	data := make([]int, len(track.samples))
	for i, s := range track.samples {
		clamped := math.Max(-1, math.Min(s, 1))
		v := int(math.Round(clamped * (fullScale - 1)))
		data[i] = v
	}

	encoder := wav.NewEncoder(file, track.sampleRate, pcmBitDepth, track.channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: track.channels,
			SampleRate:  track.sampleRate,
		},
		Data:           data,
		SourceBitDepth: pcmBitDepth,
	}

	if err := encoder.Write(buf); err != nil {
		_ = encoder.Close()
		return pipeerrors.MarkUnsupportedFormat(
			errctx.Wrap(err).Error("Failed to write WAV samples"))
	}

	if err := encoder.Close(); err != nil {
		return pipeerrors.MarkUnsupportedFormat(
			errctx.Wrap(err).Error("Failed to finalize WAV file"))
	}

	return nil
}
