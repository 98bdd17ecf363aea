package mix

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/cerr"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/working_dir"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/pipeerrors"
)

type Role string

const (
	RoleVocal        Role = "vocal"
	RoleInstrumental Role = "instrumental"
)

type Strategy string

const (
	AlignTrim Strategy = "trim"
	AlignLoop Strategy = "loop"
	AlignPad  Strategy = "pad"
)

// attenuationRangeDB is the decibel range volume knobs are scaled
// onto: volume 1.0 means 0 dB attenuation, volume 0 means the full
// range.
const attenuationRangeDB = 20.0

type MixOptions struct {
	VocalVolume        float64
	InstrumentalVolume float64
	FadeDuration       time.Duration
}

type TrackInfo struct {
	DurationSeconds float64
	Channels        int
	SampleRate      int
	DBFS            float64
}

// Transcoder is the format conversion collaborator the engine leans on
// for everything that is not integer PCM WAV.
type Transcoder interface {
	// DecodeToPCM decodes any supported container into an integer
	// PCM WAV file at outputPath.
	DecodeToPCM(inputPath string, outputPath string) error
	// Transcode re-encodes into the container implied by the output
	// path's extension.
	Transcode(inputPath string, outputPath string) error
	// TranscodeFLAC re-encodes into FLAC at maximum compression
	// effort.
	TranscodeFLAC(inputPath string, outputPath string) error
}

// Engine blends a vocal and an instrumental track into a mastered mix:
// loudness normalization, duration alignment, fades, additive overlay
// and format-aware export.
type Engine struct {
	transcoder   Transcoder
	workingDir   working_dir.WorkingDir
	vocal        *Track
	instrumental *Track
}

func NewEngine(transcoder Transcoder, workingDirStr string) (*Engine, error) {
	workingDir, err := working_dir.NewWorkingDir(workingDirStr)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to convert working dir to absolute format")
	}

	if err := os.MkdirAll(workingDir.TempDir(), os.ModePerm); err != nil {
		return nil, cerr.Field("temp_dir", workingDir.TempDir()).
			Wrap(err).Error("Failed to create temp dir")
	}

	return &Engine{
		transcoder: transcoder,
		workingDir: workingDir,
	}, nil
}

// Load reads an audio file into the in-memory track bound to role.
func (e *Engine) Load(role Role, path string) error {
	errctx := cerr.Field("role", role).Field("path", path)

	if _, err := os.Stat(path); err != nil {
		return pipeerrors.MarkMissingFile(
			errctx.Wrap(err).Error("Audio file does not exist or is unreadable"))
	}

	track, err := e.decode(path)
	if err != nil {
		return errctx.Wrap(err).Error("Failed to decode audio file")
	}

	switch role {
	case RoleVocal:
		e.vocal = track
	case RoleInstrumental:
		e.instrumental = track
	default:
		return errctx.Error("Unknown track role")
	}

	return nil
}

// decode routes everything through the transcoding collaborator into a
// PCM WAV intermediate, so that any container ffmpeg can read is fair
// game. The intermediate is removed before returning.
func (e *Engine) decode(path string) (*Track, error) {
	tempDir, err := os.MkdirTemp(e.workingDir.TempDir(), "decode-*")
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to create decode temp dir")
	}
	defer os.RemoveAll(tempDir)

	pcmPath := filepath.Join(tempDir, "decoded.wav")
	if err := e.transcoder.DecodeToPCM(path, pcmPath); err != nil {
		return nil, pipeerrors.MarkUnsupportedFormat(
			cerr.Field("path", path).Wrap(err).Error("Transcoder failed to decode audio"))
	}

	return ReadWAV(pcmPath)
}

// Normalize applies the gain delta that brings the vocal's loudness to
// targetDBFS, and the instrumental's to targetDBFS+instrumentalOffset.
// Mutates both loaded tracks in place.
func (e *Engine) Normalize(targetDBFS float64, instrumentalOffset float64) error {
	if err := e.checkLoaded(); err != nil {
		return err
	}

	for _, entry := range []struct {
		role   Role
		track  *Track
		target float64
	}{
		{RoleVocal, e.vocal, targetDBFS},
		{RoleInstrumental, e.instrumental, targetDBFS + instrumentalOffset},
	} {
		level := entry.track.DBFS()
		if math.IsInf(level, -1) {
			return pipeerrors.MarkUnsupportedFormat(
				cerr.Field("role", entry.role).Error("Track is silent and cannot be normalized"))
		}

		gain := entry.target - level
		entry.track.ApplyGain(gain)

		log.WithFields(log.Fields{
			"role":        entry.role,
			"measured_db": level,
			"gain_db":     gain,
		}).Info("Normalized track loudness")
	}

	return nil
}

// Align equalizes the duration of the two loaded tracks. A no-op when
// the durations already match.
func (e *Engine) Align(strategy Strategy) error {
	if err := e.checkLoaded(); err != nil {
		return err
	}

	return alignTracks(e.vocal, e.instrumental, strategy)
}

func alignTracks(vocal *Track, instrumental *Track, strategy Strategy) error {
	if vocal.Duration() == instrumental.Duration() {
		return nil
	}

	shorter, longer := vocal, instrumental
	if shorter.Duration() > longer.Duration() {
		shorter, longer = longer, shorter
	}

	switch strategy {
	case AlignTrim:
		longer.TrimToFrames(targetFrames(longer, shorter.Duration()))

	case AlignLoop:
		shorter.LoopToFrames(targetFrames(shorter, longer.Duration()))

	case AlignPad:
		// trailing silence is generated at the shorter track's own rate
		shorter.PadToFrames(targetFrames(shorter, longer.Duration()))

	default:
		return cerr.Field("strategy", strategy).Error("Unknown alignment strategy")
	}

	return nil
}

// targetFrames converts a duration into a frame count at the track's
// own sample rate.
func targetFrames(t *Track, d time.Duration) int {
	return int(math.Round(d.Seconds() * float64(t.SampleRate())))
}

// Mix produces the blended track: per-track attenuation scaled from
// the volume knobs, symmetric fades, then sample-wise additive
// overlay from time zero. The stored vocal and instrumental tracks are
// left untouched.
func (e *Engine) Mix(opts MixOptions) (*Track, error) {
	if err := e.checkLoaded(); err != nil {
		return nil, err
	}

	vocal := e.vocal.Clone()
	instrumental := e.instrumental.Clone()

	// safety net if the caller never aligned
	if vocal.Duration() != instrumental.Duration() {
		if err := alignTracks(vocal, instrumental, AlignTrim); err != nil {
			return nil, cerr.Wrap(err).Error("Failed to align tracks before mixing")
		}
	}

	vocal.ApplyGain(-attenuationRangeDB * (1 - opts.VocalVolume))
	instrumental.ApplyGain(-attenuationRangeDB * (1 - opts.InstrumentalVolume))

	if opts.FadeDuration > 0 {
		vocal.FadeIn(opts.FadeDuration)
		vocal.FadeOut(opts.FadeDuration)
		instrumental.FadeIn(opts.FadeDuration)
		instrumental.FadeOut(opts.FadeDuration)
	}

	mixed, clipped, err := overlay(vocal, instrumental)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Failed to overlay tracks")
	}

	if clipped > 0 {
		log.WithFields(log.Fields{
			"clipped_samples": clipped,
			"total_samples":   len(mixed.Samples()),
		}).Warn("Overlay clipped samples, output was hard-limited")
	}

	return mixed, nil
}

// overlay adds the two tracks sample-wise in the linear domain,
// hard-clamping the sum to [-1, 1] and counting clipped samples. A
// mono track is up-mixed against a multi-channel one by duplication.
func overlay(a *Track, b *Track) (*Track, int, error) {
	if a.SampleRate() != b.SampleRate() {
		return nil, 0, pipeerrors.MarkUnsupportedFormat(
			cerr.Field("rate_a", a.SampleRate()).Field("rate_b", b.SampleRate()).
				Error("Tracks have different sample rates"))
	}

	channels := a.Channels()
	if b.Channels() > channels {
		channels = b.Channels()
	}

	if (a.Channels() != channels && a.Channels() != 1) ||
		(b.Channels() != channels && b.Channels() != 1) {
		return nil, 0, pipeerrors.MarkUnsupportedFormat(
			cerr.Field("channels_a", a.Channels()).Field("channels_b", b.Channels()).
				Error("Tracks have incompatible channel layouts"))
	}

	samplesA := a.upmixed(channels)
	samplesB := b.upmixed(channels)

	length := len(samplesA)
	if len(samplesB) > length {
		length = len(samplesB)
	}

	mixed := make([]float64, length)
	clipped := 0
	for i := range mixed {
		var sum float64
		if i < len(samplesA) {
			sum += samplesA[i]
		}
		if i < len(samplesB) {
			sum += samplesB[i]
		}

		if sum > 1 {
			sum = 1
			clipped++
		} else if sum < -1 {
			sum = -1
			clipped++
		}

		mixed[i] = sum
	}

	return NewTrack(mixed, channels, a.SampleRate()), clipped, nil
}

// Export mixes and writes the result to outputPath. The container is
// selected by the path's extension: WAV is written by the in-memory
// encoder, FLAC goes through a temporary WAV re-encoded at maximum
// compression effort, everything else is handed to the transcoding
// collaborator. Temporary files are removed whether or not the
// re-encode succeeds.
func (e *Engine) Export(outputPath string, opts MixOptions) error {
	errctx := cerr.Field("output_path", outputPath)

	mixed, err := e.Mix(opts)
	if err != nil {
		return errctx.Wrap(err).Error("Failed to mix tracks")
	}

	ext := strings.ToLower(filepath.Ext(outputPath))
	if ext == ".wav" {
		if err := WriteWAV(outputPath, mixed); err != nil {
			return errctx.Wrap(err).Error("Failed to write WAV output")
		}
		return e.checkExported(outputPath)
	}

	tempDir, err := os.MkdirTemp(e.workingDir.TempDir(), "export-*")
	if err != nil {
		return errctx.Wrap(err).Error("Failed to create export temp dir")
	}
	defer os.RemoveAll(tempDir)

	tempWAVPath := filepath.Join(tempDir, "mixed.wav")
	if err := WriteWAV(tempWAVPath, mixed); err != nil {
		return errctx.Wrap(err).Error("Failed to write intermediate WAV")
	}

	switch ext {
	case ".flac":
		err = e.transcoder.TranscodeFLAC(tempWAVPath, outputPath)
	default:
		err = e.transcoder.Transcode(tempWAVPath, outputPath)
	}

	if err != nil {
		return pipeerrors.MarkUnsupportedFormat(
			errctx.Wrap(err).Error("Failed to re-encode mixed output"))
	}

	return e.checkExported(outputPath)
}

func (e *Engine) checkExported(outputPath string) error {
	if _, err := os.Stat(outputPath); err != nil {
		return pipeerrors.MarkMissingFile(
			cerr.Field("output_path", outputPath).
				Wrap(err).Error("Exported file is missing"))
	}
	return nil
}

// Info reports duration, channel count, sample rate and loudness per
// loaded track.
func (e *Engine) Info() (map[Role]TrackInfo, error) {
	info := map[Role]TrackInfo{}

	if e.vocal != nil {
		info[RoleVocal] = trackInfo(e.vocal)
	}
	if e.instrumental != nil {
		info[RoleInstrumental] = trackInfo(e.instrumental)
	}

	if len(info) == 0 {
		return nil, pipeerrors.MarkNotLoaded(cerr.Error("No tracks are loaded"))
	}

	return info, nil
}

func trackInfo(t *Track) TrackInfo {
	return TrackInfo{
		DurationSeconds: t.Duration().Seconds(),
		Channels:        t.Channels(),
		SampleRate:      t.SampleRate(),
		DBFS:            t.DBFS(),
	}
}

func (e *Engine) checkLoaded() error {
	if e.vocal == nil || e.instrumental == nil {
		return pipeerrors.MarkNotLoaded(
			cerr.Error("Both tracks must be loaded before mixing operations"))
	}
	return nil
}
