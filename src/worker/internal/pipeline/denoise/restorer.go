package denoise

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/executor"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/cerr"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/pipeerrors"
)

type Intensity string

const (
	LightIntensity      Intensity = "light"
	MediumIntensity     Intensity = "medium"
	AggressiveIntensity Intensity = "aggressive"
)

// Profile is the immutable parameter bundle a restorer is constructed
// with.
type Profile struct {
	Mode      string
	Intensity Intensity
}

func VinylProfile(intensity Intensity) Profile {
	return Profile{Mode: "vinyl", Intensity: intensity}
}

type filterParams struct {
	noiseReduction int
	noiseFloor     int
	highpassHz     int
	lowpassHz      int
}

var vinylParams = map[Intensity]filterParams{
	LightIntensity:      {noiseReduction: 15, noiseFloor: -20, highpassHz: 60, lowpassHz: 12000},
	MediumIntensity:     {noiseReduction: 25, noiseFloor: -25, highpassHz: 50, lowpassHz: 10000},
	AggressiveIntensity: {noiseReduction: 40, noiseFloor: -35, highpassHz: 40, lowpassHz: 8000},
}

const outputSampleRate = 44100

// Restorer runs the noise-reduction/cleanup transform through ffmpeg's
// filter graph, parameterized by the profile chosen at construction.
type Restorer struct {
	ffmpegBinPath string
	profile       Profile
	executor      executor.Executor
}

func NewRestorer(ffmpegBinPath string, profile Profile, executor executor.Executor) (Restorer, error) {
	if _, ok := vinylParams[profile.Intensity]; !ok {
		return Restorer{}, cerr.Field("intensity", profile.Intensity).
			Error("Unknown restoration intensity")
	}

	return Restorer{
		ffmpegBinPath: ffmpegBinPath,
		profile:       profile,
		executor:      executor,
	}, nil
}

func (r Restorer) Profile() Profile {
	return r.profile
}

// Restore writes the cleaned version of inputPath to outputPath. When
// the full filter chain fails (typically an ffmpeg too old for one of
// the filters), a minimal highpass+afftdn chain is tried once before
// giving up.
func (r Restorer) Restore(ctx context.Context, inputPath string, outputPath string) error {
	errctx := cerr.Field("input_path", inputPath).
		Field("output_path", outputPath).
		Field("profile", r.profile)

	if ctx.Err() != nil {
		return errctx.Wrap(ctx.Err()).Error("Context cancelled before restoration could happen")
	}

	logger := log.WithFields(log.Fields{
		"input_path": inputPath,
		"mode":       r.profile.Mode,
		"intensity":  r.profile.Intensity,
	})
	logger.Info("Starting restoration")

	params := vinylParams[r.profile.Intensity]

	err := r.runFilterChain(inputPath, outputPath, r.fullChain(params))
	if err != nil {
		logger.WithError(err).Warn("Full filter chain failed, retrying with fallback chain")

		if err := r.runFilterChain(inputPath, outputPath, r.fallbackChain(params)); err != nil {
			return pipeerrors.MarkCollaborator(
				errctx.Wrap(err).Error("Restoration failed on both filter chains"))
		}
	}

	if _, err := os.Stat(outputPath); err != nil {
		return pipeerrors.MarkMissingFile(
			errctx.Wrap(err).Error("Restoration did not produce the output file"))
	}

	logger.Info("Finished restoration")
	return nil
}

// fullChain: broadband noise reduction, click removal via band
// limiting, dynamic normalization, and a mild HF exciter.
func (r Restorer) fullChain(params filterParams) string {
	return strings.Join([]string{
		fmt.Sprintf("afftdn=nr=%d:nf=%d", params.noiseReduction, params.noiseFloor),
		fmt.Sprintf("highpass=f=%d", params.highpassHz),
		fmt.Sprintf("lowpass=f=%d", params.lowpassHz),
		"dynaudnorm=framelen=500",
		"equalizer=frequency=10000:width_type=q:width=1:gain=1.5",
	}, ",")
}

func (r Restorer) fallbackChain(params filterParams) string {
	return strings.Join([]string{
		fmt.Sprintf("highpass=f=%d", params.highpassHz),
		"afftdn",
	}, ",")
}

func (r Restorer) runFilterChain(inputPath string, outputPath string, filterChain string) error {
	args := []string{
		"-y", "-i", inputPath,
		"-af", filterChain,
		"-ar", fmt.Sprintf("%d", outputSampleRate),
		outputPath,
	}

	errctx := cerr.Field("ffmpeg_bin_path", r.ffmpegBinPath).Field("ffmpeg_args", args)

	cmd := r.executor.Command(r.ffmpegBinPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errctx.Field("ffmpeg_output", string(output)).
			Wrap(err).
			Error(fmt.Sprintf("Error occurred while running ffmpeg: %s", string(output)))
	}

	log.Debug(string(output))
	return nil
}
