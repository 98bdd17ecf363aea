package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/audiopath"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/cerr"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/mix"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/separate"
)

// Mastering parameters used for every job.
const (
	masterTargetDBFS         = -18.0
	masterInstrumentalOffset = -2.5
	masterVocalVolume        = 0.95
	masterInstrumentalVolume = 0.85
	masterFadeDuration       = 800 * time.Millisecond
	enhanceMode              = 1
)

// Stage suffixes. Each must be distinct - suffix chaining is what keeps
// artifact names unique within a job directory.
const (
	denoisedSuffix = "-denoised"
	enhancedSuffix = "-enhanced"
	finalSuffix    = "-final"
	masteredSuffix = "-improved-mastered"
)

// The stage collaborators, small enough to substitute in tests.

type Transcoder interface {
	SafeCopy(inputPath string) (string, error)
	ToWAV(inputPath string, outputPath string) (string, error)
}

type Restorer interface {
	Restore(ctx context.Context, inputPath string, outputPath string) error
}

type Separator interface {
	Separate(ctx context.Context, inputPath string, outputDir string) (separate.Stems, error)
}

type Enhancer interface {
	Enhance(ctx context.Context, inputPath string, outputPath string, mode int) error
}

type Mixer interface {
	Load(role mix.Role, path string) error
	Normalize(targetDBFS float64, instrumentalOffset float64) error
	Align(strategy mix.Strategy) error
	Export(outputPath string, opts mix.MixOptions) error
}

// Result is what a successful run hands back to the service layer.
type Result struct {
	MasteredPath string
	VocalPath    string
	Elapsed      time.Duration
}

// Pipeline sequences the six restoration stages for one job. Stages
// run strictly in order, each consuming the previous stage's output
// file; the first error aborts the remaining stages with no retry and
// no cleanup of already-written intermediates.
//
// A Pipeline processes one job at a time; concurrent jobs need their
// own Pipeline value (the mixer carries per-job state).
type Pipeline struct {
	converter    Transcoder
	preRestorer  Restorer
	postRestorer Restorer
	separator    Separator
	enhancer     Enhancer
	mixer        Mixer
}

func NewPipeline(
	converter Transcoder,
	preRestorer Restorer,
	postRestorer Restorer,
	separator Separator,
	enhancer Enhancer,
	mixer Mixer,
) Pipeline {
	return Pipeline{
		converter:    converter,
		preRestorer:  preRestorer,
		postRestorer: postRestorer,
		separator:    separator,
		enhancer:     enhancer,
		mixer:        mixer,
	}
}

// Run executes the whole pipeline for one job. jobRoot/jobID becomes
// the job's exclusive working directory; a pre-existing directory is
// reused. Success is err == nil, in which case the result carries the
// mastered path and the vocal stem actually used in the master.
func (p Pipeline) Run(ctx context.Context, inputPath string, jobRoot string, jobID string) (Result, error) {
	startTime := time.Now()

	logger := log.WithFields(log.Fields{
		"job_id":     jobID,
		"input_path": inputPath,
	})
	logger.Info("Starting pipeline")

	errctx := cerr.Field("job_id", jobID).Field("input_path", inputPath)

	workDir := filepath.Join(jobRoot, jobID)
	if err := os.MkdirAll(workDir, os.ModePerm); err != nil {
		return Result{}, errctx.Field("work_dir", workDir).
			Wrap(err).Error("Failed to create job working directory")
	}

	// CONVERT: safe name, then canonical working format
	safePath, err := p.converter.SafeCopy(inputPath)
	if err != nil {
		return Result{}, errctx.Wrap(err).Error("Convert stage failed to sanitize input name")
	}

	audioPath, err := p.converter.ToWAV(safePath, "")
	if err != nil {
		return Result{}, errctx.Wrap(err).Error("Convert stage failed to transcode input")
	}
	logger.Info("Convert stage done")

	// DENOISE_PRE: aggressive cleanup before separation
	denoisedPath := filepath.Join(workDir, audiopath.MakeName(audioPath, denoisedSuffix))
	if err := p.preRestorer.Restore(ctx, audioPath, denoisedPath); err != nil {
		return Result{}, errctx.Wrap(err).Error("Pre-separation denoise stage failed")
	}
	logger.Info("Pre-separation denoise stage done")

	// SEPARATE
	stems, err := p.separator.Separate(ctx, denoisedPath, workDir)
	if err != nil {
		return Result{}, errctx.Wrap(err).Error("Separation stage failed")
	}
	logger.Info("Separation stage done")

	// ENHANCE
	enhancedPath := filepath.Join(workDir, audiopath.MakeName(stems.VocalPath, enhancedSuffix))
	if err := p.enhancer.Enhance(ctx, stems.VocalPath, enhancedPath, enhanceMode); err != nil {
		return Result{}, errctx.Wrap(err).Error("Enhancement stage failed")
	}
	logger.Info("Enhancement stage done")

	// DENOISE_POST: light pass to clean enhancement artifacts
	finalVocalPath := filepath.Join(workDir, audiopath.MakeName(enhancedPath, finalSuffix))
	if err := p.postRestorer.Restore(ctx, enhancedPath, finalVocalPath); err != nil {
		return Result{}, errctx.Wrap(err).Error("Post-enhancement denoise stage failed")
	}
	logger.Info("Post-enhancement denoise stage done")

	// MASTER
	masteredPath := filepath.Join(workDir, audiopath.MakeName(audioPath, masteredSuffix))
	if err := p.master(finalVocalPath, stems.InstrumentalPath, masteredPath); err != nil {
		return Result{}, errctx.Wrap(err).Error("Mastering stage failed")
	}
	logger.Info("Mastering stage done")

	elapsed := time.Since(startTime)
	logger.WithField("elapsed", elapsed.String()).Info("Pipeline finished")

	return Result{
		MasteredPath: masteredPath,
		VocalPath:    finalVocalPath,
		Elapsed:      elapsed,
	}, nil
}

func (p Pipeline) master(vocalPath string, instrumentalPath string, outputPath string) error {
	errctx := cerr.Field("vocal_path", vocalPath).
		Field("instrumental_path", instrumentalPath).
		Field("output_path", outputPath)

	if err := p.mixer.Load(mix.RoleVocal, vocalPath); err != nil {
		return errctx.Wrap(err).Error("Failed to load vocal track")
	}

	if err := p.mixer.Load(mix.RoleInstrumental, instrumentalPath); err != nil {
		return errctx.Wrap(err).Error("Failed to load instrumental track")
	}

	if err := p.mixer.Normalize(masterTargetDBFS, masterInstrumentalOffset); err != nil {
		return errctx.Wrap(err).Error("Failed to normalize tracks")
	}

	if err := p.mixer.Align(mix.AlignPad); err != nil {
		return errctx.Wrap(err).Error("Failed to align tracks")
	}

	opts := mix.MixOptions{
		VocalVolume:        masterVocalVolume,
		InstrumentalVolume: masterInstrumentalVolume,
		FadeDuration:       masterFadeDuration,
	}

	if err := p.mixer.Export(outputPath, opts); err != nil {
		return errctx.Wrap(err).Error("Failed to export mastered track")
	}

	return nil
}
