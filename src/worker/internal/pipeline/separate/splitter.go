package separate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/executor"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/cerr"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/pipeerrors"
)

type Mode string

const (
	StandardMode    Mode = "standard"
	VintageMode     Mode = "vintage"
	HighQualityMode Mode = "high_quality"
	FastMode        Mode = "fast"
)

type modeParams struct {
	shifts  int
	overlap float64
	jobs    int
}

var modeParamMap = map[Mode]modeParams{
	StandardMode:    {shifts: 1, overlap: 0.25, jobs: 0},
	VintageMode:     {shifts: 7, overlap: 0.65, jobs: 2},
	HighQualityMode: {shifts: 10, overlap: 0.75, jobs: 1},
	FastMode:        {shifts: 0, overlap: 0.1, jobs: 4},
}

// scratchDirName is where demucs is told to put its model output
// inside the job directory. Redirecting it per call is what keeps
// concurrent jobs from racing on a process-wide output location.
const scratchDirName = "separated-scratch"

// Stems is the pair of files separation produces.
type Stems struct {
	VocalPath        string
	InstrumentalPath string
}

// Splitter wraps the demucs source separation collaborator. The model,
// device and mode profile are fixed at construction.
type Splitter struct {
	demucsBinPath string
	model         string
	device        string
	mode          Mode
	executor      executor.Executor
}

func NewSplitter(demucsBinPath string, model string, device string, mode Mode, executor executor.Executor) (Splitter, error) {
	if _, ok := modeParamMap[mode]; !ok {
		return Splitter{}, cerr.Field("mode", mode).Error("Unknown separation mode")
	}

	return Splitter{
		demucsBinPath: demucsBinPath,
		model:         model,
		device:        device,
		mode:          mode,
		executor:      executor,
	}, nil
}

// Separate splits inputPath into a vocal stem and an instrumental stem
// inside outputDir. The collaborator's own output tree is scoped to
// outputDir and removed best-effort once the stems are copied out.
func (s Splitter) Separate(ctx context.Context, inputPath string, outputDir string) (Stems, error) {
	absInputPath, err := filepath.Abs(inputPath)
	if err != nil {
		return Stems{}, cerr.Wrap(err).Error("Cannot convert input path to absolute format")
	}

	errctx := cerr.Field("input_path", absInputPath).
		Field("model", s.model).
		Field("mode", s.mode)

	absOutputDir, err := filepath.Abs(outputDir)
	if err != nil {
		return Stems{}, errctx.Wrap(err).Error("Cannot convert output dir to absolute format")
	}

	// separation is a lengthy process, if we want to halt now is the time
	if ctx.Err() != nil {
		return Stems{}, errctx.Wrap(ctx.Err()).Error("Context cancelled before separation could happen")
	}

	scratchDir := filepath.Join(absOutputDir, scratchDirName)

	// cleanup runs whether demucs succeeds or fails midway, a failed
	// run can still leave a partial output tree behind
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			log.WithField("scratch_dir", scratchDir).
				WithError(err).Warn("Failed to clean up separation scratch dir")
		}
	}()

	if err := s.runDemucs(absInputPath, scratchDir); err != nil {
		return Stems{}, pipeerrors.MarkCollaborator(
			errctx.Field("scratch_dir", scratchDir).
				Wrap(err).Error("Failed to execute demucs"))
	}

	return s.collectStems(absInputPath, scratchDir, absOutputDir)
}

func (s Splitter) runDemucs(inputPath string, scratchDir string) error {
	params := modeParamMap[s.mode]

	args := []string{
		"--two-stems", "vocals",
		"-n", s.model,
		"--float32",
		"--device", s.device,
		"--shifts", fmt.Sprintf("%d", params.shifts),
		"--overlap", fmt.Sprintf("%g", params.overlap),
		"--jobs", fmt.Sprintf("%d", params.jobs),
		"-o", scratchDir,
		inputPath,
	}

	logger := log.WithFields(log.Fields{
		"input_path": inputPath,
		"device":     s.device,
		"mode":       s.mode,
	})
	logger.Info("Running demucs command")

	errctx := cerr.Field("demucs_bin_path", s.demucsBinPath).Field("demucs_args", args)

	cmd := s.executor.Command(s.demucsBinPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errctx.Field("demucs_output", string(output)).
			Wrap(err).
			Error(fmt.Sprintf("Error occurred while running demucs: %s", string(output)))
	}

	logger.Debug(string(output))
	logger.Info("Finished demucs command")
	return nil
}

// collectStems validates the collaborator's output contract - exactly
// two files at a model-and-input-derived location - and copies them up
// into the job directory under deterministic names.
func (s Splitter) collectStems(inputPath string, scratchDir string, outputDir string) (Stems, error) {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	stemDir := filepath.Join(scratchDir, s.model, stem)

	vocalsPath := filepath.Join(stemDir, "vocals.wav")
	noVocalsPath := filepath.Join(stemDir, "no_vocals.wav")

	errctx := cerr.Field("stem_dir", stemDir)

	for _, path := range []string{vocalsPath, noVocalsPath} {
		if _, err := os.Stat(path); err != nil {
			return Stems{}, pipeerrors.MarkMissingFile(pipeerrors.MarkCollaborator(
				errctx.Field("missing_path", path).
					Wrap(err).Error("Demucs output file is missing")))
		}
	}

	finalVocals := filepath.Join(outputDir, stem+"-vocals.wav")
	finalInstrumental := filepath.Join(outputDir, stem+"-instrumental.wav")

	if err := copyFile(vocalsPath, finalVocals); err != nil {
		return Stems{}, errctx.Wrap(err).Error("Failed to copy vocal stem out of scratch dir")
	}

	if err := copyFile(noVocalsPath, finalInstrumental); err != nil {
		return Stems{}, errctx.Wrap(err).Error("Failed to copy instrumental stem out of scratch dir")
	}

	log.WithFields(log.Fields{
		"vocals":       finalVocals,
		"instrumental": finalInstrumental,
	}).Info("Collected separation stems")

	return Stems{
		VocalPath:        finalVocals,
		InstrumentalPath: finalInstrumental,
	}, nil
}

func copyFile(src string, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return cerr.Field("src", src).Wrap(err).Error("Failed to read source file")
	}

	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return cerr.Field("dst", dst).Wrap(err).Error("Failed to write destination file")
	}

	return nil
}
