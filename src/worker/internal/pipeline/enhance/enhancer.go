package enhance

import (
	"context"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/executor"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/cerr"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/pipeerrors"
)

// Enhancer wraps the voicefixer vocal restoration collaborator.
type Enhancer struct {
	voicefixerBinPath string
	useCUDA           bool
	executor          executor.Executor
}

func NewEnhancer(voicefixerBinPath string, useCUDA bool, executor executor.Executor) Enhancer {
	return Enhancer{
		voicefixerBinPath: voicefixerBinPath,
		useCUDA:           useCUDA,
		executor:          executor,
	}
}

// Enhance restores the vocal at inputPath into outputPath. Mode is the
// collaborator's integer restoration mode.
func (e Enhancer) Enhance(ctx context.Context, inputPath string, outputPath string, mode int) error {
	errctx := cerr.Field("input_path", inputPath).
		Field("output_path", outputPath).
		Field("mode", mode)

	if ctx.Err() != nil {
		return errctx.Wrap(ctx.Err()).Error("Context cancelled before enhancement could happen")
	}

	args := []string{
		"--infile", inputPath,
		"--outfile", outputPath,
		"--mode", fmt.Sprintf("%d", mode),
	}
	if e.useCUDA {
		args = append(args, "--cuda")
	}

	logger := log.WithFields(log.Fields{
		"input_path":  inputPath,
		"output_path": outputPath,
		"mode":        mode,
	})
	logger.Info("Running voicefixer command")

	cmd := e.executor.Command(e.voicefixerBinPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return pipeerrors.MarkCollaborator(
			errctx.Field("voicefixer_bin_path", e.voicefixerBinPath).
				Field("voicefixer_output", string(output)).
				Wrap(err).
				Error(fmt.Sprintf("Error occurred while running voicefixer: %s", string(output))))
	}

	logger.Debug(string(output))

	if _, err := os.Stat(outputPath); err != nil {
		return pipeerrors.MarkMissingFile(pipeerrors.MarkCollaborator(
			errctx.Wrap(err).Error("Voicefixer did not produce the output file")))
	}

	logger.Info("Finished voicefixer command")
	return nil
}
