package convert

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/executor"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/audiopath"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/cerr"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/pipeerrors"
)

// Converter normalizes audio files into the canonical working format
// and handles all other container re-encoding, by shelling out to
// ffmpeg.
type Converter struct {
	ffmpegBinPath string
	executor      executor.Executor
}

func NewConverter(ffmpegBinPath string, executor executor.Executor) Converter {
	return Converter{
		ffmpegBinPath: ffmpegBinPath,
		executor:      executor,
	}
}

// SafeCopy sanitizes the file's name to a safe canonical form. When
// sanitization changes the name, the file is duplicated under the new
// name - the original is never renamed or touched.
func (c Converter) SafeCopy(inputPath string) (string, error) {
	absPath, err := filepath.Abs(inputPath)
	if err != nil {
		return "", cerr.Field("input_path", inputPath).
			Wrap(err).Error("Failed to convert input path to absolute format")
	}

	safePath := audiopath.SafeName(absPath)
	if safePath == absPath {
		log.WithField("path", absPath).Info("Input name already safe")
		return absPath, nil
	}

	if err := copyFile(absPath, safePath); err != nil {
		return "", cerr.Field("input_path", absPath).Field("safe_path", safePath).
			Wrap(err).Error("Failed to copy file to safe name")
	}

	log.WithFields(log.Fields{
		"input_path": absPath,
		"safe_path":  safePath,
	}).Info("Copied file to safe name")

	return safePath, nil
}

// ToWAV transcodes into the canonical working format: a WAV container
// with 32-bit float samples, metadata preserved. An empty outputPath
// writes next to the input with the extension swapped.
func (c Converter) ToWAV(inputPath string, outputPath string) (string, error) {
	if outputPath == "" {
		outputPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".wav"
	}

	args := []string{"-y", "-i", inputPath, "-vn", "-acodec", "pcm_f32le", "-map_metadata", "0", outputPath}
	if err := c.runFFmpeg(inputPath, outputPath, args); err != nil {
		return "", err
	}

	return outputPath, nil
}

// DecodeToPCM decodes any supported container into integer PCM WAV,
// the format the mixing engine's in-memory codec reads.
func (c Converter) DecodeToPCM(inputPath string, outputPath string) error {
	args := []string{"-y", "-i", inputPath, "-vn", "-acodec", "pcm_s24le", outputPath}
	return c.runFFmpeg(inputPath, outputPath, args)
}

// Transcode re-encodes into the container implied by the output
// path's extension, letting ffmpeg pick the codec.
func (c Converter) Transcode(inputPath string, outputPath string) error {
	args := []string{"-y", "-i", inputPath, "-vn", "-map_metadata", "0", outputPath}
	return c.runFFmpeg(inputPath, outputPath, args)
}

// TranscodeFLAC re-encodes into FLAC at maximum compression effort.
func (c Converter) TranscodeFLAC(inputPath string, outputPath string) error {
	args := []string{"-y", "-i", inputPath, "-c:a", "flac", "-compression_level", "12", outputPath}
	return c.runFFmpeg(inputPath, outputPath, args)
}

func (c Converter) runFFmpeg(inputPath string, outputPath string, args []string) error {
	errctx := cerr.Field("input_path", inputPath).
		Field("output_path", outputPath).
		Field("ffmpeg_args", args)

	if _, err := os.Stat(inputPath); err != nil {
		return pipeerrors.MarkMissingFile(
			errctx.Wrap(err).Error("Input file does not exist"))
	}

	logger := log.WithFields(log.Fields{
		"input_path":  inputPath,
		"output_path": outputPath,
	})
	logger.Info("Running ffmpeg command")

	cmd := c.executor.Command(c.ffmpegBinPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return pipeerrors.MarkUnsupportedFormat(
			errctx.Field("ffmpeg_output", string(output)).
				Wrap(err).
				Error(fmt.Sprintf("Error occurred while running ffmpeg: %s", string(output))))
	}

	logger.Debug(string(output))

	if _, err := os.Stat(outputPath); err != nil {
		return pipeerrors.MarkMissingFile(
			errctx.Wrap(err).Error("ffmpeg did not produce the output file"))
	}

	logger.Info("Finished ffmpeg command")
	return nil
}

func copyFile(src string, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return pipeerrors.MarkMissingFile(
			cerr.Field("src", src).Wrap(err).Error("Failed to open source file"))
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return cerr.Field("dst", dst).Wrap(err).Error("Failed to create destination file")
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return cerr.Field("src", src).Field("dst", dst).
			Wrap(err).Error("Failed to copy file contents")
	}

	return nil
}
