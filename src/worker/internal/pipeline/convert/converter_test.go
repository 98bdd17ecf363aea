package convert_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/integration_test/dummy"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/convert"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/pipeerrors"
)

var _ = Describe("Converter", func() {
	var (
		workDir      string
		ffmpeg       *dummy.Executor
		converter    convert.Converter
		createOutput bool
	)

	writeInput := func(name string) string {
		path := filepath.Join(workDir, name)
		Expect(os.WriteFile(path, []byte("not really audio"), 0o644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		workDir = GinkgoT().TempDir()
		createOutput = true

		ffmpeg = dummy.NewExecutor(func(cmd dummy.ExecutedCommand) ([]byte, error) {
			if createOutput {
				outputPath := cmd.Args[len(cmd.Args)-1]
				Expect(os.WriteFile(outputPath, []byte("converted"), 0o644)).To(Succeed())
			}
			return []byte("ffmpeg output"), nil
		})

		converter = convert.NewConverter("/usr/bin/ffmpeg", ffmpeg)
	})

	Describe("SafeCopy", func() {
		It("returns the same path when the name is already safe", func() {
			inputPath := writeInput("my_song.mp3")

			safePath, err := converter.SafeCopy(inputPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(safePath).To(Equal(inputPath))
		})

		It("duplicates under a sanitized name and leaves the original in place", func() {
			inputPath := writeInput("Mötley Crüe - Live!.mp3")

			safePath, err := converter.SafeCopy(inputPath)
			Expect(err).NotTo(HaveOccurred())

			Expect(filepath.Base(safePath)).To(Equal("motley_crue_live.mp3"))
			Expect(safePath).To(BeAnExistingFile())
			Expect(inputPath).To(BeAnExistingFile())

			content, err := os.ReadFile(safePath)
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal([]byte("not really audio")))
		})

		It("keeps non-Latin names readable and collision free", func() {
			cyrillicPath := writeInput("Темная ночь.mp3")
			otherPath := writeInput("Другая песня.mp3")

			safePath, err := converter.SafeCopy(cyrillicPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(filepath.Base(safePath)).To(Equal("temnaia_noch.mp3"))

			otherSafePath, err := converter.SafeCopy(otherPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(otherSafePath).NotTo(Equal(safePath))

			content, err := os.ReadFile(safePath)
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal([]byte("not really audio")))
		})

		It("fails on a missing input", func() {
			_, err := converter.SafeCopy(filepath.Join(workDir, "Nope Song.mp3"))
			Expect(err).To(HaveOccurred())
			Expect(pipeerrors.IsMissingFile(err)).To(BeTrue())
		})
	})

	Describe("ToWAV", func() {
		It("transcodes to 32-bit float PCM keeping metadata", func() {
			inputPath := writeInput("song.mp3")

			outputPath, err := converter.ToWAV(inputPath, "")
			Expect(err).NotTo(HaveOccurred())

			Expect(ffmpeg.Executed).To(HaveLen(1))
			cmd := ffmpeg.Executed[0]
			Expect(cmd.Name).To(Equal("/usr/bin/ffmpeg"))
			Expect(cmd.Args).To(Equal([]string{
				"-y", "-i", inputPath,
				"-vn", "-acodec", "pcm_f32le",
				"-map_metadata", "0",
				outputPath,
			}))
		})

		It("defaults the output to a sibling with a wav extension", func() {
			inputPath := writeInput("song.mp3")

			outputPath, err := converter.ToWAV(inputPath, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(outputPath).To(Equal(filepath.Join(workDir, "song.wav")))
		})

		It("fails before executing when the input is missing", func() {
			_, err := converter.ToWAV(filepath.Join(workDir, "nope.mp3"), "")
			Expect(err).To(HaveOccurred())
			Expect(pipeerrors.IsMissingFile(err)).To(BeTrue())
			Expect(ffmpeg.Executed).To(BeEmpty())
		})

		It("reports an undecodable input", func() {
			ffmpeg.Handle = func(cmd dummy.ExecutedCommand) ([]byte, error) {
				return []byte("corrupt input"), dummy.BinaryFailure
			}
			inputPath := writeInput("song.mp3")

			_, err := converter.ToWAV(inputPath, "")
			Expect(err).To(HaveOccurred())
			Expect(pipeerrors.IsUnsupportedFormat(err)).To(BeTrue())
		})

		It("reports a missing output file", func() {
			createOutput = false
			inputPath := writeInput("song.mp3")

			_, err := converter.ToWAV(inputPath, "")
			Expect(err).To(HaveOccurred())
			Expect(pipeerrors.IsMissingFile(err)).To(BeTrue())
		})
	})

	Describe("TranscodeFLAC", func() {
		It("re-encodes at maximum compression effort", func() {
			inputPath := writeInput("mixed.wav")
			outputPath := filepath.Join(workDir, "mixed.flac")

			Expect(converter.TranscodeFLAC(inputPath, outputPath)).To(Succeed())

			Expect(ffmpeg.Executed).To(HaveLen(1))
			Expect(ffmpeg.Executed[0].Args).To(Equal([]string{
				"-y", "-i", inputPath,
				"-c:a", "flac", "-compression_level", "12",
				outputPath,
			}))
		})
	})

	Describe("DecodeToPCM", func() {
		It("decodes into integer PCM", func() {
			inputPath := writeInput("song.flac")
			outputPath := filepath.Join(workDir, "decoded.wav")

			Expect(converter.DecodeToPCM(inputPath, outputPath)).To(Succeed())

			Expect(ffmpeg.Executed).To(HaveLen(1))
			Expect(ffmpeg.Executed[0].Args).To(ContainElements("-acodec", "pcm_s24le"))
		})
	})
})
