package denoise_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/integration_test/dummy"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/denoise"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/pipeerrors"
)

var _ = Describe("Restorer", func() {
	var (
		workDir    string
		ffmpeg     *dummy.Executor
		inputPath  string
		outputPath string

		failFullChain bool
		failAll       bool
	)

	filterArg := func(cmd dummy.ExecutedCommand) string {
		for i, arg := range cmd.Args {
			if arg == "-af" {
				return cmd.Args[i+1]
			}
		}
		return ""
	}

	BeforeEach(func() {
		workDir = GinkgoT().TempDir()
		inputPath = filepath.Join(workDir, "song.wav")
		outputPath = filepath.Join(workDir, "song-denoised.wav")
		failFullChain = false
		failAll = false

		Expect(os.WriteFile(inputPath, []byte("audio"), 0o644)).To(Succeed())

		ffmpeg = dummy.NewExecutor(func(cmd dummy.ExecutedCommand) ([]byte, error) {
			if failAll {
				return []byte("filter error"), dummy.BinaryFailure
			}
			if failFullChain && len(ffmpeg.Executed) == 1 {
				return []byte("no such filter"), dummy.BinaryFailure
			}

			Expect(os.WriteFile(cmd.Args[len(cmd.Args)-1], []byte("denoised"), 0o644)).To(Succeed())
			return []byte{}, nil
		})
	})

	newRestorer := func(intensity denoise.Intensity) denoise.Restorer {
		restorer, err := denoise.NewRestorer("/usr/bin/ffmpeg", denoise.VinylProfile(intensity), ffmpeg)
		Expect(err).NotTo(HaveOccurred())
		return restorer
	}

	Describe("Construction", func() {
		It("rejects an unknown intensity", func() {
			_, err := denoise.NewRestorer("/usr/bin/ffmpeg", denoise.VinylProfile("extreme"), ffmpeg)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Filter chains per intensity", func() {
		It("uses the aggressive parameters", func() {
			restorer := newRestorer(denoise.AggressiveIntensity)

			Expect(restorer.Restore(context.Background(), inputPath, outputPath)).To(Succeed())

			Expect(ffmpeg.Executed).To(HaveLen(1))
			Expect(filterArg(ffmpeg.Executed[0])).To(Equal(
				"afftdn=nr=40:nf=-35,highpass=f=40,lowpass=f=8000," +
					"dynaudnorm=framelen=500," +
					"equalizer=frequency=10000:width_type=q:width=1:gain=1.5"))
		})

		It("uses the light parameters", func() {
			restorer := newRestorer(denoise.LightIntensity)

			Expect(restorer.Restore(context.Background(), inputPath, outputPath)).To(Succeed())

			Expect(filterArg(ffmpeg.Executed[0])).To(ContainSubstring("afftdn=nr=15:nf=-20"))
			Expect(filterArg(ffmpeg.Executed[0])).To(ContainSubstring("highpass=f=60"))
			Expect(filterArg(ffmpeg.Executed[0])).To(ContainSubstring("lowpass=f=12000"))
		})

		It("uses the medium parameters", func() {
			restorer := newRestorer(denoise.MediumIntensity)

			Expect(restorer.Restore(context.Background(), inputPath, outputPath)).To(Succeed())

			Expect(filterArg(ffmpeg.Executed[0])).To(ContainSubstring("afftdn=nr=25:nf=-25"))
		})

		It("resamples the output to 44100", func() {
			restorer := newRestorer(denoise.LightIntensity)

			Expect(restorer.Restore(context.Background(), inputPath, outputPath)).To(Succeed())

			Expect(ffmpeg.Executed[0].Args).To(ContainElements("-ar", "44100"))
		})
	})

	Describe("Fallback behavior", func() {
		It("retries once with the minimal chain when the full chain fails", func() {
			failFullChain = true
			restorer := newRestorer(denoise.MediumIntensity)

			Expect(restorer.Restore(context.Background(), inputPath, outputPath)).To(Succeed())

			Expect(ffmpeg.Executed).To(HaveLen(2))
			Expect(filterArg(ffmpeg.Executed[1])).To(Equal("highpass=f=50,afftdn"))
		})

		It("gives up after both chains fail", func() {
			failAll = true
			restorer := newRestorer(denoise.MediumIntensity)

			err := restorer.Restore(context.Background(), inputPath, outputPath)
			Expect(err).To(HaveOccurred())
			Expect(pipeerrors.IsCollaborator(err)).To(BeTrue())
			Expect(ffmpeg.Executed).To(HaveLen(2))
		})
	})

	Describe("Post-conditions", func() {
		It("reports a missing output file", func() {
			ffmpeg.Handle = func(cmd dummy.ExecutedCommand) ([]byte, error) {
				return []byte{}, nil
			}
			restorer := newRestorer(denoise.LightIntensity)

			err := restorer.Restore(context.Background(), inputPath, outputPath)
			Expect(err).To(HaveOccurred())
			Expect(pipeerrors.IsMissingFile(err)).To(BeTrue())
		})

		It("stops before executing when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			restorer := newRestorer(denoise.LightIntensity)

			err := restorer.Restore(ctx, inputPath, outputPath)
			Expect(err).To(HaveOccurred())
			Expect(ffmpeg.Executed).To(BeEmpty())
		})
	})
})
