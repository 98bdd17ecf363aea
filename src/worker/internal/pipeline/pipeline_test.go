package pipeline_test

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/mix"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline/separate"
)

type fakeConverter struct {
	safeCopies []string
	toWAVs     []string
}

func (f *fakeConverter) SafeCopy(inputPath string) (string, error) {
	f.safeCopies = append(f.safeCopies, inputPath)
	return inputPath, nil
}

func (f *fakeConverter) ToWAV(inputPath string, outputPath string) (string, error) {
	f.toWAVs = append(f.toWAVs, inputPath)
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".wav", nil
}

type restoreCall struct {
	inputPath  string
	outputPath string
}

type fakeRestorer struct {
	calls []restoreCall
	err   error
}

func (f *fakeRestorer) Restore(ctx context.Context, inputPath string, outputPath string) error {
	f.calls = append(f.calls, restoreCall{inputPath: inputPath, outputPath: outputPath})
	return f.err
}

type fakeSeparator struct {
	inputs []string
	err    error
}

func (f *fakeSeparator) Separate(ctx context.Context, inputPath string, outputDir string) (separate.Stems, error) {
	f.inputs = append(f.inputs, inputPath)
	if f.err != nil {
		return separate.Stems{}, f.err
	}

	return separate.Stems{
		VocalPath:        filepath.Join(outputDir, "song-denoised-vocals.wav"),
		InstrumentalPath: filepath.Join(outputDir, "song-denoised-instrumental.wav"),
	}, nil
}

type enhanceCall struct {
	inputPath  string
	outputPath string
	mode       int
}

type fakeEnhancer struct {
	calls []enhanceCall
	err   error
}

func (f *fakeEnhancer) Enhance(ctx context.Context, inputPath string, outputPath string, mode int) error {
	f.calls = append(f.calls, enhanceCall{inputPath: inputPath, outputPath: outputPath, mode: mode})
	return f.err
}

type fakeMixer struct {
	loads      map[mix.Role]string
	normalized []float64
	aligned    []mix.Strategy
	exports    []string
	exportOpts []mix.MixOptions
	exportErr  error
}

func newFakeMixer() *fakeMixer {
	return &fakeMixer{loads: map[mix.Role]string{}}
}

func (f *fakeMixer) Load(role mix.Role, path string) error {
	f.loads[role] = path
	return nil
}

func (f *fakeMixer) Normalize(targetDBFS float64, instrumentalOffset float64) error {
	f.normalized = append(f.normalized, targetDBFS, instrumentalOffset)
	return nil
}

func (f *fakeMixer) Align(strategy mix.Strategy) error {
	f.aligned = append(f.aligned, strategy)
	return nil
}

func (f *fakeMixer) Export(outputPath string, opts mix.MixOptions) error {
	f.exports = append(f.exports, outputPath)
	f.exportOpts = append(f.exportOpts, opts)
	return f.exportErr
}

var _ = Describe("Pipeline", func() {
	var (
		jobRoot   string
		jobID     string
		inputPath string
		workDir   string

		converter    *fakeConverter
		preRestorer  *fakeRestorer
		postRestorer *fakeRestorer
		separator    *fakeSeparator
		enhancer     *fakeEnhancer
		mixer        *fakeMixer

		p pipeline.Pipeline
	)

	BeforeEach(func() {
		By("Initializing all variables", func() {
			jobRoot = GinkgoT().TempDir()
			jobID = "job-id"
			workDir = filepath.Join(jobRoot, jobID)
			inputPath = filepath.Join(jobRoot, "song.flac")

			converter = &fakeConverter{}
			preRestorer = &fakeRestorer{}
			postRestorer = &fakeRestorer{}
			separator = &fakeSeparator{}
			enhancer = &fakeEnhancer{}
			mixer = newFakeMixer()
		})

		By("Instantiating the pipeline", func() {
			p = pipeline.NewPipeline(converter, preRestorer, postRestorer, separator, enhancer, mixer)
		})
	})

	Describe("Happy path", func() {
		var result pipeline.Result
		var err error

		BeforeEach(func() {
			result, err = p.Run(context.Background(), inputPath, jobRoot, jobID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("creates the job working directory", func() {
			Expect(workDir).To(BeADirectory())
		})

		It("converts the input before anything else", func() {
			Expect(converter.safeCopies).To(ConsistOf(inputPath))
			Expect(converter.toWAVs).To(ConsistOf(inputPath))
		})

		It("denoises aggressively into the job directory before separating", func() {
			Expect(preRestorer.calls).To(HaveLen(1))
			call := preRestorer.calls[0]
			Expect(call.inputPath).To(Equal(filepath.Join(jobRoot, "song.wav")))
			Expect(call.outputPath).To(Equal(filepath.Join(workDir, "song-denoised.wav")))
		})

		It("separates the denoised audio", func() {
			Expect(separator.inputs).To(ConsistOf(filepath.Join(workDir, "song-denoised.wav")))
		})

		It("enhances the vocal stem with mode 1", func() {
			Expect(enhancer.calls).To(HaveLen(1))
			call := enhancer.calls[0]
			Expect(call.inputPath).To(Equal(filepath.Join(workDir, "song-denoised-vocals.wav")))
			Expect(call.outputPath).To(Equal(filepath.Join(workDir, "song-denoised-vocals-enhanced.wav")))
			Expect(call.mode).To(Equal(1))
		})

		It("lightly denoises the enhanced vocal", func() {
			Expect(postRestorer.calls).To(HaveLen(1))
			call := postRestorer.calls[0]
			Expect(call.inputPath).To(Equal(filepath.Join(workDir, "song-denoised-vocals-enhanced.wav")))
			Expect(call.outputPath).To(Equal(filepath.Join(workDir, "song-denoised-vocals-enhanced-final.wav")))
		})

		It("masters with the fixed parameters", func() {
			Expect(mixer.loads).To(HaveKeyWithValue(
				mix.RoleVocal, filepath.Join(workDir, "song-denoised-vocals-enhanced-final.wav")))
			Expect(mixer.loads).To(HaveKeyWithValue(
				mix.RoleInstrumental, filepath.Join(workDir, "song-denoised-instrumental.wav")))

			Expect(mixer.normalized).To(Equal([]float64{-18, -2.5}))
			Expect(mixer.aligned).To(Equal([]mix.Strategy{mix.AlignPad}))

			Expect(mixer.exports).To(ConsistOf(filepath.Join(workDir, "song-improved-mastered.wav")))
			Expect(mixer.exportOpts[0].VocalVolume).To(Equal(0.95))
			Expect(mixer.exportOpts[0].InstrumentalVolume).To(Equal(0.85))
			Expect(mixer.exportOpts[0].FadeDuration.Milliseconds()).To(Equal(int64(800)))
		})

		It("reports the mastered and final vocal paths", func() {
			Expect(result.MasteredPath).To(Equal(filepath.Join(workDir, "song-improved-mastered.wav")))
			Expect(result.VocalPath).To(Equal(filepath.Join(workDir, "song-denoised-vocals-enhanced-final.wav")))
			Expect(result.Elapsed).To(BeNumerically(">", 0))
		})
	})

	Describe("Separation failure", func() {
		BeforeEach(func() {
			separator.err = errors.New("demucs exploded")
		})

		It("fails the run and stops before the later stages", func() {
			result, err := p.Run(context.Background(), inputPath, jobRoot, jobID)
			Expect(err).To(HaveOccurred())

			Expect(result).To(Equal(pipeline.Result{}))
			Expect(enhancer.calls).To(BeEmpty())
			Expect(postRestorer.calls).To(BeEmpty())
			Expect(mixer.exports).To(BeEmpty())
		})
	})

	Describe("Pre-denoise failure", func() {
		BeforeEach(func() {
			preRestorer.err = errors.New("ffmpeg exploded")
		})

		It("fails the run and never separates", func() {
			_, err := p.Run(context.Background(), inputPath, jobRoot, jobID)
			Expect(err).To(HaveOccurred())
			Expect(separator.inputs).To(BeEmpty())
		})
	})

	Describe("Export failure", func() {
		BeforeEach(func() {
			mixer.exportErr = errors.New("disk full")
		})

		It("fails the run with no result", func() {
			result, err := p.Run(context.Background(), inputPath, jobRoot, jobID)
			Expect(err).To(HaveOccurred())
			Expect(result).To(Equal(pipeline.Result{}))
		})
	})
})
