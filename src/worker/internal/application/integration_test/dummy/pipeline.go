package dummy

import (
	"context"

	"github.com/retunelab/voicefixer-worker/src/worker/internal/pipeline"
)

type PipelineRun struct {
	InputPath string
	JobRoot   string
	JobID     string
}

// Pipeline stands in for the real restoration pipeline. It records
// every run and returns the preset result or error.
type Pipeline struct {
	Runs   []PipelineRun
	Result pipeline.Result
	Err    error
}

func NewDummyPipeline() *Pipeline {
	return &Pipeline{}
}

func (p *Pipeline) Run(ctx context.Context, inputPath string, jobRoot string, jobID string) (pipeline.Result, error) {
	p.Runs = append(p.Runs, PipelineRun{
		InputPath: inputPath,
		JobRoot:   jobRoot,
		JobID:     jobID,
	})

	if p.Err != nil {
		return pipeline.Result{}, p.Err
	}

	return p.Result, nil
}
