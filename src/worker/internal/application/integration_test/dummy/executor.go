package dummy

import (
	"github.com/retunelab/voicefixer-worker/src/worker/internal/application/executor"
)

var _ executor.Executor = &Executor{}

type ExecutedCommand struct {
	Name string
	Args []string
	Dir  string
}

// Executor records every executed command and delegates the outcome to
// Handle. A nil Handle succeeds with empty output.
type Executor struct {
	Executed []ExecutedCommand
	Handle   func(cmd ExecutedCommand) ([]byte, error)
}

func NewExecutor(handle func(cmd ExecutedCommand) ([]byte, error)) *Executor {
	return &Executor{
		Handle: handle,
	}
}

func (e *Executor) Command(name string, arg ...string) executor.Command {
	return &dummyCommand{
		executor: e,
		cmd: ExecutedCommand{
			Name: name,
			Args: arg,
		},
	}
}

type dummyCommand struct {
	executor *Executor
	cmd      ExecutedCommand
}

func (d *dummyCommand) SetDir(dir string) {
	d.cmd.Dir = dir
}

func (d *dummyCommand) CombinedOutput() ([]byte, error) {
	d.executor.Executed = append(d.executor.Executed, d.cmd)

	if d.executor.Handle == nil {
		return []byte{}, nil
	}

	return d.executor.Handle(d.cmd)
}
