package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// defaultWaitDelay bounds how long Run waits for output pipes after the
// process is killed. Children of yt-dlp such as ffmpeg can inherit stdout and
// keep it open past the parent's death.
const defaultWaitDelay = 5 * time.Second

// Result holds the captured output of one yt-dlp invocation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes the extractor. Tests swap in a stub.
type Runner interface {
	Run(ctx context.Context, args ...string) (*Result, error)
}

// ExecRunner runs the yt-dlp binary as a subprocess. Arguments are passed as
// discrete argv entries, never through a shell.
type ExecRunner struct {
	Binary    string
	WaitDelay time.Duration
}

func NewExecRunner(binary string) *ExecRunner {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &ExecRunner{Binary: binary, WaitDelay: defaultWaitDelay}
}

// Run returns a Result whenever the process started, even on a non-zero exit.
// The error is only set when the process could not run or was killed by ctx.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.WaitDelay = r.WaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
