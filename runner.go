package oracdr

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// Runner handles the reduction loop over a batch of observations using
// provided IO. This allows for easy testing and integration with different
// frontends (CLI, TUI, etc).
type Runner struct {
	Output io.Writer
	// Mode is stamped on every frame; the locator uses it to pick between
	// same-named primitive variants.
	Mode domain.ObsMode
	// Headers is applied to every frame's translated header, e.g. OBJECT
	// for parameter-file overrides.
	Headers map[string]string
	// KeepGoing continues past failed observations instead of stopping at
	// the first one. A user abort still stops the batch.
	KeepGoing bool
}

// NewRunner creates a new Runner. Set Output before calling Run.
func NewRunner() *Runner {
	return &Runner{}
}

// Run reduces each file with the named recipe, one frame per file, in order.
// With KeepGoing the errors of all failed observations are joined; otherwise
// the first failure stops the batch.
func (r *Runner) Run(ctx context.Context, p *Pipeline, recipe string, files []string) error {
	writer := r.Output
	if writer == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}

	var failed error
	done := 0
	for _, file := range files {
		frame := domain.NewFrame(file)
		frame.Mode = r.Mode
		for k, v := range r.Headers {
			frame.Hdr[k] = v
		}

		fmt.Fprintf(writer, "reducing %s with %s\n", file, recipe)
		err := p.RunRecipe(ctx, recipe, frame)
		if err == nil {
			done++
			continue
		}
		if errors.Is(err, domain.ErrUserAbort) {
			fmt.Fprintln(writer, "aborted")
			return err
		}

		fmt.Fprintf(writer, "failed: %v\n", err)
		if !r.KeepGoing {
			return fmt.Errorf("reduce %s: %w", file, err)
		}
		failed = errors.Join(failed, fmt.Errorf("reduce %s: %w", file, err))
	}

	fmt.Fprintf(writer, "%d of %d observations reduced\n", done, len(files))
	return failed
}
