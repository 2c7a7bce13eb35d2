package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders a primitive's documentation
// block for the terminal using glamour. The block's directives are rewritten
// to markdown before rendering.
func NewRenderer() func(string) (string, error) {
	// Initialize renderer with standard dark style
	// In the future, we can inject style preferences here.
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)

	return func(doc string) (string, error) {
		if err != nil {
			return "", err
		}
		return r.Render(PodToMarkdown(doc))
	}
}

// PodToMarkdown rewrites the documentation directives into their markdown
// equivalents so glamour can render them.
func PodToMarkdown(pod string) string {
	var b strings.Builder
	for _, line := range strings.Split(pod, "\n") {
		switch {
		case strings.HasPrefix(line, "=head1 "):
			b.WriteString("# " + strings.TrimPrefix(line, "=head1 ") + "\n")
		case strings.HasPrefix(line, "=head2 "):
			b.WriteString("## " + strings.TrimPrefix(line, "=head2 ") + "\n")
		case strings.HasPrefix(line, "=item"):
			b.WriteString("- " + strings.TrimSpace(strings.TrimPrefix(line, "=item")) + "\n")
		case strings.HasPrefix(line, "=over"), strings.HasPrefix(line, "=back"):
			// list structure is implicit in markdown
		default:
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}
