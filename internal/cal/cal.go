// Package cal provides the calibration lookup implementations the pipeline
// can be wired with. Index files and selection rules live outside this
// repository; primitives only ever ask for the best product of a kind
// through ${CAL.kind} references.
package cal

import (
	"fmt"

	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// Static answers lookups from a fixed kind-to-product table, for tests and
// standalone reductions where the calibration library is pre-selected.
type Static struct {
	products map[string]string
}

// NewStatic builds a Static over a copy of products.
func NewStatic(products map[string]string) *Static {
	copied := make(map[string]string, len(products))
	for k, v := range products {
		copied[k] = v
	}
	return &Static{products: copied}
}

func (s *Static) Get(kind string, _ *domain.Frame) (string, error) {
	p, ok := s.products[kind]
	if !ok {
		return "", fmt.Errorf("no %s calibration available", kind)
	}
	return p, nil
}

// Null fails every lookup. It is the default when no calibration source is
// configured, so recipes that need one fail loudly.
type Null struct{}

func (Null) Get(kind string, _ *domain.Frame) (string, error) {
	return "", fmt.Errorf("no calibration source configured (requested %s)", kind)
}
