package masks

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/Noofbiz/inpaintdata/transform"
)

// ErrConfig is returned when a Generator cannot be built from its Config.
var ErrConfig = errors.New("invalid mask configuration")

// DefaultCenterFraction is the side of the Center mask relative to the image.
const DefaultCenterFraction = 0.5

// Config configures a Generator.
type Config struct {
	// Types is the set of strategies; one is drawn uniformly per mask.
	Types []Type

	// Width and Height are the sizes masks will be requested at. Zero skips
	// the size check for RandomIrregular.
	Width, Height int

	// CenterFraction defaults to DefaultCenterFraction.
	CenterFraction float64

	// Pool lists mask image files for ExternalFile.
	Pool []string

	// IsTrain selects a random pool file; otherwise the file is picked by
	// sample index.
	IsTrain bool

	Decode transform.DecodeOptions
}

// Generator produces masks from a fixed set of strategies. It holds no
// mutable state and is safe for concurrent use.
type Generator struct {
	cfg Config
}

// NewGenerator validates cfg and returns a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if len(cfg.Types) == 0 {
		return nil, errors.Wrap(ErrConfig, "no mask types configured")
	}
	if cfg.CenterFraction == 0 {
		cfg.CenterFraction = DefaultCenterFraction
	}
	if cfg.CenterFraction < 0 || cfg.CenterFraction > 1 {
		return nil, errors.Wrapf(ErrConfig, "center fraction %g outside [0, 1]", cfg.CenterFraction)
	}
	for _, t := range cfg.Types {
		switch t {
		case Center, RandomRegular:
		case RandomIrregular:
			if (cfg.Width > 0 && cfg.Width < MinIrregularSize) || (cfg.Height > 0 && cfg.Height < MinIrregularSize) {
				return nil, errors.Wrapf(ErrConfig, "irregular masks need at least %dx%d, got %dx%d",
					MinIrregularSize, MinIrregularSize, cfg.Width, cfg.Height)
			}
		case ExternalFile:
			if len(cfg.Pool) == 0 {
				return nil, errors.Wrap(ErrConfig, "external mask type requires a non-empty mask pool")
			}
		default:
			return nil, errors.Wrapf(ErrConfig, "unknown mask type %d", int(t))
		}
	}
	cfg.Types = append([]Type(nil), cfg.Types...)
	cfg.Pool = append([]string(nil), cfg.Pool...)
	return &Generator{cfg: cfg}, nil
}

// Types returns the configured strategies.
func (g *Generator) Types() []Type {
	return append([]Type(nil), g.cfg.Types...)
}

// PoolSize returns the number of external mask files.
func (g *Generator) PoolSize() int {
	return len(g.cfg.Pool)
}

// Generate draws a strategy and returns a width x height mask. index is the
// resolved sample index; it selects the external file during evaluation.
func (g *Generator) Generate(rng *rand.Rand, width, height, index int) (*Mask, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid mask size %dx%d", width, height)
	}
	t := g.cfg.Types[rng.Intn(len(g.cfg.Types))]
	switch t {
	case Center:
		return CenterMask(width, height, g.cfg.CenterFraction), nil
	case RandomRegular:
		return RandomRegularMask(rng, width, height), nil
	case RandomIrregular:
		if width < MinIrregularSize || height < MinIrregularSize {
			return nil, errors.Errorf("irregular masks need at least %dx%d, got %dx%d",
				MinIrregularSize, MinIrregularSize, width, height)
		}
		return RandomIrregularMask(rng, width, height), nil
	case ExternalFile:
		return ExternalFileMask(rng, g.pick(rng, index), width, height, g.cfg.Decode)
	}
	return nil, errors.Errorf("unknown mask type %d", int(t))
}

func (g *Generator) pick(rng *rand.Rand, index int) string {
	n := len(g.cfg.Pool)
	if g.cfg.IsTrain {
		return g.cfg.Pool[rng.Intn(n)]
	}
	i := index % n
	if i < 0 {
		i += n
	}
	return g.cfg.Pool[i]
}
