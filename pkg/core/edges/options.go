package edges

import "github.com/paulinet/qmcgraph/pkg/core/distance"

const (
	// DefaultCutoff is the distance threshold used when none is configured.
	DefaultCutoff = 10.0
	// DefaultOccupancyLimit is the initial capacity used when none is configured.
	DefaultOccupancyLimit = 2
)

// EdgeOptions are the user-facing knobs of one edge type.
type EdgeOptions struct {
	Cutoff         float64 `yaml:"cutoff" json:"cutoff"`
	OccupancyLimit int     `yaml:"occupancy_limit" json:"occupancy_limit"`
}

// DefaultEdgeOptions returns {cutoff: 10.0, occupancy_limit: 2}.
func DefaultEdgeOptions() EdgeOptions {
	return EdgeOptions{
		Cutoff:         DefaultCutoff,
		OccupancyLimit: DefaultOccupancyLimit,
	}
}

// withDefaults fills zero fields from DefaultEdgeOptions.
func (o EdgeOptions) withDefaults() EdgeOptions {
	d := DefaultEdgeOptions()
	if o.Cutoff == 0 {
		o.Cutoff = d.Cutoff
	}
	if o.OccupancyLimit == 0 {
		o.OccupancyLimit = d.OccupancyLimit
	}
	return o
}

// factoryConfig collects FactoryOption values.
type factoryConfig struct {
	precision distance.PrecisionType
	workers   int
	onGrow    func(t Type, from, to int)
}

// FactoryOption customises every builder a Factory creates.
type FactoryOption func(*factoryConfig)

// WithPrecision selects the distance precision for all edge types.
func WithPrecision(p distance.PrecisionType) FactoryOption {
	return func(c *factoryConfig) { c.precision = p }
}

// WithWorkers bounds the parallel batch map of every builder (0 = GOMAXPROCS).
func WithWorkers(n int) FactoryOption {
	return func(c *factoryConfig) { c.workers = n }
}

// WithGrowthHook registers fn to be told about every occupancy limit growth.
func WithGrowthHook(fn func(t Type, from, to int)) FactoryOption {
	return func(c *factoryConfig) { c.onGrow = fn }
}
