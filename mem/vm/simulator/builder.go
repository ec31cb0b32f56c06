package simulator

import (
	"log/slog"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/aging"
)

// A Builder can build Simulators.
type Builder struct {
	config Config
	logger *slog.Logger
}

// MakeBuilder creates a new builder with a small default machine.
func MakeBuilder() Builder {
	return Builder{
		config: Config{
			VirtualAddressBits:  16,
			PhysicalAddressBits: 12,
			OffsetBits:          8,
			NumProcesses:        4,
		},
	}
}

// WithConfig sets the address spaces to simulate.
func (b Builder) WithConfig(config Config) Builder {
	b.config = config
	return b
}

// WithLogger sets the logger that receives fault and eviction messages.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// Build returns a newly created Simulator with every frame empty.
func (b Builder) Build(name string) (*Simulator, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Simulator{
		name:   name,
		config: b.config,
		logger: logger.With("simulator", name),
	}

	// The page number field of a packed entry is as wide as the page offset.
	s.codec = vm.NewCodec(b.config.ProcessBits(), b.config.OffsetBits)
	s.aging = aging.NewTracker(b.config.NumFrames())
	s.frameTable = vm.NewFrameTable(b.config.NumFrames(), s.aging)

	return s, nil
}
