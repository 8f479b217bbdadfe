package plugin

import "fmt"

// Transformers is a global map of SampleTransformer plugins.
var Transformers = map[string]func() SampleTransformer{
	"baseline": func() SampleTransformer {
		return &BaselinePlugin{}
	},
	"phase0": func() SampleTransformer {
		return NewPhaseTransformer(0)
	},
}

func TransformerLookup(name string) (SampleTransformer, error) {
	factory, ok := Transformers[name]
	if !ok {
		return nil, fmt.Errorf("unknown transformer: %s", name)
	}
	return factory(), nil
}
