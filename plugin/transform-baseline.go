package plugin

/*
	Baseline

	Subtracts the complex mean from the samples, removing the DC
	offset a receiver leaves behind.

	~~~ Plugin Reference Implementation ~~~
*/

type BaselinePlugin struct{}

// Transform is the main wrapper for the interface.
// Other calculation functions should be called from here.
func (tb *BaselinePlugin) Transform(data []complex128) ([]complex128, error) {
	if len(data) == 0 {
		return data, nil
	}

	var sum complex128
	for _, v := range data {
		sum += v
	}
	mean := sum / complex(float64(len(data)), 0)

	out := make([]complex128, len(data))
	for i, v := range data {
		out[i] = v - mean
	}
	return out, nil
}

func (tb *BaselinePlugin) Type() string { return "baseline" }
