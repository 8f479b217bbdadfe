package plugin_test

import (
	"math/cmplx"
	"testing"

	Rp "github.com/maroda/risonanza/plugin"
)

func TestBaselinePlugin_Transform(t *testing.T) {
	tr := &Rp.BaselinePlugin{}

	t.Run("Returns Type", func(t *testing.T) {
		assertStringContains(t, tr.Type(), "baseline")
	})

	t.Run("Removes a DC offset", func(t *testing.T) {
		offset := complex(3, -2)
		data := []complex128{
			offset + 1, offset - 1,
			offset + 1i, offset - 1i,
		}

		got, err := tr.Transform(data)
		assertError(t, err, nil)
		assertInt(t, len(got), len(data))

		var sum complex128
		for _, v := range got {
			sum += v
		}
		if cmplx.Abs(sum) > 1e-12 {
			t.Errorf("mean after transform is %v, want 0", sum/4)
		}
		if got[0] != 1 {
			t.Errorf("got[0] = %v, want 1", got[0])
		}
	})

	t.Run("Leaves the input alone", func(t *testing.T) {
		data := []complex128{5, 5, 5}
		_, err := tr.Transform(data)
		assertError(t, err, nil)

		if data[0] != 5 {
			t.Errorf("input mutated to %v", data[0])
		}
	})

	t.Run("Empty input passes through", func(t *testing.T) {
		got, err := tr.Transform(nil)
		assertError(t, err, nil)
		assertInt(t, len(got), 0)
	})
}
