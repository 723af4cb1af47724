package sweep

import (
	"testing"
)

func TestExpandCartesianProduct(t *testing.T) {
	doc := map[string]interface{}{
		"network": map[string]interface{}{
			"ping_ms": []interface{}{50.0, 100.0},
			"mbps":    []interface{}{10.0, 100.0},
		},
		"sim": map[string]interface{}{
			"seed": 7.0,
		},
	}
	combos, err := Expand(doc)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(combos) != 4 {
		t.Fatalf("len(combos) = %d, want 4 (2x2 cartesian product)", len(combos))
	}
	for _, c := range combos {
		if c["sim.seed"] != 7.0 {
			t.Errorf("fixed leaf sim.seed missing from overlay %v", c)
		}
		if _, ok := c["network.ping_ms"]; !ok {
			t.Errorf("overlay %v missing network.ping_ms", c)
		}
		if _, ok := c["network.mbps"]; !ok {
			t.Errorf("overlay %v missing network.mbps", c)
		}
	}
}

func TestExpandNoAxesReturnsSingleFixedOverlay(t *testing.T) {
	doc := map[string]interface{}{
		"sim": map[string]interface{}{"seed": 1.0, "workers": 4.0},
	}
	combos, err := Expand(doc)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(combos) != 1 {
		t.Fatalf("len(combos) = %d, want 1", len(combos))
	}
	if combos[0]["sim.seed"] != 1.0 || combos[0]["sim.workers"] != 4.0 {
		t.Errorf("unexpected overlay: %v", combos[0])
	}
}

func TestExpandIsDeterministic(t *testing.T) {
	doc := map[string]interface{}{
		"a": []interface{}{1.0, 2.0},
		"b": []interface{}{3.0, 4.0},
	}
	first, err := Expand(doc)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	second, err := Expand(doc)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i]["a"] != second[i]["a"] || first[i]["b"] != second[i]["b"] {
			t.Errorf("combo %d differs between runs: %v vs %v", i, first[i], second[i])
		}
	}
}
