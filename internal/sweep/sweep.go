// Package sweep expands a nested sweep-definition JSON document into the
// Cartesian product of per-round config overlays (spec 6: "Optional sweeps
// file: nested object whose array-valued leaves define the Cartesian
// product of per-round permutations").
package sweep

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/viper"

	"github.com/bawdyanarchist/minesim/internal/config"
)

// Overlay is one permutation: a flat map from dotted viper key (e.g.
// "network.ping_ms") to the scalar value that round should use.
type Overlay map[string]interface{}

// LoadFile reads a sweep-definition JSON file and expands it.
func LoadFile(path string) ([]Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sweep: reading %s: %w", path, err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sweep: parsing %s: %w", path, err)
	}
	return Expand(doc)
}

// Expand walks doc and returns the Cartesian product of every array-valued
// leaf, with fixed (non-array) leaves carried into every resulting overlay.
// Axis order is the sorted dotted-path order, so expansion is deterministic
// for a given document regardless of Go's unordered map iteration.
func Expand(doc map[string]interface{}) ([]Overlay, error) {
	fixed := Overlay{}
	axisValues := map[string][]interface{}{}
	var axisPaths []string

	var walk func(prefix string, v interface{})
	walk = func(prefix string, v interface{}) {
		switch vv := v.(type) {
		case map[string]interface{}:
			keys := make([]string, 0, len(vv))
			for k := range vv {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				path := k
				if prefix != "" {
					path = prefix + "." + k
				}
				walk(path, vv[k])
			}
		case []interface{}:
			axisPaths = append(axisPaths, prefix)
			axisValues[prefix] = vv
		default:
			fixed[prefix] = vv
		}
	}
	walk("", doc)
	sort.Strings(axisPaths)

	combos := []Overlay{{}}
	for _, path := range axisPaths {
		values := axisValues[path]
		if len(values) == 0 {
			return nil, fmt.Errorf("sweep: axis %q has no values", path)
		}
		next := make([]Overlay, 0, len(combos)*len(values))
		for _, c := range combos {
			for _, val := range values {
				nc := make(Overlay, len(c)+1)
				for k, v := range c {
					nc[k] = v
				}
				nc[path] = val
				next = append(next, nc)
			}
		}
		combos = next
	}

	for _, c := range combos {
		for k, v := range fixed {
			if _, ok := c[k]; !ok {
				c[k] = v
			}
		}
	}
	return combos, nil
}

// Apply sets every key of o on v and unmarshals a fresh config.Config. It
// mutates v; viper offers no cheap clone, so callers pass a fresh base per
// permutation built from the same config file.
func Apply(v *viper.Viper, o Overlay) (*config.Config, error) {
	for k, val := range o {
		v.Set(k, val)
	}
	return config.FromViper(v)
}
