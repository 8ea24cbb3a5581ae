package main

import (
	"fmt"
	"strconv"
	"strings"
)

func parseCeilings(raw map[string]string) (map[string]float64, error) {
	ceilings := make(map[string]float64, len(raw))
	for path, v := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("ceiling of %s is not a number: %w", path, err)
		}
		ceilings[path] = f
	}
	return ceilings, nil
}
