package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseUnits expands a unit selection such as "12", "0-5", "0,5,12" or
// "0-3,10" into unit numbers. An empty spec selects every unit.
// Order follows the spec; repeated units are kept once, at first mention.
func (m *Model) ParseUnits(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return m.AllUnits(), nil
	}

	var units []int
	seen := make(map[int]bool)
	add := func(unit int) error {
		if err := m.ValidateUnit(unit); err != nil {
			return err
		}
		if !seen[unit] {
			seen[unit] = true
			units = append(units, unit)
		}
		return nil
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("%w: empty element in %q", ErrInvalidUnitSpec, spec)
		}

		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			unit, err := parseUnit(part)
			if err != nil {
				return nil, err
			}
			if err := add(unit); err != nil {
				return nil, err
			}
			continue
		}

		start, err := parseUnit(lo)
		if err != nil {
			return nil, err
		}
		end, err := parseUnit(hi)
		if err != nil {
			return nil, err
		}
		if end < start {
			return nil, fmt.Errorf("%w: descending range %q", ErrInvalidUnitSpec, part)
		}
		for unit := start; unit <= end; unit++ {
			if err := add(unit); err != nil {
				return nil, err
			}
		}
	}
	return units, nil
}

func parseUnit(s string) (int, error) {
	unit, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a unit number", ErrInvalidUnitSpec, s)
	}
	return unit, nil
}
