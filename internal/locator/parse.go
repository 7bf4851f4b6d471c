package locator

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpandParcelInput expands the CLI parcel grammar: a single number ("2"),
// a comma list ("1,2,3"), a range ("5-8") or combinations ("1,3,5-8,10").
// Ranges are inclusive and numeric.
func ExpandParcelInput(input string) ([]string, error) {
	input = strings.ReplaceAll(strings.TrimSpace(input), " ", "")
	if input == "" {
		return nil, fmt.Errorf("empty parcel input")
	}

	var out []string
	for _, part := range strings.Split(input, ",") {
		if part == "" {
			continue
		}
		if !strings.Contains(part, "-") {
			out = append(out, part)
			continue
		}
		bounds := strings.SplitN(part, "-", 2)
		start, err := strconv.Atoi(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("invalid parcel range %q: %w", part, err)
		}
		end, err := strconv.Atoi(bounds[1])
		if err != nil {
			return nil, fmt.Errorf("invalid parcel range %q: %w", part, err)
		}
		if end < start {
			return nil, fmt.Errorf("invalid parcel range %q: end before start", part)
		}
		for i := start; i <= end; i++ {
			out = append(out, strconv.Itoa(i))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no parcels in input %q", input)
	}
	return out, nil
}
