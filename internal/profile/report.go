package profile

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"sheetsql/internal/dataset"
)

// Report renders a per-column summary for humans.
func Report(profiles []Profile) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "column\tkind\tnull%\tunique%\tlen(min/max/avg)\tsamples")
	for _, p := range profiles {
		kind := p.Kind.String()
		if p.Bits > 0 {
			kind = fmt.Sprintf("%s%d", kind, p.Bits)
		}
		samples := make([]string, len(p.Samples))
		for i, s := range p.Samples {
			samples[i] = dataset.Stringify(s)
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%d/%d/%.1f\t%s\n",
			p.Name, kind, p.NullRatio*100, p.UniqueRatio*100,
			p.Lengths.Min, p.Lengths.Max, p.Lengths.Mean,
			strings.Join(samples, ", "))
	}
	w.Flush()
	return b.String()
}
