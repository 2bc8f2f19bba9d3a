package index

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jeromekelleher/wormtable/werror"
)

// Spec is a parsed index name: `col ("+" col)* ("[" width "]")?`. A
// trailing `[w]` applies a bin of width w to the last named column only.
type Spec struct {
	Columns  []string
	HasBin   bool
	BinWidth float64
}

var (
	columnNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	binSuffixRe  = regexp.MustCompile(`^(.+)\[(\d+(?:\.\d+)?)\]$`)
)

// ParseName parses an index name into its column list and optional bin
// width on the last column.
func ParseName(name string) (Spec, error) {
	body := name
	var spec Spec
	if m := binSuffixRe.FindStringSubmatch(name); m != nil {
		body = m[1]
		w, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return Spec{}, werror.Validation(err, "index name %q: invalid bin width", name)
		}
		if w <= 0 {
			return Spec{}, werror.Validation(nil, "index name %q: bin width must be positive", name)
		}
		spec.HasBin = true
		spec.BinWidth = w
	}
	if body == "" {
		return Spec{}, werror.Validation(nil, "index name %q: names at least one column", name)
	}
	for _, c := range strings.Split(body, "+") {
		if !columnNameRe.MatchString(c) {
			return Spec{}, werror.Validation(nil, "index name %q: invalid column name %q", name, c)
		}
		spec.Columns = append(spec.Columns, c)
	}
	return spec, nil
}
