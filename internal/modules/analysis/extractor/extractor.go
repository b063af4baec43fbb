package extractor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"envscope/internal/modules/analysis/types"
)

// Tag marks the start of the machine-readable block in an assistant reply.
const Tag = "[JSON_DATA]"

var (
	ErrNoBlock          = errors.New("extractor: no tagged JSON block")
	ErrMalformedBlock   = errors.New("extractor: tagged block is not valid JSON")
	ErrIncompleteRecord = errors.New("extractor: record is missing required fields")
)

var requiredFields = []string{"sunPath", "wind", "elevation", "climate"}

// Extract finds the last tagged JSON object in text and decodes it into an
// EnvironmentalRecord. Earlier tagged blocks are ignored whether or not they
// parse. Extract never mutates state; callers decide what to replace.
func Extract(text string) (*types.EnvironmentalRecord, error) {
	block, ok := lastBlock(text)
	if !ok {
		return nil, ErrNoBlock
	}
	if !gjson.Valid(block) {
		return nil, fmt.Errorf("%w: %s", ErrMalformedBlock, preview(block))
	}

	parsed := gjson.Parse(block)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedBlock)
	}
	var missing []string
	for _, f := range requiredFields {
		if !parsed.Get(f).IsObject() {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrIncompleteRecord, strings.Join(missing, ", "))
	}

	return decodeRecord(parsed), nil
}

// decodeRecord builds a record from a block that already passed the required
// section check. Leaves of the wrong type read as absent rather than failing
// the whole record; soil and disturbances are never grounds for rejection.
func decodeRecord(r gjson.Result) *types.EnvironmentalRecord {
	sun, wind, elev, climate := r.Get("sunPath"), r.Get("wind"), r.Get("elevation"), r.Get("climate")
	rec := &types.EnvironmentalRecord{
		SunPath: &types.SunPath{
			Azimuth:   number(sun.Get("azimuth")),
			Elevation: number(sun.Get("elevation")),
			Exposure:  number(sun.Get("exposure")),
		},
		Wind: &types.Wind{
			Direction: heading(wind.Get("direction")),
			Speed:     number(wind.Get("speed")),
		},
		Elevation: &types.Elevation{
			Height: number(elev.Get("height")),
			Slope:  number(elev.Get("slope")),
		},
		Climate: &types.Climate{
			Temperature:   number(climate.Get("temperature")),
			Humidity:      number(climate.Get("humidity")),
			Precipitation: number(climate.Get("precipitation")),
		},
	}

	if soil := r.Get("soil"); soil.IsObject() {
		rec.Soil = &types.Soil{
			BDOD:     number(soil.Get("bdod")),
			SOC:      number(soil.Get("soc")),
			Clay:     number(soil.Get("clay")),
			Nitrogen: number(soil.Get("nitrogen")),
			Depth:    number(soil.Get("depth")),
		}
	}

	if ds := r.Get("disturbances"); ds.IsArray() {
		for _, d := range ds.Array() {
			switch {
			case d.IsObject():
				rec.Disturbances = append(rec.Disturbances, types.Disturbance{
					Type:     d.Get("type").String(),
					Severity: number(d.Get("severity")),
				})
			case d.Type == gjson.String:
				rec.Disturbances = append(rec.Disturbances, types.Disturbance{Type: d.Str})
			}
		}
	}
	return rec
}

// number accepts a JSON number or a string holding exactly one number.
// Anything else is treated as absent.
func number(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		return types.Float(r.Num)
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
		return types.Float(v)
	default:
		return nil
	}
}

// heading coerces a direction the way a lenient client would: numbers pass
// through, strings keep their leading number, anything else present is NaN.
func heading(r gjson.Result) *types.Heading {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return types.HeadingOf(r.Num)
	case gjson.String:
		h := types.ParseHeading(r.Str)
		return &h
	default:
		h := types.ParseHeading("")
		return &h
	}
}

// Blocks returns every tagged object candidate in order of appearance.
func Blocks(text string) []string {
	var out []string
	rest := text
	for {
		i := strings.Index(rest, Tag)
		if i < 0 {
			return out
		}
		rest = rest[i+len(Tag):]
		if block, ok := objectAt(rest); ok {
			out = append(out, block)
		}
	}
}

func lastBlock(text string) (string, bool) {
	blocks := Blocks(text)
	if len(blocks) == 0 {
		return "", false
	}
	return blocks[len(blocks)-1], true
}

// objectAt skips leading whitespace and, if the next byte opens an object,
// returns the object up to its matching close brace. Braces inside string
// literals do not count. An object that never closes runs to end of input.
func objectAt(s string) (string, bool) {
	start := len(s) - len(strings.TrimLeft(s, " \t\r\n"))
	if start >= len(s) || s[start] != '{' {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return strings.TrimRight(s[start:], " \t\r\n"), true
}

func preview(s string) string {
	const limit = 80
	s = strings.TrimSpace(s)
	if len(s) > limit {
		return s[:limit] + "…"
	}
	return s
}
