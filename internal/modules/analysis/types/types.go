package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message in a session's append-only conversation.
type ConversationTurn struct {
	Role    Role      `json:"role" yaml:"role"`
	Content string    `json:"content" yaml:"content"`
	Time    time.Time `json:"time" yaml:"time"`
}

// EnvironmentalRecord is the validated payload extracted from an assistant
// reply. Records are never mutated after extraction; a newer record replaces
// the previous one wholesale.
type EnvironmentalRecord struct {
	SunPath      *SunPath      `json:"sunPath" yaml:"sunPath"`
	Wind         *Wind         `json:"wind" yaml:"wind"`
	Elevation    *Elevation    `json:"elevation" yaml:"elevation"`
	Climate      *Climate      `json:"climate" yaml:"climate"`
	Soil         *Soil         `json:"soil,omitempty" yaml:"soil,omitempty"`
	Disturbances []Disturbance `json:"disturbances,omitempty" yaml:"disturbances,omitempty"`
}

type SunPath struct {
	Azimuth   *float64 `json:"azimuth,omitempty" yaml:"azimuth,omitempty"`
	Elevation *float64 `json:"elevation,omitempty" yaml:"elevation,omitempty"`
	Exposure  *float64 `json:"exposure,omitempty" yaml:"exposure,omitempty"`
}

type Wind struct {
	Direction *Heading `json:"direction,omitempty" yaml:"direction,omitempty"`
	Speed     *float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
}

type Elevation struct {
	Height *float64 `json:"height,omitempty" yaml:"height,omitempty"`
	Slope  *float64 `json:"slope,omitempty" yaml:"slope,omitempty"`
}

type Climate struct {
	Temperature   *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty" yaml:"humidity,omitempty"`
	Precipitation *float64 `json:"precipitation,omitempty" yaml:"precipitation,omitempty"`
}

type Soil struct {
	BDOD     *float64 `json:"bdod,omitempty" yaml:"bdod,omitempty"`
	SOC      *float64 `json:"soc,omitempty" yaml:"soc,omitempty"`
	Clay     *float64 `json:"clay,omitempty" yaml:"clay,omitempty"`
	Nitrogen *float64 `json:"nitrogen,omitempty" yaml:"nitrogen,omitempty"`
	Depth    *float64 `json:"depth,omitempty" yaml:"depth,omitempty"`
}

type Disturbance struct {
	Type     string   `json:"type" yaml:"type"`
	Severity *float64 `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// Heading is a compass bearing in degrees. Models return it either as a JSON
// number or as a numeric string; a string that does not parse becomes NaN.
type Heading float64

// ParseHeading reads the leading decimal number of s, so "225 (SW)" and
// "45°" both parse. Input with no leading number yields NaN.
func ParseHeading(s string) Heading {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s[:numberPrefix(s)], 64)
	if err != nil {
		return Heading(math.NaN())
	}
	return Heading(v)
}

// numberPrefix returns the length of the longest decimal float at the start
// of s: optional sign, digits with at most one point, optional exponent.
func numberPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
			digits++
		}
		i = j
	}
	if digits == 0 {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (h *Heading) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*h = ParseHeading(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("heading: %w", err)
	}
	*h = Heading(f)
	return nil
}

// MarshalJSON writes NaN and infinities as null since JSON has no encoding for them.
func (h Heading) MarshalJSON() ([]byte, error) {
	if !h.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(h))
}

// MarshalYAML mirrors MarshalJSON.
func (h Heading) MarshalYAML() (any, error) {
	if !h.Valid() {
		return nil, nil
	}
	return float64(h), nil
}

// Valid reports whether h is a finite number.
func (h Heading) Valid() bool {
	f := float64(h)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// HeadingOf returns a pointer to a Heading of v degrees.
func HeadingOf(v float64) *Heading {
	h := Heading(v)
	return &h
}

// Analysis is one logged extraction, keyed by the session that produced it.
type Analysis struct {
	ID            int64               `json:"id"`
	SessionID     string              `json:"sessionId"`
	CreatedAt     time.Time           `json:"createdAt"`
	SunAzimuth    *float64            `json:"sunAzimuth"`
	SunElevation  *float64            `json:"sunElevation"`
	WindDirection *float64            `json:"windDirection"`
	WindSpeed     *float64            `json:"windSpeed"`
	Height        *float64            `json:"height"`
	Slope         *float64            `json:"slope"`
	TemperatureC  *float64            `json:"temperatureC"`
	HumidityPct   *float64            `json:"humidityPct"`
	Record        EnvironmentalRecord `json:"record"`
}
