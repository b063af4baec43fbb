package scene

import "envscope/internal/modules/analysis/types"

// NotAvailable is shown for any value the record does not carry.
const NotAvailable = "N/A"

type CardLine struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Card is one of the four summary panels shown beside the scene.
type Card struct {
	Title string     `json:"title"`
	Icon  string     `json:"icon"`
	Lines []CardLine `json:"lines"`
}

// Cards summarizes rec as Sun Path, Wind, Elevation and Climate, in that order.
func Cards(rec *types.EnvironmentalRecord) []Card {
	var (
		sun  types.SunPath
		wind types.Wind
		elev types.Elevation
		clim types.Climate
	)
	if rec != nil {
		if rec.SunPath != nil {
			sun = *rec.SunPath
		}
		if rec.Wind != nil {
			wind = *rec.Wind
		}
		if rec.Elevation != nil {
			elev = *rec.Elevation
		}
		if rec.Climate != nil {
			clim = *rec.Climate
		}
	}

	var direction *float64
	if wind.Direction != nil && wind.Direction.Valid() {
		d := float64(*wind.Direction)
		direction = &d
	}

	return []Card{
		{Title: "Sun Path", Icon: "sun", Lines: []CardLine{
			{Label: "Azimuth", Value: withUnit(sun.Azimuth, "°")},
			{Label: "Elevation", Value: withUnit(sun.Elevation, "°")},
		}},
		{Title: "Wind", Icon: "wind", Lines: []CardLine{
			{Label: "Direction", Value: withUnit(direction, "°")},
			{Label: "Speed", Value: withUnit(wind.Speed, " m/s")},
		}},
		{Title: "Elevation", Icon: "mountain", Lines: []CardLine{
			{Label: "Height", Value: withUnit(elev.Height, "m")},
			{Label: "Slope", Value: withUnit(elev.Slope, "°")},
		}},
		{Title: "Climate", Icon: "thermometer", Lines: []CardLine{
			{Label: "Temperature", Value: withUnit(clim.Temperature, "°C")},
			{Label: "Humidity", Value: withUnit(clim.Humidity, "%")},
		}},
	}
}

func withUnit(v *float64, unit string) string {
	if v == nil {
		return NotAvailable
	}
	return formatNumber(*v) + unit
}
