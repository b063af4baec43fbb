package scene

import (
	"math"
	"strconv"

	"envscope/internal/modules/analysis/types"
)

const (
	TerrainFootprint = 10.0
	MinTerrainHeight = 0.1

	WindHeight      = 5.0
	ShaftRadius     = 0.1
	ConeRadius      = 0.3
	ConeHeight      = 1.0
	ConeSegments    = 32
	SunHeight       = 10.0
	SunRadius       = 1.0
	LabelHeight     = 6.0
	DefaultAzimuth  = 0.0
	DefaultSunElev  = 45.0
	GridSize        = 20
	GridDivisions   = 20
	CameraFOV       = 50.0
	AmbientLight    = 0.4
	PointLightPower = 0.6
)

type Vec3 [3]float64

// Rotation is an Euler rotation (X, Y, Z) carried in both units so that
// renderers never convert.
type Rotation struct {
	Degrees Vec3 `json:"degrees"`
	Radians Vec3 `json:"radians"`
}

func rotation(x, y, z float64) Rotation {
	return Rotation{
		Degrees: Vec3{x, y, z},
		Radians: Vec3{toRadians(x), toRadians(y), toRadians(z)},
	}
}

type Camera struct {
	Position Vec3    `json:"position"`
	FOV      float64 `json:"fov"`
	Controls string  `json:"controls"`
}

type PointLight struct {
	Position  Vec3    `json:"position"`
	Intensity float64 `json:"intensity"`
}

type Lights struct {
	Ambient float64    `json:"ambient"`
	Point   PointLight `json:"point"`
}

type Grid struct {
	Size      int    `json:"size"`
	Divisions int    `json:"divisions"`
	Color     string `json:"color"`
}

type Terrain struct {
	Size     Vec3   `json:"size"`
	Position Vec3   `json:"position"`
	Color    string `json:"color"`
}

type Shaft struct {
	Radius float64 `json:"radius"`
	Length float64 `json:"length"`
}

type Cone struct {
	Radius   float64 `json:"radius"`
	Height   float64 `json:"height"`
	Segments int     `json:"segments"`
	Position Vec3    `json:"position"`
}

type WindIndicator struct {
	Position Vec3     `json:"position"`
	Rotation Rotation `json:"rotation"`
	Shaft    Shaft    `json:"shaft"`
	Cone     Cone     `json:"cone"`
	Color    string   `json:"color"`
}

type SunMarker struct {
	Position Vec3     `json:"position"`
	Rotation Rotation `json:"rotation"`
	Radius   float64  `json:"radius"`
	Color    string   `json:"color"`
}

type Label struct {
	Text     string  `json:"text"`
	Position Vec3    `json:"position"`
	FontSize float64 `json:"fontSize"`
}

// Scene is everything a renderer needs to draw one EnvironmentalRecord.
type Scene struct {
	Background string         `json:"background"`
	Camera     Camera         `json:"camera"`
	Lights     Lights         `json:"lights"`
	Grid       Grid           `json:"grid"`
	Terrain    Terrain        `json:"terrain"`
	Wind       *WindIndicator `json:"wind"`
	Sun        SunMarker      `json:"sun"`
	Label      Label          `json:"label"`
}

// Project maps rec onto scene primitives. A nil record, or any absent part of
// it, falls back to defaults. Project has no state and never fails.
func Project(rec *types.EnvironmentalRecord) Scene {
	height := 0.0
	if rec != nil && rec.Elevation != nil {
		height = value(rec.Elevation.Height, 0)
	}
	boxHeight := math.Max(height, MinTerrainHeight)

	s := Scene{
		Background: "#111827",
		Camera:     Camera{Position: Vec3{15, 15, 15}, FOV: CameraFOV, Controls: "orbit"},
		Lights: Lights{
			Ambient: AmbientLight,
			Point:   PointLight{Position: Vec3{10, 10, 10}, Intensity: PointLightPower},
		},
		Grid: Grid{Size: GridSize, Divisions: GridDivisions, Color: "#374151"},
		Terrain: Terrain{
			Size:     Vec3{TerrainFootprint, boxHeight, TerrainFootprint},
			Position: Vec3{0, boxHeight / 2, 0},
			Color:    "#2F4858",
		},
		Sun: projectSun(rec),
		Label: Label{
			Text:     "Elevation: " + formatNumber(height) + "m",
			Position: Vec3{0, LabelHeight, 0},
			FontSize: 0.5,
		},
	}
	if rec != nil && rec.Wind != nil {
		s.Wind = projectWind(rec.Wind)
	}
	return s
}

func projectWind(w *types.Wind) *WindIndicator {
	direction := 0.0
	if w.Direction != nil && w.Direction.Valid() {
		direction = float64(*w.Direction)
	}
	speed := value(w.Speed, 0)

	return &WindIndicator{
		Position: Vec3{0, WindHeight, 0},
		Rotation: rotation(0, direction, 0),
		Shaft:    Shaft{Radius: ShaftRadius, Length: speed},
		Cone: Cone{
			Radius:   ConeRadius,
			Height:   ConeHeight,
			Segments: ConeSegments,
			Position: Vec3{0, speed / 2, 0},
		},
		Color: "#60A5FA",
	}
}

// projectSun tilts the marker by 90 minus the elevation above the horizon, so
// an elevation of 90 leaves it pointing straight up.
func projectSun(rec *types.EnvironmentalRecord) SunMarker {
	azimuth, elevation := DefaultAzimuth, DefaultSunElev
	if rec != nil && rec.SunPath != nil {
		azimuth = value(rec.SunPath.Azimuth, DefaultAzimuth)
		elevation = value(rec.SunPath.Elevation, DefaultSunElev)
	}
	return SunMarker{
		Position: Vec3{0, SunHeight, 0},
		Rotation: rotation(90-elevation, azimuth, 0),
		Radius:   SunRadius,
		Color:    "#FCD34D",
	}
}

func value(p *float64, def float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return def
	}
	return *p
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
