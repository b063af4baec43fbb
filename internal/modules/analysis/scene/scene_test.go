package scene

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envscope/internal/modules/analysis/types"
)

func sampleRecord() *types.EnvironmentalRecord {
	return &types.EnvironmentalRecord{
		SunPath:   &types.SunPath{Azimuth: types.Float(180), Elevation: types.Float(45)},
		Wind:      &types.Wind{Direction: types.HeadingOf(45), Speed: types.Float(5)},
		Elevation: &types.Elevation{Height: types.Float(50), Slope: types.Float(15)},
		Climate:   &types.Climate{Temperature: types.Float(25), Humidity: types.Float(60)},
	}
}

func TestProject_TerrainFollowsHeight(t *testing.T) {
	s := Project(sampleRecord())

	assert.Equal(t, Vec3{10, 50, 10}, s.Terrain.Size)
	assert.Equal(t, Vec3{0, 25, 0}, s.Terrain.Position)
	assert.Equal(t, "Elevation: 50m", s.Label.Text)
}

func TestProject_NoRecordDefaults(t *testing.T) {
	s := Project(nil)

	assert.Equal(t, MinTerrainHeight, s.Terrain.Size[1])
	assert.InDelta(t, MinTerrainHeight/2, s.Terrain.Position[1], 1e-12)
	assert.Equal(t, "Elevation: 0m", s.Label.Text)
	assert.Equal(t, Vec3{0, LabelHeight, 0}, s.Label.Position)
	assert.Nil(t, s.Wind)

	assert.Equal(t, Vec3{0, SunHeight, 0}, s.Sun.Position)
	assert.Equal(t, Vec3{45, 0, 0}, s.Sun.Rotation.Degrees)

	assert.Equal(t, Vec3{15, 15, 15}, s.Camera.Position)
	assert.Equal(t, 50.0, s.Camera.FOV)
	assert.Equal(t, "orbit", s.Camera.Controls)
	assert.Equal(t, 0.4, s.Lights.Ambient)
	assert.Equal(t, Vec3{10, 10, 10}, s.Lights.Point.Position)
	assert.Equal(t, 0.6, s.Lights.Point.Intensity)
	assert.Equal(t, 20, s.Grid.Size)
	assert.Equal(t, 20, s.Grid.Divisions)
}

func TestProject_MissingSubObjects(t *testing.T) {
	s := Project(&types.EnvironmentalRecord{
		SunPath:   &types.SunPath{},
		Elevation: &types.Elevation{},
	})

	assert.Nil(t, s.Wind)
	assert.Equal(t, MinTerrainHeight, s.Terrain.Size[1])
	assert.Equal(t, Vec3{45, 0, 0}, s.Sun.Rotation.Degrees)
}

func TestProject_TerrainFloor(t *testing.T) {
	tests := []struct {
		name   string
		height float64
		box    float64
		label  string
	}{
		{name: "zero", height: 0, box: 0.1, label: "Elevation: 0m"},
		{name: "below floor", height: 0.05, box: 0.1, label: "Elevation: 0.05m"},
		{name: "negative", height: -3, box: 0.1, label: "Elevation: -3m"},
		{name: "fractional", height: 12.5, box: 12.5, label: "Elevation: 12.5m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Project(&types.EnvironmentalRecord{Elevation: &types.Elevation{Height: types.Float(tt.height)}})
			assert.Equal(t, tt.box, s.Terrain.Size[1])
			assert.InDelta(t, tt.box/2, s.Terrain.Position[1], 1e-12)
			assert.Equal(t, tt.label, s.Label.Text)
		})
	}
}

func TestProject_WindFromStringDirection(t *testing.T) {
	var rec types.EnvironmentalRecord
	require.NoError(t, json.Unmarshal([]byte(`{"wind":{"direction":"270","speed":8}}`), &rec))

	s := Project(&rec)

	require.NotNil(t, s.Wind)
	assert.Equal(t, Vec3{0, 270, 0}, s.Wind.Rotation.Degrees)
	assert.InDelta(t, 3*math.Pi/2, s.Wind.Rotation.Radians[1], 1e-12)
	assert.Equal(t, 8.0, s.Wind.Shaft.Length)
	assert.Equal(t, ShaftRadius, s.Wind.Shaft.Radius)
	assert.Equal(t, Vec3{0, 4, 0}, s.Wind.Cone.Position)
	assert.Equal(t, ConeRadius, s.Wind.Cone.Radius)
	assert.Equal(t, ConeHeight, s.Wind.Cone.Height)
	assert.Equal(t, Vec3{0, WindHeight, 0}, s.Wind.Position)
}

func TestProject_WindDefaults(t *testing.T) {
	tests := []struct {
		name string
		wind *types.Wind
	}{
		{name: "empty wind", wind: &types.Wind{}},
		{name: "non-numeric direction", wind: &types.Wind{Direction: types.HeadingOf(math.NaN())}},
		{name: "infinite direction", wind: &types.Wind{Direction: types.HeadingOf(math.Inf(1))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Project(&types.EnvironmentalRecord{Wind: tt.wind})
			require.NotNil(t, s.Wind)
			assert.Equal(t, 0.0, s.Wind.Rotation.Degrees[1])
			assert.Equal(t, 0.0, s.Wind.Shaft.Length)
			assert.Equal(t, Vec3{0, 0, 0}, s.Wind.Cone.Position)
		})
	}
}

func TestProject_SunRotation(t *testing.T) {
	tests := []struct {
		name     string
		sun      *types.SunPath
		wantDeg  Vec3
		wantRadX float64
		wantRadY float64
	}{
		{name: "overhead", sun: &types.SunPath{Azimuth: types.Float(0), Elevation: types.Float(90)}, wantDeg: Vec3{0, 0, 0}},
		{name: "south at 45", sun: &types.SunPath{Azimuth: types.Float(180), Elevation: types.Float(45)}, wantDeg: Vec3{45, 180, 0}, wantRadX: math.Pi / 4, wantRadY: math.Pi},
		{name: "horizon explicit zero", sun: &types.SunPath{Azimuth: types.Float(90), Elevation: types.Float(0)}, wantDeg: Vec3{90, 90, 0}, wantRadX: math.Pi / 2, wantRadY: math.Pi / 2},
		{name: "elevation absent", sun: &types.SunPath{Azimuth: types.Float(270)}, wantDeg: Vec3{45, 270, 0}, wantRadX: math.Pi / 4, wantRadY: 3 * math.Pi / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Project(&types.EnvironmentalRecord{SunPath: tt.sun})
			assert.Equal(t, tt.wantDeg, s.Sun.Rotation.Degrees)
			assert.InDelta(t, tt.wantRadX, s.Sun.Rotation.Radians[0], 1e-12)
			assert.InDelta(t, tt.wantRadY, s.Sun.Rotation.Radians[1], 1e-12)
			assert.Equal(t, SunRadius, s.Sun.Radius)
		})
	}
}

func TestProject_Deterministic(t *testing.T) {
	rec := sampleRecord()

	assert.Equal(t, Project(rec), Project(rec))
}

func TestProject_JSONShape(t *testing.T) {
	raw, err := json.Marshal(Project(nil))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Nil(t, m["wind"])
	for _, k := range []string{"camera", "lights", "grid", "terrain", "sun", "label"} {
		assert.Contains(t, m, k)
	}
}
