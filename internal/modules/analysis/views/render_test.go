package views

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"envscope/internal/modules/analysis/scene"
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

var sceneDataRe = regexp.MustCompile(`(?s)<script type="application/json" id="scene-data"[^>]*>(.*?)</script>`)

func sceneFromHTML(t *testing.T, out string) scene.Scene {
	t.Helper()
	m := sceneDataRe.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("scene-data script not found in %q", out)
	}
	var s scene.Scene
	if err := json.Unmarshal([]byte(m[1]), &s); err != nil {
		t.Fatalf("scene-data is not JSON: %v (%q)", err, m[1])
	}
	return s
}

func TestLoadTemplates_success(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates() = %v; want nil", err)
	}
	if pageTmpl == nil {
		t.Fatal("LoadTemplates() left pageTmpl nil")
	}
}

func TestLoadTemplates_failure_sub(t *testing.T) {
	if err := loadTemplatesFromFS(fstest.MapFS{}, "templates"); err == nil {
		t.Fatal("loadTemplatesFromFS(emptyFS) = nil; want error")
	}
}

func TestLoadTemplates_failure_parse(t *testing.T) {
	badFS := fstest.MapFS{
		"templates/index.html":         {Data: []byte("{{ .")},
		"templates/partials/turn.html": {Data: []byte("ok")},
	}
	if err := loadTemplatesFromFS(badFS, "templates"); err == nil {
		t.Fatal("loadTemplatesFromFS(badFS) = nil; want error")
	}
}

func TestRender_notLoaded(t *testing.T) {
	prev := pageTmpl
	pageTmpl = nil
	t.Cleanup(func() { pageTmpl = prev })

	var buf bytes.Buffer
	for name, err := range map[string]error{
		"index":    RenderIndex(&buf, &PageData{}),
		"exchange": RenderExchange(&buf, &ExchangeData{}),
		"cards":    RenderCards(&buf, nil),
	} {
		if err == nil || !strings.Contains(err.Error(), "not loaded") {
			t.Errorf("%s: err = %v; want message containing \"not loaded\"", name, err)
		}
	}
}

func TestRenderIndex_empty(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}

	var buf bytes.Buffer
	err := RenderIndex(&buf, &PageData{Cards: scene.Cards(nil), Scene: scene.Project(nil)})
	if err != nil {
		t.Fatalf("RenderIndex = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"<!DOCTYPE html>",
		"Environmental Analysis Assistant",
		`hx-post="/chat"`,
		`name="message"`,
		"/static/scene.js",
		"/static/chat.js",
		`hx-indicator="#analyzing"`,
		`id="analyzing"`,
		"Analyzing...",
		`id="chat-form"`,
		"Azimuth: N/A",
		"Humidity: N/A",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	s := sceneFromHTML(t, out)
	if s.Label.Text != "Elevation: 0m" {
		t.Errorf("scene label = %q; want Elevation: 0m", s.Label.Text)
	}
	if s.Wind != nil {
		t.Errorf("scene wind = %+v; want nil", s.Wind)
	}
}

func TestRenderIndex_withConversation(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}
	rec := sampleRecord()
	at := time.Date(2024, 6, 1, 9, 15, 0, 0, time.UTC)
	data := &PageData{
		SessionID: "abc",
		Turns: []TurnView{
			{Role: types.RoleUser, Content: "Analyze <Denver>", Time: at},
			{Role: types.RoleAssistant, Content: "Sorry, there was an error processing your request.", Time: at, Failed: true},
		},
		Cards: scene.Cards(rec),
		Scene: scene.Project(rec),
	}

	var buf bytes.Buffer
	if err := RenderIndex(&buf, data); err != nil {
		t.Fatalf("RenderIndex = %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "Analyze &lt;Denver&gt;") {
		t.Errorf("user content not escaped; got %q", out)
	}
	if !strings.Contains(out, `class="turn assistant failed"`) {
		t.Errorf("failed turn class missing")
	}
	if !strings.Contains(out, "Speed: 5 m/s") {
		t.Errorf("wind card missing")
	}
	if s := sceneFromHTML(t, out); s.Terrain.Size[1] != 50 {
		t.Errorf("scene terrain height = %v; want 50", s.Terrain.Size[1])
	}
}

func TestRenderExchange(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}
	rec := sampleRecord()
	user := TurnView{Role: types.RoleUser, Content: "How windy?"}
	reply := TurnView{Role: types.RoleAssistant, Content: "Breezy."}

	t.Run("record updated swaps cards and scene", func(t *testing.T) {
		var buf bytes.Buffer
		err := RenderExchange(&buf, &ExchangeData{
			User: user, Reply: reply, RecordUpdated: true,
			Cards: scene.Cards(rec), Scene: scene.Project(rec),
		})
		if err != nil {
			t.Fatalf("RenderExchange = %v", err)
		}
		out := buf.String()
		if strings.Contains(out, "<!DOCTYPE html>") {
			t.Error("partial should not include the page layout")
		}
		if !strings.Contains(out, "How windy?") || !strings.Contains(out, "Breezy.") {
			t.Errorf("turns missing: %q", out)
		}
		if !strings.Contains(out, `id="cards"`) {
			t.Error("cards not swapped")
		}
		if s := sceneFromHTML(t, out); s.Wind == nil || s.Wind.Shaft.Length != 5 {
			t.Errorf("scene wind = %+v", s.Wind)
		}
	})

	t.Run("record unchanged leaves cards alone", func(t *testing.T) {
		var buf bytes.Buffer
		if err := RenderExchange(&buf, &ExchangeData{User: user, Reply: reply}); err != nil {
			t.Fatalf("RenderExchange = %v", err)
		}
		out := buf.String()
		if strings.Contains(out, `id="cards"`) || strings.Contains(out, "scene-data") {
			t.Errorf("unexpected out-of-band swap: %q", out)
		}
	})
}

func TestRenderCards(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}

	var buf bytes.Buffer
	if err := RenderCards(&buf, scene.Cards(sampleRecord())); err != nil {
		t.Fatalf("RenderCards = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Sun Path", "Azimuth: 180°", "Wind", "Elevation", "Height: 50m", "Climate", "Temperature: 25°C"} {
		if !strings.Contains(out, want) {
			t.Errorf("cards missing %q", want)
		}
	}
}
