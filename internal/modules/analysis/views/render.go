package views

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
	"time"

	"envscope/internal/modules/analysis/scene"
	"envscope/internal/modules/analysis/types"
)

var pageTmpl *template.Template

// loadTemplatesFromFS loads page templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	pageTmpl, err = template.ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// TurnView is one rendered conversation bubble.
type TurnView struct {
	Role    types.Role
	Content string
	Time    time.Time
	Failed  bool
}

type PageData struct {
	SessionID string
	Turns     []TurnView
	Cards     []scene.Card
	Scene     scene.Scene
}

// ExchangeData is the HTMX response to one submitted message. Cards and
// Scene are swapped out of band only when the record changed.
type ExchangeData struct {
	User          TurnView
	Reply         TurnView
	RecordUpdated bool
	Cards         []scene.Card
	Scene         scene.Scene
}

func RenderIndex(w io.Writer, data *PageData) error {
	if pageTmpl == nil {
		return errors.New("index template not loaded: call views.LoadTemplates during startup")
	}
	return pageTmpl.ExecuteTemplate(w, "index.html", data)
}

// RenderExchange executes only the exchange partial into w.
func RenderExchange(w io.Writer, data *ExchangeData) error {
	if pageTmpl == nil {
		return errors.New("exchange template not loaded: call views.LoadTemplates during startup")
	}
	return pageTmpl.ExecuteTemplate(w, "partials/exchange.html", data)
}

// RenderCards executes only the cards partial into w.
func RenderCards(w io.Writer, cards []scene.Card) error {
	if pageTmpl == nil {
		return errors.New("cards template not loaded: call views.LoadTemplates during startup")
	}
	return pageTmpl.ExecuteTemplate(w, "partials/cards.html", cards)
}
