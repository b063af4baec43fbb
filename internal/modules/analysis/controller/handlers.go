package controller

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"envscope/internal/modules/analysis/export"
	"envscope/internal/modules/analysis/scene"
	"envscope/internal/modules/analysis/session"
	"envscope/internal/modules/analysis/types"
	"envscope/internal/modules/analysis/views"
	"envscope/internal/utils"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply         string                     `json:"reply"`
	Failed        bool                       `json:"failed"`
	RecordUpdated bool                       `json:"recordUpdated"`
	Record        *types.EnvironmentalRecord `json:"record"`
	Scene         scene.Scene                `json:"scene"`
	Cards         []scene.Card               `json:"cards"`
}

type sceneResponse struct {
	Scene scene.Scene  `json:"scene"`
	Cards []scene.Card `json:"cards"`
}

type analysesResponse struct {
	Items  []types.Analysis `json:"items"`
	Total  *int             `json:"total,omitempty"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func (c *analysisControllerImpl) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := c.sessionFor(w, r)
	snap := sess.Snapshot()

	data := &views.PageData{
		SessionID: snap.ID,
		Turns:     turnViews(snap.Turns),
		Cards:     scene.Cards(snap.Record),
		Scene:     scene.Project(snap.Record),
	}
	var buf bytes.Buffer
	if err := views.RenderIndex(&buf, data); err != nil {
		slog.Error("index template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("index: write response failed", "error", err)
	}
}

// handleChatForm serves the HTMX form. Empty and superseded submissions answer
// 204 so HTMX swaps nothing.
func (c *analysisControllerImpl) handleChatForm(w http.ResponseWriter, r *http.Request) {
	sess := c.sessionFor(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	ex, err := sess.Send(r.Context(), r.PostFormValue("message"))
	switch {
	case errors.Is(err, session.ErrEmptyInput), errors.Is(err, session.ErrSuperseded):
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, session.ErrBusy):
		http.Error(w, "a request is already in flight", http.StatusConflict)
		return
	case err != nil:
		slog.Error("chat: send failed", "session_id", sess.ID(), "error", err)
		http.Error(w, "failed to send message", http.StatusInternalServerError)
		return
	}

	data := &views.ExchangeData{
		User:          turnView(ex.User),
		Reply:         turnView(ex.Reply),
		RecordUpdated: ex.RecordUpdated,
	}
	if ex.RecordUpdated {
		data.Cards = scene.Cards(ex.Record)
		data.Scene = scene.Project(ex.Record)
	}
	var buf bytes.Buffer
	if err := views.RenderExchange(&buf, data); err != nil {
		slog.Error("exchange partial render failed", "error", err)
		http.Error(w, "failed to render", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("chat: write response failed", "error", err)
	}
}

func (c *analysisControllerImpl) handleCardsPartial(w http.ResponseWriter, r *http.Request) {
	sess := c.sessionFor(w, r)

	var buf bytes.Buffer
	if err := views.RenderCards(&buf, scene.Cards(sess.Record())); err != nil {
		slog.Error("cards partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("cards: write response failed", "error", err)
	}
}

func (c *analysisControllerImpl) handleChat(w http.ResponseWriter, r *http.Request) {
	sess := c.sessionFor(w, r)

	var req chatRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ex, err := sess.Send(r.Context(), req.Message)
	switch {
	case errors.Is(err, session.ErrEmptyInput):
		utils.WriteError(w, http.StatusBadRequest, "message must not be empty")
		return
	case errors.Is(err, session.ErrBusy):
		utils.WriteError(w, http.StatusConflict, "a request is already in flight for this session")
		return
	case errors.Is(err, session.ErrSuperseded):
		utils.WriteError(w, http.StatusConflict, "request was superseded by a newer one")
		return
	case err != nil:
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, chatResponse{
		Reply:         ex.Reply.Content,
		Failed:        ex.Failed,
		RecordUpdated: ex.RecordUpdated,
		Record:        ex.Record,
		Scene:         scene.Project(ex.Record),
		Cards:         scene.Cards(ex.Record),
	})
}

func (c *analysisControllerImpl) handleSession(w http.ResponseWriter, r *http.Request) {
	snap := c.sessionFor(w, r).Snapshot()
	if snap.Turns == nil {
		snap.Turns = []types.ConversationTurn{}
	}
	utils.WriteJSON(w, http.StatusOK, snap)
}

func (c *analysisControllerImpl) handleScene(w http.ResponseWriter, r *http.Request) {
	rec := c.sessionFor(w, r).Record()
	utils.WriteJSON(w, http.StatusOK, sceneResponse{
		Scene: scene.Project(rec),
		Cards: scene.Cards(rec),
	})
}

func (c *analysisControllerImpl) handleExport(w http.ResponseWriter, r *http.Request) {
	exporter, err := export.NewExporter(r.URL.Query().Get("format"))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := c.sessionFor(w, r).Snapshot()
	doc := &export.Document{
		SessionID:  snap.ID,
		ExportedAt: time.Now().UTC(),
		Turns:      snap.Turns,
		Record:     snap.Record,
	}

	var buf bytes.Buffer
	if err := exporter.Export(doc, &buf); err != nil {
		slog.Error("export failed", "session_id", snap.ID, "format", exporter.Extension(), "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to export session")
		return
	}
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(doc, exporter)))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("export: write response failed", "error", err)
	}
}

func (c *analysisControllerImpl) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	q, err := parseAnalysesQuery(r, c.sessionFor(w, r).ID())
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := analysesResponse{Limit: q.Limit, Offset: q.Offset}
	if !q.ranged() {
		resp.Items, err = c.repository.GetLatestAnalyses(r.Context(), q.SessionID, q.Limit)
		if err != nil {
			slog.Error("analyses: get latest failed", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to load analyses")
			return
		}
	} else {
		from, to := q.From, q.To
		if from.IsZero() {
			from = time.Unix(0, 0)
		}
		if to.IsZero() {
			to = time.Now()
		}
		resp.Items, err = c.repository.GetAnalyses(r.Context(), q.SessionID, from, to, q.Limit, q.Offset)
		if err != nil {
			slog.Error("analyses: get range failed", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to load analyses")
			return
		}
		total, err := c.repository.GetAnalysesCount(r.Context(), q.SessionID, from, to)
		if err != nil {
			slog.Error("analyses: count failed", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to count analyses")
			return
		}
		resp.Total = &total
	}
	if resp.Items == nil {
		resp.Items = []types.Analysis{}
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}
