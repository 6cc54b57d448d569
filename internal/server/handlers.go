package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/page"
	"github.com/emrgen/wikinote/internal/service"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const maxUpload = 32 << 20

type handlers struct {
	service *service.PageService
	users   *service.UserService
}

// wikiPath returns the page path captured by the trailing wildcard.
func wikiPath(r *http.Request) string {
	return "/" + chi.URLParam(r, "*")
}

type mutationResponse struct {
	Page       *model.Page `json:"page"`
	RevisionID uint64      `json:"revision_id,omitempty"`
	File       *model.File `json:"file,omitempty"`
	RenderErr  string      `json:"render_error,omitempty"`
	Scheduled  []string    `json:"scheduled"`
}

func mutation(m *page.Mutation) mutationResponse {
	res := mutationResponse{Page: m.Page, RevisionID: m.RevisionID, File: m.File, Scheduled: m.Jobs()}
	if m.RenderErr != nil {
		res.RenderErr = m.RenderErr.Error()
	}

	return res
}

func (h *handlers) getPage(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetPage(r.Context(), wikiPath(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

type createRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (h *handlers) createPage(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	m, err := h.service.CreatePage(r.Context(), wikiPath(r), req.Name, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, mutation(m))
}

type editRequest struct {
	Name            string     `json:"name"`
	Text            string     `json:"text"`
	Markup          string     `json:"markup"`
	PriorRevisionID uint64     `json:"prior_revision_id"`
	ExpectedUpdated *time.Time `json:"expected_updated"`
}

func (r editRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Markup, validation.In(string(model.MarkupWiki), string(model.MarkupHTML))),
	)
}

func (h *handlers) editPage(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	m, err := h.service.EditPage(r.Context(), service.EditRequest{
		Path:            wikiPath(r),
		Name:            req.Name,
		Text:            req.Text,
		Markup:          model.Markup(req.Markup),
		PriorRevisionID: req.PriorRevisionID,
		ExpectedUpdated: req.ExpectedUpdated,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mutation(m))
}

func (h *handlers) deletePage(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.DeletePage(r.Context(), wikiPath(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mutation(m))
}

type moveRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Cluster bool   `json:"cluster"`
}

func (r moveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.Required),
	)
}

func (h *handlers) movePage(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	m, err := h.service.MovePage(r.Context(), req.From, req.To, req.Cluster)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mutation(m))
}

type accessRequest struct {
	Policy string `json:"policy"`
}

func (h *handlers) setAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	m, err := h.service.SetAccess(r.Context(), wikiPath(r), req.Policy)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mutation(m))
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	revisions, err := h.service.History(r.Context(), wikiPath(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, revisions)
}

type revisionResponse struct {
	*model.Revision
	Text string `json:"text"`
}

func (h *handlers) revision(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, validation.Errors{"id": err})
		return
	}

	rev, err := h.service.Revision(r.Context(), wikiPath(r), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, revisionResponse{Revision: rev.Revision, Text: rev.Text})
}

func (h *handlers) latestRevision(w http.ResponseWriter, r *http.Request) {
	rev, err := h.service.LatestRevision(r.Context(), wikiPath(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, revisionResponse{Revision: rev.Revision, Text: rev.Text})
}

func (h *handlers) tree(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.Tree(r.Context(), wikiPath(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pages)
}

func (h *handlers) files(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.Files(r.Context(), wikiPath(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *handlers) attachFile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpload))
	if err != nil {
		writeError(w, validation.Errors{"body": err})
		return
	}

	m, err := h.service.AttachFile(r.Context(), wikiPath(r), name, data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, mutation(m))
}

func (h *handlers) detachFile(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.DetachFile(r.Context(), wikiPath(r), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mutation(m))
}

func (h *handlers) openFile(w http.ResponseWriter, r *http.Request) {
	file, data, err := h.service.OpenFile(r.Context(), wikiPath(r), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(file.Name))
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type subscribeRequest struct {
	Kind string `json:"kind"`
}

func (h *handlers) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Subscribe(r.Context(), wikiPath(r), model.SubscriptionKind(req.Kind)); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type subscriptionResponse struct {
	Pages    []uint64 `json:"pages"`
	Clusters []uint64 `json:"clusters"`
}

func (h *handlers) subscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Subscription(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, subscriptionResponse{Pages: mapset.Sorted(sub.Pages), Clusters: mapset.Sorted(sub.Clusters)})
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}

	pages, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pages)
}

func (h *handlers) reindex(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Reindex(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]int{"scheduled": n})
}

type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	approved := r.URL.Query().Get("approved") != "false"
	users, err := h.users.List(r.Context(), approved)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *handlers) approveUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, validation.Errors{"id": err})
		return
	}

	user, err := h.users.Approve(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
