package dj

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mobiledjay/backend/internal/service/coordination"
	"github.com/mobiledjay/backend/internal/service/visibility"
	"github.com/mobiledjay/backend/pkg/utils"
)

// Handler DJ 控制台的HTTP处理器
type Handler struct {
	store *coordination.Store
	now   func() time.Time
}

// New 创建 DJ 处理器
func New(store *coordination.Store) *Handler {
	return &Handler{store: store, now: time.Now}
}

// RegisterRoutes 注册 DJ 相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/dj", func(dj chi.Router) {
		dj.Get("/dashboard-data", h.handleDashboard)
		dj.Get("/messages", h.handleMessages)
		dj.Post("/message/{id}/mark-displayed", h.handleMarkDisplayed)
		dj.Delete("/request/{id}", h.handleDeleteRequest)
		dj.Post("/reply", h.handleReply)
		dj.Get("/replies", h.handleListReplies)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, visibility.Dashboard(r.Context(), h.store, h.now()))
}

// handleMessages 返回展示屏待播放的留言；includePrivate=true 时包含私密留言。
func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	includePrivate := r.URL.Query().Get("includePrivate") == "true"
	utils.RespondJSON(w, http.StatusOK, visibility.DisplayFeed(r.Context(), h.store, includePrivate))
}

func (h *Handler) handleMarkDisplayed(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	utils.RespondSuccess(w, h.store.MarkMessageDisplayed(r.Context(), id))
}

func (h *Handler) handleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	deleted := h.store.DeleteRequest(r.Context(), id)
	if deleted {
		log.Printf("[dj] request %d removed", id)
	}
	utils.RespondSuccess(w, deleted)
}

// handleReply 保存 DJ 回复，并生成一条展示屏留言。
func (h *Handler) handleReply(w http.ResponseWriter, r *http.Request) {
	fields, err := utils.ReadFields(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, _, err := h.store.CreateReply(r.Context(),
		fields.Get("customerName"),
		fields.Get("replyMessage"),
		fields.Get("originalType"),
		fields.Get("originalId"),
	)
	if errors.Is(err, coordination.ErrCustomerNameRequired) || errors.Is(err, coordination.ErrBodyRequired) {
		utils.RespondError(w, http.StatusBadRequest, "Customer name and reply message are required")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("[dj] reply %d sent to %s", reply.ID, reply.CustomerName)
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"reply":   reply,
	})
}

func (h *Handler) handleListReplies(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.ListReplies(r.Context(), nil))
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
