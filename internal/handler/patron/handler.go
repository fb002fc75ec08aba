package patron

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mobiledjay/backend/internal/model/catalogue"
	"github.com/mobiledjay/backend/internal/model/djay"
	"github.com/mobiledjay/backend/internal/service/coordination"
	"github.com/mobiledjay/backend/internal/service/delivery"
	"github.com/mobiledjay/backend/internal/service/visibility"
	"github.com/mobiledjay/backend/pkg/utils"
)

const (
	requestFailed = "Failed to send request. Please try again."
	messageFailed = "Failed to send message. Please try again."
)

// Deliverer 把顾客的提交转发给 DJ 软件。
type Deliverer interface {
	Deliver(ctx context.Context, name, text string) (string, error)
}

// Handler 顾客端提交与回复查询的HTTP处理器
type Handler struct {
	store     *coordination.Store
	songs     catalogue.Store
	karaoke   catalogue.Store
	deliverer Deliverer
	limiter   func(http.Handler) http.Handler
}

// New 创建顾客处理器。limiter 为 nil 时提交接口不限流。
func New(store *coordination.Store, songs, karaoke catalogue.Store, deliverer Deliverer, limiter func(http.Handler) http.Handler) *Handler {
	return &Handler{
		store:     store,
		songs:     songs,
		karaoke:   karaoke,
		deliverer: deliverer,
		limiter:   limiter,
	}
}

// RegisterRoutes 注册顾客相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(g chi.Router) {
		if h.limiter != nil {
			g.Use(h.limiter)
		}
		g.Post("/requests/song", h.handleSongRequest)
		g.Post("/requests/karaoke", h.handleKaraokeRequest)
		g.Post("/messages", h.handleMessage)
	})

	r.Get("/customer/replies/{customerName}", h.handleReplies)
	r.Get("/customer/replies/{customerName}/count", h.handleReplyCount)
}

type requestDetails struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Difficulty string `json:"difficulty,omitempty"`
	Message    string `json:"message,omitempty"`
}

type submissionResponse struct {
	Error        string        `json:"error,omitempty"`
	CustomerName string        `json:"customerName"`
	RequestType  string        `json:"requestType,omitempty"`
	Details      any           `json:"details,omitempty"`
	Request      *djay.Request `json:"request,omitempty"`
	Message      *djay.Message `json:"message,omitempty"`
}

func (h *Handler) handleSongRequest(w http.ResponseWriter, r *http.Request) {
	h.handleRequest(w, r, djay.KindSong, h.songs, "songId", "song request")
}

func (h *Handler) handleKaraokeRequest(w http.ResponseWriter, r *http.Request) {
	h.handleRequest(w, r, djay.KindKaraoke, h.karaoke, "karaokeId", "karaoke request")
}

// handleRequest 记录点歌请求并转发给 DJ；转发失败时请求仍然保留。
func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request, kind djay.RequestKind, songs catalogue.Store, idField, requestType string) {
	fields, err := utils.ReadFields(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := fields.Get("customerName")
	if name == "" {
		utils.RespondError(w, http.StatusBadRequest, "Customer name is required")
		return
	}

	id, err := strconv.Atoi(fields.Get(idField))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, idField+" is required")
		return
	}
	entry, ok := songs.FindByID(id)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "Selected song not found")
		return
	}

	note := fields.Get("message")
	request, err := h.store.CreateRequest(r.Context(), kind, name, entry.Ref(), note)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := submissionResponse{
		CustomerName: name,
		RequestType:  requestType,
		Details: requestDetails{
			Title:      request.Song.Title,
			Artist:     request.Song.Artist,
			Difficulty: request.Song.Difficulty,
			Message:    note,
		},
		Request: &request,
	}

	if err := h.deliver(r, name, delivery.RequestText(request)); err != nil {
		resp.Error = requestFailed
		utils.RespondJSON(w, http.StatusBadGateway, resp)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, resp)
}

// handleMessage 记录顾客留言并转发给 DJ，私密留言同样转发。
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	fields, err := utils.ReadFields(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := fields.Get("customerName")
	body := fields.Get("message")
	message, err := h.store.CreateMessage(r.Context(), name, body, fields.Bool("djOnly"))
	switch {
	case errors.Is(err, coordination.ErrCustomerNameRequired):
		utils.RespondError(w, http.StatusBadRequest, "Customer name is required")
		return
	case errors.Is(err, coordination.ErrBodyRequired):
		utils.RespondError(w, http.StatusBadRequest, "Message is required")
		return
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := submissionResponse{
		CustomerName: name,
		RequestType:  "message",
		Details:      map[string]string{"message": body},
		Message:      &message,
	}

	if err := h.deliver(r, name, body); err != nil {
		resp.Error = messageFailed
		utils.RespondJSON(w, http.StatusBadGateway, resp)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, resp)
}

// deliver 不随客户端断开而取消，网关自身的超时仍然生效。
func (h *Handler) deliver(r *http.Request, name, text string) error {
	if h.deliverer == nil {
		return nil
	}
	_, err := h.deliverer.Deliver(context.WithoutCancel(r.Context()), name, text)
	if err != nil {
		log.Printf("[patron] delivery for %s failed, submission kept locally: %v", name, err)
	}
	return err
}

func (h *Handler) handleReplies(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "customerName")
	utils.RespondJSON(w, http.StatusOK, visibility.PatronReplies(r.Context(), h.store, name))
}

func (h *Handler) handleReplyCount(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "customerName")
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"customerName": name,
		"count":        visibility.BellCount(r.Context(), h.store, name),
	})
}
