package catalogue

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mobiledjay/backend/internal/model/catalogue"
	"github.com/mobiledjay/backend/pkg/utils"
)

// Handler 曲库浏览与搜索的HTTP处理器
type Handler struct {
	songs   catalogue.Store
	karaoke catalogue.Store
}

// New 创建曲库处理器
func New(songs, karaoke catalogue.Store) *Handler {
	return &Handler{
		songs:   songs,
		karaoke: karaoke,
	}
}

// RegisterRoutes 注册曲库相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/catalogue/songs", h.list(h.songs))
	r.Get("/catalogue/karaoke", h.list(h.karaoke))
	r.Get("/search/songs", h.search(h.songs))
	r.Get("/search/karaoke", h.search(h.karaoke))
}

// list 返回完整曲目列表，供点歌表单选择。
func (h *Handler) list(store catalogue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, store.List())
	}
}

// search 少于 3 个字符的查询返回空数组。
func (h *Handler) search(store catalogue.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, store.Search(r.URL.Query().Get("q")))
	}
}
