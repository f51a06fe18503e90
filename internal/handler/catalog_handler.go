package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BrieHudson/Capstone-1-Muse/internal/model"
)

// CatalogServiceInterface は外部カタログ検索に必要なインターフェース。
type CatalogServiceInterface interface {
	Search(ctx context.Context, query, itemType string) (*model.SearchResult, error)
	FetchItem(ctx context.Context, itemID string, itemType model.ItemType) (*model.CatalogItem, error)
}

// CatalogHandler は外部カタログのHTTPハンドラー。
type CatalogHandler struct {
	catalog CatalogServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(catalog CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Search は外部カタログを検索する。typeを省略した場合は楽曲とプレイリストの両方を検索する。
// GET /api/catalog/search?q=&type=
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.catalog.Search(r.Context(), q.Get("q"), q.Get("type"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetItem は外部カタログのアイテムを1件返す。
// GET /api/catalog/{type}/{id}
func (h *CatalogHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemType := model.ItemType(chi.URLParam(r, "type"))
	item, err := h.catalog.FetchItem(r.Context(), chi.URLParam(r, "id"), itemType)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
