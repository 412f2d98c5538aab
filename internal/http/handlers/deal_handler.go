// Deal catalog HTTP handlers.
//
// This file exposes the catalog users browse before buying a coupon:
//   - GET /deals           (paginated, optional ?kind=brand|discount, ETag support)
//   - GET /deals/search    (?q=...&k=...)
//   - GET /deals/{id}
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/services"
	"github.com/tbourn/go-deals-backend/internal/utils"
)

// ListDealsResponse wraps a page of deals and pagination information.
type ListDealsResponse struct {
	Deals      []domain.Deal `json:"deals"`
	Pagination Pagination    `json:"pagination"`
}

// SearchDealsResponse carries ranked search hits.
type SearchDealsResponse struct {
	Query string             `json:"query" example:"running shoes"`
	Hits  []services.DealHit `json:"hits"`
}

// ListDeals godoc
// @ID          listDeals
// @Summary     List deals (paginated)
// @Description Returns a page of the catalog, optionally filtered by kind. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Deals
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       kind           query   string  false "Deal kind"                   Enums(brand, discount)
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListDealsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /deals [get]
func (h *Handlers) ListDeals(c *gin.Context) {
	ctx := c.Request.Context()
	kind := c.Query("kind")
	page, pageSize := clampPagination(c)

	if count, maxTS, err := h.dealSvc.Version(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"deals:%s:%d:%d:%d:%d"`, kind, page, pageSize, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.dealSvc.ListPage(ctx, kind, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListDealsResponse{
		Deals:      items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// SearchDeals godoc
// @ID          searchDeals
// @Summary     Search deals
// @Description Ranks deals by token overlap with the query over title, brand, store and description.
// @Tags        Deals
// @Produce     json
//
// @Param       q  query  string  true   "Search text"     example(running shoes)
// @Param       k  query  int     false  "Maximum hits"    minimum(1) maximum(50) default(10)
//
// @Success     200  {object} handlers.SearchDealsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /deals/search [get]
func (h *Handlers) SearchDeals(c *gin.Context) {
	q := c.Query("q")
	hits, err := h.dealSvc.Search(c.Request.Context(), q, utils.Clamp(utils.IntOr(c.Query("k"), 10), 1, 50))
	if err != nil {
		failService(c, err, ErrCodeSearchFailed)
		return
	}
	if hits == nil {
		hits = []services.DealHit{}
	}
	ok(c, http.StatusOK, SearchDealsResponse{Query: q, Hits: hits})
}

// GetDeal godoc
// @ID          getDeal
// @Summary     Get a deal
// @Tags        Deals
// @Produce     json
//
// @Param       id  path  string  true  "Deal ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.Deal
// @Failure     404  {object} handlers.ErrorResponse "Deal not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /deals/{id} [get]
func (h *Handlers) GetDeal(c *gin.Context) {
	d, err := h.dealSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeLookupFailed)
		return
	}
	ok(c, http.StatusOK, d)
}
