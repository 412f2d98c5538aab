// Transaction log HTTP handlers.
//
// This file exposes the operator's redemption history:
//   - GET /transactions   (paginated, newest first, ETag support)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// ListTransactionsResponse wraps a page of transactions and pagination information.
type ListTransactionsResponse struct {
	Transactions []domain.RedemptionTransaction `json:"transactions"`
	Pagination   Pagination                     `json:"pagination"`
}

// ListTransactions godoc
// @ID          listTransactions
// @Summary     List redemption transactions (paginated)
// @Description Returns the operator's redemption attempts, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Transactions
// @Produce     json
//
// @Param       X-User-ID      header  string  false "Operator ID (demo header)"   example(store-42)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListTransactionsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /transactions [get]
func (h *Handlers) ListTransactions(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.redeemSvc.TransactionsVersion(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"transactions:%s:%d:%d"`, uid, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.redeemSvc.Transactions(ctx, uid, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.RedemptionTransaction{}
	}
	ok(c, http.StatusOK, ListTransactionsResponse{
		Transactions: items,
		Pagination:   newPagination(page, pageSize, total),
	})
}
