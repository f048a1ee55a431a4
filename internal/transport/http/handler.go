package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ewallet/transfer-saga/internal/ledger"
	"github.com/ewallet/transfer-saga/internal/repo"
)

func RegisterHandlers(r *gin.Engine, w *ledger.Writer, rp repo.RepositoryInterface) {
	v1 := r.Group("/v1")
	{
		v1.POST("/transactions", createTransactionHandler(w))
		v1.GET("/transactions/:id", getTransactionHandler(rp))
		v1.GET("/accounts/:owner_id/balance", balanceHandler(rp))
	}
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

type createTransactionReq struct {
	IdempotentKey string `json:"idempotent_key" binding:"required"`
	SenderID      string `json:"sender_id" binding:"required"`
	ReceiverID    string `json:"receiver_id" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	Type          string `json:"type"`
	Details       string `json:"details"`
}

// createTransactionHandler accepts the transfer intent. The response carries
// only the writer result; the saga runs asynchronously and its outcome is
// observable via GET /v1/transactions/:id.
func createTransactionHandler(w *ledger.Writer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTransactionReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		resp := w.Create(c, ledger.CreateRequest{
			IdempotentKey: req.IdempotentKey,
			SenderID:      req.SenderID,
			ReceiverID:    req.ReceiverID,
			Amount:        amt,
			Type:          req.Type,
			Details:       req.Details,
		})
		switch resp.Result {
		case ledger.ResultCreated:
			c.JSON(http.StatusCreated, resp)
		case ledger.ResultDuplicate:
			c.JSON(http.StatusOK, resp)
		default:
			c.JSON(http.StatusInternalServerError, resp)
		}
	}
}

func getTransactionHandler(rp repo.RepositoryInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := rp.GetRecord(c, c.Param("id"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

// balanceHandler reads through the redis caches first, then the account store.
func balanceHandler(rp repo.RepositoryInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := c.Param("owner_id")
		if accountID, err := rp.GetCachedAccountID(c, ownerID); err == nil {
			if bal, err := rp.GetCachedBalance(c, accountID); err == nil {
				c.JSON(http.StatusOK, gin.H{"account_id": accountID, "balance": bal})
				return
			}
		}
		account, err := rp.GetAccountByOwner(c, ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		_ = rp.CacheAccountID(c, ownerID, account.ID)
		_ = rp.CacheBalance(c, account.ID, account.Balance)
		c.JSON(http.StatusOK, gin.H{"account_id": account.ID, "balance": account.Balance})
	}
}
