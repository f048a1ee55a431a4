package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ewallet/transfer-saga/internal/config"
	"github.com/ewallet/transfer-saga/internal/ledger"
	"github.com/ewallet/transfer-saga/internal/repo"
)

func NewRouter(w *ledger.Writer, rp repo.RepositoryInterface, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, w, rp)
	return r
}
