package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/osukit/scoresws/history"
)

// NewRouter builds the HTTP router: the websocket endpoint plus health and
// stats endpoints.
func NewRouter(hub *Hub, hist *history.History) *gin.Engine {
	startedAt := time.Now()

	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", gin.WrapH(hub.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/statsz", func(c *gin.Context) {
		oldest, _ := hist.Oldest()
		newest, _ := hist.Newest()

		c.JSON(http.StatusOK, gin.H{
			"uptime_s":    int64(time.Since(startedAt).Seconds()),
			"subscribers": hub.Subscribers(),
			"delivered":   hub.Delivered(),
			"retained":    hist.Len(),
			"oldest_id":   oldest,
			"newest_id":   newest,
		})
	})

	return r
}
