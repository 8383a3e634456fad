package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/food-delivery/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // authentication happens in the first frame
	},
}

type LiveController struct {
	Hub *hub.Hub
}

func NewLiveController(h *hub.Hub) *LiveController {
	return &LiveController{Hub: h}
}

// LiveHandler -> GET /ws/notifications, the client authenticates with its first message
func (lc *LiveController) LiveHandler(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	lc.Hub.ServeConn(c.Request.Context(), ws)
}
