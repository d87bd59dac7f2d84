package server

import (
	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// handleEvents streams the activity feed to a websocket client until the
// client goes away or the bus shuts down.
func (s *Server) handleEvents(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ch, unsub := s.bus.Subscribe()
	defer unsub()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				s.log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}
