package controller

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/opsyhq/opsy/model"
	"github.com/opsyhq/opsy/pkg/logger"
	"github.com/opsyhq/opsy/pkg/websocketx"
	"github.com/opsyhq/opsy/service/singleton"
	"github.com/opsyhq/opsy/service/store"
)

var streamInterval = time.Second * 2

var upgrader = &websocket.Upgrader{
	ReadBufferSize:  32768,
	WriteBufferSize: 32768,
}

// wsError ends a handler whose connection was hijacked, so nothing else may be
// written to the response.
type wsError struct {
	msg string
	a   []interface{}
}

func newWsError(format string, args ...interface{}) error {
	return &wsError{
		msg: format,
		a:   args,
	}
}

func (we *wsError) Error() string {
	return fmt.Sprintf(we.msg, we.a...)
}

// Websocket event stream
// @Summary Stream the open events matching the filters every two seconds
// @Description Takes the filter parameters of /event.
// @Produce json
// @Success 200 {object} model.EventStream
// @Router /ws/event [get]
func eventStream(c *gin.Context) (any, error) {
	preds, err := queryPredicates(c, model.Event{})
	if err != nil {
		return nil, err
	}
	preds = append(preds, store.Resolved(false))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return nil, newWsError("%v", err)
	}
	conn := &websocketx.Conn{Conn: ws}
	defer conn.Close()

	// the peer sends nothing, reading only notices the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log := logger.WithComponent("ws").With().Str("query", c.Request.URL.RawQuery).Logger()
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()
	count := 0
	for {
		events, err := singleton.Store.ListEvents(c.Request.Context(), preds...)
		if err != nil {
			log.Error().Err(err).Msg("list events")
		} else {
			if events == nil {
				events = []model.Event{}
			}
			if err := conn.WriteJSON(model.EventStream{Now: time.Now(), Events: events}); err != nil {
				break
			}
		}
		count++
		if count%4 == 0 {
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				break
			}
		}
		select {
		case <-closed:
			return nil, newWsError("")
		case <-ticker.C:
		}
	}
	return nil, newWsError("")
}
