package websocketx

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/opsyhq/opsy/pkg/utils"
)

// Conn serializes writes, gorilla connections allow one concurrent writer.
type Conn struct {
	*websocket.Conn
	writeLock sync.Mutex
}

func (conn *Conn) WriteMessage(msgType int, data []byte) error {
	conn.writeLock.Lock()
	defer conn.writeLock.Unlock()
	return conn.Conn.WriteMessage(msgType, data)
}

// WriteJSON encodes v with utils.Json and sends it as one text message.
func (conn *Conn) WriteJSON(v interface{}) error {
	data, err := utils.Json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
