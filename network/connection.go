// network/connection.go
package network

import (
	"encoding/json"
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// Connection is one message-oriented client endpoint. Reads happen from a
// single goroutine; Send is safe from any.
type Connection interface {
	Send(payload interface{}) error
	ReadMessage() (*ClientMessage, error)
	Close() error
	RemoteAddr() net.Addr
}

type WSConnection struct {
	conn *websocket.Conn
	// gorilla allows one concurrent writer; broadcasts and direct replies
	// race without this.
	sendMutex sync.Mutex
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

func (c *WSConnection) Send(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WSConnection) ReadMessage() (*ClientMessage, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
