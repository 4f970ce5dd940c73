package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Connection timing. Kiosk browsers sit on a LAN, so dead peers are
// dropped quickly.
const (
	writeTimeout = 5 * time.Second
	readTimeout  = 30 * time.Second
	pingInterval = readTimeout * 9 / 10

	// Clients only send control frames
	readLimit = 4 * 1024
)

// Client is one websocket subscriber. The hub closes send to detach it.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient registers conn with the hub. It returns nil if the hub has
// stopped.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, hub.buffer),
	}
	select {
	case hub.register <- c:
		return c
	case <-hub.done:
		return nil
	}
}

// Run serves the connection until either side gives up. The fiber
// handler must not return before Run does.
func (c *Client) Run() {
	go c.writeLoop()
	c.readLoop()
}

// readLoop drains inbound frames so pongs and disconnects are seen.
func (c *Client) readLoop() {
	defer c.detach()

	c.conn.SetReadLimit(readLimit)
	c.extendDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendDeadline()
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) extendDeadline() {
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
}

// detach unregisters the client and closes the socket.
func (c *Client) detach() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
	c.conn.Close()
}

// writeLoop owns all writes to the socket.
func (c *Client) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, open := <-c.send:
			if !open {
				c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.write(frameType(msg.Type), msg.Data); err != nil {
				return
			}

		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(frame int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(frame, data)
}

func frameType(t MessageType) int {
	if t == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
