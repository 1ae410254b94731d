package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/fieldcore/cyclerd/router"
)

// ServerConfig configures the observability HTTP/WebSocket server,
// matching the teacher's http.ServerConfig shape (timeouts, rate
// limiting) adapted to a single upgrade endpoint rather than a general
// REST API.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RateLimit       float64 // requests/sec per client; 0 = unlimited
	SendChanBuffer  int     // outbound message buffer per connection
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":7000",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		SendChanBuffer: 64,
	}
}

// Server is the observability WebSocket server: one provider per subject,
// each backed by its own router, serving every connected client.
type Server struct {
	cfg ServerConfig
	log *logrus.Entry

	outputs    *Provider
	parameters *Provider
	databases  *Provider

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*clientConn
}

// NewServer returns a Server wired to the three routers.
func NewServer(cfg ServerConfig, outputs, parameters, databases *router.Router) *Server {
	if cfg.SendChanBuffer == 0 {
		cfg.SendChanBuffer = 64
	}
	return &Server{
		cfg:        cfg,
		log:        logrus.WithField("component", "observability"),
		outputs:    NewProvider(SubjectOutputs, outputs),
		parameters: NewProvider(SubjectParameters, parameters),
		databases:  NewProvider(SubjectDatabases, databases),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:    make(map[string]*clientConn),
	}
}

// clientConn is one connected client's send pump and subscription
// identity, grounded on coordinator.Coordinator's sendChan outbound pump.
type clientConn struct {
	id       string
	conn     *websocket.Conn
	sendChan chan any
	limiter  *rate.Limiter
}

// Echo registers the upgrade endpoint on an echo.Echo instance, matching
// the teacher's http.NewEchoServer middleware wiring style.
func (s *Server) Echo(e *echo.Echo) {
	e.GET("/v1/observe", func(c echo.Context) error {
		return s.handleUpgrade(c)
	})
}

func (s *Server) handleUpgrade(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("observability: upgrade: %w", err)
	}

	client := &clientConn{
		id:       fmt.Sprintf("%p", conn),
		conn:     conn,
		sendChan: make(chan any, s.cfg.SendChanBuffer),
	}
	if s.cfg.RateLimit > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), int(s.cfg.RateLimit))
	}

	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()

	go s.sendLoop(client)
	s.receiveLoop(client)

	s.mu.Lock()
	delete(s.clients, client.id)
	s.mu.Unlock()
	s.outputs.UnsubscribeEverything(client.id)
	s.parameters.UnsubscribeEverything(client.id)
	s.databases.UnsubscribeEverything(client.id)

	return nil
}

func (s *Server) sendLoop(c *clientConn) {
	for msg := range c.sendChan {
		var err error
		switch m := msg.(type) {
		case Response:
			err = c.conn.WriteJSON(m)
		case BinaryFrame:
			err = c.conn.WriteMessage(websocket.BinaryMessage, encodeBinaryFrame(m))
		}
		if err != nil {
			s.log.WithError(err).WithField("client", c.id).Warn("observability: send failed")
			return
		}
	}
}

func (s *Server) receiveLoop(c *clientConn) {
	defer close(c.sendChan)

	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(context.Background()); err != nil {
				return
			}
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.sendChan <- errorResponse("observability: malformed request: %v", err)
			continue
		}

		resp := s.handleRequest(c, req)
		c.sendChan <- resp
	}
}

func (s *Server) providerFor(subject Subject) *Provider {
	switch subject {
	case SubjectOutputs:
		return s.outputs
	case SubjectParameters:
		return s.parameters
	case SubjectDatabases:
		return s.databases
	default:
		return nil
	}
}

func (s *Server) handleRequest(c *clientConn, req Request) Response {
	p := s.providerFor(req.Subject)
	if p == nil {
		return errorResponse("observability: unknown subject %q", req.Subject)
	}

	switch req.Type {
	case RequestGetFields:
		fields, err := p.router.Fields(req.Instance)
		if err != nil {
			return errorResponse("%v", err)
		}
		out := make([]FieldDescriptor, len(fields))
		for i, f := range fields {
			out[i] = FieldDescriptor{Path: f.Path, TypeTag: f.TypeTag}
		}
		return Response{Type: ResponseFields, Fields: out}

	case RequestSubscribe:
		if err := p.Subscribe(c.id, req.ID, req.Instance, req.Path, req.Format, false); err != nil {
			return errorResponse("%v", err)
		}
		return Response{Type: ResponseSubscribed, SubID: req.ID}

	case RequestGetNext:
		if err := p.Subscribe(c.id, req.ID, req.Instance, req.Path, req.Format, true); err != nil {
			return errorResponse("%v", err)
		}
		return Response{Type: ResponseSubscribed, SubID: req.ID}

	case RequestUnsubscribe:
		if err := p.Unsubscribe(c.id, req.SubID); err != nil {
			return errorResponse("%v", err)
		}
		return Response{Type: ResponseUnsubscribed, SubID: req.SubID}

	case RequestUnsubscribeEverything:
		p.UnsubscribeEverything(c.id)
		return Response{Type: ResponseUnsubscribed}

	default:
		return errorResponse("observability: unknown request type %q", req.Type)
	}
}

func encodeBinaryFrame(f BinaryFrame) []byte {
	header := make([]byte, 8)
	for i := 0; i < 8; i++ {
		header[i] = byte(f.ReferenceID >> (8 * (7 - i)))
	}
	return append(header, f.Bytes...)
}
