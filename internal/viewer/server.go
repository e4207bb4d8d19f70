package viewer

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/l1jgo/hashbounds/internal/config"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Routes returns the viewer's HTTP handler: /ws for frames and /healthz.
func Routes(hub *Hub, cfg config.ViewerConfig) *http.ServeMux {
	queue := cfg.SendQueueSize
	if queue < 1 {
		queue = 1
	}
	writeWait := cfg.WriteTimeout
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		c := newClient(hub, conn, extractIP(r), queue, writeWait)
		if !hub.add(c) {
			conn.Close()
			return
		}

		go c.writePump()
		go c.readPump()
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// Server serves the viewer endpoint until Shutdown.
type Server struct {
	hub  *Hub
	http *http.Server
	ln   net.Listener
	log  *zap.Logger
}

// Listen binds the viewer address. Call Serve to start accepting.
func Listen(cfg config.ViewerConfig, hub *Hub, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", cfg.BindAddress)
	if err != nil {
		return nil, err
	}
	return &Server{
		hub:  hub,
		http: &http.Server{Handler: Routes(hub, cfg)},
		ln:   ln,
		log:  log,
	}, nil
}

func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve blocks until the server is shut down.
func (s *Server) Serve() {
	s.log.Info("viewer listening", zap.String("addr", s.ln.Addr().String()))
	if err := s.http.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("viewer serve", zap.Error(err))
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
