package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/models"
	"laundry-pickup/pkg/utils"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// RoleLookup returns the current role of a user.
type RoleLookup interface {
	GetRole(ctx context.Context, userID string) (auth.Role, error)
}

// Handler upgrades /ws/orders requests. Browsers cannot set headers on a
// websocket handshake, so the access token comes as ?token=.
type Handler struct {
	hub       *Hub
	roles     RoleLookup
	jwtSecret string
	upgrader  websocket.Upgrader
}

func NewHandler(hub *Hub, roles RoleLookup, jwtSecret, allowedOrigin string) *Handler {
	return &Handler{
		hub:       hub,
		roles:     roles,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *Handler) session(c echo.Context) (auth.Session, error) {
	claims, err := utils.ParseAccessToken(h.jwtSecret, c.QueryParam("token"))
	if err != nil {
		return auth.Session{}, err
	}
	role, err := h.roles.GetRole(c.Request().Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return auth.Session{}, models.ErrForbidden
		}
		return auth.Session{}, err
	}
	return auth.Session{UserID: claims.UserID, Email: claims.Email, Role: role}, nil
}

// ServeOrders handles GET /ws/orders?token=.
func (h *Handler) ServeOrders(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return utils.HandleServiceError(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Debug().Err(err).Msg("Websocket upgrade failed")
		return nil
	}

	sub := h.hub.subscribe(sess)
	log.Debug().Str("user_id", sess.UserID).Str("role", sess.Role.String()).Msg("Feed subscriber connected")
	go h.writePump(conn, sub)
	h.readPump(conn, sub)
	return nil
}

// readPump only watches for the client going away; clients send nothing.
func (h *Handler) readPump(conn *websocket.Conn, sub *subscriber) {
	defer func() {
		h.hub.unsubscribe(sub)
		conn.Close()
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
