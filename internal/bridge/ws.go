package bridge

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type wsInbound struct {
	Type     string `json:"type"`
	Question string `json:"question,omitempty"`
}

type wsOutbound struct {
	Type    string   `json:"type"`
	State   *UIState `json:"state,omitempty"`
	Code    string   `json:"code,omitempty"`
	Message string   `json:"message,omitempty"`
}

// handleWS streams UI state over a websocket and accepts see_more / ask
// actions inline, with a ping/pong keepalive pump.
func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	binding, ok := h.bindingFor(w, r, nil)
	if !ok {
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		log.Printf("ask ws: set read deadline: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan wsOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	updates, unsubscribe := binding.Subscribe()
	defer unsubscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case state, open := <-updates:
				if !open {
					return
				}
				pushWS(writeCh, wsOutbound{Type: "state", State: &state})
			}
		}
	}()

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		// Actions run off the read loop; a slow generation must not stall
		// ReadJSON and the pong deadline refresh.
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushWS(writeCh, wsOutbound{Type: "pong"})
		case "see_more":
			go func() {
				state := binding.SeeMore(ctx)
				pushWS(writeCh, wsOutbound{Type: "state", State: &state})
			}()
		case "ask":
			question := strings.TrimSpace(in.Question)
			if question == "" {
				pushWS(writeCh, wsOutbound{Type: "error", Code: "invalid_argument", Message: "question is required"})
				continue
			}
			go func() {
				state := binding.AskCustom(ctx, question)
				pushWS(writeCh, wsOutbound{Type: "state", State: &state})
			}()
		default:
			pushWS(writeCh, wsOutbound{Type: "error", Code: "invalid_argument", Message: "unsupported type: " + in.Type})
		}
	}
}

// pushWS never blocks the reader loop: a full write buffer loses its oldest
// message instead.
func pushWS(writeCh chan wsOutbound, out wsOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
