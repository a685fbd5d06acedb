// Package websocket tells admin clients watching a page when another editing
// session saved it. Saves overwrite the whole page, so a watcher that sees a
// page-saved event from someone else knows its working copy is stale.
package websocket

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const (
	EventJoinPage  = "join-page"
	EventLeavePage = "leave-page"
	EventPageSaved = "page-saved"
	EventWatchers  = "page-watchers"

	roomPrefix = "page:"
)

// Notifier broadcasts page-saved events to the sockets that joined a page.
type Notifier struct {
	srv     *socketio.Server
	handler http.Handler

	mu       sync.RWMutex
	watchers map[string]map[socketio.SocketId]bool
}

func pageRoom(pageID string) socketio.Room {
	return socketio.Room(roomPrefix + pageID)
}

func pageFromRoom(room socketio.Room) (string, bool) {
	return strings.CutPrefix(string(room), roomPrefix)
}

// NewNotifier creates the socket.io server and registers its event handlers.
func NewNotifier() *Notifier {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	n := &Notifier{
		srv:      socketio.NewServer(nil, opts),
		watchers: make(map[string]map[socketio.SocketId]bool),
	}
	// The engine only exists once the handler is built; Close needs it.
	n.handler = n.srv.ServeHandler(nil)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	n.srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		n.handleSocket(socket)
	})
	return n
}

func (n *Notifier) handleSocket(socket *socketio.Socket) {
	me := socket.Id()
	log := logrus.WithField("socket_id", me)

	//nolint:errcheck
	socket.On(EventJoinPage, func(datas ...any) {
		pageID, err := pageArg(datas)
		if err != nil {
			_ = socket.Emit("join-page-ack", map[string]any{"status": "error", "error": err.Error()})
			return
		}
		socket.Join(pageRoom(pageID))
		count := n.addWatcher(pageID, me)
		log.WithField("page_id", pageID).Debug("Socket is watching page")

		_ = n.srv.To(pageRoom(pageID)).Emit(EventWatchers, map[string]any{"pageId": pageID, "count": count})
		_ = socket.Emit("join-page-ack", map[string]any{"status": "ok", "pageId": pageID, "count": count})
	})

	//nolint:errcheck
	socket.On(EventLeavePage, func(datas ...any) {
		pageID, err := pageArg(datas)
		if err != nil {
			return
		}
		socket.Leave(pageRoom(pageID))
		count := n.removeWatcher(pageID, me)
		_ = n.srv.To(pageRoom(pageID)).Emit(EventWatchers, map[string]any{"pageId": pageID, "count": count})
	})

	//nolint:errcheck
	socket.On("disconnecting", func(datas ...any) {
		for _, room := range socket.Rooms().Keys() {
			pageID, ok := pageFromRoom(room)
			if !ok {
				continue
			}
			count := n.removeWatcher(pageID, me)
			_ = socket.Broadcast().To(room).Emit(EventWatchers, map[string]any{"pageId": pageID, "count": count})
		}
	})

	//nolint:errcheck
	socket.On("disconnect", func(datas ...any) {
		socket.RemoveAllListeners("")
	})
}

func pageArg(datas []any) (string, error) {
	if len(datas) == 0 {
		return "", fmt.Errorf("page id is required")
	}
	pageID, ok := datas[0].(string)
	if !ok || pageID == "" {
		return "", fmt.Errorf("invalid page id")
	}
	return pageID, nil
}

func (n *Notifier) addWatcher(pageID string, id socketio.SocketId) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	set, ok := n.watchers[pageID]
	if !ok {
		set = make(map[socketio.SocketId]bool)
		n.watchers[pageID] = set
	}
	set[id] = true
	return len(set)
}

func (n *Notifier) removeWatcher(pageID string, id socketio.SocketId) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	set := n.watchers[pageID]
	delete(set, id)
	if len(set) == 0 {
		delete(n.watchers, pageID)
		return 0
	}
	return len(set)
}

// Watchers returns how many sockets currently watch pageID.
func (n *Notifier) Watchers(pageID string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.watchers[pageID])
}

// PageSaved emits page-saved to everyone watching pageID.
func (n *Notifier) PageSaved(pageID, sessionID string) {
	payload := map[string]any{
		"pageId":    pageID,
		"sessionId": sessionID,
		"savedAt":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := n.srv.To(pageRoom(pageID)).Emit(EventPageSaved, payload); err != nil {
		logrus.WithError(err).WithField("page_id", pageID).Warn("Failed to broadcast page-saved")
	}
}

// Handler is mounted by the router under /socket.io/.
func (n *Notifier) Handler() http.Handler {
	return n.handler
}

func (n *Notifier) Close() {
	n.srv.Close(nil)
}
