package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/agent-marketplace/internal/goroutine"
)

// Hub управляет всеми WebSocket клиентами и доставляет события заданий
// их участникам.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	log        *logrus.Logger
}

type message struct {
	userID  uuid.UUID
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
		log:        log,
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.userID, msg.payload)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// NotifyJobEvent отправляет событие задания указанным пользователям.
// Сообщение следует контракту WebSocket API: "type" — имя события,
// "data" — полезная нагрузка.
func (h *Hub) NotifyJobEvent(jobID int64, event string, recipients ...uuid.UUID) {
	payload := map[string]any{
		"type": event,
		"data": map[string]any{"job_id": jobID},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).Error("ws: не удалось сериализовать событие")
		return
	}

	for _, userID := range recipients {
		h.broadcast <- message{userID: userID, payload: raw}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.userID)
		}
	}
}

func (h *Hub) send(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
			// Переполненный буфер означает мёртвое соединение.
			goroutine.SafeGo(client.Close)
		}
	}
}
