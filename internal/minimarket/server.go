// Package minimarket содержит локальный бэкенд витрины для разработки и тестов:
// REST, чат-сокеты и ассистент в одном процессе.
package minimarket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/net/websocket"
)

type Server struct {
	addr      string
	store     *Store
	tokens    *TokenService
	hub       *Hub
	assistant *LaneAssistant
	router    *mux.Router
	server    *http.Server
}

func NewServer(addr, signingSecret string, assistant *LaneAssistant) *Server {
	s := &Server{
		addr:      addr,
		store:     NewStore(),
		tokens:    NewTokenService(signingSecret, time.Minute),
		hub:       NewHub(),
		assistant: assistant,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.HandleFunc("/up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id:[0-9]+}/messages", s.handleMessages).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id:[0-9]+}/messages", s.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id:[0-9]+}/messages/{messageID:[0-9]+}", s.handleDeleteMessage).Methods(http.MethodDelete)
	api.HandleFunc("/conversations/{id:[0-9]+}/token", s.handleIssueToken).Methods(http.MethodPost)
	api.HandleFunc("/assistant", s.handleAssistant).Methods(http.MethodPost)

	r.HandleFunc("/ws/chat/{id:[0-9]+}/", s.handleChatSocket)

	s.router = r
}

// Handler exposes the router for httptest-style wiring.
func (s *Server) Handler() http.Handler { return s.router }

// Start запускает сервер витрины
func (s *Server) Start() error {
	// no blanket read/write timeouts: they would cut long-lived chat sockets
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Printf("🌐 Minimarket слушает на %s", s.addr)
	return s.server.ListenAndServe()
}

// Stop останавливает сервер витрины
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleListConversations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Conversations())
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	msgs, ok := s.store.Messages(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	var req struct {
		Body            string `json:"body"`
		ClientMessageID string `json:"client_message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == "" {
		writeJSONError(w, http.StatusBadRequest, "body is required")
		return
	}

	conv, ok := s.store.Conversation(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	// dev stub has no real auth: outgoing messages belong to the buyer
	msg, duplicate, _ := s.store.AppendMessage(id, conv.Buyer.ID, req.Body, req.ClientMessageID)
	if !duplicate {
		s.hub.Broadcast(id, wireFrame{Type: "chat_message", Message: &msg})
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	messageID := pathID(r, "messageID")
	if !s.store.DeleteMessage(id, messageID) {
		writeJSONError(w, http.StatusNotFound, "message not found")
		return
	}
	s.hub.Broadcast(id, wireFrame{Type: "message_deleted", MessageID: messageID})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if _, ok := s.store.Conversation(id); !ok {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": s.tokens.Issue(id)})
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text      string `json:"text"`
		SessionID string `json:"session_id"`
		Lane      string `json:"lane"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeJSONError(w, http.StatusBadRequest, "text is required")
		return
	}

	reply, err := s.assistant.Turn(r.Context(), req.Text, req.SessionID, req.Lane)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if _, ok := s.store.Conversation(id); !ok {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err := s.tokens.Redeem(r.URL.Query().Get("token"), id); err != nil {
		log.Printf("⚠️ Сокет диалога %d отклонён: %v", id, err)
		writeJSONError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	websocket.Handler(func(conn *websocket.Conn) {
		s.serveConversation(conn, id)
	}).ServeHTTP(w, r)
}

func (s *Server) serveConversation(conn *websocket.Conn, conversationID int64) {
	defer func(conn *websocket.Conn) {
		err := conn.Close()
		if err != nil {
		}
	}(conn)

	sub := newSubscriber(json.NewEncoder(conn))
	s.hub.Join(conversationID, sub)
	defer s.hub.Leave(conversationID, sub)
	log.Printf("🔗 Подписчик подключился к диалогу %d", conversationID)

	// the protocol is push-only; reading just detects the close
	buf := make([]byte, 256)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ Не удалось записать ответ: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
