package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ledgerchat/internal/model"
	"ledgerchat/internal/utils/log"
)

// HttpServer serves the ledger store contract consumed by the client:
// append/query messages, image blobs, display profiles and the
// cross-instance event hub. Optional fields travel as 0/1-element
// arrays on the wire.
type HttpServer struct {
	store MessageStore
	hub   *hub
}

func NewHttpServer(store MessageStore) *HttpServer {
	return &HttpServer{
		store: store,
		hub:   newHub(),
	}
}

// Router builds the route table; exposed separately so tests can mount
// it on httptest.
func (s *HttpServer) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/messages", s.handleSend()).Methods(http.MethodPost)
	r.HandleFunc("/messages", s.handlePage()).Methods(http.MethodGet)
	r.HandleFunc("/messages/count", s.handleCount()).Methods(http.MethodGet)
	r.HandleFunc("/images", s.handleUploadImage()).Methods(http.MethodPost)
	r.HandleFunc("/images/{ref}", s.handleFetchImage()).Methods(http.MethodGet)
	r.HandleFunc("/profiles/{clientID}", s.handleGetProfile()).Methods(http.MethodGet)
	r.HandleFunc("/profiles/{clientID}", s.handlePutProfile()).Methods(http.MethodPut)
	r.HandleFunc("/events", s.hub.handleWS()).Methods(http.MethodGet)

	return r
}

func (s *HttpServer) Run(addr string) error {
	log.Info("dev store listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Router())
}

type (
	wireMessage struct {
		ID             int64   `json:"id"`
		Author         string  `json:"author"`
		SenderIdentity string  `json:"sender_identity"`
		Text           string  `json:"text"`
		Timestamp      int64   `json:"timestamp"`
		ImageRef       []int64 `json:"image_ref"`
		ReplyTo        []int64 `json:"reply_to"`
	}

	wireSendRequest struct {
		Author         string  `json:"author"`
		SenderIdentity string  `json:"sender_identity"`
		Text           string  `json:"text"`
		ImageRef       []int64 `json:"image_ref"`
		ReplyTo        []int64 `json:"reply_to"`
	}
)

func toWire(m model.Message) wireMessage {
	w := wireMessage{
		ID:             m.ID,
		Author:         m.Author,
		SenderIdentity: m.SenderIdentity,
		Text:           m.Text,
		Timestamp:      m.Timestamp,
		ImageRef:       []int64{},
		ReplyTo:        []int64{},
	}
	if m.ImageRef != nil {
		w.ImageRef = []int64{*m.ImageRef}
	}
	if m.ReplyTo != nil {
		w.ReplyTo = []int64{*m.ReplyTo}
	}
	return w
}

func (s *HttpServer) handleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wireSendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed send request", http.StatusBadRequest)
			return
		}
		if req.Text == "" && len(req.ImageRef) == 0 {
			http.Error(w, "empty message", http.StatusBadRequest)
			return
		}

		m := model.Message{
			Author:         req.Author,
			SenderIdentity: req.SenderIdentity,
			Text:           req.Text,
			Timestamp:      time.Now().UnixNano(),
		}
		if len(req.ImageRef) > 0 {
			m.ImageRef = &req.ImageRef[0]
		}
		if len(req.ReplyTo) > 0 {
			m.ReplyTo = &req.ReplyTo[0]
		}

		stored, err := s.store.Append(r.Context(), m)
		if err != nil {
			log.Error("append message failed", zap.Error(err))
			http.Error(w, "append failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, toWire(stored))
	}
}

func (s *HttpServer) handlePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))

		p, err := s.store.Page(r.Context(), page, size)
		if err != nil {
			log.Error("page query failed", zap.Error(err))
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}

		messages := make([]wireMessage, 0, len(p.Messages))
		for _, m := range p.Messages {
			messages = append(messages, toWire(m))
		}
		writeJSON(w, map[string]any{
			"messages":    messages,
			"total":       p.Total,
			"page":        p.Page,
			"page_size":   p.PageSize,
			"total_pages": p.TotalPages,
		})
	}
}

func (s *HttpServer) handleCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.store.Count(r.Context())
		if err != nil {
			log.Error("count query failed", zap.Error(err))
			http.Error(w, "query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]int{"count": n})
	}
}

func (s *HttpServer) handleUploadImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 8<<20))
		if err != nil {
			http.Error(w, "image too large", http.StatusRequestEntityTooLarge)
			return
		}
		ref, err := s.store.PutImage(r.Context(), data)
		if err != nil {
			log.Error("store image failed", zap.Error(err))
			http.Error(w, "store failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]int64{"ref": ref})
	}
}

func (s *HttpServer) handleFetchImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := strconv.ParseInt(mux.Vars(r)["ref"], 10, 64)
		if err != nil {
			http.Error(w, "bad image ref", http.StatusBadRequest)
			return
		}
		data, err := s.store.GetImage(r.Context(), ref)
		if err != nil {
			log.Error("fetch image failed", zap.Error(err))
			http.Error(w, "fetch failed", http.StatusInternalServerError)
			return
		}
		if data == nil {
			http.Error(w, "image not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(data)
	}
}

func (s *HttpServer) handleGetProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := mux.Vars(r)["clientID"]
		p, err := s.store.GetProfile(r.Context(), clientID)
		if err != nil {
			log.Error("fetch profile failed", zap.Error(err))
			http.Error(w, "fetch failed", http.StatusInternalServerError)
			return
		}
		if p == nil {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		writeJSON(w, p)
	}
}

func (s *HttpServer) handlePutProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := mux.Vars(r)["clientID"]
		var p model.Profile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "malformed profile", http.StatusBadRequest)
			return
		}
		if err := s.store.PutProfile(r.Context(), clientID, p); err != nil {
			log.Error("store profile failed", zap.Error(err))
			http.Error(w, "store failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, p)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("encode response failed", zap.Error(err))
	}
}
