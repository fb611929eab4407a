// Package api provides the HTTP handlers for recording paper trades and
// reporting ledger statistics.
//
// Money is shopspring/decimal throughout, never float64.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/paper-ledger/internal/ledger"
	"github.com/atmx/paper-ledger/internal/model"
)

// Service exposes a ledger Engine over HTTP. Serialization of mutations is
// the engine's job; handlers only validate and translate.
type Service struct {
	engine *ledger.Engine
	wsHub  *WSHub // optional WebSocket hub for real-time broadcasts
	now    func() time.Time
}

// NewService creates a new API service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(engine *ledger.Engine, hub *WSHub) *Service {
	return &Service{
		engine: engine,
		wsHub:  hub,
		now:    time.Now,
	}
}

// Routes mounts the ledger endpoints on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/trades", s.RecordTrade)
	r.Post("/trades/batch", s.RecordTrades)
	r.Get("/trades", s.ListTrades)
	r.Get("/positions", s.ListPositions)
	r.Get("/stats", s.GetStats)
	r.Get("/report", s.GetReport)
	r.Post("/reset", s.Reset)
	r.Post("/rebuild", s.Rebuild)
	if s.wsHub != nil {
		r.Get("/ws", s.wsHub.HandleWS)
	}
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /trades. Timestamp defaults to the
// time of the request; Price defaults to usdcAmount / tokenAmount.
type TradeRequest struct {
	Timestamp     int64           `json:"timestamp"`
	Side          string          `json:"side"` // "BUY" or "SELL"
	Market        string          `json:"market"`
	Outcome       string          `json:"outcome"`
	USDCAmount    decimal.Decimal `json:"usdcAmount"`
	TokenAmount   decimal.Decimal `json:"tokenAmount"`
	Price         decimal.Decimal `json:"price"`
	TraderAddress string          `json:"traderAddress"`
	ConditionID   string          `json:"conditionId"`
	Asset         string          `json:"asset"`
}

// BatchRequest is the JSON body for POST /trades/batch.
type BatchRequest struct {
	Trades []TradeRequest `json:"trades"`
}

// TradeResponse is the JSON body returned from POST /trades.
type TradeResponse struct {
	Trade model.Trade `json:"trade"`
	Fill  model.Fill  `json:"fill"`
}

// BatchResponse is the JSON body returned from POST /trades/batch.
type BatchResponse struct {
	Results []TradeResponse `json:"results"`
}

// ReportResponse is the JSON body for GET /report?format=json.
type ReportResponse struct {
	Stats     model.Stats      `json:"stats"`
	Positions []model.Position `json:"positions"`
	Report    string           `json:"report"`
}

// toTrade validates the request and fills in defaults.
func (req TradeRequest) toTrade(now time.Time) (model.Trade, error) {
	side := model.Side(req.Side)
	if !side.Valid() {
		return model.Trade{}, errors.New("side must be BUY or SELL")
	}
	if req.ConditionID == "" || req.Asset == "" {
		return model.Trade{}, errors.New("conditionId and asset are required")
	}
	if !req.TokenAmount.IsPositive() {
		return model.Trade{}, errors.New("tokenAmount must be positive")
	}
	if req.USDCAmount.IsNegative() {
		return model.Trade{}, errors.New("usdcAmount must not be negative")
	}

	price := req.Price
	if price.IsZero() {
		price = req.USDCAmount.Div(req.TokenAmount)
	}
	ts := req.Timestamp
	if ts == 0 {
		ts = now.UnixMilli()
	}

	return model.Trade{
		Timestamp:     ts,
		Side:          side,
		Market:        req.Market,
		Outcome:       req.Outcome,
		USDCAmount:    req.USDCAmount,
		TokenAmount:   req.TokenAmount,
		Price:         price,
		TraderAddress: req.TraderAddress,
		ConditionID:   req.ConditionID,
		Asset:         req.Asset,
	}, nil
}

// --- HTTP Handlers ---

// RecordTrade handles POST /api/v1/trades
func (s *Service) RecordTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := req.toTrade(s.now())
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	fill, err := s.engine.RecordTrade(r.Context(), t)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.broadcastFill(t, fill)
	writeJSON(w, http.StatusOK, TradeResponse{Trade: t, Fill: fill})
}

// RecordTrades handles POST /api/v1/trades/batch
// Either every trade is recorded or none is.
func (s *Service) RecordTrades(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Trades) == 0 {
		writeError(w, "trades must not be empty", http.StatusBadRequest)
		return
	}

	now := s.now()
	trades := make([]model.Trade, 0, len(req.Trades))
	for _, tr := range req.Trades {
		t, err := tr.toTrade(now)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		trades = append(trades, t)
	}

	fills, err := s.engine.RecordTrades(r.Context(), trades)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := BatchResponse{Results: make([]TradeResponse, len(fills))}
	for i, fill := range fills {
		resp.Results[i] = TradeResponse{Trade: trades[i], Fill: fill}
		s.broadcastFill(trades[i], fill)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListTrades handles GET /api/v1/trades
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	l := s.engine.Snapshot(r.Context())
	writeJSON(w, http.StatusOK, l.Trades)
}

// ListPositions handles GET /api/v1/positions
func (s *Service) ListPositions(w http.ResponseWriter, r *http.Request) {
	l := s.engine.Snapshot(r.Context())
	positions := make([]model.Position, 0, len(l.Positions))
	for _, p := range l.Positions {
		positions = append(positions, p)
	}
	writeJSON(w, http.StatusOK, positions)
}

// GetStats handles GET /api/v1/stats
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats(r.Context()))
}

// GetReport handles GET /api/v1/report
// Plain text by default; ?format=json returns the snapshot with the text.
func (s *Service) GetReport(w http.ResponseWriter, r *http.Request) {
	rep := s.engine.Report(r.Context())

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, ReportResponse{
			Stats:     rep.Stats,
			Positions: rep.Positions,
			Report:    rep.Text,
		})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(rep.Text))
}

// Reset handles POST /api/v1/reset
func (s *Service) Reset(w http.ResponseWriter, r *http.Request) {
	l := s.engine.Reset(r.Context())

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{Type: EventLedgerReset, Timestamp: l.StartTime})
	}
	writeJSON(w, http.StatusOK, l)
}

// Rebuild handles POST /api/v1/rebuild
func (s *Service) Rebuild(w http.ResponseWriter, r *http.Request) {
	l, err := s.engine.Rebuild(r.Context())
	if err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{Type: EventLedgerRebuilt})
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Service) broadcastFill(t model.Trade, fill model.Fill) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(WSMessage{
		Type:        EventTradeRecorded,
		Key:         fill.Key,
		Market:      t.Market,
		Outcome:     t.Outcome,
		Side:        string(t.Side),
		Quantity:    t.TokenAmount.String(),
		Price:       t.Price.String(),
		RealizedPnL: fill.RealizedPnL.String(),
		Closed:      fill.Closed,
		Timestamp:   t.Timestamp,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
