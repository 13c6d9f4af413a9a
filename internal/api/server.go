// Package api is the optional HTTP + WebSocket gateway over the core
// engine. The core itself speaks no network protocol; this is the
// outer surface (gorilla/mux routing, a gorilla/websocket broadcast
// hub).
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"precedence/internal/engine"
)

// Server wires the Engine's submission API to an HTTP router and a
// WebSocket hub that fans out trade and market-data observer callbacks
// to subscribed clients.
type Server struct {
	eng    *engine.Engine
	router *mux.Router
	hub    *Hub
	logger *zap.Logger
}

// NewServer builds the router and subscribes the hub to eng's trade and
// market-data streams. Call Start to serve.
func NewServer(eng *engine.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		eng:    eng,
		router: mux.NewRouter(),
		hub:    NewHub(logger),
		logger: logger.Named("api"),
	}
	s.setupRoutes()

	eng.SubscribeTrades(engine.TradeObserverFunc(func(t engine.Trade) {
		s.hub.BroadcastToChannel("trades", tradeEvent(t))
	}))
	eng.SubscribeMarketData(engine.MarketDataObserverFunc(func(m engine.MarketData) {
		s.hub.BroadcastToChannel("market_data", marketEvent(m))
	}))

	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/orders", s.handleSubmit).Methods("POST")
	v1.HandleFunc("/orders/cancel", s.handleCancel).Methods("POST")
	v1.HandleFunc("/orders/modify", s.handleModify).Methods("POST")
	v1.HandleFunc("/orders/{order_id}", s.handleGetOrder).Methods("GET")
	v1.HandleFunc("/users/{user_id}/orders", s.handleGetUserOrders).Methods("GET")
	v1.HandleFunc("/symbols/{symbol}/market-data", s.handleGetMarketData).Methods("GET")
	v1.HandleFunc("/symbols/{symbol}/depth", s.handleGetDepth).Methods("GET")

	s.router.HandleFunc("/ws", s.hub.ServeWS)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the HTTP server on addr, blocking until it exits.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.logger.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.router)
}

// ---------------- handlers ----------------

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}

	typ, err := parseType(req.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order type", err.Error())
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}

	id, err := s.eng.Submit(engine.NewOrderParams{
		ID:           req.OrderID,
		UserID:       req.UserID,
		Symbol:       req.Symbol,
		Type:         typ,
		Side:         side,
		Price:        req.Price,
		TriggerPrice: req.TriggerPrice,
		Quantity:     req.Quantity,
	}, req.Priority)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, submitResponse{OrderID: id})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	ok, err := s.eng.Cancel(req.OrderID, req.UserID)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, boolResponse{OK: ok})
}

func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	var req modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	ok, err := s.eng.Modify(req.OrderID, req.UserID, req.NewPrice, req.NewQuantity)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, boolResponse{OK: ok})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["order_id"]
	o, ok := s.eng.GetOrder(orderID)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", orderID)
		return
	}
	respondJSON(w, http.StatusOK, orderToResponse(o))
}

func (s *Server) handleGetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	orders := s.eng.GetUserOrders(userID)
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderToResponse(o))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetMarketData(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	md, err := s.eng.GetMarketData(symbol)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, marketEvent(md))
}

func (s *Server) handleGetDepth(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	side, err := parseSide(r.URL.Query().Get("side"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}
	levels := 10
	if v := r.URL.Query().Get("levels"); v != "" {
		fmt.Sscanf(v, "%d", &levels)
	}

	out := s.eng.GetDepth([]string{symbol}, side, levels)
	resp := make([]depthLevelResponse, 0, len(out[symbol]))
	for _, lvl := range out[symbol] {
		resp = append(resp, depthLevelResponse{Price: lvl.Price, Quantity: lvl.Quantity})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, boolResponse{OK: true})
}

// ---------------- helpers ----------------

func parseType(s string) (engine.Type, error) {
	switch s {
	case "LIMIT":
		return engine.Limit, nil
	case "MARKET":
		return engine.Market, nil
	case "STOP_LOSS":
		return engine.StopLoss, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", s)
	}
}

func parseSide(s string) (engine.Side, error) {
	switch s {
	case "BUY":
		return engine.Buy, nil
	case "SELL":
		return engine.Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

func orderToResponse(o engine.Order) orderResponse {
	return orderResponse{
		OrderID:           o.ID,
		UserID:            o.UserID,
		Symbol:            o.Symbol,
		Type:              o.Type.String(),
		Side:              o.Side.String(),
		Price:             o.Price,
		TriggerPrice:      o.TriggerPrice,
		OriginalQuantity:  o.OriginalQuantity,
		RemainingQuantity: o.RemainingQuantity,
		Status:            o.Status.String(),
		Timestamp:         o.Timestamp,
	}
}

func tradeEvent(t engine.Trade) map[string]any {
	return map[string]any{
		"trade_id":      t.ID,
		"symbol":        t.Symbol,
		"buy_order_id":  t.BuyOrderID,
		"sell_order_id": t.SellOrderID,
		"price":         t.Price,
		"quantity":      t.Quantity,
		"timestamp":     t.Timestamp,
	}
}

func marketEvent(m engine.MarketData) marketDataResponse {
	return marketDataResponse{
		Symbol:        m.Symbol,
		BestBid:       m.BestBid,
		BestAsk:       m.BestAsk,
		LastPrice:     m.LastPrice,
		LastTradeTime: m.LastTradeTime,
		TotalVolume:   m.TotalVolume,
		TotalTrades:   m.TotalTrades,
		Spread:        m.Spread,
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg, detail string) {
	respondJSON(w, status, errorResponse{Error: msg, Detail: detail})
}

func respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch engine.KindOf(err) {
	case engine.ErrInvalidOrder, engine.ErrInvalidModification, engine.ErrNotModified:
		status = http.StatusBadRequest
	case engine.ErrUnknownSymbol, engine.ErrNotFound:
		status = http.StatusNotFound
	case engine.ErrNotOwner:
		status = http.StatusForbidden
	case engine.ErrAlreadyTerminal, engine.ErrSymbolNotEmpty, engine.ErrNotRunning, engine.ErrQueueFull:
		status = http.StatusConflict
	}
	respondJSON(w, status, errorResponse{Error: string(engine.KindOf(err)), Detail: err.Error()})
}
