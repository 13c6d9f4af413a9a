package api

// submitRequest is the JSON body accepted by POST /api/v1/orders.
type submitRequest struct {
	OrderID      string `json:"order_id"`
	UserID       string `json:"user_id"`
	Symbol       string `json:"symbol"`
	Type         string `json:"type"`
	Side         string `json:"side"`
	Price        int64  `json:"price"`
	TriggerPrice int64  `json:"trigger_price"`
	Quantity     int64  `json:"quantity"`
	Priority     int    `json:"priority"`
}

type submitResponse struct {
	OrderID string `json:"order_id"`
}

type cancelRequest struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

type modifyRequest struct {
	OrderID     string `json:"order_id"`
	UserID      string `json:"user_id"`
	NewPrice    int64  `json:"new_price"`
	NewQuantity int64  `json:"new_quantity"`
}

type boolResponse struct {
	OK bool `json:"ok"`
}

type orderResponse struct {
	OrderID           string `json:"order_id"`
	UserID            string `json:"user_id"`
	Symbol            string `json:"symbol"`
	Type              string `json:"type"`
	Side              string `json:"side"`
	Price             int64  `json:"price"`
	TriggerPrice      int64  `json:"trigger_price"`
	OriginalQuantity  int64  `json:"original_quantity"`
	RemainingQuantity int64  `json:"remaining_quantity"`
	Status            string `json:"status"`
	Timestamp         int64  `json:"timestamp"`
}

type marketDataResponse struct {
	Symbol        string `json:"symbol"`
	BestBid       int64  `json:"best_bid"`
	BestAsk       int64  `json:"best_ask"`
	LastPrice     int64  `json:"last_price"`
	LastTradeTime int64  `json:"last_trade_time"`
	TotalVolume   int64  `json:"total_volume"`
	TotalTrades   int64  `json:"total_trades"`
	Spread        int64  `json:"spread"`
}

type depthLevelResponse struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Detail  string `json:"detail,omitempty"`
}
