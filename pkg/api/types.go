package api

// Request and response types for the REST endpoints and WebSocket
// messages. All token amounts travel as decimal strings so 256-bit values
// survive JSON.

// PairInfo is the static pair description.
type PairInfo struct {
	StockSymbol string `json:"stockSymbol"`
	MoneySymbol string `json:"moneySymbol"`
	StockAddr   string `json:"stockAddr"`
	MoneyAddr   string `json:"moneyAddr"`
	PairAddr    string `json:"pairAddr"`
	FeeBPS      uint64 `json:"feeBps"`
	RefExp      int    `json:"refExp"`
	TotalShares string `json:"totalShares"`
}

// ReservesResponse mirrors the reserves getter: both reserves plus the best
// ask id (0 when the sell side is empty).
type ReservesResponse struct {
	ReserveStock string `json:"reserveStock"`
	ReserveMoney string `json:"reserveMoney"`
	FirstSellID  uint32 `json:"firstSellId"`
}

// BookedResponse mirrors the booked getter.
type BookedResponse struct {
	BookedStock string `json:"bookedStock"`
	BookedMoney string `json:"bookedMoney"`
	FirstBuyID  uint32 `json:"firstBuyId"`
}

// OrderInfo is one resting order, decoded plus its packed storage word.
type OrderInfo struct {
	ID          uint32 `json:"id"`
	IsBuy       bool   `json:"isBuy"`
	Price       uint32 `json:"price"`
	Amount      string `json:"amount"`
	Total       string `json:"total"`
	BookedMoney string `json:"bookedMoney,omitempty"`
	Owner       string `json:"owner"`
	NextID      uint32 `json:"nextId"`
	Packed      string `json:"packed"`
}

// BalancesResponse reports one address's holdings.
type BalancesResponse struct {
	Address string `json:"address"`
	Stock   string `json:"stock"`
	Money   string `json:"money"`
	Shares  string `json:"shares"`
}

// LimitOrderRequest places a signed limit order. PrevHints are routing
// advice only and are deliberately outside the signed payload.
type LimitOrderRequest struct {
	IsBuy     bool     `json:"isBuy"`
	Amount    string   `json:"amount"`
	Price     uint32   `json:"price"`
	OrderID   uint32   `json:"orderId"`
	Deadline  uint64   `json:"deadline"`
	PrevHints []uint32 `json:"prevHints,omitempty"`
	Signature string   `json:"signature"`
}

// MarketOrderRequest places a signed market order; Amount is denominated in
// the input token (money for buys, stock for sells).
type MarketOrderRequest struct {
	IsBuy     bool   `json:"isBuy"`
	Amount    string `json:"amount"`
	Deadline  uint64 `json:"deadline"`
	Signature string `json:"signature"`
}

// CancelRequest removes resting orders; each entry is (id<<8)|side with
// side byte 1 for buy.
type CancelRequest struct {
	Entries   []uint64 `json:"entries"`
	Deadline  uint64   `json:"deadline"`
	Signature string   `json:"signature"`
}

// DepositRequest moves the signer's tokens into the pair's custody.
type DepositRequest struct {
	Token     string `json:"token"` // token address
	Amount    string `json:"amount"`
	Deadline  uint64 `json:"deadline"`
	Signature string `json:"signature"`
}

// MintRequest turns the custody's fresh deposits into shares for To. The
// deposit itself is the commitment, so no signature is required.
type MintRequest struct {
	To string `json:"to"`
}

// BurnRequest redeems the signer's shares; proceeds go to To.
type BurnRequest struct {
	Shares    string `json:"shares"`
	To        string `json:"to"`
	Deadline  uint64 `json:"deadline"`
	Signature string `json:"signature"`
}

// FaucetRequest credits devnet funds.
type FaucetRequest struct {
	Address string `json:"address"`
	Token   string `json:"token"` // token address
	Amount  string `json:"amount"`
}

// ReceiptResponse reports a successful mutating call.
type ReceiptResponse struct {
	Status   string         `json:"status"`
	Sender   string         `json:"sender,omitempty"`
	OrderID  uint32         `json:"orderId,omitempty"`
	Remained string         `json:"remained,omitempty"`
	Shares   string         `json:"shares,omitempty"`
	StockOut string         `json:"stockOut,omitempty"`
	MoneyOut string         `json:"moneyOut,omitempty"`
	Events   []EventMessage `json:"events"`
}

// ErrorResponse is returned for all errors; Error carries the engine's
// canonical code string where one applies.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is sent by clients to manage channel subscriptions.
// Channels: "events", "book:buy", "book:sell".
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// EventMessage is one engine event, pushed on the "events" channel and
// embedded in receipts.
type EventMessage struct {
	Type    string `json:"type"` // "event"
	Seq     uint64 `json:"seq,omitempty"`
	Kind    string `json:"kind"`
	Payload string `json:"payload"` // hex-encoded 256-bit word
}

// BookUpdate is a one-sided book snapshot, pushed after mutations.
type BookUpdate struct {
	Type   string      `json:"type"` // "book"
	Side   string      `json:"side"` // "buy" or "sell"
	Orders []OrderInfo `json:"orders"`
}
