// Package api exposes one pair over REST and WebSocket. Mutating endpoints
// carry EIP-712 signatures; the recovered address is the engine-level
// sender, so the server holds no keys and performs no custody of its own.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/poolbook/pkg/crypto"
	"github.com/uhyunpark/poolbook/pkg/engine"
	"github.com/uhyunpark/poolbook/pkg/engine/book"
	"github.com/uhyunpark/poolbook/pkg/engine/price"
	"github.com/uhyunpark/poolbook/pkg/engine/token"
	"github.com/uhyunpark/poolbook/pkg/util"
)

// Server handles REST and WebSocket traffic for one pair.
type Server struct {
	pair    *engine.Pair
	intents *crypto.IntentSigner
	clock   util.Clock
	router  *mux.Router
	hub     *Hub
	log     *zap.SugaredLogger
	faucet  bool
}

func NewServer(pair *engine.Pair, intents *crypto.IntentSigner, clock util.Clock,
	log *zap.SugaredLogger, faucet bool) *Server {

	if clock == nil {
		clock = util.RealClock{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		pair:    pair,
		intents: intents,
		clock:   clock,
		router:  mux.NewRouter(),
		hub:     NewHub(),
		log:     log,
		faucet:  faucet,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/pair", s.handleGetPair).Methods("GET")
	api.HandleFunc("/reserves", s.handleGetReserves).Methods("GET")
	api.HandleFunc("/booked", s.handleGetBooked).Methods("GET")
	api.HandleFunc("/orders/{side}", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/balances/{address}", s.handleGetBalances).Methods("GET")

	api.HandleFunc("/orders/limit", s.handleLimitOrder).Methods("POST")
	api.HandleFunc("/orders/market", s.handleMarketOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/liquidity/mint", s.handleMint).Methods("POST")
	api.HandleFunc("/liquidity/burn", s.handleBurn).Methods("POST")
	api.HandleFunc("/sync", s.handleSync).Methods("POST")
	if s.faucet {
		api.HandleFunc("/faucet", s.handleFaucet).Methods("POST")
	}

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the full middleware-wrapped handler; used by Start and by
// httptest servers.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the hub and blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ==============================
// Read endpoints
// ==============================

func (s *Server) handleGetPair(w http.ResponseWriter, r *http.Request) {
	cfg := s.pair.Config()
	respondJSON(w, PairInfo{
		StockSymbol: cfg.Stock.Symbol,
		MoneySymbol: cfg.Money.Symbol,
		StockAddr:   cfg.Stock.Addr.Hex(),
		MoneyAddr:   cfg.Money.Addr.Hex(),
		PairAddr:    cfg.PairAddr.Hex(),
		FeeBPS:      cfg.FeeBPS,
		RefExp:      cfg.RefExp,
		TotalShares: s.pair.TotalShares().Dec(),
	})
}

func (s *Server) handleGetReserves(w http.ResponseWriter, r *http.Request) {
	rs, rm, firstSell := s.pair.GetReserves()
	respondJSON(w, ReservesResponse{
		ReserveStock: rs.Dec(),
		ReserveMoney: rm.Dec(),
		FirstSellID:  uint32(firstSell),
	})
}

func (s *Server) handleGetBooked(w http.ResponseWriter, r *http.Request) {
	bs, bm, firstBuy := s.pair.GetBooked()
	respondJSON(w, BookedResponse{
		BookedStock: bs.Dec(),
		BookedMoney: bm.Dec(),
		FirstBuyID:  uint32(firstBuy),
	})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	side := mux.Vars(r)["side"]
	if side != "buy" && side != "sell" {
		respondError(w, http.StatusBadRequest, engine.ErrInvalidPath.Error(), "want buy or sell")
		return
	}
	isBuy := side == "buy"

	from := uint64(0)
	if v := r.URL.Query().Get("from"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid from", err.Error())
			return
		}
		from = n
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", "")
			return
		}
		limit = n
	}

	respondJSON(w, s.orderInfos(isBuy, book.ID(from), limit))
}

func (s *Server) orderInfos(isBuy bool, from book.ID, limit int) []OrderInfo {
	packed := s.pair.GetOrderList(isBuy, from, limit)
	out := make([]OrderInfo, len(packed))
	for i, p := range packed {
		o := p.Order
		info := OrderInfo{
			ID:     uint32(o.ID),
			IsBuy:  o.IsBuy,
			Price:  uint32(o.Price),
			Amount: o.Amount.Dec(),
			Total:  o.Total.Dec(),
			Owner:  o.Owner.Hex(),
			NextID: uint32(o.Next),
			Packed: p.Word.Hex(),
		}
		if o.IsBuy {
			info.BookedMoney = o.BookedMoney.Dec()
		}
		out[i] = info
	}
	return out
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	addrStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addrStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(addrStr)
	cfg := s.pair.Config()
	lg := s.pair.Ledger()
	respondJSON(w, BalancesResponse{
		Address: addr.Hex(),
		Stock:   lg.BalanceOf(cfg.Stock, addr).Dec(),
		Money:   lg.BalanceOf(cfg.Money, addr).Dec(),
		Shares:  s.pair.ShareBalance(addr).Dec(),
	})
}

// ==============================
// Mutating endpoints
// ==============================

func (s *Server) handleLimitOrder(w http.ResponseWriter, r *http.Request) {
	var req LimitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if s.expired(w, req.Deadline) {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	digest, err := s.intents.HashLimitOrder(&crypto.LimitOrderIntent{
		IsBuy:    req.IsBuy,
		Amount:   amount.ToBig(),
		Price:    req.Price,
		OrderID:  req.OrderID,
		Deadline: req.Deadline,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "hash intent", err.Error())
		return
	}
	sender, ok := s.recover(w, digest, req.Signature)
	if !ok {
		return
	}

	hints := make([]book.ID, len(req.PrevHints))
	for i, h := range req.PrevHints {
		hints[i] = book.ID(h)
	}
	rec, err := s.pair.AddLimitOrder(sender, req.IsBuy, amount, price.Price32(req.Price), book.ID(req.OrderID), hints)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ReceiptResponse{
		Status:   "executed",
		Sender:   sender.Hex(),
		OrderID:  uint32(rec.OrderID),
		Remained: rec.Remained.Dec(),
		Events:   eventMessages(rec.Events),
	})
}

func (s *Server) handleMarketOrder(w http.ResponseWriter, r *http.Request) {
	var req MarketOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if s.expired(w, req.Deadline) {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	digest, err := s.intents.HashMarketOrder(&crypto.MarketOrderIntent{
		IsBuy:    req.IsBuy,
		Amount:   amount.ToBig(),
		Deadline: req.Deadline,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "hash intent", err.Error())
		return
	}
	sender, ok := s.recover(w, digest, req.Signature)
	if !ok {
		return
	}

	cfg := s.pair.Config()
	tokenIn := cfg.Stock
	if req.IsBuy {
		tokenIn = cfg.Money
	}
	rec, err := s.pair.AddMarketOrder(sender, tokenIn, amount)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ReceiptResponse{
		Status: "executed",
		Sender: sender.Hex(),
		Events: eventMessages(rec.Events),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if s.expired(w, req.Deadline) {
		return
	}
	if len(req.Entries) == 0 {
		respondError(w, http.StatusBadRequest, "no entries", "")
		return
	}

	intent := &crypto.CancelIntent{Deadline: req.Deadline}
	entries := make([]engine.RemoveEntry, len(req.Entries))
	for i, e := range req.Entries {
		intent.Entries = append(intent.Entries, uint256.NewInt(e).ToBig())
		entries[i] = engine.ParseRemoveEntry(e)
	}
	digest, err := s.intents.HashCancel(intent)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "hash intent", err.Error())
		return
	}
	sender, ok := s.recover(w, digest, req.Signature)
	if !ok {
		return
	}

	rec, err := s.pair.RemoveOrders(sender, entries)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ReceiptResponse{
		Status: "executed",
		Sender: sender.Hex(),
		Events: eventMessages(rec.Events),
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if s.expired(w, req.Deadline) {
		return
	}
	tok, ok := s.tokenByAddr(w, req.Token)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	digest, err := s.intents.HashDeposit(&crypto.DepositIntent{
		Token:    tok.Addr,
		Amount:   amount.ToBig(),
		Deadline: req.Deadline,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "hash intent", err.Error())
		return
	}
	sender, ok := s.recover(w, digest, req.Signature)
	if !ok {
		return
	}

	cfg := s.pair.Config()
	if err := s.pair.Ledger().Transfer(tok, sender, cfg.PairAddr, amount); err != nil {
		respondError(w, http.StatusBadRequest, "transfer failed", err.Error())
		return
	}
	s.log.Infow("deposit", "sender", sender.Hex(), "token", tok.Symbol, "amount", amount.Dec())
	respondJSON(w, ReceiptResponse{Status: "deposited", Sender: sender.Hex()})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.To) {
		respondError(w, http.StatusBadRequest, "invalid to address", "")
		return
	}

	sh, rec, err := s.pair.Mint(common.HexToAddress(req.To))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ReceiptResponse{
		Status: "executed",
		Shares: sh.Dec(),
		Events: eventMessages(rec.Events),
	})
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	var req BurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if s.expired(w, req.Deadline) {
		return
	}
	if !common.IsHexAddress(req.To) {
		respondError(w, http.StatusBadRequest, "invalid to address", "")
		return
	}
	to := common.HexToAddress(req.To)
	shares, ok := parseAmount(w, req.Shares)
	if !ok {
		return
	}

	digest, err := s.intents.HashBurn(&crypto.BurnIntent{
		Shares:   shares.ToBig(),
		To:       to,
		Deadline: req.Deadline,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "hash intent", err.Error())
		return
	}
	owner, ok := s.recover(w, digest, req.Signature)
	if !ok {
		return
	}

	sOut, mOut, rec, err := s.pair.Burn(owner, to, shares)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ReceiptResponse{
		Status:   "executed",
		Sender:   owner.Hex(),
		StockOut: sOut.Dec(),
		MoneyOut: mOut.Dec(),
		Events:   eventMessages(rec.Events),
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	rec, err := s.pair.Sync()
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, ReceiptResponse{Status: "executed", Events: eventMessages(rec.Events)})
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req FaucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	tok, ok := s.tokenByAddr(w, req.Token)
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req.Amount)
	if !ok {
		return
	}

	addr := common.HexToAddress(req.Address)
	s.pair.Ledger().Issue(tok, addr, amount)
	s.log.Infow("faucet", "address", addr.Hex(), "token", tok.Symbol, "amount", amount.Dec())
	respondJSON(w, map[string]string{"status": "issued"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast
// ==============================

// OnPairEvent pushes one engine event to WebSocket subscribers. Wired to
// the pair's event hook by the node.
func (s *Server) OnPairEvent(seq uint64, e engine.Event) {
	s.hub.BroadcastToChannel("events", EventMessage{
		Type:    "event",
		Seq:     seq,
		Kind:    e.Kind(),
		Payload: e.Payload().Hex(),
	})
}

// BroadcastBook pushes a fresh one-sided snapshot to its channel.
func (s *Server) BroadcastBook(isBuy bool) {
	side := "sell"
	if isBuy {
		side = "buy"
	}
	s.hub.BroadcastToChannel("book:"+side, BookUpdate{
		Type:   "book",
		Side:   side,
		Orders: s.orderInfos(isBuy, 0, 100),
	})
}

// ==============================
// Helpers
// ==============================

// expired rejects requests whose deadline has passed; zero means no expiry.
func (s *Server) expired(w http.ResponseWriter, deadline uint64) bool {
	if deadline != 0 && s.clock.Now().Unix() > int64(deadline) {
		respondError(w, http.StatusBadRequest, engine.ErrExpired.Error(), "deadline passed")
		return true
	}
	return false
}

func (s *Server) recover(w http.ResponseWriter, digest []byte, sigHex string) (common.Address, bool) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return common.Address{}, false
	}
	sender, err := crypto.RecoverAddress(digest, sig)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature", err.Error())
		return common.Address{}, false
	}
	return sender, true
}

func (s *Server) tokenByAddr(w http.ResponseWriter, addrStr string) (token.Token, bool) {
	if !common.IsHexAddress(addrStr) {
		respondError(w, http.StatusBadRequest, "invalid token address", "")
		return token.Token{}, false
	}
	addr := common.HexToAddress(addrStr)
	cfg := s.pair.Config()
	switch addr {
	case cfg.Stock.Addr:
		return cfg.Stock, true
	case cfg.Money.Addr:
		return cfg.Money, true
	}
	respondError(w, http.StatusBadRequest, engine.ErrInvalidToken.Error(), "")
	return token.Token{}, false
}

func parseAmount(w http.ResponseWriter, s string) (*uint256.Int, bool) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return nil, false
	}
	return v, true
}

func eventMessages(evs []engine.Event) []EventMessage {
	out := make([]EventMessage, len(evs))
	for i, e := range evs {
		out[i] = EventMessage{Type: "event", Kind: e.Kind(), Payload: e.Payload().Hex()}
	}
	return out
}

func respondEngineError(w http.ResponseWriter, err error) {
	respondError(w, engineStatus(err), err.Error(), "")
}

// engineStatus maps engine errors onto HTTP statuses; the body always
// carries the canonical code string.
func engineStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrNoSuchOrder):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrLocked):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errStr, Message: message})
}
