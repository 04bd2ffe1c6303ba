package http

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/lbianlbian/progv2/internal/exchange-service/cache"
	"github.com/lbianlbian/progv2/internal/exchange-service/custody"
	"github.com/lbianlbian/progv2/internal/exchange-service/dispatch"
	"github.com/lbianlbian/progv2/internal/exchange-service/dto"
	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
	"github.com/lbianlbian/progv2/internal/exchange-service/repo"
	"github.com/lbianlbian/progv2/internal/exchange-service/wire"
	"github.com/lbianlbian/progv2/internal/shared/poolauth"
	"github.com/lbianlbian/progv2/pkg/contracts/events"
)

var (
	ordersOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exchange_orders_opened_total",
		Help: "Ordens abertas por makers.",
	})
	ordersMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_orders_matched_total",
		Help: "Casamentos executados, por modo.",
	}, []string{"mode"})
	ordersCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_orders_cancelled_total",
		Help: "Cancelamentos e refunds executados.",
	}, []string{"refund"})
	instructionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_instruction_failures_total",
		Help: "Instruções rejeitadas, por operação.",
	}, []string{"op"})
)

// Publisher publica as transições nos tópicos de ordens.
type Publisher interface {
	PublishOrderOpened(ctx context.Context, e events.OrderOpened) error
	PublishOrderMatched(ctx context.Context, e events.OrderMatched) error
	PublishOrderCancelled(ctx context.Context, e events.OrderCancelled) error
}

// Server expõe a API pública da exchange: abertura, casamento, cancelamento,
// administração e o endpoint bruto de instruções para chamadores legados.
type Server struct {
	log  *zap.Logger
	repo *repo.Postgres
	disp *dispatch.Dispatcher
	cust *custody.Client
	book *cache.BookCache
	publ Publisher

	principals   engine.Principals
	depositUnits uint64
}

func NewServer(
	log *zap.Logger,
	r *repo.Postgres,
	d *dispatch.Dispatcher,
	c *custody.Client,
	b *cache.BookCache,
	p Publisher,
	principals engine.Principals,
	depositUnits uint64,
) *Server {
	return &Server{
		log:          log,
		repo:         r,
		disp:         d,
		cust:         c,
		book:         b,
		publ:         p,
		principals:   principals,
		depositUnits: depositUnits,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", s.openOrder)          // POST
	mux.HandleFunc("/orders/", s.orderRoutes)       // GET {slot} | POST {slot}/match|match-partial|cancel
	mux.HandleFunc("/book", s.getBook)              // GET ?outcome=...
	mux.HandleFunc("/admin/refund/", s.refund)      // POST {slot}
	mux.HandleFunc("/admin/cancel-delay", s.delay)  // PUT
	mux.HandleFunc("/instructions", s.instruction)  // POST
	return mux
}

// openOrder aloca (ou usa) um slot, cobra o depósito de armazenamento do
// rent payer e despacha a instrução de abertura.
func (s *Server) openOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.OpenOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Stake0 == 0 || req.Stake1 == 0 || req.Side > 1 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	ids, err := s.parseAll(map[string]string{
		"source":     req.Source,
		"authority":  req.Authority,
		"bettor":     req.Bettor,
		"rent_payer": req.RentPayer,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	destination, err := s.parseOr(req.Destination, s.principals.PoolAccount)
	if err != nil {
		http.Error(w, "bad destination", http.StatusBadRequest)
		return
	}
	custodyProg, err := s.parseOr(req.CustodyProgram, s.principals.CustodyProgram)
	if err != nil {
		http.Error(w, "bad custody_program", http.StatusBadRequest)
		return
	}

	slot, err := s.prepareSlot(r.Context(), req.Slot, ids["rent_payer"])
	if err != nil {
		s.writeEngineError(w, "open", err)
		return
	}

	payload := wire.EncodeOpenPayload(&wire.OpenPayload{
		Outcome:     outcomeOf(req.OutcomeFields),
		Stake0:      req.Stake0,
		Stake1:      req.Stake1,
		Side:        req.Side,
		ToAggregate: req.ToAggregate,
	})
	in := &wire.Instruction{
		Accounts: []wire.AccountMeta{
			{Key: slot},
			{Key: custodyProg},
			{Key: ids["source"]},
			{Key: destination},
			{Key: ids["authority"], Signer: true},
			{Key: ids["bettor"]},
			{Key: ids["rent_payer"]},
		},
		Data: wire.Tag(wire.OpOpen, payload),
	}

	res, err := s.disp.Dispatch(r.Context(), in)
	if err != nil {
		s.releaseSlot(r.Context(), slot.String(), ids["rent_payer"])
		s.writeEngineError(w, "open", err)
		return
	}
	s.postTransition(r.Context(), res)

	w.WriteHeader(http.StatusCreated)
	writeJSON(w, dto.OpenOrderResponse{Slot: res.Slot, Status: "OPEN"})
}

// orderRoutes resolve /orders/{slot} e /orders/{slot}/{ação}.
func (s *Server) orderRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/orders/")
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		http.Error(w, "slot required", http.StatusBadRequest)
		return
	}
	slot := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.getOrder(w, r, slot)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch parts[1] {
	case "match":
		s.match(w, r, slot)
	case "match-partial":
		s.matchPartial(w, r, slot)
	case "cancel":
		s.cancel(w, r, slot, false)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request, slot string) {
	rec, err := s.repo.Get(r.Context(), slot)
	if err != nil {
		s.writeEngineError(w, "get", err)
		return
	}
	writeJSON(w, recordResponse(slot, rec))
}

func (s *Server) match(w http.ResponseWriter, r *http.Request, slot string) {
	var req dto.MatchOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	in, err := s.matchInstruction(slot, &req, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.disp.Dispatch(r.Context(), in)
	if err != nil {
		s.writeEngineError(w, "match", err)
		return
	}
	s.postTransition(r.Context(), res)
	writeJSON(w, dto.MatchResponse{Slot: res.Slot, Status: "MATCHED"})
}

func (s *Server) matchPartial(w http.ResponseWriter, r *http.Request, slot string) {
	var req dto.PartialMatchOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	rentPayer, err := engine.ParseIdentity(req.RentPayer)
	if err != nil {
		http.Error(w, "bad rent_payer", http.StatusBadRequest)
		return
	}
	childSlot, err := s.prepareSlot(r.Context(), req.ChildSlot, rentPayer)
	if err != nil {
		s.writeEngineError(w, "partial_match", err)
		return
	}

	in, err := s.matchInstruction(slot, &req.MatchOrderRequest, []wire.AccountMeta{
		{Key: rentPayer},
		{Key: childSlot},
	})
	if err != nil {
		s.releaseSlot(r.Context(), childSlot.String(), rentPayer)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	in.Data = wire.Tag(wire.OpPartialMatch, in.Data[2:])

	res, err := s.disp.Dispatch(r.Context(), in)
	if err != nil {
		s.releaseSlot(r.Context(), childSlot.String(), rentPayer)
		s.writeEngineError(w, "partial_match", err)
		return
	}
	s.postTransition(r.Context(), res)
	writeJSON(w, dto.MatchResponse{Slot: res.Slot, ChildSlot: res.ChildSlot, Status: "PARTIALLY_MATCHED"})
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request, slot string, isRefund bool) {
	var req dto.CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	ids, err := s.parseAll(map[string]string{
		"destination": req.Destination,
		"canceller":   req.Canceller,
		"rent_payer":  req.RentPayer,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	source, err := s.parseOr(req.Source, s.principals.PoolAccount)
	if err != nil {
		http.Error(w, "bad source", http.StatusBadRequest)
		return
	}
	custodyProg, err := s.parseOr(req.CustodyProgram, s.principals.CustodyProgram)
	if err != nil {
		http.Error(w, "bad custody_program", http.StatusBadRequest)
		return
	}
	slotID, err := engine.ParseIdentity(slot)
	if err != nil {
		http.Error(w, "bad slot", http.StatusBadRequest)
		return
	}

	op := wire.OpCancel
	opLabel := "cancel"
	if isRefund {
		op = wire.OpRefund
		opLabel = "refund"
	}
	payload := wire.EncodeCancelPayload(&wire.CancelPayload{Outcome: outcomeOf(req.OutcomeFields), Side: req.Side})
	in := &wire.Instruction{
		Accounts: []wire.AccountMeta{
			{Key: slotID},
			{Key: custodyProg},
			{Key: source},
			{Key: ids["destination"]},
			// A prova de controle da identidade é da borda de transporte;
			// aqui a assinatura é dada como verificada.
			{Key: ids["canceller"], Signer: true},
			{Key: ids["rent_payer"]},
			{Key: engine.Identity(poolauth.Derive(s.principals.Program))},
		},
		Data: wire.Tag(op, payload),
	}

	res, err := s.disp.Dispatch(r.Context(), in)
	if err != nil {
		s.writeEngineError(w, opLabel, err)
		return
	}
	s.postTransition(r.Context(), res)
	writeJSON(w, dto.CancelResponse{Slot: res.Slot, Stake: openStake(res.Record), Status: "CANCELLED"})
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	slot := strings.TrimPrefix(r.URL.Path, "/admin/refund/")
	if slot == "" {
		http.Error(w, "slot required", http.StatusBadRequest)
		return
	}
	s.cancel(w, r, slot, true)
}

func (s *Server) delay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.SetDelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	admin, err := engine.ParseIdentity(req.Admin)
	if err != nil {
		http.Error(w, "bad admin", http.StatusBadRequest)
		return
	}
	in := &wire.Instruction{
		Accounts: []wire.AccountMeta{
			{Key: engine.Identity{}},
			{Key: admin, Signer: true},
		},
		Data: wire.Tag(wire.OpSetDelay, []byte{req.Seconds}),
	}
	if _, err := s.disp.Dispatch(r.Context(), in); err != nil {
		s.writeEngineError(w, "set_delay", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"UPDATED"}`))
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	outcome := r.URL.Query().Get("outcome")
	if outcome == "" {
		http.Error(w, "outcome required", http.StatusBadRequest)
		return
	}
	orders, err := s.book.ByOutcome(r.Context(), outcome)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, orders)
}

// instruction aceita o formato de fio bruto (legado ou etiquetado) de
// chamadores existentes.
func (s *Server) instruction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.RawInstruction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.DataBase64)
	if err != nil {
		http.Error(w, "bad data_base64", http.StatusBadRequest)
		return
	}
	in := &wire.Instruction{Data: data}
	for _, a := range req.Accounts {
		key, err := engine.ParseIdentity(a.Key)
		if err != nil {
			http.Error(w, "bad account key "+a.Key, http.StatusBadRequest)
			return
		}
		in.Accounts = append(in.Accounts, wire.AccountMeta{Key: key, Signer: a.Signer})
	}

	res, err := s.disp.Dispatch(r.Context(), in)
	if err != nil {
		s.writeEngineError(w, "raw", err)
		return
	}
	s.postTransition(r.Context(), res)
	writeJSON(w, dto.InstructionResponse{Op: res.Op.String(), Slot: res.Slot, ChildSlot: res.ChildSlot})
}

// matchInstruction monta a instrução de casamento (total quando extra==nil).
func (s *Server) matchInstruction(slot string, req *dto.MatchOrderRequest, extra []wire.AccountMeta) (*wire.Instruction, error) {
	slotID, err := engine.ParseIdentity(slot)
	if err != nil {
		return nil, errors.New("bad slot")
	}
	source, err := engine.ParseIdentity(req.Source)
	if err != nil {
		return nil, errors.New("bad source")
	}
	bettor, err := engine.ParseIdentity(req.Bettor)
	if err != nil {
		return nil, errors.New("bad bettor")
	}
	destination, err := s.parseOr(req.Destination, s.principals.PoolAccount)
	if err != nil {
		return nil, errors.New("bad destination")
	}
	custodyProg, err := s.parseOr(req.CustodyProgram, s.principals.CustodyProgram)
	if err != nil {
		return nil, errors.New("bad custody_program")
	}

	payload := wire.EncodeMatchPayload(&wire.MatchPayload{
		Outcome: outcomeOf(req.OutcomeFields),
		Stake0:  req.Stake0,
		Stake1:  req.Stake1,
		Side:    req.Side,
	})
	accounts := []wire.AccountMeta{
		{Key: slotID},
		{Key: custodyProg},
		{Key: source},
		{Key: destination},
		{Key: bettor, Signer: true},
	}
	accounts = append(accounts, extra...)
	return &wire.Instruction{Accounts: accounts, Data: wire.Tag(wire.OpMatch, payload)}, nil
}

// prepareSlot cobra o depósito de armazenamento do rent payer e aloca o slot
// (gerado quando vazio), espelhando a criação de conta financiada por rent.
func (s *Server) prepareSlot(ctx context.Context, slot string, rentPayer engine.Identity) (engine.Identity, error) {
	var id engine.Identity
	if slot == "" {
		if _, err := rand.Read(id[:]); err != nil {
			return engine.Identity{}, err
		}
	} else {
		parsed, err := engine.ParseIdentity(slot)
		if err != nil {
			return engine.Identity{}, engine.ErrInvalidInstructionData
		}
		id = parsed
	}
	if err := s.cust.DebitDeposit(ctx, rentPayer, s.depositUnits); err != nil {
		return engine.Identity{}, err
	}
	if err := s.repo.AllocateSlot(ctx, id.String(), rentPayer); err != nil {
		if cerr := s.cust.CreditDeposit(ctx, rentPayer, s.depositUnits); cerr != nil {
			s.log.Error("deposit compensation", zap.Error(cerr))
		}
		return engine.Identity{}, err
	}
	return id, nil
}

// releaseSlot desfaz uma alocação cujo despacho falhou, devolvendo o depósito.
func (s *Server) releaseSlot(ctx context.Context, slot string, rentPayer engine.Identity) {
	if err := s.repo.Delete(ctx, slot); err != nil {
		s.log.Error("release slot", zap.String("slot", slot), zap.Error(err))
		return
	}
	if err := s.cust.CreditDeposit(ctx, rentPayer, s.depositUnits); err != nil {
		s.log.Error("deposit compensation", zap.Error(err))
	}
}

// postTransition atualiza o cache do livro e publica o evento da transição.
func (s *Server) postTransition(ctx context.Context, res *dispatch.Result) {
	switch res.Op {
	case wire.OpOpen:
		ordersOpened.Inc()
		_ = s.book.Upsert(ctx, "open", res.Slot, res.Record)
		openSide := uint8(1 - res.Side)
		_ = s.publ.PublishOrderOpened(ctx, events.OrderOpened{
			Slot:        res.Slot,
			Sport:       res.Record.Outcome.Sport,
			League:      res.Record.Outcome.League,
			Event:       res.Record.Outcome.Event,
			Period:      res.Record.Outcome.Period,
			Market:      res.Record.Outcome.Market,
			Player:      res.Record.Outcome.Player,
			Side:        res.Side,
			Stake0:      res.Record.Stake0,
			Stake1:      res.Record.Stake1,
			Bettor:      wallet(res.Record, res.Side).String(),
			FreeBet:     res.Record.IsFreeBet,
			ToAggregate: res.Record.ToAggregate,
			OpenOdds:    events.DisplayOdds(res.Record.Stake0, res.Record.Stake1, openSide),
		})
	case wire.OpMatch:
		ordersMatched.WithLabelValues("full").Inc()
		_ = s.book.Upsert(ctx, "match", res.Slot, res.Record)
		_ = s.publ.PublishOrderMatched(ctx, events.OrderMatched{
			Slot:   res.Slot,
			Side:   res.Side,
			Stake0: res.Record.Stake0,
			Stake1: res.Record.Stake1,
			Taker:  wallet(res.Record, res.Side).String(),
		})
	case wire.OpPartialMatch:
		ordersMatched.WithLabelValues("partial").Inc()
		_ = s.book.Upsert(ctx, "partial_match", res.Slot, res.Record)
		_ = s.publ.PublishOrderMatched(ctx, events.OrderMatched{
			Slot:      res.Slot,
			ChildSlot: res.ChildSlot,
			Side:      res.Side,
			Stake0:    res.Record.Stake0,
			Stake1:    res.Record.Stake1,
			Taker:     wallet(res.Child, res.Side).String(),
			Partial:   true,
		})
	case wire.OpCancel, wire.OpRefund:
		refund := res.Op == wire.OpRefund
		ordersCancelled.WithLabelValues(boolLabel(refund)).Inc()
		_ = s.book.Remove(ctx, "cancel", res.Record, res.Slot)
		_ = s.publ.PublishOrderCancelled(ctx, events.OrderCancelled{
			Slot:   res.Slot,
			Stake:  openStake(res.Record),
			Refund: refund,
		})
	}
}

// writeEngineError traduz a taxonomia do engine para status HTTP; erros da
// camada de custódia passam como 502.
func (s *Server) writeEngineError(w http.ResponseWriter, op string, err error) {
	instructionFailures.WithLabelValues(op).Inc()
	switch {
	case errors.Is(err, engine.ErrRecordNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrAlreadyInitialized):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrInvalidInstructionData),
		errors.Is(err, engine.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrIncorrectProgram),
		errors.Is(err, engine.ErrInvalidAccountData):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		s.log.Warn("instruction failed", zap.String("op", op), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func (s *Server) parseAll(fields map[string]string) (map[string]engine.Identity, error) {
	out := make(map[string]engine.Identity, len(fields))
	for name, value := range fields {
		id, err := engine.ParseIdentity(value)
		if err != nil {
			return nil, errors.New("bad " + name)
		}
		out[name] = id
	}
	return out, nil
}

func (s *Server) parseOr(value string, def engine.Identity) (engine.Identity, error) {
	if value == "" {
		return def, nil
	}
	return engine.ParseIdentity(value)
}

func outcomeOf(f dto.OutcomeFields) engine.Outcome {
	return engine.Outcome{
		Sport:  f.Sport,
		League: f.League,
		Event:  f.Event,
		Period: f.Period,
		Market: f.Market,
		Player: f.Player,
	}
}

func recordResponse(slot string, rec *engine.BetRecord) dto.RecordResponse {
	return dto.RecordResponse{
		Slot:        slot,
		Sport:       rec.Outcome.Sport,
		League:      rec.Outcome.League,
		Event:       rec.Outcome.Event,
		Period:      rec.Outcome.Period,
		Market:      rec.Outcome.Market,
		Player:      rec.Outcome.Player,
		Stake0:      rec.Stake0,
		Stake1:      rec.Stake1,
		Wallet0:     rec.Wallet0.String(),
		Wallet1:     rec.Wallet1.String(),
		RentPayer:   rec.RentPayer.String(),
		IsFreeBet:   rec.IsFreeBet,
		PlacedAt:    rec.PlacedAt,
		ToAggregate: rec.ToAggregate,
		Deposit:     rec.Deposit,
	}
}

func wallet(rec *engine.BetRecord, side uint8) engine.Identity {
	if side == 0 {
		return rec.Wallet0
	}
	return rec.Wallet1
}

func openStake(rec *engine.BetRecord) uint64 {
	if rec.Wallet0.IsBlank() {
		return rec.Stake1
	}
	if rec.Wallet1.IsBlank() {
		return rec.Stake0
	}
	return 0
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// writeJSON serializa e envia resposta JSON.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
