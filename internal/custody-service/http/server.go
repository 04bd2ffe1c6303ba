package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lbianlbian/progv2/internal/custody-service/dto"
	"github.com/lbianlbian/progv2/internal/custody-service/repo"
)

// Repo define a interface de operações de custódia usadas pelo handler HTTP
type Repo interface {
	CreateAccount(ctx context.Context, id, owner string) error
	GetAccount(ctx context.Context, id string) (owner string, balance uint64, err error)
	Deposit(ctx context.Context, id string, amount uint64) (newBalance uint64, err error)
	Transfer(ctx context.Context, source, destination, authority string, amount uint64) (transferID string, err error)
	TransferOut(ctx context.Context, source, destination, derivedAuthority string, amount uint64) (transferID string, err error)
	CreditNative(ctx context.Context, identity string, amount uint64) (newBalance uint64, err error)
	DebitNative(ctx context.Context, identity string, amount uint64) (newBalance uint64, err error)
	GetNative(ctx context.Context, identity string) (uint64, error)
}

// Server expõe endpoints HTTP para contas de token, transferências de escrow
// e o saldo nativo que financia depósitos de armazenamento
type Server struct {
	log  *zap.Logger
	repo Repo
	// poolAuthority é a única autoridade derivada aceita em transfer-out,
	// recomputada a partir do id do programa configurado.
	poolAuthority string
}

// NewServer instancia o servidor HTTP de custódia
func NewServer(log *zap.Logger, repo Repo, poolAuthority string) *Server {
	return &Server{log: log, repo: repo, poolAuthority: poolAuthority}
}

// Router retorna o mux HTTP com as rotas da API de custódia
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/custody/accounts", s.createAccount)     // POST
	mux.HandleFunc("/custody/accounts/", s.getAccount)       // GET {id}
	mux.HandleFunc("/custody/deposit", s.deposit)            // POST
	mux.HandleFunc("/custody/transfer", s.transfer)          // POST
	mux.HandleFunc("/custody/transfer-out", s.transferOut)   // POST
	mux.HandleFunc("/custody/native/credit", s.creditNative) // POST
	mux.HandleFunc("/custody/native/debit", s.debitNative)   // POST
	mux.HandleFunc("/custody/native/", s.getNative)          // GET {identity}
	return mux
}

// createAccount registra uma conta de token nova, gerando o id se omitido
func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Owner == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		var raw [32]byte
		if _, err := rand.Read(raw[:]); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		req.ID = hex.EncodeToString(raw[:])
	}
	if err := s.repo.CreateAccount(r.Context(), req.ID, req.Owner); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, dto.AccountResponse{ID: req.ID, Owner: req.Owner, Balance: 0})
}

// getAccount retorna dono e saldo de uma conta de token
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/custody/accounts/")
	if id == "" {
		http.Error(w, "account id required", http.StatusBadRequest)
		return
	}
	owner, balance, err := s.repo.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "account not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.AccountResponse{ID: id, Owner: owner, Balance: balance})
}

// deposit credita saldo numa conta de token (funding de desenvolvimento/teste)
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Account == "" || req.Amount == 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	balance, err := s.repo.Deposit(r.Context(), req.Account, req.Amount)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "account not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.AccountResponse{ID: req.Account, Balance: balance})
}

// transfer move escrow para dentro da pool sob autorização do dono da origem
func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Source == "" || req.Destination == "" || req.Authority == "" || req.Amount == 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	id, err := s.repo.Transfer(r.Context(), req.Source, req.Destination, req.Authority, req.Amount)
	if err != nil {
		s.writeTransferError(w, err)
		return
	}
	writeJSON(w, dto.TransferResponse{TransferID: id, Status: "SETTLED"})
}

// transferOut devolve escrow da pool sob a autoridade derivada do programa
func (s *Server) transferOut(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Source == "" || req.Destination == "" || req.DerivedAuthority == "" || req.Amount == 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	// A saída da pool só é válida sob a autoridade derivada do programa
	// oficial; qualquer outra assinatura é recusada antes de tocar o banco.
	if req.DerivedAuthority != s.poolAuthority {
		s.log.Warn("transfer-out with a foreign pool authority")
		http.Error(w, "wrong pool authority", http.StatusForbidden)
		return
	}
	id, err := s.repo.TransferOut(r.Context(), req.Source, req.Destination, req.DerivedAuthority, req.Amount)
	if err != nil {
		s.writeTransferError(w, err)
		return
	}
	writeJSON(w, dto.TransferResponse{TransferID: id, Status: "SETTLED"})
}

// creditNative adiciona unidades nativas ao saldo de uma identidade
func (s *Server) creditNative(w http.ResponseWriter, r *http.Request) {
	var req dto.NativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Identity == "" || req.Amount == 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	balance, err := s.repo.CreditNative(r.Context(), req.Identity, req.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.NativeResponse{Identity: req.Identity, Balance: balance})
}

// debitNative cobra unidades nativas do saldo de uma identidade
func (s *Server) debitNative(w http.ResponseWriter, r *http.Request) {
	var req dto.NativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Identity == "" || req.Amount == 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	balance, err := s.repo.DebitNative(r.Context(), req.Identity, req.Amount)
	if err != nil {
		if errors.Is(err, repo.ErrInsufficientFunds) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.NativeResponse{Identity: req.Identity, Balance: balance})
}

// getNative retorna o saldo nativo de uma identidade
func (s *Server) getNative(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimPrefix(r.URL.Path, "/custody/native/")
	if identity == "" || strings.Contains(identity, "/") {
		http.Error(w, "identity required", http.StatusBadRequest)
		return
	}
	balance, err := s.repo.GetNative(r.Context(), identity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.NativeResponse{Identity: identity, Balance: balance})
}

func (s *Server) writeTransferError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repo.ErrWrongAuthority):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, repo.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		s.log.Error("transfer failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
