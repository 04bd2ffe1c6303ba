package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/lbianlbian/progv2/internal/custody-service/repo"
)

const poolAuthority = "deadbeef"

// stubRepo devolve respostas fixas; só o necessário para exercitar o roteamento
// e o mapeamento de erros do handler.
type stubRepo struct {
	createErr   error
	depositErr  error
	transferErr error
	debitErr    error
}

func (s *stubRepo) CreateAccount(context.Context, string, string) error { return s.createErr }

func (s *stubRepo) GetAccount(context.Context, string) (string, uint64, error) {
	return "owner-1", 500, nil
}

func (s *stubRepo) Deposit(context.Context, string, uint64) (uint64, error) {
	if s.depositErr != nil {
		return 0, s.depositErr
	}
	return 600, nil
}

func (s *stubRepo) Transfer(context.Context, string, string, string, uint64) (string, error) {
	if s.transferErr != nil {
		return "", s.transferErr
	}
	return "tx-1", nil
}

func (s *stubRepo) TransferOut(context.Context, string, string, string, uint64) (string, error) {
	if s.transferErr != nil {
		return "", s.transferErr
	}
	return "tx-2", nil
}

func (s *stubRepo) CreditNative(context.Context, string, uint64) (uint64, error) { return 100, nil }

func (s *stubRepo) DebitNative(context.Context, string, uint64) (uint64, error) {
	if s.debitErr != nil {
		return 0, s.debitErr
	}
	return 50, nil
}

func (s *stubRepo) GetNative(context.Context, string) (uint64, error) { return 100, nil }

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestTransferOutRequiresPoolAuthority(t *testing.T) {
	h := NewServer(zap.NewNop(), &stubRepo{}, poolAuthority).Router()

	rr := post(t, h, "/custody/transfer-out",
		`{"source":"pool","destination":"d","derived_authority":"forged","amount":10}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("forged authority: want 403, got %d", rr.Code)
	}

	rr = post(t, h, "/custody/transfer-out",
		`{"source":"pool","destination":"d","derived_authority":"`+poolAuthority+`","amount":10}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("genuine authority: want 200, got %d", rr.Code)
	}
}

func TestTransferErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"missing account", repo.ErrNotFound, http.StatusNotFound},
		{"wrong authority", repo.ErrWrongAuthority, http.StatusForbidden},
		{"insufficient funds", repo.ErrInsufficientFunds, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewServer(zap.NewNop(), &stubRepo{transferErr: tc.err}, poolAuthority).Router()
			rr := post(t, h, "/custody/transfer",
				`{"source":"s","destination":"d","authority":"a","amount":10}`)
			if rr.Code != tc.want {
				t.Fatalf("want %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

func TestDepositUnknownAccount(t *testing.T) {
	h := NewServer(zap.NewNop(), &stubRepo{depositErr: repo.ErrNotFound}, poolAuthority).Router()

	rr := post(t, h, "/custody/deposit", `{"account":"ghost","amount":10}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rr.Code)
	}
}

func TestCreateAccountConflict(t *testing.T) {
	h := NewServer(zap.NewNop(), &stubRepo{createErr: repo.ErrAlreadyExists}, poolAuthority).Router()

	rr := post(t, h, "/custody/accounts", `{"id":"acc-1","owner":"o"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", rr.Code)
	}
}

func TestNativeDebitInsufficient(t *testing.T) {
	h := NewServer(zap.NewNop(), &stubRepo{debitErr: repo.ErrInsufficientFunds}, poolAuthority).Router()

	rr := post(t, h, "/custody/native/debit", `{"identity":"i","amount":10}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("want 409, got %d", rr.Code)
	}
}

func TestRejectsBadJSON(t *testing.T) {
	h := NewServer(zap.NewNop(), &stubRepo{}, poolAuthority).Router()

	rr := post(t, h, "/custody/transfer", `{broken`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rr.Code)
	}
}
