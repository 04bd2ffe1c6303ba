package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	custodydto "github.com/lbianlbian/progv2/internal/exchange-service/custody/dto"
	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
)

// Client fala com o custody-service. Implementa engine.Custody; erros da
// camada de custódia (saldo insuficiente, conta malformada) passam adiante
// sem tradução.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) TransferIn(ctx context.Context, source, dest engine.Identity, authority engine.Identity, amount uint64) error {
	req := custodydto.TransferRequest{
		Source:      source.String(),
		Destination: dest.String(),
		Authority:   authority.String(),
		Amount:      amount,
	}
	return c.post(ctx, "/custody/transfer", req)
}

func (c *Client) TransferOut(ctx context.Context, source, dest engine.Identity, derivedAuthority engine.Identity, amount uint64) error {
	req := custodydto.TransferOutRequest{
		Source:           source.String(),
		Destination:      dest.String(),
		DerivedAuthority: derivedAuthority.String(),
		Amount:           amount,
	}
	return c.post(ctx, "/custody/transfer-out", req)
}

// Paired verifica se a conta de token pertence à identidade dada.
func (c *Client) Paired(ctx context.Context, owner, tokenAccount engine.Identity) (bool, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/custody/accounts/"+tokenAccount.String(), nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.StatusCode >= 300 {
		return false, fmt.Errorf("custody account http %d", res.StatusCode)
	}
	var out custodydto.AccountResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Owner == owner.String(), nil
}

func (c *Client) CreditDeposit(ctx context.Context, to engine.Identity, amount uint64) error {
	return c.post(ctx, "/custody/native/credit", custodydto.NativeRequest{Identity: to.String(), Amount: amount})
}

// DebitDeposit cobra o depósito de armazenamento na alocação de um slot.
func (c *Client) DebitDeposit(ctx context.Context, from engine.Identity, amount uint64) error {
	return c.post(ctx, "/custody/native/debit", custodydto.NativeRequest{Identity: from.String(), Amount: amount})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("custody %s http %d: %s", path, res.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
