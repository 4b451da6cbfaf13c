package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCreateCheckout(t *testing.T) {
	var got CheckoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkouts" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret-key" {
			t.Errorf("missing auth header: %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"reference":"cs_123","redirect_url":"https://pay.example/cs_123"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key")
	checkout, err := c.CreateCheckout(context.Background(), CheckoutRequest{
		Amount:   decimal.NewFromInt(8500),
		Currency: "VND",
		Metadata: map[string]string{"totalCoins": "110"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if checkout.Reference != "cs_123" || checkout.RedirectURL != "https://pay.example/cs_123" {
		t.Fatalf("unexpected checkout %+v", checkout)
	}
	if !got.Amount.Equal(decimal.NewFromInt(8500)) || got.Metadata["totalCoins"] != "110" {
		t.Fatalf("unexpected request body %+v", got)
	}
}

func TestCreateCheckoutGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k")
	if _, err := c.CreateCheckout(context.Background(), CheckoutRequest{Amount: decimal.NewFromInt(1)}); err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"reference":"PAY-1"}`)
	sig := Sign("whsec", body)

	if err := VerifySignature("whsec", body, sig); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := VerifySignature("other", body, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("wrong secret accepted: %v", err)
	}
	if err := VerifySignature("whsec", body, "not-hex"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("malformed signature accepted: %v", err)
	}
}
