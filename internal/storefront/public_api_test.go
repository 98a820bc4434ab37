package storefront_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"Storefront/internal/account"
	"Storefront/internal/cart"
	"Storefront/internal/catalog"
	"Storefront/internal/checkout"
	"Storefront/internal/kv"
	"Storefront/internal/storefront"
)

const jwtSecret = "test-secret-test-secret-test-secret!"

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newStorefrontTS(t *testing.T, ready map[string]storefront.Pinger, reg *prometheus.Registry) *httptest.Server {
	t.Helper()

	backend := kv.NewMemStore()
	sessions, err := cart.NewSessions(backend, 32, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	accounts := account.NewService(account.NewKVStore(backend), account.NewTokenMaker(jwtSecret), backend, zap.NewNop())

	h, err := storefront.NewHandler(
		storefront.Deps{
			Catalog:  catalog.NewSeededStore(),
			Sessions: sessions,
			Accounts: accounts,
			Checkout: checkout.NewService(checkout.NewKVStore(backend), sessions, zap.NewNop()),
			Ready:    ready,
		},
		storefront.HTTPDeps{
			Log:            zap.NewNop(),
			Service:        "storefront",
			Registry:       reg,
			MetricsEnabled: reg != nil,
			MetricsToken:   "scrape-token",
		},
	)
	if err != nil {
		t.Fatalf("storefront.NewHandler: %v", err)
	}

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, c *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

type cartBody struct {
	Items  []cart.LineItem `json:"items"`
	Totals cart.Totals     `json:"totals"`
}

func TestStorefront_PublicAPI_HappyPath(t *testing.T) {
	ts := newStorefrontTS(t, nil, nil)
	c := &http.Client{}
	anon := map[string]string{cart.SessionHeader: "browser-tab-1"}

	{
		resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/products?type=powder", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("products status=%d body=%s", resp.StatusCode, raw)
		}
		var ps []catalog.Product
		if err := json.Unmarshal(raw, &ps); err != nil {
			t.Fatalf("decode products: %v", err)
		}
		if len(ps) != 3 {
			t.Fatalf("powders=%d", len(ps))
		}
	}

	{
		resp, raw := doJSON(t, c, http.MethodPost, ts.URL+"/cart/selections", map[string]any{
			"product_id": "gongura-pickle",
			"variants":   []map[string]any{{"weight": "500gm", "quantity": 1}},
		}, anon)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("anon selection status=%d body=%s", resp.StatusCode, raw)
		}
	}

	{
		resp, raw := doJSON(t, c, http.MethodPost, ts.URL+"/auth/register", map[string]any{
			"first_name":       "Sita",
			"last_name":        "Sharma",
			"email":            "sita@example.com",
			"phone":            "9876543210",
			"password":         "Podi2024!",
			"confirm_password": "Podi2024!",
			"agree_terms":      true,
		}, nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("register status=%d body=%s", resp.StatusCode, raw)
		}
	}

	var bearer map[string]string
	{
		resp, raw := doJSON(t, c, http.MethodPost, ts.URL+"/auth/login", map[string]any{
			"email":    "sita@example.com",
			"password": "Podi2024!",
		}, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login status=%d body=%s", resp.StatusCode, raw)
		}
		var lr struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(raw, &lr); err != nil || lr.AccessToken == "" {
			t.Fatalf("decode login: %v body=%s", err, raw)
		}
		bearer = map[string]string{"Authorization": "Bearer " + lr.AccessToken}
	}

	{
		resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/cart", nil, bearer)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("user cart status=%d", resp.StatusCode)
		}
		var cb cartBody
		_ = json.Unmarshal(raw, &cb)
		if len(cb.Items) != 0 {
			t.Fatalf("account cart shares anonymous items: %+v", cb.Items)
		}
	}

	for _, pid := range []string{"wheat-chapathi", "wheat-chapathi", "sambar-powder"} {
		resp, raw := doJSON(t, c, http.MethodPost, ts.URL+"/cart/quick-add", map[string]any{"product_id": pid}, bearer)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("quick-add %s status=%d body=%s", pid, resp.StatusCode, raw)
		}
	}

	{
		resp, raw := doJSON(t, c, http.MethodPost, ts.URL+"/cart/quick-add", map[string]any{"product_id": "lemon-pickle"}, bearer)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("quick-add pickle status=%d body=%s", resp.StatusCode, raw)
		}
	}

	var created checkout.Order
	{
		resp, raw := doJSON(t, c, http.MethodPost, ts.URL+"/checkout", nil, bearer)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("checkout status=%d body=%s", resp.StatusCode, raw)
		}
		if err := json.Unmarshal(raw, &created); err != nil {
			t.Fatalf("decode order: %v body=%s", err, raw)
		}
		// 2*15 + 1*380
		if created.Subtotal != 410 || created.ItemCount != 3 {
			t.Fatalf("order totals: %d/%d", created.ItemCount, created.Subtotal)
		}
	}

	{
		resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/cart/totals", nil, bearer)
		var tot cart.Totals
		_ = json.Unmarshal(raw, &tot)
		if resp.StatusCode != http.StatusOK || tot != (cart.Totals{}) {
			t.Fatalf("cart after checkout: status=%d totals=%+v", resp.StatusCode, tot)
		}
	}

	{
		resp, _ := doJSON(t, c, http.MethodGet, ts.URL+"/orders/"+created.ID, nil, bearer)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("owner get order status=%d", resp.StatusCode)
		}
		resp, _ = doJSON(t, c, http.MethodGet, ts.URL+"/orders/"+created.ID, nil, anon)
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("anon get order status=%d", resp.StatusCode)
		}
	}

	{
		resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/cart/totals", nil, anon)
		var tot cart.Totals
		_ = json.Unmarshal(raw, &tot)
		if resp.StatusCode != http.StatusOK || tot != (cart.Totals{ItemCount: 1, Subtotal: 300}) {
			t.Fatalf("anon cart: status=%d totals=%+v", resp.StatusCode, tot)
		}
	}
}

func TestStorefront_PublicAPI_Auth(t *testing.T) {
	ts := newStorefrontTS(t, nil, nil)
	c := &http.Client{}

	resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/auth/whoami", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("whoami status=%d body=%s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, c, http.MethodGet, ts.URL+"/cart", nil, map[string]string{"Authorization": "Bearer forged"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged token on cart status=%d body=%s", resp.StatusCode, raw)
	}

	resp, _ = doJSON(t, c, http.MethodPost, ts.URL+"/checkout", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("checkout without session status=%d", resp.StatusCode)
	}
}

func TestStorefront_Probes(t *testing.T) {
	ts := newStorefrontTS(t, map[string]storefront.Pinger{"kv": downPinger{}}, nil)
	c := &http.Client{}

	if resp, _ := doJSON(t, c, http.MethodGet, ts.URL+"/healthz", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", resp.StatusCode)
	}
	resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/readyz", nil, nil)
	if resp.StatusCode != http.StatusServiceUnavailable || !bytes.Contains(raw, []byte("kv not ready")) {
		t.Fatalf("readyz status=%d body=%s", resp.StatusCode, raw)
	}

	ok := newStorefrontTS(t, map[string]storefront.Pinger{"kv": kv.NewMemStore()}, nil)
	if resp, _ := doJSON(t, c, http.MethodGet, ok.URL+"/readyz", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz healthy status=%d", resp.StatusCode)
	}
}

func TestStorefront_MetricsRequireToken(t *testing.T) {
	ts := newStorefrontTS(t, nil, prometheus.NewRegistry())
	c := &http.Client{}

	doJSON(t, c, http.MethodGet, ts.URL+"/products", nil, nil)

	if resp, _ := doJSON(t, c, http.MethodGet, ts.URL+"/metrics", nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("metrics without token status=%d", resp.StatusCode)
	}
	resp, raw := doJSON(t, c, http.MethodGet, ts.URL+"/metrics", nil, map[string]string{"Authorization": "Bearer scrape-token"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status=%d", resp.StatusCode)
	}
	if !bytes.Contains(raw, []byte(`path="/products"`)) {
		t.Fatalf("route label missing from metrics:\n%s", raw)
	}
}
