package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/billing"
	"server/internal/middleware"
)

type fakeCheckout struct {
	configured bool
	session    *billing.CheckoutSession
	err        error
}

func (f *fakeCheckout) Configured() bool { return f.configured }

func (f *fakeCheckout) CreateSession(context.Context, string) (*billing.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func postJSON(target, userID string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
	}
	return req
}

func TestCreateCheckoutReturnsSession(t *testing.T) {
	fx := newAppFixture(t)
	fx.app.Checkout = &fakeCheckout{
		configured: true,
		session:    &billing.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"},
	}

	rr := httptest.NewRecorder()
	fx.app.CreateCheckout(rr, postJSON("/v1/billing/checkout", "u1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	var resp checkoutResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "cs_1" || resp.URL == "" {
		t.Fatalf("unexpected session %+v", resp)
	}
}

func TestCreateCheckoutUnconfiguredIs503(t *testing.T) {
	fx := newAppFixture(t)
	fx.app.Checkout = &fakeCheckout{configured: false}

	rr := httptest.NewRecorder()
	fx.app.CreateCheckout(rr, postJSON("/v1/billing/checkout", "u1", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status %d", rr.Code)
	}
}

func TestCreateCheckoutProviderFailureIs502(t *testing.T) {
	fx := newAppFixture(t)
	fx.app.Checkout = &fakeCheckout{configured: true, err: errors.New("provider down")}

	rr := httptest.NewRecorder()
	fx.app.CreateCheckout(rr, postJSON("/v1/billing/checkout", "u1", nil))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status %d", rr.Code)
	}
}

func TestConfirmUpgradeUnlocksDownloads(t *testing.T) {
	fx := newAppFixture(t)
	fx.counters.values["u1"] = 5

	// Exhausted free tier: the next download is refused.
	if rr := serveDownload(fx.app, authedRequest(http.MethodPost, "/v1/resources/res-1/download", "u1")); rr.Code != http.StatusForbidden {
		t.Fatalf("pre-upgrade download must be refused, got %d", rr.Code)
	}

	rr := httptest.NewRecorder()
	fx.app.ConfirmUpgrade(rr, postJSON("/v1/billing/confirm", "u1", confirmRequest{SessionID: "cs_1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	var resp confirmResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != string(billing.StateUpgraded) {
		t.Fatalf("unexpected state %q", resp.State)
	}

	// The cached restricted entitlement is gone; the same session now passes.
	dl := serveDownload(fx.app, authedRequest(http.MethodPost, "/v1/resources/res-1/download", "u1"))
	if dl.Code != http.StatusOK {
		t.Fatalf("post-upgrade download must pass, got %d: %s", dl.Code, dl.Body.String())
	}
	var dlResp downloadResponse
	if err := json.NewDecoder(dl.Body).Decode(&dlResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !dlResp.Unrestricted {
		t.Fatalf("expected unrestricted download after upgrade")
	}
}

func TestConfirmUpgradeWriteFailureIs202(t *testing.T) {
	fx := newAppFixture(t)
	fx.app.Activator = billing.NewActivator(entitlementFunc(func(context.Context, string, string) error {
		return errors.New("store down")
	}), zerolog.Nop())

	rr := httptest.NewRecorder()
	fx.app.ConfirmUpgrade(rr, postJSON("/v1/billing/confirm", "u1", confirmRequest{SessionID: "cs_1"}))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", rr.Code, rr.Body.String())
	}
	var resp confirmResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.ActivationPending || resp.State != string(billing.StateFailed) {
		t.Fatalf("expected pending activation, got %+v", resp)
	}
}

func TestConfirmUpgradeRequiresAuth(t *testing.T) {
	fx := newAppFixture(t)
	rr := httptest.NewRecorder()
	fx.app.ConfirmUpgrade(rr, postJSON("/v1/billing/confirm", "", confirmRequest{SessionID: "cs_1"}))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", rr.Code)
	}
}
