package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sreddy08840/agri-connect-sub002/internal/platform/metrics"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/audit"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/cache"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/engine"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/realtime"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/search"
	marketsqlite "github.com/Sreddy08840/agri-connect-sub002/internal/services/market/storage/sqlite"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()

	store, err := marketsqlite.Open(filepath.Join(dir, "market.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	index, err := search.OpenSQLite(filepath.Join(dir, "search.db"))
	if err != nil {
		t.Fatalf("open search index: %v", err)
	}
	t.Cleanup(func() { _ = index.Close() })

	backend, err := cache.OpenBolt(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	registry := prometheus.NewRegistry()
	hub := realtime.NewHub()
	eng, err := engine.New(engine.Config{
		Store:    store,
		Recorder: audit.NewRecorder(store),
		Counts:   cache.NewCounts(backend, nil),
		Search:   search.NewSynchronizer(index),
		Hub:      hub,
		Metrics:  metrics.NewEngineMetrics(registry),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	handler, err := NewHandler(HandlerConfig{
		Engine:   eng,
		Hub:      hub,
		Messages: store,
		Metrics:  metrics.HandlerFor(registry),
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func doJSON(t *testing.T, handler http.Handler, method, path string, headers map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

var (
	sellerHeaders  = map[string]string{"X-Actor-Id": "seller-1", "X-Actor-Role": "seller"}
	trustedHeaders = map[string]string{"X-Actor-Id": "seller-1", "X-Actor-Role": "seller", "X-Actor-Trusted": "true"}
	buyerHeaders   = map[string]string{"X-Actor-Id": "buyer-1", "X-Actor-Role": "buyer"}
	revHeaders     = map[string]string{"X-Actor-Id": "rev-1", "X-Actor-Role": "reviewer"}
)

func listingBody(name string, images int) createListingRequest {
	req := createListingRequest{
		Name:        name,
		Description: "farm fresh",
		Price:       "42.50",
		Stock:       20,
		MinOrderQty: 1,
		CategoryID:  "fruit",
		Publish:     true,
	}
	for range images {
		req.Images = append(req.Images, imagePayload{URL: "https://img.example/a.jpg"})
	}
	return req
}

func createListingViaAPI(t *testing.T, handler http.Handler, headers map[string]string, name string, images int) listingResponse {
	t.Helper()
	rr := doJSON(t, handler, http.MethodPost, "/v1/listings", headers, listingBody(name, images))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create listing: status %d body %s", rr.Code, rr.Body.String())
	}
	var created listingResponse
	decodeBody(t, rr, &created)
	return created
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	rr := doJSON(t, handler, http.MethodGet, "/up", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCreateListingRequiresActorHeaders(t *testing.T) {
	handler := newTestHandler(t)

	rr := doJSON(t, handler, http.MethodPost, "/v1/listings", nil, listingBody("Okra", 0))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing identity: status %d body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodPost, "/v1/listings",
		map[string]string{"X-Actor-Id": "seller-1", "X-Actor-Role": "pirate"}, listingBody("Okra", 0))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown role: status %d body %s", rr.Code, rr.Body.String())
	}
	var envelope errorEnvelope
	decodeBody(t, rr, &envelope)
	if envelope.Error.Code != "ACTOR_INVALID_ROLE" {
		t.Fatalf("expected role error code, got %+v", envelope)
	}
}

func TestListingReviewFlowOverHTTP(t *testing.T) {
	handler := newTestHandler(t)

	created := createListingViaAPI(t, handler, sellerHeaders, "Alphonso Mangoes", 0)
	if created.Status != "pending_review" {
		t.Fatalf("expected pending_review, got %q", created.Status)
	}

	// Sellers cannot approve their own listing.
	rr := doJSON(t, handler, http.MethodPost, "/v1/listings/"+created.ID+"/approve", sellerHeaders, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("self-approve: status %d body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodPost, "/v1/listings/"+created.ID+"/approve", revHeaders, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("approve: status %d body %s", rr.Code, rr.Body.String())
	}
	var approved listingResponse
	decodeBody(t, rr, &approved)
	if approved.Status != "approved" {
		t.Fatalf("expected approved, got %q", approved.Status)
	}

	rr = doJSON(t, handler, http.MethodGet, "/v1/listings/search?q=alphonso", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("search: status %d body %s", rr.Code, rr.Body.String())
	}
	var results struct {
		Results []search.Document `json:"results"`
	}
	decodeBody(t, rr, &results)
	if len(results.Results) != 1 || results.Results[0].ListingID != created.ID {
		t.Fatalf("expected approved listing in search, got %+v", results.Results)
	}
}

func TestRejectListingOverHTTP(t *testing.T) {
	handler := newTestHandler(t)
	created := createListingViaAPI(t, handler, sellerHeaders, "Okra", 0)

	rr := doJSON(t, handler, http.MethodPost, "/v1/listings/"+created.ID+"/reject", revHeaders, rejectListingRequest{Reason: ""})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty reason: status %d body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodPost, "/v1/listings/"+created.ID+"/reject", revHeaders, rejectListingRequest{Reason: "photos too dark"})
	if rr.Code != http.StatusOK {
		t.Fatalf("reject: status %d body %s", rr.Code, rr.Body.String())
	}
	var rejected listingResponse
	decodeBody(t, rr, &rejected)
	if rejected.Status != "rejected" || rejected.RejectionReason != "photos too dark" {
		t.Fatalf("expected rejection with reason, got %+v", rejected)
	}
}

func TestOrderFlowOverHTTP(t *testing.T) {
	handler := newTestHandler(t)

	// Trusted seller with images gets instant approval, so the listing is
	// orderable right away.
	created := createListingViaAPI(t, handler, trustedHeaders, "Kesar Mangoes", 1)
	if created.Status != "approved" {
		t.Fatalf("expected auto-approved fixture, got %q", created.Status)
	}

	orderReq := createOrderRequest{
		Lines:         []orderLinePayload{{ListingID: created.ID, Quantity: 2}},
		PaymentMethod: "cod",
		Delivery:      addressPayload{Line1: "14 Mandi Road", City: "Nashik", Region: "MH", PostalCode: "422001"},
	}
	rr := doJSON(t, handler, http.MethodPost, "/v1/orders", buyerHeaders, orderReq)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create order: status %d body %s", rr.Code, rr.Body.String())
	}
	var placed orderResponse
	decodeBody(t, rr, &placed)
	if placed.Status != "placed" || placed.Total != "85" {
		t.Fatalf("expected placed order totalling 85, got %+v", placed)
	}

	rr = doJSON(t, handler, http.MethodPost, "/v1/orders/"+placed.ID+"/transition", sellerHeaders, transitionOrderRequest{Target: "accepted"})
	if rr.Code != http.StatusOK {
		t.Fatalf("accept: status %d body %s", rr.Code, rr.Body.String())
	}

	// Buyer role cannot drive seller-side fulfillment edges.
	rr = doJSON(t, handler, http.MethodPost, "/v1/orders/"+placed.ID+"/transition", buyerHeaders, transitionOrderRequest{Target: "packed"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("buyer pack: status %d body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, handler, http.MethodPost, "/v1/orders/"+placed.ID+"/cancel", buyerHeaders, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: status %d body %s", rr.Code, rr.Body.String())
	}
	var cancelled orderResponse
	decodeBody(t, rr, &cancelled)
	if cancelled.Status != "cancelled" {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}

	rr = doJSON(t, handler, http.MethodPost, "/v1/orders/"+placed.ID+"/transition", sellerHeaders, transitionOrderRequest{Target: "packed"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("terminal transition: status %d body %s", rr.Code, rr.Body.String())
	}
	var envelope errorEnvelope
	decodeBody(t, rr, &envelope)
	if envelope.Error.Code != "TRANSITION_ALREADY_TERMINAL" {
		t.Fatalf("expected terminal error code, got %+v", envelope)
	}
}

func TestUnknownOrderReturnsNotFound(t *testing.T) {
	handler := newTestHandler(t)
	rr := doJSON(t, handler, http.MethodGet, "/v1/orders/missing", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body.String())
	}
}

func TestAuditTrailEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	created := createListingViaAPI(t, handler, trustedHeaders, "Jaggery Blocks", 1)

	rr := doJSON(t, handler, http.MethodGet, "/v1/listings/"+created.ID+"/audit", revHeaders, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("audit: status %d body %s", rr.Code, rr.Body.String())
	}
	var trail struct {
		Records []auditRecordResponse `json:"records"`
	}
	decodeBody(t, rr, &trail)
	if len(trail.Records) != 1 || trail.Records[0].Tag != "listing.auto_approved" {
		t.Fatalf("expected auto-approval audit record, got %+v", trail.Records)
	}
}

func TestModerationCountEndpoints(t *testing.T) {
	handler := newTestHandler(t)
	createListingViaAPI(t, handler, sellerHeaders, "Red Onions", 0)
	createListingViaAPI(t, handler, sellerHeaders, "Green Chillies", 0)

	rr := doJSON(t, handler, http.MethodGet, "/v1/moderation/pending-count", revHeaders, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("pending count: status %d body %s", rr.Code, rr.Body.String())
	}
	var pending countResponse
	decodeBody(t, rr, &pending)
	if pending.Count != 2 {
		t.Fatalf("expected 2 pending listings, got %d", pending.Count)
	}

	rr = doJSON(t, handler, http.MethodGet, "/v1/orders/open-count", revHeaders, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("open count: status %d body %s", rr.Code, rr.Body.String())
	}
	var open countResponse
	decodeBody(t, rr, &open)
	if open.Count != 0 {
		t.Fatalf("expected no open orders, got %d", open.Count)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t)
	rr := doJSON(t, handler, http.MethodDelete, "/v1/moderation/pending-count", revHeaders, nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("Allow") != http.MethodGet {
		t.Fatalf("Allow = %q", rr.Header().Get("Allow"))
	}
}

func TestMalformedJSONRejected(t *testing.T) {
	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/listings", bytes.NewReader([]byte("{not json")))
	for key, value := range sellerHeaders {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body %s", rr.Code, rr.Body.String())
	}
	var envelope errorEnvelope
	decodeBody(t, rr, &envelope)
	if envelope.Error.Code != "MALFORMED_PAYLOAD" {
		t.Fatalf("expected payload error code, got %+v", envelope)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	handler := newTestHandler(t)
	createListingViaAPI(t, handler, sellerHeaders, "Coriander", 0)

	rr := doJSON(t, handler, http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("market_transitions_total")) {
		t.Fatal("expected market transition metrics in scrape output")
	}
}
