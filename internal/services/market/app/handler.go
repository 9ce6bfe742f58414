package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc/codes"

	apperrors "github.com/Sreddy08840/agri-connect-sub002/internal/platform/errors"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/listing"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/money"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/order"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/transition"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/engine"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/realtime"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/storage"
)

const maxRequestBodyBytes = 256 * 1024

// Actor identity headers. The API trusts an upstream gateway to authenticate
// callers and forward their identity; this service only authorizes.
const (
	headerActorID      = "X-Actor-Id"
	headerActorRole    = "X-Actor-Role"
	headerActorTrusted = "X-Actor-Trusted"
)

// HandlerConfig carries the collaborators mounted on the HTTP surface.
type HandlerConfig struct {
	Engine   *engine.Engine
	Hub      *realtime.Hub
	Messages storage.MessageStore
	Metrics  http.Handler
	Logger   *log.Logger
}

type handlers struct {
	engine *engine.Engine
	logger *log.Logger
}

// NewHandler mounts the market JSON API, the realtime WebSocket endpoint,
// and the operational endpoints on one mux.
func NewHandler(cfg HandlerConfig) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	h := handlers{engine: cfg.Engine, logger: cfg.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}
	if cfg.Hub != nil {
		mux.Handle("/ws", realtime.Handler(cfg.Hub, cfg.Messages, cfg.Logger))
	}

	mux.HandleFunc("/v1/listings", h.handleListings)
	mux.HandleFunc("/v1/listings/search", h.handleSearchListings)
	mux.HandleFunc("/v1/listings/{listingID}", h.handleListing)
	mux.HandleFunc("/v1/listings/{listingID}/publish", h.handlePublishListing)
	mux.HandleFunc("/v1/listings/{listingID}/approve", h.handleApproveListing)
	mux.HandleFunc("/v1/listings/{listingID}/reject", h.handleRejectListing)
	mux.HandleFunc("/v1/listings/{listingID}/feature", h.handleFeatureListing)
	mux.HandleFunc("/v1/listings/{listingID}/stock", h.handleAdjustStock)
	mux.HandleFunc("/v1/listings/{listingID}/audit", h.handleListingAudit)
	mux.HandleFunc("/v1/orders", h.handleOrders)
	mux.HandleFunc("/v1/orders/open-count", h.handleOpenOrderCount)
	mux.HandleFunc("/v1/orders/{orderID}", h.handleOrder)
	mux.HandleFunc("/v1/orders/{orderID}/transition", h.handleTransitionOrder)
	mux.HandleFunc("/v1/orders/{orderID}/cancel", h.handleCancelOrder)
	mux.HandleFunc("/v1/orders/{orderID}/audit", h.handleOrderAudit)
	mux.HandleFunc("/v1/moderation/pending-count", h.handlePendingReviewCount)
	return mux, nil
}

type imagePayload struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type createListingRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       string         `json:"price"`
	Stock       int            `json:"stock"`
	MinOrderQty int            `json:"min_order_qty"`
	CategoryID  string         `json:"category_id"`
	Images      []imagePayload `json:"images"`
	Publish     bool           `json:"publish"`
}

type rejectListingRequest struct {
	Reason string `json:"reason"`
}

type featureListingRequest struct {
	Featured bool `json:"featured"`
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

type orderLinePayload struct {
	ListingID string `json:"listing_id"`
	Quantity  int    `json:"quantity"`
}

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
}

type createOrderRequest struct {
	Lines         []orderLinePayload `json:"lines"`
	PaymentMethod string             `json:"payment_method"`
	Delivery      addressPayload     `json:"delivery"`
}

type transitionOrderRequest struct {
	Target string `json:"target"`
}

type listingResponse struct {
	ID              string         `json:"id"`
	OwnerID         string         `json:"owner_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	Price           string         `json:"price"`
	Stock           int            `json:"stock"`
	MinOrderQty     int            `json:"min_order_qty"`
	CategoryID      string         `json:"category_id,omitempty"`
	Images          []imagePayload `json:"images,omitempty"`
	Featured        bool           `json:"featured"`
	Status          string         `json:"status"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
	Version         int64          `json:"version"`
}

type orderLineResponse struct {
	ListingID string `json:"listing_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	Reference     string              `json:"reference"`
	BuyerID       string              `json:"buyer_id"`
	SellerID      string              `json:"seller_id"`
	Status        string              `json:"status"`
	Items         []orderLineResponse `json:"items"`
	Total         string              `json:"total"`
	PaymentMethod string              `json:"payment_method"`
	Delivery      addressPayload      `json:"delivery"`
	CreatedAt     string              `json:"created_at"`
	UpdatedAt     string              `json:"updated_at"`
	Version       int64               `json:"version"`
}

type auditRecordResponse struct {
	ID         string `json:"id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Tag        string `json:"tag"`
	ActorID    string `json:"actor_id"`
	ActorRole  string `json:"actor_role"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	Note       string `json:"note,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type countResponse struct {
	Count int `json:"count"`
}

func (h handlers) handleListings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateListing(w, r)
	case http.MethodGet:
		h.handleListListings(w, r)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h handlers) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req createListingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	price, perr := money.Parse(strings.TrimSpace(req.Price))
	if perr != nil {
		h.writeError(w, apperrors.New(apperrors.CodeListingInvalidPrice, "price must be a decimal string"))
		return
	}
	created, cerr := h.engine.CreateListing(r.Context(), actor, listing.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Stock:       req.Stock,
		MinOrderQty: req.MinOrderQty,
		CategoryID:  req.CategoryID,
		Images:      imagesFromPayload(req.Images),
		Publish:     req.Publish,
	})
	if cerr != nil {
		h.writeError(w, cerr)
		return
	}
	writeJSON(w, http.StatusCreated, listingView(created))
}

func (h handlers) handleListListings(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if ownerID == "" {
		ownerID = actor.ID
	}
	listings, lerr := h.engine.ListingsByOwner(r.Context(), ownerID, queryLimit(r))
	if lerr != nil {
		h.writeError(w, lerr)
		return
	}
	views := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		views = append(views, listingView(l))
	}
	writeJSON(w, http.StatusOK, map[string][]listingResponse{"listings": views})
}

func (h handlers) handleListing(w http.ResponseWriter, r *http.Request) {
	listingID := strings.TrimSpace(r.PathValue("listingID"))
	switch r.Method {
	case http.MethodGet:
		l, err := h.engine.GetListing(r.Context(), listingID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listingView(l))
	case http.MethodPut:
		h.handleEditListing(w, r, listingID)
	case http.MethodDelete:
		actor, err := actorFromRequest(r)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if err := h.engine.DeleteListing(r.Context(), actor, listingID); err != nil {
			h.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (h handlers) handleEditListing(w http.ResponseWriter, r *http.Request, listingID string) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req createListingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	price, perr := money.Parse(strings.TrimSpace(req.Price))
	if perr != nil {
		h.writeError(w, apperrors.New(apperrors.CodeListingInvalidPrice, "price must be a decimal string"))
		return
	}
	edited, eerr := h.engine.EditListing(r.Context(), actor, listingID, listing.EditInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Stock:       req.Stock,
		MinOrderQty: req.MinOrderQty,
		CategoryID:  req.CategoryID,
		Images:      imagesFromPayload(req.Images),
	})
	if eerr != nil {
		h.writeError(w, eerr)
		return
	}
	writeJSON(w, http.StatusOK, listingView(edited))
}

func (h handlers) handlePublishListing(w http.ResponseWriter, r *http.Request) {
	h.listingAction(w, r, func(actor engine.Actor, listingID string) (listing.Listing, error) {
		return h.engine.PublishListing(r.Context(), actor, listingID)
	})
}

func (h handlers) handleApproveListing(w http.ResponseWriter, r *http.Request) {
	h.listingAction(w, r, func(actor engine.Actor, listingID string) (listing.Listing, error) {
		return h.engine.ApproveListing(r.Context(), actor, listingID)
	})
}

func (h handlers) handleRejectListing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req rejectListingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	rejected, rerr := h.engine.RejectListing(r.Context(), actor, strings.TrimSpace(r.PathValue("listingID")), req.Reason)
	if rerr != nil {
		h.writeError(w, rerr)
		return
	}
	writeJSON(w, http.StatusOK, listingView(rejected))
}

func (h handlers) handleFeatureListing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req featureListingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	featured, ferr := h.engine.FeatureListing(r.Context(), actor, strings.TrimSpace(r.PathValue("listingID")), req.Featured)
	if ferr != nil {
		h.writeError(w, ferr)
		return
	}
	writeJSON(w, http.StatusOK, listingView(featured))
}

func (h handlers) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req adjustStockRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	adjusted, aerr := h.engine.AdjustStock(r.Context(), actor, strings.TrimSpace(r.PathValue("listingID")), req.Delta)
	if aerr != nil {
		h.writeError(w, aerr)
		return
	}
	writeJSON(w, http.StatusOK, listingView(adjusted))
}

func (h handlers) listingAction(w http.ResponseWriter, r *http.Request, action func(engine.Actor, string) (listing.Listing, error)) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	updated, aerr := action(actor, strings.TrimSpace(r.PathValue("listingID")))
	if aerr != nil {
		h.writeError(w, aerr)
		return
	}
	writeJSON(w, http.StatusOK, listingView(updated))
}

func (h handlers) handleSearchListings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	docs, err := h.engine.SearchListings(r.Context(), r.URL.Query().Get("q"), queryLimit(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": docs})
}

func (h handlers) handleListingAudit(w http.ResponseWriter, r *http.Request) {
	h.writeAuditTrail(w, r, "listing", strings.TrimSpace(r.PathValue("listingID")))
}

func (h handlers) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateOrder(w, r)
	case http.MethodGet:
		h.handleListOrders(w, r)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h handlers) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	method, _ := order.ParsePaymentMethod(req.PaymentMethod)
	lines := make([]engine.OrderLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, engine.OrderLineInput{ListingID: line.ListingID, Quantity: line.Quantity})
	}
	placed, oerr := h.engine.CreateOrder(r.Context(), actor, engine.CreateOrderInput{
		Lines:         lines,
		PaymentMethod: method,
		Delivery: order.Address{
			Line1:      req.Delivery.Line1,
			Line2:      req.Delivery.Line2,
			City:       req.Delivery.City,
			Region:     req.Delivery.Region,
			PostalCode: req.Delivery.PostalCode,
		},
	})
	if oerr != nil {
		h.writeError(w, oerr)
		return
	}
	writeJSON(w, http.StatusCreated, orderView(placed))
}

func (h handlers) handleListOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	orders, lerr := h.engine.OrdersForParty(r.Context(), actor.ID, queryLimit(r))
	if lerr != nil {
		h.writeError(w, lerr)
		return
	}
	views := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o))
	}
	writeJSON(w, http.StatusOK, map[string][]orderResponse{"orders": views})
}

func (h handlers) handleOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	o, err := h.engine.GetOrder(r.Context(), strings.TrimSpace(r.PathValue("orderID")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderView(o))
}

func (h handlers) handleTransitionOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req transitionOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	target, ok := order.ParseStatus(req.Target)
	if !ok {
		h.writeError(w, apperrors.WithMetadata(
			apperrors.CodeTransitionInvalid,
			"unknown order status",
			map[string]string{"Target": req.Target},
		))
		return
	}
	updated, terr := h.engine.TransitionOrder(r.Context(), actor, strings.TrimSpace(r.PathValue("orderID")), target)
	if terr != nil {
		h.writeError(w, terr)
		return
	}
	writeJSON(w, http.StatusOK, orderView(updated))
}

func (h handlers) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	cancelled, cerr := h.engine.CancelOrder(r.Context(), actor, strings.TrimSpace(r.PathValue("orderID")))
	if cerr != nil {
		h.writeError(w, cerr)
		return
	}
	writeJSON(w, http.StatusOK, orderView(cancelled))
}

func (h handlers) handleOrderAudit(w http.ResponseWriter, r *http.Request) {
	h.writeAuditTrail(w, r, "order", strings.TrimSpace(r.PathValue("orderID")))
}

func (h handlers) writeAuditTrail(w http.ResponseWriter, r *http.Request, entityKind, entityID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	if _, err := actorFromRequest(r); err != nil {
		h.writeError(w, err)
		return
	}
	records, err := h.engine.AuditTrail(r.Context(), entityKind, entityID, queryLimit(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]auditRecordResponse, 0, len(records))
	for _, record := range records {
		views = append(views, auditView(record))
	}
	writeJSON(w, http.StatusOK, map[string][]auditRecordResponse{"records": views})
}

func (h handlers) handlePendingReviewCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	count, err := h.engine.PendingReviewCount(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

func (h handlers) handleOpenOrderCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	count, err := h.engine.OpenOrderCount(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

func actorFromRequest(r *http.Request) (engine.Actor, error) {
	actorID := strings.TrimSpace(r.Header.Get(headerActorID))
	if actorID == "" {
		return engine.Actor{}, apperrors.New(apperrors.CodeActorEmptyID, "actor identity header is required")
	}
	role, ok := transition.ParseRole(strings.TrimSpace(r.Header.Get(headerActorRole)))
	if !ok {
		return engine.Actor{}, apperrors.New(apperrors.CodeActorInvalidRole, "actor role header is missing or unknown")
	}
	trusted, _ := strconv.ParseBool(strings.TrimSpace(r.Header.Get(headerActorTrusted)))
	return engine.Actor{ID: actorID, Role: role, Trusted: trusted}, nil
}

func decodeJSON(r *http.Request, target any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeMalformedPayload, "request body is not valid JSON", err)
	}
	return nil
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func imagesFromPayload(images []imagePayload) []listing.ImageRef {
	if len(images) == 0 {
		return nil
	}
	refs := make([]listing.ImageRef, 0, len(images))
	for _, image := range images {
		refs = append(refs, listing.ImageRef{URL: image.URL, Alt: image.Alt})
	}
	return refs
}

func listingView(l listing.Listing) listingResponse {
	images := make([]imagePayload, 0, len(l.Images))
	for _, image := range l.Images {
		images = append(images, imagePayload{URL: image.URL, Alt: image.Alt})
	}
	return listingResponse{
		ID:              l.ID,
		OwnerID:         l.OwnerID,
		Name:            l.Name,
		Description:     l.Description,
		Price:           l.Price.String(),
		Stock:           l.Stock,
		MinOrderQty:     l.MinOrderQty,
		CategoryID:      l.CategoryID,
		Images:          images,
		Featured:        l.Featured,
		Status:          string(l.Status),
		RejectionReason: l.RejectionReason,
		CreatedAt:       l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       l.UpdatedAt.Format(time.RFC3339),
		Version:         l.Version,
	}
}

func orderView(o order.Order) orderResponse {
	items := make([]orderLineResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderLineResponse{
			ListingID: item.ListingID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
			Subtotal:  item.Subtotal().String(),
		})
	}
	return orderResponse{
		ID:            o.ID,
		Reference:     o.Reference,
		BuyerID:       o.BuyerID,
		SellerID:      o.SellerID,
		Status:        string(o.Status),
		Items:         items,
		Total:         o.Total.String(),
		PaymentMethod: string(o.PaymentMethod),
		Delivery: addressPayload{
			Line1:      o.Delivery.Line1,
			Line2:      o.Delivery.Line2,
			City:       o.Delivery.City,
			Region:     o.Delivery.Region,
			PostalCode: o.Delivery.PostalCode,
		},
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
		UpdatedAt: o.UpdatedAt.Format(time.RFC3339),
		Version:   o.Version,
	}
}

func auditView(record storage.AuditRecord) auditRecordResponse {
	return auditRecordResponse{
		ID:         record.ID,
		EntityKind: record.EntityKind,
		EntityID:   record.EntityID,
		Tag:        record.Tag,
		ActorID:    record.ActorID,
		ActorRole:  record.ActorRole,
		FromStatus: record.FromStatus,
		ToStatus:   record.ToStatus,
		Note:       record.Note,
		CreatedAt:  record.CreatedAt.Format(time.RFC3339),
	}
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (h handlers) writeError(w http.ResponseWriter, err error) {
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		domainErr = apperrors.Wrap(apperrors.CodeUnknown, "internal error", err)
	}
	status := httpStatusForCode(domainErr.Code)
	if status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Printf("request failed: %v", err)
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:     string(domainErr.Code),
		Message:  domainErr.Message,
		Metadata: domainErr.Metadata,
	}})
}

// httpStatusForCode projects domain error codes onto HTTP statuses through
// their canonical gRPC classification.
func httpStatusForCode(code apperrors.Code) int {
	switch code.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.FailedPrecondition, codes.Aborted:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, fmt.Sprintf("%d method not allowed", http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
