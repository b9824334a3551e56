package billing

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInvoiceAttempts bounds the duplicate-number retry loop.
const DefaultInvoiceAttempts = 5

// InvoiceStores is what the invoice service needs from a store.
type InvoiceStores interface {
	CounterStore
	InvoiceStore
	GetClient(ctx context.Context, id ClientID) (Client, error)
}

// InvoiceService mints invoice numbers and manages invoices.
type InvoiceService struct {
	store  InvoiceStores
	seq    *Sequence
	logger *slog.Logger

	Now         Clock
	MaxAttempts int
}

func NewInvoiceService(store InvoiceStores, logger *slog.Logger) *InvoiceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceService{
		store:       store,
		seq:         NewSequence(store, InvoiceScope),
		logger:      logger.With("component", "invoices"),
		Now:         time.Now,
		MaxAttempts: DefaultInvoiceAttempts,
	}
}

// CreateInvoiceRequest defines invoice creation inputs. When ClientID is
// set the client name is taken from the client document.
type CreateInvoiceRequest struct {
	ClientID   ClientID
	ClientName string
	Amount     decimal.Decimal
	Status     InvoiceStatus
}

// Create mints the next number for the current UTC year and inserts the
// invoice. A collision on the number draws a fresh one, up to MaxAttempts;
// any other failure is returned immediately.
func (s *InvoiceService) Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error) {
	clientID, clientName, err := s.resolveClient(ctx, req.ClientID, req.ClientName)
	if err != nil {
		return Invoice{}, err
	}
	if err := ValidateAmount("amount", req.Amount); err != nil {
		return Invoice{}, err
	}
	status := req.Status
	if status == "" {
		status = InvoicePending
	}
	if !status.Valid() {
		return Invoice{}, invalid("status", "must be %q or %q", InvoicePaid, InvoicePending)
	}

	attempts := s.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	now := s.Now()
	year := now.UTC().Year()
	for attempt := 1; attempt <= attempts; attempt++ {
		seq, err := s.seq.Next(ctx, year)
		if err != nil {
			return Invoice{}, err
		}

		inv := Invoice{
			ID:         InvoiceID(NewID()),
			Number:     FormatInvoiceNumber(year, seq),
			ClientID:   clientID,
			ClientName: clientName,
			Amount:     req.Amount,
			Status:     status,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		err = s.store.InsertInvoice(ctx, inv)
		if err == nil {
			s.logger.Info("invoice created", "invoice_id", inv.ID, "number", inv.Number, "attempt", attempt)
			return inv, nil
		}
		if !IsDuplicateOn(err, "invoice", "number") {
			return Invoice{}, wrapStore("create", "invoice", string(inv.ID), err)
		}
		s.logger.Warn("duplicate invoice number, retrying", "number", inv.Number, "attempt", attempt)
	}

	return Invoice{}, &OperationError{Op: "create", Entity: "invoice", Err: ErrSequenceExhausted}
}

func (s *InvoiceService) resolveClient(ctx context.Context, id ClientID, name string) (ClientID, string, error) {
	if id == "" {
		name = strings.TrimSpace(name)
		if name == "" {
			return "", "", invalid("client", "is required")
		}
		return "", name, nil
	}
	if err := validateID("clientId", string(id)); err != nil {
		return "", "", err
	}
	c, err := s.store.GetClient(ctx, id)
	if err != nil {
		return "", "", wrapStore("get", "client", string(id), err)
	}
	return c.ID, c.Name, nil
}

func (s *InvoiceService) Get(ctx context.Context, id InvoiceID) (Invoice, error) {
	if err := validateID("id", string(id)); err != nil {
		return Invoice{}, err
	}
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, wrapStore("get", "invoice", string(id), err)
	}
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context) ([]Invoice, error) {
	invoices, err := s.store.ListInvoices(ctx)
	if err != nil {
		return nil, wrapStore("list", "invoice", "", err)
	}
	return invoices, nil
}

// UpdateInvoiceRequest carries optional changes. The number is immutable.
type UpdateInvoiceRequest struct {
	ClientID   *ClientID
	ClientName *string
	Amount     *decimal.Decimal
	Status     *InvoiceStatus
}

func (s *InvoiceService) Update(ctx context.Context, id InvoiceID, req UpdateInvoiceRequest) (Invoice, error) {
	if err := validateID("id", string(id)); err != nil {
		return Invoice{}, err
	}

	var patch InvoicePatch
	switch {
	case req.ClientID != nil && *req.ClientID != "":
		clientID, name, err := s.resolveClient(ctx, *req.ClientID, "")
		if err != nil {
			return Invoice{}, err
		}
		patch.ClientID, patch.ClientName = &clientID, &name
	case req.ClientName != nil:
		_, name, err := s.resolveClient(ctx, "", *req.ClientName)
		if err != nil {
			return Invoice{}, err
		}
		none := ClientID("")
		patch.ClientID, patch.ClientName = &none, &name
	}
	if req.Amount != nil {
		if err := ValidateAmount("amount", *req.Amount); err != nil {
			return Invoice{}, err
		}
		patch.Amount = req.Amount
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return Invoice{}, invalid("status", "must be %q or %q", InvoicePaid, InvoicePending)
		}
		patch.Status = req.Status
	}

	inv, err := s.store.UpdateInvoice(ctx, id, patch, s.Now())
	if err != nil {
		return Invoice{}, wrapStore("update", "invoice", string(id), err)
	}
	return inv, nil
}

func (s *InvoiceService) Delete(ctx context.Context, id InvoiceID) (bool, error) {
	if err := validateID("id", string(id)); err != nil {
		return false, err
	}
	if err := s.store.DeleteInvoice(ctx, id); err != nil {
		return false, wrapStore("delete", "invoice", string(id), err)
	}
	return true, nil
}
