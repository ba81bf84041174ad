package dto

import (
	"time"

	"github.com/wareshop/counter/internal/entity"
)

// OrderResponse represents an order as exposed to staff via transport layers.
type OrderResponse struct {
	OrderNumber   string                `json:"order_number"`
	CustomerName  string                `json:"customer_name"`
	CustomerPhone string                `json:"customer_phone"`
	Items         []entity.Item         `json:"items"`
	PaymentMethod string                `json:"payment_method"`
	InvoiceNumber string                `json:"invoice_number,omitempty"`
	Status        string                `json:"status"`
	CreatedAt     time.Time             `json:"created_at"`
	CreatedBy     string                `json:"created_by"`
	Approvals     []entity.Approval     `json:"approvals"`
	History       []entity.StatusChange `json:"status_history"`
}

// FromOrder maps a domain order onto its staff-facing view.
func FromOrder(o entity.Order) OrderResponse {
	return OrderResponse{
		OrderNumber:   o.Number,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		Items:         o.Items,
		PaymentMethod: o.PaymentMethod,
		InvoiceNumber: o.InvoiceNumber,
		Status:        o.Status,
		CreatedAt:     o.CreatedAt,
		CreatedBy:     o.CreatedBy,
		Approvals:     o.Approvals,
		History:       o.History,
	}
}

// FromOrders maps a slice of domain orders.
func FromOrders(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromOrder(o))
	}
	return out
}

// DeletedOrderResponse is a recycle-bin entry as exposed to staff.
type DeletedOrderResponse struct {
	OrderResponse

	DeletedAt      time.Time `json:"deleted_at"`
	DeletedBy      string    `json:"deleted_by"`
	OriginalStatus string    `json:"original_status"`
}

// FromDeletedOrder maps a recycle-bin entry onto its staff-facing view.
func FromDeletedOrder(d entity.DeletedOrder) DeletedOrderResponse {
	return DeletedOrderResponse{
		OrderResponse:  FromOrder(d.Order),
		DeletedAt:      d.DeletedAt,
		DeletedBy:      d.DeletedBy,
		OriginalStatus: d.OriginalStatus,
	}
}

// PublicStatusChange strips staff identity from a history entry.
type PublicStatusChange struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}

// PublicOrderView is the customer-safe subset returned by self-service lookup.
// It carries no staff identities, no deletion metadata and no audit internals.
type PublicOrderView struct {
	OrderNumber  string               `json:"order_number"`
	CustomerName string               `json:"customer_name"`
	Items        []entity.Item        `json:"items"`
	Status       string               `json:"status"`
	CreatedAt    time.Time            `json:"created_at"`
	History      []PublicStatusChange `json:"status_history"`
}

// ToPublicView maps a domain order onto the customer-safe subset.
func ToPublicView(o entity.Order) PublicOrderView {
	history := make([]PublicStatusChange, 0, len(o.History))
	for _, h := range o.History {
		history = append(history, PublicStatusChange{Status: h.Status, ChangedAt: h.ChangedAt})
	}
	return PublicOrderView{
		OrderNumber:  o.Number,
		CustomerName: o.CustomerName,
		Items:        o.Items,
		Status:       o.Status,
		CreatedAt:    o.CreatedAt,
		History:      history,
	}
}

// OrderStats summarises the active store.
type OrderStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	Today    int            `json:"today"`
}

// BinStats summarises the recycle bin.
type BinStats struct {
	Total        int `json:"total"`
	ExpiringSoon int `json:"expiring_soon"`
}
