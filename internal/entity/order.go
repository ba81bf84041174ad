package entity

import "time"

// Order statuses, in lifecycle order.
const (
	StatusReceived  = "received"
	StatusApproved  = "approved"
	StatusPacked    = "packed"
	StatusReady     = "ready"
	StatusCompleted = "completed"
)

// Statuses lists every known order status.
var Statuses = []string{StatusReceived, StatusApproved, StatusPacked, StatusReady, StatusCompleted}

// ApprovalsRequired is the number of distinct staff sign-offs that promote a
// received order to approved.
const ApprovalsRequired = 3

// SystemActor marks history and audit entries written by the service itself.
const SystemActor = "SYSTEM"

// Item is a single order line. The counter treats lines as opaque beyond display.
type Item struct {
	SKU  string `json:"sku"`
	Name string `json:"name,omitempty"`
	Qty  int    `json:"qty"`
}

// Approval records one staff sign-off on an order.
type Approval struct {
	Staff      string    `json:"staff"`
	ApprovedAt time.Time `json:"approved_at"`
}

// StatusChange is one entry of an order's append-only status history.
type StatusChange struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
	Staff     string    `json:"staff"`
}

// Order represents a pickup order held in the active store.
type Order struct {
	Number        string         `json:"order_number"`
	CustomerName  string         `json:"customer_name"`
	CustomerPhone string         `json:"customer_phone"`
	Items         []Item         `json:"items"`
	PaymentMethod string         `json:"payment_method"`
	InvoiceNumber string         `json:"invoice_number,omitempty"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	CreatedBy     string         `json:"created_by"`
	Approvals     []Approval     `json:"approvals"`
	History       []StatusChange `json:"status_history"`
}

// ApprovedBy reports whether the given staff member already signed off.
func (o *Order) ApprovedBy(staff string) bool {
	for _, a := range o.Approvals {
		if a.Staff == staff {
			return true
		}
	}
	return false
}

// DeletedOrder is an order parked in the recycle bin. OriginalStatus preserves
// the status at deletion time so restore can recover it.
type DeletedOrder struct {
	Order

	DeletedAt      time.Time `json:"deleted_at"`
	DeletedBy      string    `json:"deleted_by"`
	OriginalStatus string    `json:"original_status"`
}
