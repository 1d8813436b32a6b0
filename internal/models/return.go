package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReturnStatus represents the status of a return request
type ReturnStatus string

const (
	ReturnStatusRequested        ReturnStatus = "REQUESTED"         // Return request submitted, awaiting review
	ReturnStatusApproved         ReturnStatus = "APPROVED"          // Return approved, waiting for items to be shipped back
	ReturnStatusRejected         ReturnStatus = "REJECTED"          // Return request rejected
	ReturnStatusReceived         ReturnStatus = "RECEIVED"          // Items received at warehouse
	ReturnStatusProcessingRefund ReturnStatus = "PROCESSING_REFUND" // Refund request sent to payment service
	ReturnStatusRefunded         ReturnStatus = "REFUNDED"          // Refund issued, return closed
	ReturnStatusCancelled        ReturnStatus = "CANCELLED"         // Return cancelled by customer
)

// ReturnReason represents the reason for return
type ReturnReason string

const (
	ReturnReasonDefective      ReturnReason = "DEFECTIVE"        // Product is defective or damaged
	ReturnReasonWrongItem      ReturnReason = "WRONG_ITEM"       // Wrong item received
	ReturnReasonNotAsDescribed ReturnReason = "NOT_AS_DESCRIBED" // Product not as described
	ReturnReasonChangeOfMind   ReturnReason = "CHANGE_OF_MIND"   // Customer changed mind
	ReturnReasonLateDelivery   ReturnReason = "LATE_DELIVERY"    // Order arrived too late
	ReturnReasonOther          ReturnReason = "OTHER"            // Other reason
)

// IsValid checks if the reason is a known ReturnReason
func (r ReturnReason) IsValid() bool {
	switch r {
	case ReturnReasonDefective, ReturnReasonWrongItem, ReturnReasonNotAsDescribed,
		ReturnReasonChangeOfMind, ReturnReasonLateDelivery, ReturnReasonOther:
		return true
	}
	return false
}

// Return represents a return/refund request
// Performance indexes: Composite indexes on tenant_id with frequently filtered columns
// for multi-tenant list/filter queries
type Return struct {
	ID         uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID   string       `json:"tenantId" gorm:"type:varchar(255);not null;index:idx_returns_tenant_id;index:idx_returns_tenant_status;index:idx_returns_tenant_created;index:idx_returns_tenant_rma,unique"`
	RMANumber  string       `json:"rmaNumber" gorm:"not null;index:idx_returns_tenant_rma,unique"` // Return Merchandise Authorization number
	OrderID       uuid.UUID `json:"orderId" gorm:"type:uuid;not null;index:idx_returns_order"`
	CustomerID    uuid.UUID `json:"customerId" gorm:"type:uuid;not null;index:idx_returns_customer"`
	CustomerEmail string    `json:"customerEmail" gorm:"type:varchar(255)"` // Snapshot at return time, used for notifications
	Status     ReturnStatus `json:"status" gorm:"type:varchar(20);not null;default:'REQUESTED';index:idx_returns_tenant_status"`
	Reason     ReturnReason `json:"reason" gorm:"type:varchar(30);not null"`
	Comment    string       `json:"comment" gorm:"type:text"`

	// Financial details, set exactly once when the return reaches REFUNDED
	RefundAmount *float64 `json:"refundAmount" gorm:"type:decimal(10,2)"`
	RefundID     *string  `json:"refundId" gorm:"type:varchar(255)"` // External payment-service refund reference

	// Return shipping details, set after approval
	TrackingNumber  string `json:"trackingNumber"`
	ShippingCarrier string `json:"shippingCarrier"`
	ShippingLabelURL string `json:"shippingLabelUrl"`

	// Rejection details
	RejectionReason string `json:"rejectionReason" gorm:"type:text"`

	// Optimistic concurrency control: Save must carry the version that was read
	Version int64 `json:"version" gorm:"not null;default:0"`

	CreatedAt   time.Time      `json:"createdAt" gorm:"index:idx_returns_tenant_created,sort:desc"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	ProcessedAt *time.Time     `json:"processedAt"` // When refund processing started
	CompletedAt *time.Time     `json:"completedAt"` // When refund settled
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Items    []ReturnItem     `json:"items" gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE"`
	Timeline []ReturnTimeline `json:"timeline" gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE"`
}

// ReturnItem represents an item in a return request.
// UnitPrice is a snapshot of the order line price at return time and is immutable.
type ReturnItem struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ReturnID    uuid.UUID    `json:"returnId" gorm:"type:uuid;not null;index"`
	OrderItemID uuid.UUID    `json:"orderItemId" gorm:"type:uuid;not null"`
	ProductID   uuid.UUID    `json:"productId" gorm:"type:uuid"`
	ProductName string       `json:"productName"`
	SKU         string       `json:"sku"`
	Quantity    int          `json:"quantity" gorm:"not null"`
	UnitPrice   float64      `json:"unitPrice" gorm:"type:decimal(10,2);not null"`
	Reason      ReturnReason `json:"reason" gorm:"type:varchar(30)"`
	ItemNotes   string       `json:"itemNotes" gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Subtotal returns quantity * unit price as an exact decimal
func (i ReturnItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(i.UnitPrice).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ReturnTimeline tracks status changes and events
type ReturnTimeline struct {
	ID        uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ReturnID  uuid.UUID    `json:"returnId" gorm:"type:uuid;not null;index"`
	Status    ReturnStatus `json:"status" gorm:"type:varchar(20);not null"`
	Message   string       `json:"message" gorm:"type:text;not null"`
	Notes     string       `json:"notes" gorm:"type:text"`
	CreatedBy *uuid.UUID   `json:"createdBy" gorm:"type:uuid"` // Staff user ID, null for system/customer events
	CreatedAt time.Time    `json:"createdAt"`
}

// BeforeCreate hook to generate RMA number
func (r *Return) BeforeCreate(tx *gorm.DB) error {
	if r.RMANumber == "" {
		// Generate RMA number: RMA-YYYYMMDD-XXXXXX (where X is random)
		timestamp := time.Now().Format("20060102")
		randomPart := uuid.New().String()[:6]
		r.RMANumber = "RMA-" + timestamp + "-" + randomPart
	}
	return nil
}

// TableName specifies the table name for Return
func (Return) TableName() string {
	return "returns"
}

// TableName specifies the table name for ReturnItem
func (ReturnItem) TableName() string {
	return "return_items"
}

// TableName specifies the table name for ReturnTimeline
func (ReturnTimeline) TableName() string {
	return "return_timeline"
}

// CreateTimelineEntry creates a timeline entry for status change
func (r *Return) CreateTimelineEntry(status ReturnStatus, message string, userID *uuid.UUID) ReturnTimeline {
	return ReturnTimeline{
		ReturnID:  r.ID,
		Status:    status,
		Message:   message,
		CreatedBy: userID,
		CreatedAt: time.Now(),
	}
}

// ItemsSubtotal returns the sum of quantity * unit price over all items.
// This bounds the maximum computable refund before business-rule adjustment.
func (r *Return) ItemsSubtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// HasShippingLabel reports whether a return label was already generated
func (r *Return) HasShippingLabel() bool {
	return r.TrackingNumber != ""
}

// IsFinalized checks if return is in a terminal state; terminal returns are immutable
func (r *Return) IsFinalized() bool {
	return r.Status == ReturnStatusRefunded ||
		r.Status == ReturnStatusRejected ||
		r.Status == ReturnStatusCancelled
}
