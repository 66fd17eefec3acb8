package models

import "time"

// Payment status values for an application deposit. paid, expired and failed
// are terminal; an application only returns to pending via a new invoice.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusExpired = "expired"
	PaymentStatusFailed  = "failed"
)

type Application struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	TempID string `gorm:"type:varchar(64);uniqueIndex;not null" json:"temp_id"`

	FirstName       string  `gorm:"type:varchar(80);not null" json:"first_name"`
	MiddleName      *string `gorm:"type:varchar(80)" json:"middle_name,omitempty"`
	LastName        string  `gorm:"type:varchar(80);not null" json:"last_name"`
	Phone           string  `gorm:"type:varchar(20)" json:"phone"`
	Email           string  `gorm:"type:varchar(191);index" json:"email"`
	Address         string  `gorm:"type:varchar(255)" json:"address"`
	DOB             string  `gorm:"type:varchar(10);not null;column:dob" json:"dob"`
	NumApplicants   int     `gorm:"default:1" json:"num_applicants"`
	Pets            int     `gorm:"default:0" json:"pets"`
	CoApplicant     *string `gorm:"type:varchar(191)" json:"co_applicant,omitempty"`
	MoveInDate      *string `gorm:"type:varchar(10)" json:"move_in_date,omitempty"`
	PropertyAddress string  `gorm:"type:varchar(255)" json:"property_address"`
	OwnerRating     *int    `json:"owner_rating,omitempty"`

	// SSN arrives already encrypted from the capture flow and is never
	// serialized back out.
	SSNEncrypted  string  `gorm:"type:text;column:ssn_encrypted" json:"-"`
	Income        float64 `gorm:"type:decimal(15,2)" json:"income"`
	DepositAmount float64 `gorm:"type:decimal(15,2)" json:"deposit_amount"`

	FaceImageURL *string `gorm:"type:text" json:"face_image_url,omitempty"`
	FaceVideoURL *string `gorm:"type:text" json:"face_video_url,omitempty"`

	PaymentMethod   string `gorm:"type:varchar(16);default:'bitcoin'" json:"payment_method"`
	PaymentProvider string `gorm:"type:varchar(16);default:'btcpay'" json:"payment_provider"`

	PaymentStatus      string     `gorm:"type:enum('pending','paid','expired','failed');default:'pending'" json:"payment_status"`
	PaymentInvoiceID   *string    `gorm:"type:varchar(191);index" json:"payment_invoice_id,omitempty"`
	PaymentAddress     *string    `gorm:"type:varchar(191)" json:"payment_address,omitempty"`
	PaymentAmount      *string    `gorm:"type:varchar(32)" json:"payment_amount,omitempty"`
	PaymentCurrency    *string    `gorm:"type:varchar(8)" json:"payment_currency,omitempty"`
	PaymentCreatedAt   *time.Time `json:"payment_created_at,omitempty"`
	PaymentExpiresAt   *time.Time `json:"payment_expires_at,omitempty"`
	PaymentConfirmedAt *time.Time `json:"payment_confirmed_at,omitempty"`
	PaymentTxID        *string    `gorm:"type:varchar(191);column:payment_txid" json:"payment_txid,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Application) TableName() string {
	return "applications"
}

// FullName joins the applicant name parts, skipping an absent middle name.
func (a *Application) FullName() string {
	name := a.FirstName
	if a.MiddleName != nil && *a.MiddleName != "" {
		name += " " + *a.MiddleName
	}
	if a.LastName != "" {
		name += " " + a.LastName
	}
	return name
}

// IsTerminalPaymentStatus reports whether a status permits no further
// transitions without creating a new invoice.
func IsTerminalPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusPaid, PaymentStatusExpired, PaymentStatusFailed:
		return true
	}
	return false
}
