package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "PENDING"
	WithdrawalReady     WithdrawalStatus = "READY"
	WithdrawalCompleted WithdrawalStatus = "COMPLETED"
	WithdrawalCancelled WithdrawalStatus = "CANCELLED"
)

// ActiveWithdrawalStatuses are the statuses that block a new request.
var ActiveWithdrawalStatuses = []WithdrawalStatus{WithdrawalPending, WithdrawalReady}

type WithdrawalRequest struct {
	ID            string           `gorm:"primaryKey;size:36" json:"id"`
	UserID        string           `gorm:"size:36;not null;index" json:"userId"`
	WalletID      string           `gorm:"size:36;not null;index:idx_withdrawal_wallet_status,priority:1" json:"walletId"`
	AmountWei     decimal.Decimal  `gorm:"type:numeric(65,0);not null" json:"amountWei"`
	Status        WithdrawalStatus `gorm:"size:16;not null;index:idx_withdrawal_wallet_status,priority:2" json:"status"`
	AvailableAt   time.Time        `json:"availableAt"`
	RequestTxHash string           `gorm:"size:66" json:"requestTxHash,omitempty"`
	ExecuteTxHash string           `gorm:"size:66" json:"executeTxHash,omitempty"`
	CancelledAt   *time.Time       `json:"cancelledAt,omitempty"`
	CompletedAt   *time.Time       `json:"completedAt,omitempty"`
	Metadata      Metadata         `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt     time.Time        `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

func (r *WithdrawalRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = WithdrawalPending
	}
	return nil
}

// DeriveStatus computes the visible status. READY is never stored: a PENDING
// request whose cooldown has elapsed reads as READY.
func DeriveStatus(r *WithdrawalRequest, now time.Time) WithdrawalStatus {
	if r.Status == WithdrawalPending && !now.Before(r.AvailableAt) {
		return WithdrawalReady
	}
	return r.Status
}

// IsActive reports whether the request still occupies the wallet's single slot.
func (r *WithdrawalRequest) IsActive() bool {
	return r.Status == WithdrawalPending || r.Status == WithdrawalReady
}

// InFlight returns the vault call broadcast for this request that has not
// been confirmed yet, if any.
func (r *WithdrawalRequest) InFlight() (op, hash string) {
	hash = r.Metadata.String(MetaSubmittedTxHash)
	if hash == "" {
		return "", ""
	}
	return r.Metadata.String(MetaSubmittedOp), hash
}
