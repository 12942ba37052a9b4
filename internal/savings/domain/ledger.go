package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LedgerAction string

const (
	DepositPending    LedgerAction = "DEPOSIT_PENDING"
	DepositConfirmed  LedgerAction = "DEPOSIT_CONFIRMED"
	DepositFailed     LedgerAction = "DEPOSIT_FAILED"
	WithdrawRequested LedgerAction = "WITHDRAW_REQUESTED"
	WithdrawCancelled LedgerAction = "WITHDRAW_CANCELLED"
	WithdrawCompleted LedgerAction = "WITHDRAW_COMPLETED"
)

// SavingsLedger is the append/upsert audit trail. Deposit rows are unique per
// transaction; withdrawal rows have no transaction.
type SavingsLedger struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	UserID        string          `gorm:"size:36;not null;index" json:"userId"`
	WalletID      string          `gorm:"size:36;not null;index" json:"walletId"`
	TransactionID *string         `gorm:"size:36;uniqueIndex" json:"transactionId,omitempty"`
	Action        LedgerAction    `gorm:"size:32;not null" json:"action"`
	AmountWei     decimal.Decimal `gorm:"type:numeric(65,0);not null" json:"amountWei"`
	TxHash        string          `gorm:"size:66" json:"txHash,omitempty"`
	Notes         string          `gorm:"size:512" json:"notes,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (SavingsLedger) TableName() string { return "savings_ledger" }

func (l *SavingsLedger) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
