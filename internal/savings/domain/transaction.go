package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TxStatus string

const (
	TxPending    TxStatus = "PENDING"
	TxAuthorized TxStatus = "AUTHORIZED"
	TxRejected   TxStatus = "REJECTED"
	TxFunded     TxStatus = "FUNDED"
)

// IncomingTransaction is one detected inbound transfer to a watched wallet.
// (TxHash, WalletID, TokenAddress) is the redelivery dedup key.
type IncomingTransaction struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	TxHash        string          `gorm:"size:66;not null;uniqueIndex:idx_incoming_natural,priority:1" json:"txHash"`
	WalletID      string          `gorm:"size:36;not null;uniqueIndex:idx_incoming_natural,priority:2;index" json:"walletId"`
	TokenAddress  string          `gorm:"size:42;not null;uniqueIndex:idx_incoming_natural,priority:3" json:"tokenAddress"`
	Wallet        *Wallet         `gorm:"foreignKey:WalletID" json:"wallet,omitempty"`
	FromAddress   string          `gorm:"size:42" json:"fromAddress"`
	ToAddress     string          `gorm:"size:42;index" json:"toAddress"`
	AmountRaw     decimal.Decimal `gorm:"type:numeric(65,0);not null" json:"amountRaw"`
	SaveAmountWei decimal.Decimal `gorm:"type:numeric(65,0);not null" json:"saveAmountWei"`
	Status        TxStatus        `gorm:"size:16;not null;index" json:"status"`
	BlockNumber   int64           `json:"blockNumber"`
	DetectedAt    time.Time       `gorm:"index" json:"detectedAt"`
	AuthorizedAt  *time.Time      `json:"authorizedAt,omitempty"`
	FundedAt      *time.Time      `json:"fundedAt,omitempty"`
	RejectedAt    *time.Time      `json:"rejectedAt,omitempty"`
	VaultTxHash   string          `gorm:"size:66" json:"vaultTxHash,omitempty"`
	Metadata      Metadata        `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (t *IncomingTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TxPending
	}
	return nil
}

// Metadata keys written by the pipeline.
const (
	MetaLogIndex         = "logIndex"
	MetaTransactionIndex = "transactionIndex"
	MetaRejectionReason  = "rejectionReason"
	MetaSubmittedTxHash  = "submittedTxHash"
	MetaCompletedAt      = "completedAt"
	MetaSubmittedAmount  = "submittedAmountWei"
	MetaRevertedTxHash   = "revertedTxHash"
	MetaSubmittedOp      = "submittedOp"
)
