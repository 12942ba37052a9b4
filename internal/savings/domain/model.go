package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Withdrawal delay bounds, in seconds.
const (
	MinWithdrawalDelay     int64 = 3600
	MaxWithdrawalDelay     int64 = 31536000
	DefaultWithdrawalDelay int64 = 86400
	MaxSavingPercentBps          = 50
	BpsDenominator               = 10000
)

type SyncStatus string

const (
	SyncSynced  SyncStatus = "SYNCED"
	SyncPending SyncStatus = "PENDING_SYNC"
	SyncFailed  SyncStatus = "FAILED"
)

type User struct {
	ID                     string     `gorm:"primaryKey;size:36" json:"id"`
	Email                  string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name                   string     `gorm:"size:128" json:"name"`
	SavingPercentBps       int        `gorm:"not null" json:"savingPercentBps"`
	WithdrawalDelaySeconds int64      `gorm:"not null" json:"withdrawalDelaySeconds"`
	ConfigSyncStatus       SyncStatus `gorm:"size:16;not null" json:"configSyncStatus"`
	ConfigSyncedAt         *time.Time `json:"configSyncedAt,omitempty"`
	Wallets                []Wallet   `gorm:"foreignKey:UserID" json:"wallets,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.ConfigSyncStatus == "" {
		u.ConfigSyncStatus = SyncSynced
	}
	return nil
}

type Wallet struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	Address        string     `gorm:"uniqueIndex;size:42;not null" json:"address"`
	Label          string     `gorm:"size:128" json:"label"`
	IsActive       bool       `gorm:"not null;index" json:"isActive"`
	ChainID        int64      `json:"chainId"`
	UserID         string     `gorm:"size:36;not null;index" json:"userId"`
	User           *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	LastDetectedAt *time.Time `json:"lastDetectedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave keeps addresses lower-case on every struct write.
func (w *Wallet) BeforeSave(tx *gorm.DB) error {
	w.Address = strings.ToLower(strings.TrimSpace(w.Address))
	return nil
}
