package xerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 200},
		{"validation", Validation("amountWei", "must be positive"), 400},
		{"not found", NotFound("wallet", "0xabc"), 404},
		{"conflict", Conflict("FUNDED", "transaction is not pending"), 409},
		{"cooldown", &CooldownActiveError{AvailableAt: 10}, 409},
		{"unconfirmed", &UnconfirmedError{Op: "depositFor", TxHash: "0x1"}, 202},
		{"gateway", Gateway("depositFor", errors.New("nonce too low")), 500},
		{"wrapped conflict", fmt.Errorf("approve: %w", Conflict("REJECTED", "not pending")), 409},
		{"code error 404", NewErrCode(RecordNotFound), 404},
		{"db error", New(DbError, "boom"), 500},
		{"plain", errors.New("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestGateway_KeepsUnconfirmed(t *testing.T) {
	ue := &UnconfirmedError{Op: "executeWithdrawalFor", TxHash: "0xfeed"}
	err := Gateway("executeWithdrawalFor", ue)

	var got *UnconfirmedError
	assert.True(t, errors.As(err, &got))
	assert.False(t, IsGateway(err))
	assert.Nil(t, Gateway("x", nil))
}

func TestConflictError_Message(t *testing.T) {
	err := Conflict("FUNDED", "transaction %s is not pending", "tx-1")
	assert.Equal(t, "transaction tx-1 is not pending (current status FUNDED)", err.Error())
	assert.True(t, IsConflict(err))
}
