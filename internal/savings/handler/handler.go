// Package handler exposes the savings use cases over gin.
package handler

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/samiecode/babylon/pkg/common"
	"github.com/samiecode/babylon/pkg/xerr"
)

// Wei accepts a JSON number or a decimal/hex string.
type Wei struct {
	*big.Int
}

func (w *Wei) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		w.Int = nil
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return xerr.Validation("amountWei", "amountWei %q is not an integer", s)
	}
	w.Int = v
	return nil
}

func (w Wei) Value() *big.Int { return w.Int }

// fail writes err using the envelope. Unconfirmed submissions are accepted
// with their hash; cooldown refusals carry the pending diagnostics.
func fail(c *gin.Context, err error) {
	var ue *xerr.UnconfirmedError
	if errors.As(err, &ue) {
		common.JSON(c, http.StatusAccepted, gin.H{
			"submitted":       true,
			"transactionHash": ue.TxHash,
			"message":         err.Error(),
		})
		return
	}
	var cd *xerr.CooldownActiveError
	if errors.As(err, &cd) {
		common.FailWithData(c, http.StatusConflict, "Withdrawal cooldown still active", gin.H{
			"pending": gin.H{
				"amountWei":            cd.AmountWei,
				"availableAt":          cd.AvailableAt,
				"onChainPendingAmount": cd.OnChainPendingAmount,
				"onChainAvailableAt":   cd.OnChainAvailableAt,
			},
		})
		return
	}
	common.FailFromErr(c, err)
}

// bind decodes the JSON body; a malformed body is a validation error.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var ve *xerr.ValidationError
		if !errors.As(err, &ve) {
			err = xerr.Validation("", "invalid request body: %v", err)
		}
		fail(c, err)
		return false
	}
	return true
}
