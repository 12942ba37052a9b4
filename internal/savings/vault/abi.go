package vault

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	MethodDepositFor           = "depositFor"
	MethodConfigureFor         = "configureFor"
	MethodRequestWithdrawalFor = "requestWithdrawalFor"
	MethodCancelWithdrawalFor  = "cancelWithdrawalFor"
	MethodExecuteWithdrawalFor = "executeWithdrawalFor"
	MethodGetAccount           = "getAccount"
)

// SavingsVaultABI is the relayer-facing subset of the savings vault.
const SavingsVaultABI = `[
  {"type":"function","name":"depositFor","stateMutability":"payable",
   "inputs":[{"name":"saver","type":"address"}],"outputs":[]},
  {"type":"function","name":"configureFor","stateMutability":"nonpayable",
   "inputs":[{"name":"saver","type":"address"},{"name":"rateBps","type":"uint16"},{"name":"withdrawalDelay","type":"uint64"}],"outputs":[]},
  {"type":"function","name":"requestWithdrawalFor","stateMutability":"nonpayable",
   "inputs":[{"name":"saver","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"cancelWithdrawalFor","stateMutability":"nonpayable",
   "inputs":[{"name":"saver","type":"address"}],"outputs":[]},
  {"type":"function","name":"executeWithdrawalFor","stateMutability":"nonpayable",
   "inputs":[{"name":"saver","type":"address"}],"outputs":[]},
  {"type":"function","name":"getAccount","stateMutability":"view",
   "inputs":[{"name":"saver","type":"address"}],
   "outputs":[
     {"name":"rateBps","type":"uint16"},
     {"name":"withdrawalDelay","type":"uint64"},
     {"name":"balance","type":"uint256"},
     {"name":"totalDeposited","type":"uint256"},
     {"name":"totalWithdrawn","type":"uint256"},
     {"name":"pendingAmount","type":"uint256"},
     {"name":"pendingAvailableAt","type":"uint64"}
   ]}
]`

var vaultABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(SavingsVaultABI))
	if err != nil {
		panic("vault: bad abi: " + err.Error())
	}
	return parsed
}

// ABI returns the parsed vault ABI.
func ABI() abi.ABI { return vaultABI }
