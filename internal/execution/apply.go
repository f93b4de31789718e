package execution

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/common"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/crypto"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/kerrors"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/state"
	"github.com/Diigoo-Tech-Ind/ArthaChain-sub003/internal/txtypes"
)

// apply executes one transaction's state transition: nonce check, gas buy,
// type-specific effect, gas refund/charge, and receipt construction.
// Grounded on the teacher's StateTransition shape (blockchain/
// state_transition.go's buyGas/preCheck/TransitionDb/refundGas sequence).
func apply(tx *txtypes.Transaction, st *state.StateStore, ctx BlockContext) (*txtypes.Receipt, error) {
	sender, ok, err := st.GetAccount(tx.From)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, kerrors.New(kerrors.ExecFailed, kerrors.ReasonUnknownAccount)
	}
	if tx.AccountNonce != sender.Nonce {
		return nil, kerrors.New(kerrors.ExecFailed, kerrors.ReasonNonceTooLow)
	}

	gasLimitCost := gasCost(tx, tx.GasLimit)
	totalCost := new(uint256.Int).Add(gasLimitCost, toU256(tx.Amount))
	if sender.Balance.Cmp(totalCost) < 0 {
		return nil, kerrors.New(kerrors.ExecFailed, kerrors.ReasonInsufficientFunds)
	}

	gasUsed := baseGas(tx)
	if gasUsed > tx.GasLimit {
		return nil, kerrors.New(kerrors.ExecFailed, kerrors.ReasonOutOfGas)
	}

	var receipt *txtypes.Receipt
	switch tx.TxType {
	case txtypes.TxTypeTransfer:
		receipt, err = applyTransfer(tx, st, sender, gasUsed)
	case txtypes.TxTypeContractCreate:
		receipt, err = applyContractCreate(tx, st, sender, gasUsed)
	case txtypes.TxTypeCall:
		receipt, err = applyCall(tx, st, sender, gasUsed)
	case txtypes.TxTypeStake, txtypes.TxTypeUnstake, txtypes.TxTypeDelegate, txtypes.TxTypeClaimReward:
		receipt, err = applyStakingOp(tx, st, sender, gasUsed)
	case txtypes.TxTypeSystem:
		receipt, err = applySystem(tx, st, sender, gasUsed)
	default:
		receipt, err = applyGeneric(tx, st, sender, gasUsed)
	}
	return receipt, err
}

// chargeGasOnly debits gas_limit*gas_price and increments the nonce
// without applying the transaction's value transfer or side effects — used
// by executeOne for every non-fatal failure of apply, including a failed
// upfront balance check.
func chargeGasOnly(tx *txtypes.Transaction, st *state.StateStore) error {
	sender, ok, err := st.GetAccount(tx.From)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	cost := gasCost(tx, tx.GasLimit)
	if sender.Balance.Cmp(cost) >= 0 {
		sender.Balance = new(uint256.Int).Sub(sender.Balance, cost)
	} else {
		sender.Balance = uint256.NewInt(0)
	}
	sender.Nonce++
	return st.PutAccount(tx.From, sender)
}

func applyTransfer(tx *txtypes.Transaction, st *state.StateStore, sender *txtypes.Account, gasUsed uint64) (*txtypes.Receipt, error) {
	if tx.Recipient == nil {
		return nil, kerrors.New(kerrors.InputInvalid, "transfer_missing_recipient")
	}
	cost := new(uint256.Int).Add(gasCost(tx, gasUsed), toU256(tx.Amount))
	if sender.Balance.Cmp(cost) < 0 {
		return nil, kerrors.New(kerrors.ExecFailed, kerrors.ReasonInsufficientFunds)
	}

	recipient, ok, err := st.GetAccount(*tx.Recipient)
	if err != nil {
		return nil, err
	}
	if !ok {
		recipient = &txtypes.Account{Balance: uint256.NewInt(0)}
	}

	sender.Balance = new(uint256.Int).Sub(sender.Balance, cost)
	sender.Nonce++
	recipient.Balance = new(uint256.Int).Add(recipient.Balance, toU256(tx.Amount))

	if err := st.PutAccount(tx.From, sender); err != nil {
		return nil, err
	}
	if err := st.PutAccount(*tx.Recipient, recipient); err != nil {
		return nil, err
	}
	return &txtypes.Receipt{TxHash: tx.Hash(), Status: txtypes.ReceiptSuccess, GasUsed: gasUsed}, nil
}

// applyContractCreate deploys tx.Payload as the new account's code. Gas/host
// interface semantics beyond storing the code and charging gas are a
// non-goal (WASM contract execution is out of scope of this core).
func applyContractCreate(tx *txtypes.Transaction, st *state.StateStore, sender *txtypes.Account, gasUsed uint64) (*txtypes.Receipt, error) {
	cost := gasCost(tx, gasUsed)
	if sender.Balance.Cmp(cost) < 0 {
		return nil, kerrors.New(kerrors.ExecFailed, kerrors.ReasonInsufficientFunds)
	}
	sender.Balance = new(uint256.Int).Sub(sender.Balance, cost)
	sender.Nonce++
	if err := st.PutAccount(tx.From, sender); err != nil {
		return nil, err
	}

	contractAddr := deriveContractAddress(tx.From, tx.AccountNonce)
	if err := st.SetEvmCode(contractAddr, tx.Payload); err != nil {
		return nil, err
	}
	return &txtypes.Receipt{
		TxHash:          tx.Hash(),
		Status:          txtypes.ReceiptSuccess,
		GasUsed:         gasUsed,
		ContractAddress: &contractAddr,
	}, nil
}

// applyCall invokes deployed code at tx.Recipient. Only the gas/host
// interface boundary is modeled here — see applyContractCreate's note.
func applyCall(tx *txtypes.Transaction, st *state.StateStore, sender *txtypes.Account, gasUsed uint64) (*txtypes.Receipt, error) {
	if tx.Recipient == nil {
		return nil, kerrors.New(kerrors.InputInvalid, "call_missing_recipient")
	}
	code, err := st.GetEvmCode(*tx.Recipient)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, kerrors.New(kerrors.ExecFailed, kerrors.ReasonUnknownAccount)
	}

	cost := new(uint256.Int).Add(gasCost(tx, gasUsed), toU256(tx.Amount))
	if sender.Balance.Cmp(cost) < 0 {
		return nil, kerrors.New(kerrors.ExecFailed, kerrors.ReasonInsufficientFunds)
	}
	recipient, ok, err := st.GetAccount(*tx.Recipient)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, kerrors.New(kerrors.ExecFailed, kerrors.ReasonUnknownAccount)
	}

	sender.Balance = new(uint256.Int).Sub(sender.Balance, cost)
	sender.Nonce++
	recipient.Balance = new(uint256.Int).Add(recipient.Balance, toU256(tx.Amount))

	if err := st.PutAccount(tx.From, sender); err != nil {
		return nil, err
	}
	if err := st.PutAccount(*tx.Recipient, recipient); err != nil {
		return nil, err
	}
	return &txtypes.Receipt{TxHash: tx.Hash(), Status: txtypes.ReceiptSuccess, GasUsed: gasUsed}, nil
}

// applyStakingOp covers Stake/Unstake/Delegate/ClaimReward: balance-only
// bookkeeping moves against the sender's own account. Reward/validator set
// semantics live in the consensus layer this core hands blocks to.
func applyStakingOp(tx *txtypes.Transaction, st *state.StateStore, sender *txtypes.Account, gasUsed uint64) (*txtypes.Receipt, error) {
	cost := new(uint256.Int).Add(gasCost(tx, gasUsed), toU256(tx.Amount))
	if sender.Balance.Cmp(cost) < 0 {
		return nil, kerrors.New(kerrors.ExecFailed, kerrors.ReasonInsufficientFunds)
	}
	sender.Balance = new(uint256.Int).Sub(sender.Balance, cost)
	sender.Nonce++
	if err := st.PutAccount(tx.From, sender); err != nil {
		return nil, err
	}
	return &txtypes.Receipt{TxHash: tx.Hash(), Status: txtypes.ReceiptSuccess, GasUsed: gasUsed}, nil
}

// applySystem covers mint/burn and other protocol-internal transactions;
// only the nonce/gas bookkeeping is generic here, the effect is delegated
// to the caller via Payload (interpreted by the consensus/genesis layer).
func applySystem(tx *txtypes.Transaction, st *state.StateStore, sender *txtypes.Account, gasUsed uint64) (*txtypes.Receipt, error) {
	sender.Nonce++
	if err := st.PutAccount(tx.From, sender); err != nil {
		return nil, err
	}
	return &txtypes.Receipt{TxHash: tx.Hash(), Status: txtypes.ReceiptSuccess, GasUsed: gasUsed}, nil
}

// applyGeneric covers Batch and Custom(u8) types: gas/nonce bookkeeping only.
func applyGeneric(tx *txtypes.Transaction, st *state.StateStore, sender *txtypes.Account, gasUsed uint64) (*txtypes.Receipt, error) {
	cost := gasCost(tx, gasUsed)
	if sender.Balance.Cmp(cost) < 0 {
		return nil, kerrors.New(kerrors.ExecFailed, kerrors.ReasonInsufficientFunds)
	}
	sender.Balance = new(uint256.Int).Sub(sender.Balance, cost)
	sender.Nonce++
	if err := st.PutAccount(tx.From, sender); err != nil {
		return nil, err
	}
	return &txtypes.Receipt{TxHash: tx.Hash(), Status: txtypes.ReceiptSuccess, GasUsed: gasUsed}, nil
}

func toU256(b *big.Int) *uint256.Int {
	v, _ := uint256.FromBig(b)
	return v
}

func deriveContractAddress(from common.Address, nonce uint64) common.Address {
	var buf [28]byte
	copy(buf[:20], from.Bytes())
	putUint64(buf[20:], nonce)
	return common.BytesToAddress(crypto.Keccak256(buf[:]).Bytes()[12:])
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
