package models

import "strings"

// Effect is the direction an operation moves an account balance.
type Effect string

const (
	EffectCredit Effect = "CREDIT"
	EffectDebit  Effect = "DEBIT"
)

// OperationType classifies every balance-affecting action.
type OperationType string

const (
	OpDeposit          OperationType = "DEPOSIT"
	OpTransferIn       OperationType = "TRANSFER_IN"
	OpInterest         OperationType = "INTEREST"
	OpReward           OperationType = "REWARD"
	OpLoanDisbursement OperationType = "LOAN_DISBURSEMENT"
	OpDividend         OperationType = "DIVIDEND"
	OpInitialBalance   OperationType = "INITIAL_BALANCE"
	OpSalary           OperationType = "SALARY"

	OpWithdrawal  OperationType = "WITHDRAWAL"
	OpTransferOut OperationType = "TRANSFER_OUT"
	OpFee         OperationType = "FEE"
	OpAdjustment  OperationType = "ADJUSTMENT"
	OpRefund      OperationType = "REFUND"
	OpPayment     OperationType = "PAYMENT"
	OpLoanPayment OperationType = "LOAN_PAYMENT"
	OpTax         OperationType = "TAX"
	OpOther       OperationType = "OTHER"
)

var operationEffects = map[OperationType]Effect{
	OpDeposit:          EffectCredit,
	OpTransferIn:       EffectCredit,
	OpInterest:         EffectCredit,
	OpReward:           EffectCredit,
	OpLoanDisbursement: EffectCredit,
	OpDividend:         EffectCredit,
	OpInitialBalance:   EffectCredit,
	OpSalary:           EffectCredit,
	OpWithdrawal:       EffectDebit,
	OpTransferOut:      EffectDebit,
	OpFee:              EffectDebit,
	OpAdjustment:       EffectDebit,
	OpRefund:           EffectDebit,
	OpPayment:          EffectDebit,
	OpLoanPayment:      EffectDebit,
	OpTax:              EffectDebit,
	OpOther:            EffectDebit,
}

// ParseOperationType converts textual input to a known operation type.
// Unknown strings are an error, never a silent default: a wrong sign on a
// balance mutation is worse than a rejected request.
func ParseOperationType(s string) (OperationType, error) {
	op := OperationType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := operationEffects[op]; !ok {
		return "", NewDomainError(KindUnknownOperationType, "unknown operation type %q", s)
	}
	return op, nil
}

// Effect returns whether the operation credits or debits the account.
func (op OperationType) Effect() Effect {
	return operationEffects[op]
}

// IsTransfer reports whether the operation is one leg of a transfer. Used by
// reconciliation, not by the balance math itself.
func (op OperationType) IsTransfer() bool {
	return op == OpTransferIn || op == OpTransferOut
}

// SignedAmount derives the signed balance delta for a positive amount in
// minor units: positive for credits, negative for debits.
func (op OperationType) SignedAmount(amount int64) int64 {
	if op.Effect() == EffectCredit {
		return amount
	}
	return -amount
}
