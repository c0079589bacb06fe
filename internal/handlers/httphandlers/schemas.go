package httphandlers

import (
	"github.com/rentchain/rental-client/internal/chain"
	"github.com/rentchain/rental-client/internal/errors"
	"github.com/rentchain/rental-client/internal/resources/balance"
	"github.com/rentchain/rental-client/internal/resources/rental"
)

type ErrorResponse struct {
	Error     string                 `json:"error"`
	Kind      errors.Kind            `json:"kind"`
	Retriable bool                   `json:"retriable"`
	Details   map[string]interface{} `json:"details,omitempty"`
	// Flow is set when the error ended an orchestrated flow
	Flow interface{} `json:"flow,omitempty"`
}

type ConfigResponse struct {
	Version string      `json:"version"`
	Config  interface{} `json:"config"`
}

type SessionResponse struct {
	Session chain.Session           `json:"session"`
	Network chain.NetworkDescriptor `json:"network"`
}

type NetworkResponse struct {
	OnExpectedNetwork bool   `json:"onExpectedNetwork"`
	ChainID           uint64 `json:"chainId"`
}

// AmountRequest carries a human readable token amount such as "125.5"
type AmountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type AllowanceCheckRequest struct {
	// Spender is a contract name such as "vault" or an address
	Spender string `json:"spender" binding:"required"`
	Amount  string `json:"amount"  binding:"required"`
}

type AllowanceCheckResponse struct {
	NeedsApproval bool                        `json:"needsApproval"`
	Allowance     *balance.AllowanceSnapshot `json:"allowance,omitempty"`
}

type BatchResponse[T any] struct {
	rental.Batch[T]
	Warning string `json:"warning,omitempty"`
}

type RegisterPropertyRequest struct {
	rental.PropertyRegistration
	MonthlyRent     string `json:"monthlyRent"     binding:"required"`
	SecurityDeposit string `json:"securityDeposit" binding:"required"`
}

type CreateAgreementRequest struct {
	PropertyID      uint64 `json:"propertyId"      binding:"required"`
	Tenant          string `json:"tenant"          binding:"required,eth_addr"`
	MonthlyRent     string `json:"monthlyRent"     binding:"required"`
	SecurityDeposit string `json:"securityDeposit" binding:"required"`
	DurationMonths  uint64 `json:"durationMonths"  binding:"required"`
}

type PassportResponse struct {
	Account     string                   `json:"account"`
	HasPassport bool                     `json:"hasPassport"`
	Passport    *rental.TenantReputation `json:"passport,omitempty"`
	Badges      []string                 `json:"badges"`
}

type FlowAccepted struct {
	FlowID string `json:"flowId"`
	Status string `json:"status"`
}
