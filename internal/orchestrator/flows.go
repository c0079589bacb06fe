package orchestrator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-playground/validator/v10"
	"github.com/rentchain/rental-client/internal/errors"
	"github.com/rentchain/rental-client/internal/lib"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
	"github.com/rentchain/rental-client/internal/resources/balance"
	"github.com/rentchain/rental-client/internal/resources/rental"
)

var validate = validator.New()

// CreateAgreementRequest holds the createAgreement arguments
type CreateAgreementRequest struct {
	PropertyID      uint64         `json:"propertyId" validate:"required"`
	Tenant          common.Address `json:"tenant" validate:"required"`
	MonthlyRent     *big.Int       `json:"monthlyRent" validate:"required"`
	SecurityDeposit *big.Int       `json:"securityDeposit" validate:"required"`
	DurationMonths  uint64         `json:"durationMonths" validate:"required,gt=0"`
}

func positiveAmount(op string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.InvalidRequest(op, "amount must be greater than zero")
	}
	return nil
}

func (o *Orchestrator) format(amount *big.Int) string {
	decimals := uint8(contracts.DefaultDecimals)
	if h, err := o.handles.Handle(contracts.Token, false); err == nil {
		decimals = h.Decimals
	}
	return lib.FormatUnits(amount, decimals, balance.DisplayPrecision)
}

func id256(id uint64) *big.Int {
	return new(big.Int).SetUint64(id)
}

// Deposit approves the vault when needed and deposits amount for the session account
func (o *Orchestrator) Deposit(ctx context.Context, amount *big.Int, opts ...Option) (*Result, error) {
	spender := o.handles.Address(contracts.Vault)

	return o.run(ctx, plan{
		name:  "deposit",
		title: "Vault deposit",
		prepare: func(ctx context.Context, account common.Address) ([]step, error) {
			if err := positiveAmount("deposit", amount); err != nil {
				return nil, err
			}
			steps, err := o.approveStep(ctx, account, spender, amount)
			if err != nil {
				return nil, err
			}
			return append(steps, step{
				name:          "deposit",
				contract:      contracts.Vault,
				method:        "deposit",
				args:          []interface{}{amount, account},
				confirmations: o.cfg.StrongConfirmations,
				precheck:      o.allowanceCheck(account, spender, amount, "vault.deposit"),
			}), nil
		},
		refresh: func(ctx context.Context, account common.Address, res *Result, _ []*types.Receipt) {
			if pos, err := o.positions.Refresh(ctx, account); err != nil {
				o.log.Warnf("vault refresh after deposit failed: %s", err)
			} else {
				res.Detail = pos
			}
			o.refreshPayment(ctx, account, spender)
		},
		success: func(res *Result) string {
			return fmt.Sprintf("Deposited %s into the vault", o.format(amount))
		},
	}, opts)
}

func (o *Orchestrator) Withdraw(ctx context.Context, amount *big.Int, opts ...Option) (*Result, error) {
	return o.run(ctx, plan{
		name:  "withdraw",
		title: "Vault withdrawal",
		prepare: func(ctx context.Context, account common.Address) ([]step, error) {
			if err := positiveAmount("withdraw", amount); err != nil {
				return nil, err
			}
			return []step{{
				name:          "withdrawal",
				contract:      contracts.Vault,
				method:        "withdraw",
				args:          []interface{}{account, amount},
				confirmations: o.cfg.StrongConfirmations,
			}}, nil
		},
		refresh: func(ctx context.Context, account common.Address, res *Result, _ []*types.Receipt) {
			if pos, err := o.positions.Refresh(ctx, account); err != nil {
				o.log.Warnf("vault refresh after withdrawal failed: %s", err)
			} else {
				res.Detail = pos
			}
			if _, err := o.balances.RefreshBalance(ctx, account); err != nil {
				o.log.Warnf("balance refresh after withdrawal failed: %s", err)
			}
		},
		success: func(res *Result) string {
			return fmt.Sprintf("Withdrew %s from the vault", o.format(amount))
		},
	}, opts)
}

func (o *Orchestrator) PaySecurityDeposit(ctx context.Context, agreementID uint64, opts ...Option) (*Result, error) {
	return o.payAgreement(ctx, agreementID, "security-deposit", "Security deposit", "paySecurityDeposit",
		func(a rental.Agreement) *big.Int { return a.SecurityDeposit }, opts)
}

func (o *Orchestrator) PayRent(ctx context.Context, agreementID uint64, opts ...Option) (*Result, error) {
	return o.payAgreement(ctx, agreementID, "rent", "Rent payment", "payRent",
		func(a rental.Agreement) *big.Int { return a.MonthlyRent }, opts)
}

// payAgreement is approve-then-act against the agreement contract, the amount is read from the
// agreement itself
func (o *Orchestrator) payAgreement(ctx context.Context, agreementID uint64, name, title, method string, amountOf func(rental.Agreement) *big.Int, opts []Option) (*Result, error) {
	spender := o.handles.Address(contracts.AgreementNFT)
	var amount *big.Int

	return o.run(ctx, plan{
		name:  name,
		title: title,
		prepare: func(ctx context.Context, account common.Address) ([]step, error) {
			a, err := o.records.Agreement(ctx, agreementID)
			if err != nil {
				return nil, err
			}
			if _, tenant := a.RoleOf(account); !tenant {
				return nil, errors.InvalidRequest(name, fmt.Sprintf("only the tenant of agreement %d can pay it", agreementID))
			}
			amount = amountOf(a)
			if err := positiveAmount(name, amount); err != nil {
				return nil, err
			}

			steps, err := o.approveStep(ctx, account, spender, amount)
			if err != nil {
				return nil, err
			}
			return append(steps, step{
				name:          "payment",
				contract:      contracts.AgreementNFT,
				method:        method,
				args:          []interface{}{id256(agreementID)},
				confirmations: o.cfg.Confirmations,
				precheck:      o.allowanceCheck(account, spender, amount, "agreement-nft."+method),
			}), nil
		},
		refresh: func(ctx context.Context, account common.Address, res *Result, _ []*types.Receipt) {
			o.refreshPayment(ctx, account, spender)
			if a, err := o.records.Agreement(ctx, agreementID); err != nil {
				o.log.Warnf("agreement %d refresh failed: %s", agreementID, err)
			} else {
				res.Detail = a
			}
		},
		success: func(res *Result) string {
			return fmt.Sprintf("Paid %s for agreement %d", o.format(amount), agreementID)
		},
	}, opts)
}

// SignAgreement signs with every role the session account holds that has not signed yet
func (o *Orchestrator) SignAgreement(ctx context.Context, agreementID uint64, opts ...Option) (*Result, error) {
	var signed rental.Agreement

	return o.run(ctx, plan{
		name:    "sign-agreement",
		title:   "Agreement signature",
		skipped: fmt.Sprintf("Agreement %d is already signed by this account", agreementID),
		prepare: func(ctx context.Context, account common.Address) ([]step, error) {
			a, err := o.records.Agreement(ctx, agreementID)
			if err != nil {
				return nil, err
			}
			landlord, tenant := a.RoleOf(account)
			if !landlord && !tenant {
				return nil, errors.InvalidRequest("sign-agreement", fmt.Sprintf("account is not a party of agreement %d", agreementID))
			}

			var steps []step
			if landlord && !a.LandlordSigned {
				steps = append(steps, step{
					name:          "landlord signature",
					contract:      contracts.AgreementNFT,
					method:        "signAsLandlord",
					args:          []interface{}{id256(agreementID)},
					confirmations: o.cfg.Confirmations,
				})
			}
			if tenant && !a.TenantSigned {
				steps = append(steps, step{
					name:          "tenant signature",
					contract:      contracts.AgreementNFT,
					method:        "signAsTenant",
					args:          []interface{}{id256(agreementID)},
					confirmations: o.cfg.Confirmations,
				})
			}
			return steps, nil
		},
		refresh: func(ctx context.Context, account common.Address, res *Result, _ []*types.Receipt) {
			a, err := o.records.Agreement(ctx, agreementID)
			if err != nil {
				o.log.Warnf("agreement %d refresh failed: %s", agreementID, err)
				return
			}
			signed = a
			res.Detail = a
		},
		success: func(res *Result) string {
			if signed.FullySigned() {
				return fmt.Sprintf("Agreement %d is fully signed", agreementID)
			}
			return fmt.Sprintf("Agreement %d signed, waiting for the other party", agreementID)
		},
	}, opts)
}

func (o *Orchestrator) CreateAgreement(ctx context.Context, req CreateAgreementRequest, opts ...Option) (*Result, error) {
	return o.run(ctx, plan{
		name:  "create-agreement",
		title: "Agreement creation",
		prepare: func(ctx context.Context, account common.Address) ([]step, error) {
			if err := validate.Struct(req); err != nil {
				return nil, errors.InvalidRequest("create-agreement", err.Error())
			}
			if err := positiveAmount("create-agreement", req.MonthlyRent); err != nil {
				return nil, err
			}
			if err := positiveAmount("create-agreement", req.SecurityDeposit); err != nil {
				return nil, err
			}
			return []step{{
				name:     "agreement creation",
				contract: contracts.AgreementFactory,
				method:   "createAgreement",
				args: []interface{}{
					id256(req.PropertyID),
					req.Tenant,
					req.MonthlyRent,
					req.SecurityDeposit,
					id256(req.DurationMonths),
				},
				confirmations: o.cfg.Confirmations,
			}}, nil
		},
		refresh: func(ctx context.Context, account common.Address, res *Result, receipts []*types.Receipt) {
			res.EntityID = o.createdID(receipts, contracts.AgreementFactory, "AgreementCreated")
			if res.EntityID == nil {
				return
			}
			if a, err := o.records.Agreement(ctx, *res.EntityID); err != nil {
				o.log.Warnf("agreement %d read failed: %s", *res.EntityID, err)
			} else {
				res.Detail = a
			}
		},
		success: func(res *Result) string {
			if res.EntityID != nil {
				return fmt.Sprintf("Agreement %d created for property %d", *res.EntityID, req.PropertyID)
			}
			return fmt.Sprintf("Agreement created for property %d", req.PropertyID)
		},
	}, opts)
}

func (o *Orchestrator) RegisterProperty(ctx context.Context, reg rental.PropertyRegistration, opts ...Option) (*Result, error) {
	return o.run(ctx, plan{
		name:  "register-property",
		title: "Property registration",
		prepare: func(ctx context.Context, account common.Address) ([]step, error) {
			if err := validate.Struct(reg); err != nil {
				return nil, errors.InvalidRequest("register-property", err.Error())
			}
			return []step{{
				name:          "registration",
				contract:      contracts.PropertyRegistry,
				method:        "registerProperty",
				args:          reg.Args(),
				confirmations: o.cfg.Confirmations,
			}}, nil
		},
		refresh: func(ctx context.Context, account common.Address, res *Result, receipts []*types.Receipt) {
			res.EntityID = o.createdID(receipts, contracts.PropertyRegistry, "PropertyRegistered")
			if res.EntityID == nil {
				return
			}
			if p, err := o.records.Property(ctx, *res.EntityID); err != nil {
				o.log.Warnf("property %d read failed: %s", *res.EntityID, err)
			} else {
				res.Detail = p
			}
		},
		success: func(res *Result) string {
			if res.EntityID != nil {
				return fmt.Sprintf("Property %q registered with id %d", reg.Name, *res.EntityID)
			}
			return fmt.Sprintf("Property %q registered", reg.Name)
		},
	}, opts)
}

// VerifyProperty requests verification and then approves it, as two separate transactions.
// A pending request only gets the approval.
func (o *Orchestrator) VerifyProperty(ctx context.Context, propertyID uint64, opts ...Option) (*Result, error) {
	var verified rental.Property

	return o.run(ctx, plan{
		name:    "verify-property",
		title:   "Property verification",
		skipped: fmt.Sprintf("Property %d is already verified", propertyID),
		onSkip: func(ctx context.Context, account common.Address, res *Result) {
			res.Detail = verified
		},
		prepare: func(ctx context.Context, account common.Address) ([]step, error) {
			p, err := o.records.Property(ctx, propertyID)
			if err != nil {
				return nil, err
			}
			request := step{
				name:          "verification request",
				contract:      contracts.PropertyRegistry,
				method:        "requestPropertyVerification",
				args:          []interface{}{id256(propertyID)},
				confirmations: o.cfg.Confirmations,
			}
			approve := step{
				name:          "verification approval",
				contract:      contracts.PropertyRegistry,
				method:        "approvePropertyVerification",
				args:          []interface{}{id256(propertyID)},
				confirmations: o.cfg.Confirmations,
			}
			switch p.VerificationStatus {
			case rental.Verified:
				verified = p
				return nil, nil
			case rental.VerificationPending:
				return []step{approve}, nil
			default:
				return []step{request, approve}, nil
			}
		},
		refresh: func(ctx context.Context, account common.Address, res *Result, _ []*types.Receipt) {
			p, err := o.records.Property(ctx, propertyID)
			if err != nil {
				o.log.Warnf("property %d refresh failed: %s", propertyID, err)
				return
			}
			verified = p
			res.Detail = p
		},
		success: func(res *Result) string {
			return fmt.Sprintf("Property %d verification is %s", propertyID, verified.VerificationStatus)
		},
	}, opts)
}

// MintPassport mints the tenant passport of the session account, at most once
func (o *Orchestrator) MintPassport(ctx context.Context, opts ...Option) (*Result, error) {
	return o.run(ctx, plan{
		name:    "mint-passport",
		title:   "Tenant passport",
		skipped: "This account already holds a tenant passport",
		onSkip: func(ctx context.Context, account common.Address, res *Result) {
			o.loadPassport(ctx, account, res)
		},
		prepare: func(ctx context.Context, account common.Address) ([]step, error) {
			has, err := o.records.HasPassport(ctx, account)
			if err != nil {
				return nil, err
			}
			if has {
				return nil, nil
			}
			return []step{{
				name:          "passport mint",
				contract:      contracts.Passport,
				method:        "mintForSelf",
				confirmations: o.cfg.Confirmations,
			}}, nil
		},
		refresh: func(ctx context.Context, account common.Address, res *Result, _ []*types.Receipt) {
			o.loadPassport(ctx, account, res)
		},
		success: func(res *Result) string {
			return "Tenant passport minted"
		},
	}, opts)
}

func (o *Orchestrator) loadPassport(ctx context.Context, account common.Address, res *Result) {
	rep, err := o.records.Passport(ctx, account)
	if err != nil {
		o.log.Warnf("passport read failed: %s", err)
		return
	}
	if rep != nil {
		res.Detail = rep
	}
}
