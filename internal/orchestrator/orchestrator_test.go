package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rentchain/rental-client/internal/chain"
	rerrors "github.com/rentchain/rental-client/internal/errors"
	"github.com/rentchain/rental-client/internal/lib"
	"github.com/rentchain/rental-client/internal/notify"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
	"github.com/rentchain/rental-client/internal/resources/balance"
	"github.com/rentchain/rental-client/internal/resources/rental"
	"github.com/rentchain/rental-client/internal/resources/vault"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testChainID = 84532

var testNetwork = chain.NetworkDescriptor{
	ChainID:     testChainID,
	DisplayName: "Base Sepolia",
	RPCURL:      "https://sepolia.base.org",
}

type agreementOut struct {
	AgreementId     *big.Int
	PropertyId      *big.Int
	Landlord        common.Address
	Tenant          common.Address
	MonthlyRent     *big.Int
	SecurityDeposit *big.Int
	DurationMonths  *big.Int
	Status          uint8
	LandlordSigned  bool
	TenantSigned    bool
	DepositPaid     *big.Int
	TotalPaid       *big.Int
	PaymentsMade    *big.Int
	PaymentsMissed  *big.Int
}

type propertyOut struct {
	Id                 *big.Int
	Landlord           common.Address
	Name               string
	Location           string
	PropertyType       string
	Bedrooms           *big.Int
	Bathrooms          *big.Int
	SquareMeters       *big.Int
	VerificationStatus uint8
	IsActive           bool
	MonthlyRent        *big.Int
	SecurityDeposit    *big.Int
}

type tenantInfoOut struct {
	ReputationScore           *big.Int
	PaymentsMade              *big.Int
	PaymentsMissed            *big.Int
	PropertiesRented          *big.Int
	PropertiesOwned           *big.Int
	ConsecutiveOnTimePayments *big.Int
	TotalMonthsRented         *big.Int
	ReferralCount             *big.Int
	DisputesCount             *big.Int
	OutstandingBalance        *big.Int
	TotalRentPaid             *big.Int
	LastActivityTime          *big.Int
	LastPaymentTime           *big.Int
	IsVerified                bool
}

func newTenantInfo(score int64) tenantInfoOut {
	zero := big.NewInt(0)
	return tenantInfoOut{
		ReputationScore:           big.NewInt(score),
		PaymentsMade:              zero,
		PaymentsMissed:            zero,
		PropertiesRented:          zero,
		PropertiesOwned:           zero,
		ConsecutiveOnTimePayments: zero,
		TotalMonthsRented:         zero,
		ReferralCount:             zero,
		DisputesCount:             zero,
		OutstandingBalance:        zero,
		TotalRentPaid:             zero,
		LastActivityTime:          zero,
		LastPaymentTime:           zero,
	}
}

type boundContract struct {
	name contracts.Name
	abi  *abi.ABI
}

// fakeChain is the contract state behind the wallet mock. Every read and accepted send is
// appended to log as "<contract>.<method>" or "send <contract>.<method>".
type fakeChain struct {
	mu sync.Mutex

	account   common.Address
	byAddress map[common.Address]boundContract

	allowance  map[common.Address]*big.Int
	balance    *big.Int
	deposited  *big.Int
	passport   bool
	agreements map[uint64]*agreementOut
	properties map[uint64]*propertyOut

	reject  map[string]bool
	revert  map[string]bool
	reasons map[string]string
	// afterSend runs with the lock held once a send was applied
	afterSend func(method string)

	log []string
}

func newFakeChain(account common.Address, reg *contracts.Registry) *fakeChain {
	c := &fakeChain{
		account:    account,
		byAddress:  make(map[common.Address]boundContract),
		allowance:  make(map[common.Address]*big.Int),
		balance:    big.NewInt(1_000_000),
		deposited:  big.NewInt(0),
		agreements: make(map[uint64]*agreementOut),
		properties: make(map[uint64]*propertyOut),
		reject:     make(map[string]bool),
		revert:     make(map[string]bool),
		reasons:    make(map[string]string),
	}
	for _, name := range contracts.AllNames {
		h, _ := reg.Handle(name, false)
		c.byAddress[h.Address] = boundContract{name: name, abi: h.ABI}
	}
	return c
}

func (c *fakeChain) decode(to common.Address, data []byte) (boundContract, *abi.Method, []interface{}, error) {
	bound, ok := c.byAddress[to]
	if !ok {
		return boundContract{}, nil, nil, fmt.Errorf("no contract at %s", to.Hex())
	}
	method, err := bound.abi.MethodById(data[:4])
	if err != nil {
		return boundContract{}, nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return boundContract{}, nil, nil, err
	}
	return bound, method, args, nil
}

func (c *fakeChain) allowanceOf(spender common.Address) *big.Int {
	if v, ok := c.allowance[spender]; ok {
		return v
	}
	return big.NewInt(0)
}

func (c *fakeChain) call(msg ethereum.CallMsg) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bound, method, args, err := c.decode(*msg.To, msg.Data)
	if err != nil {
		return nil, err
	}
	c.log = append(c.log, string(bound.name)+"."+method.Name)

	if !method.IsConstant() {
		// replay of a reverted transaction
		return nil, fmt.Errorf("execution reverted: %s", c.reasons[method.Name])
	}

	switch bound.name + contracts.Name("."+method.Name) {
	case "token.allowance":
		return method.Outputs.Pack(c.allowanceOf(args[1].(common.Address)))
	case "token.balanceOf":
		return method.Outputs.Pack(c.balance)
	case "vault.deposits", "vault.balanceOf", "vault.totalDeposits":
		return method.Outputs.Pack(c.deposited)
	case "vault.calculateYield":
		return method.Outputs.Pack(big.NewInt(0))
	case "passport.balanceOf":
		if c.passport {
			return method.Outputs.Pack(big.NewInt(1))
		}
		return method.Outputs.Pack(big.NewInt(0))
	case "passport.getTenantInfo":
		if !c.passport {
			return nil, fmt.Errorf("execution reverted: no passport")
		}
		return method.Outputs.Pack(newTenantInfo(500))
	case "passport.getAllBadges":
		return method.Outputs.Pack([14]bool{true})
	case "agreement-nft.getAgreement":
		a, ok := c.agreements[args[0].(*big.Int).Uint64()]
		if !ok {
			return nil, fmt.Errorf("execution reverted: agreement does not exist")
		}
		return method.Outputs.Pack(*a)
	case "registry.getProperty":
		p, ok := c.properties[args[0].(*big.Int).Uint64()]
		if !ok {
			return nil, fmt.Errorf("execution reverted: property does not exist")
		}
		return method.Outputs.Pack(*p)
	}
	return nil, fmt.Errorf("%s.%s not supported", bound.name, method.Name)
}

func (c *fakeChain) send(to common.Address, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bound, method, args, err := c.decode(to, data)
	if err != nil {
		return err
	}
	if c.reject[method.Name] {
		return &chain.RPCError{Code: chain.CodeUserRejected, Message: "User denied transaction signature."}
	}
	c.log = append(c.log, "send "+string(bound.name)+"."+method.Name)
	if c.revert[method.Name] {
		return nil
	}

	switch method.Name {
	case "approve":
		c.allowance[args[0].(common.Address)] = args[1].(*big.Int)
	case "deposit":
		amount := args[0].(*big.Int)
		spender := to
		c.allowance[spender] = new(big.Int).Sub(c.allowanceOf(spender), amount)
		c.balance = new(big.Int).Sub(c.balance, amount)
		c.deposited = new(big.Int).Add(c.deposited, amount)
	case "withdraw":
		amount := args[1].(*big.Int)
		c.balance = new(big.Int).Add(c.balance, amount)
		c.deposited = new(big.Int).Sub(c.deposited, amount)
	case "mintForSelf":
		c.passport = true
	case "signAsLandlord":
		c.agreements[args[0].(*big.Int).Uint64()].LandlordSigned = true
	case "signAsTenant":
		c.agreements[args[0].(*big.Int).Uint64()].TenantSigned = true
	case "payRent":
		a := c.agreements[args[0].(*big.Int).Uint64()]
		a.TotalPaid = new(big.Int).Add(a.TotalPaid, a.MonthlyRent)
		c.balance = new(big.Int).Sub(c.balance, a.MonthlyRent)
		c.allowance[to] = new(big.Int).Sub(c.allowanceOf(to), a.MonthlyRent)
	case "requestPropertyVerification":
		c.properties[args[0].(*big.Int).Uint64()].VerificationStatus = uint8(rental.VerificationPending)
	case "approvePropertyVerification":
		c.properties[args[0].(*big.Int).Uint64()].VerificationStatus = uint8(rental.Verified)
	}
	if c.afterSend != nil {
		c.afterSend(method.Name)
	}
	return nil
}

func (c *fakeChain) reverts(to common.Address, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, method, _, err := c.decode(to, data)
	return err == nil && c.revert[method.Name]
}

func (c *fakeChain) entries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

func (c *fakeChain) reads(entry string) int {
	n := 0
	for _, e := range c.entries() {
		if e == entry {
			n++
		}
	}
	return n
}

func (c *fakeChain) sends() []string {
	var out []string
	for _, e := range c.entries() {
		if strings.HasPrefix(e, "send ") {
			out = append(out, strings.TrimPrefix(e, "send "))
		}
	}
	return out
}

type testEnv struct {
	account common.Address
	wallet  *chain.WalletMock
	chain   *fakeChain
	reg     *contracts.Registry
	hub     *notify.Hub
	orch    *Orchestrator
}

func newTestEnv(t *testing.T, walletChainID uint64) *testEnv {
	t.Helper()
	log := lib.NewTestLogger()
	account := lib.GetRandomAddr()

	addrs := make(map[contracts.Name]common.Address)
	for _, name := range contracts.AllNames {
		addrs[name] = lib.GetRandomAddr()
	}
	reg, err := contracts.NewRegistry(addrs, nil)
	require.NoError(t, err)
	session := chain.NewSessionStore()
	reg.SetSigner(session)

	fc := newFakeChain(account, reg)
	wallet := chain.NewWalletMock(account, walletChainID)
	wallet.CallFunc = fc.call
	wallet.SendFunc = fc.send
	wallet.RevertFunc = fc.reverts

	hub := notify.NewHub(20, log)
	gw := chain.NewGateway(testNetwork, wallet, session, hub, chain.GatewayConfig{}, log)
	_, err = gw.Connect(context.Background())
	require.NoError(t, err)

	tracker := balance.NewTracker(gw, reg, "USDC", time.Hour, log)
	reconciler := vault.NewReconciler(gw, reg, vault.Config{Interval: time.Hour, APYPercent: decimal.NewFromInt(5), DaysAssumed: 30}, log)
	fetcher := rental.NewFetcher(gw, reg, nil, rental.NewStatusMonitor(log), 2, log)

	return &testEnv{
		account: account,
		wallet:  wallet,
		chain:   fc,
		reg:     reg,
		hub:     hub,
		orch:    NewOrchestrator(gw, reg, tracker, reconciler, fetcher, hub, Config{}, log),
	}
}

// sentCalls decodes the transactions received by the wallet as "<method>(<args>)"
func (e *testEnv) sentCalls(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, tx := range e.wallet.Sent() {
		_, method, args, err := e.chain.decode(tx.To, tx.Data)
		require.NoError(t, err)
		parts := make([]string, len(args))
		for i, a := range args {
			switch v := a.(type) {
			case common.Address:
				parts[i] = v.Hex()
			default:
				parts[i] = fmt.Sprint(v)
			}
		}
		out = append(out, method.Name+"("+strings.Join(parts, ", ")+")")
	}
	return out
}

func indexOf(entries []string, entry string) int {
	for i, e := range entries {
		if e == entry {
			return i
		}
	}
	return -1
}

func TestDepositWithZeroAllowance(t *testing.T) {
	env := newTestEnv(t, testChainID)
	vaultAddr := env.reg.Address(contracts.Vault)

	var states []State
	res, err := env.orch.Deposit(context.Background(), big.NewInt(100), WithObserver(func(s Status) {
		states = append(states, s.State)
	}))
	require.NoError(t, err)

	require.Equal(t, []string{
		fmt.Sprintf("approve(%s, 100)", vaultAddr.Hex()),
		fmt.Sprintf("deposit(100, %s)", env.account.Hex()),
	}, env.sentCalls(t))
	require.Equal(t, []string{"approval", "deposit"}, res.Steps)
	require.Len(t, res.TxHashes, 2)

	require.Equal(t, []State{
		StateIdle, StateNetworkChecked,
		StateSubmitted, StateConfirmed,
		StateSubmitted, StateConfirmed,
		StateDone,
	}, states)

	// targeted refresh happens after the last confirmation
	log := env.chain.entries()
	depositAt := indexOf(log, "send vault.deposit")
	require.Greater(t, depositAt, 0)
	after := log[depositAt+1:]
	require.Contains(t, after, "vault.deposits")
	require.Contains(t, after, "token.balanceOf")
	require.Contains(t, after, "token.allowance")
	require.NotContains(t, log[:depositAt], "vault.deposits")

	pos, ok := res.Detail.(vault.Position)
	require.True(t, ok)
	require.Equal(t, big.NewInt(100), pos.Deposited.Value)

	status, ok := env.orch.FlowStatus(res.FlowID)
	require.True(t, ok)
	require.Equal(t, StateDone, status.State)

	last := env.hub.Recent(1)[0]
	require.Equal(t, notify.LevelSuccess, last.Level)
	require.Equal(t, res.FlowID, last.FlowID)
	require.Contains(t, last.Message, "0.00")
}

func TestDepositSkipsApprovalWhenAllowanceSuffices(t *testing.T) {
	env := newTestEnv(t, testChainID)
	env.chain.allowance[env.reg.Address(contracts.Vault)] = big.NewInt(1_000)

	res, err := env.orch.Deposit(context.Background(), big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, []string{"vault.deposit"}, env.chain.sends())
	require.Equal(t, []string{"deposit"}, res.Steps)
}

func TestDepositNeverSentAfterFailedApproval(t *testing.T) {
	t.Run("reverted", func(t *testing.T) {
		env := newTestEnv(t, testChainID)
		env.chain.revert["approve"] = true
		env.chain.reasons["approve"] = "ERC20: approve to the zero address"

		res, err := env.orch.Deposit(context.Background(), big.NewInt(100))
		require.ErrorIs(t, err, rerrors.ErrContractCallReverted)
		require.Equal(t, []string{"token.approve"}, env.chain.sends())
		require.Empty(t, res.Steps)
		require.True(t, strings.HasPrefix(err.Error(), "approval failed: "))
	})

	t.Run("rejected", func(t *testing.T) {
		env := newTestEnv(t, testChainID)
		env.chain.reject["approve"] = true

		_, err := env.orch.Deposit(context.Background(), big.NewInt(100))
		require.ErrorIs(t, err, rerrors.ErrUserRejected)
		require.Empty(t, env.chain.sends())
		require.Empty(t, env.wallet.Sent())
	})
}

func TestFailureMessageKeepsProgress(t *testing.T) {
	env := newTestEnv(t, testChainID)
	env.chain.revert["deposit"] = true
	env.chain.reasons["deposit"] = "vault paused"

	res, err := env.orch.Deposit(context.Background(), big.NewInt(100))
	require.ErrorIs(t, err, rerrors.ErrContractCallReverted)
	require.Equal(t, "approval succeeded, deposit failed: Transaction rejected by the contract: vault paused", err.Error())
	require.Equal(t, []string{"approval"}, res.Steps)

	var ferr *FlowError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, "deposit", ferr.FailedStep)

	last := env.hub.Recent(1)[0]
	require.Equal(t, notify.LevelError, last.Level)
	require.Equal(t, err.Error(), last.Message)

	status, _ := env.orch.FlowStatus(res.FlowID)
	require.Equal(t, StateFailed, status.State)
}

func TestAllowanceDropBeforeDepositFails(t *testing.T) {
	env := newTestEnv(t, testChainID)
	vaultAddr := env.reg.Address(contracts.Vault)
	env.chain.afterSend = func(method string) {
		if method == "approve" {
			env.chain.allowance[vaultAddr] = big.NewInt(50)
		}
	}

	_, err := env.orch.Deposit(context.Background(), big.NewInt(100))
	require.ErrorIs(t, err, rerrors.ErrContractCallReverted)
	require.Contains(t, err.Error(), "insufficient allowance")
	require.Equal(t, []string{"token.approve"}, env.chain.sends(), "no silent re-approval and no deposit")
}

func TestWrongNetworkAbortsWithoutContractCalls(t *testing.T) {
	env := newTestEnv(t, 1)
	env.wallet.AddErr = &chain.RPCError{Code: chain.CodeUserRejected, Message: "User rejected the request."}

	res, err := env.orch.Deposit(context.Background(), big.NewInt(100))
	require.ErrorIs(t, err, rerrors.ErrWrongNetwork)
	require.Empty(t, env.chain.entries())
	require.Empty(t, env.wallet.Sent())
	require.Empty(t, res.TxHashes)

	requests := env.wallet.Requests()
	require.Contains(t, requests, "switchChain")
	require.Contains(t, requests, "addChain")
	require.NotContains(t, requests, "signAndSend")
}

func TestWithdrawWaitsForStrongConfirmations(t *testing.T) {
	env := newTestEnv(t, testChainID)
	env.chain.deposited = big.NewInt(500)

	res, err := env.orch.Withdraw(context.Background(), big.NewInt(200))
	require.NoError(t, err)
	require.Equal(t, []string{fmt.Sprintf("withdraw(%s, 200)", env.account.Hex())}, env.sentCalls(t))
	require.Equal(t, big.NewInt(300), res.Detail.(vault.Position).Deposited.Value)
}

func TestRejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t, testChainID)

	_, err := env.orch.Deposit(context.Background(), big.NewInt(0))
	require.ErrorIs(t, err, rerrors.ErrInvalidRequest)
	require.Empty(t, env.wallet.Sent())
}

func TestCreateAgreementRejectsNegativeAmounts(t *testing.T) {
	env := newTestEnv(t, testChainID)
	req := CreateAgreementRequest{
		PropertyID:      1,
		Tenant:          lib.GetRandomAddr(),
		MonthlyRent:     big.NewInt(-1),
		SecurityDeposit: big.NewInt(3_000),
		DurationMonths:  12,
	}

	_, err := env.orch.CreateAgreement(context.Background(), req)
	require.ErrorIs(t, err, rerrors.ErrInvalidRequest)

	req.MonthlyRent = big.NewInt(1_500)
	req.SecurityDeposit = big.NewInt(-3_000)
	_, err = env.orch.CreateAgreement(context.Background(), req)
	require.ErrorIs(t, err, rerrors.ErrInvalidRequest)
	require.Empty(t, env.wallet.Sent())
}

func TestMintPassportOnlyOnce(t *testing.T) {
	env := newTestEnv(t, testChainID)

	res, err := env.orch.MintPassport(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"passport.mintForSelf"}, env.chain.sends())
	require.Equal(t, "Tenant passport minted", res.Message)
	require.Equal(t, 1, env.chain.reads("passport.getTenantInfo"))
	require.Equal(t, 1, env.chain.reads("passport.getAllBadges"))
	require.Greater(t, indexOf(env.chain.entries(), "passport.getTenantInfo"), indexOf(env.chain.entries(), "send passport.mintForSelf"))
	rep, ok := res.Detail.(*rental.TenantReputation)
	require.True(t, ok)
	require.True(t, rep.Badges[0])

	res, err = env.orch.MintPassport(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"passport.mintForSelf"}, env.chain.sends(), "second mint must not be sent")
	require.Empty(t, res.Steps)
	require.Equal(t, notify.LevelInfo, env.hub.Recent(1)[0].Level)
	require.IsType(t, &rental.TenantReputation{}, res.Detail)
}

func TestMintPassportReturnsExistingRecord(t *testing.T) {
	env := newTestEnv(t, testChainID)
	env.chain.passport = true

	res, err := env.orch.MintPassport(context.Background())
	require.NoError(t, err)
	require.Empty(t, env.chain.sends())
	require.Empty(t, res.Steps)
	require.Equal(t, "This account already holds a tenant passport", res.Message)
	require.Equal(t, 1, env.chain.reads("passport.getTenantInfo"))
	require.Equal(t, 1, env.chain.reads("passport.getAllBadges"))
	require.NotNil(t, res.Detail)
	require.Equal(t, env.account, res.Detail.(*rental.TenantReputation).Owner)
}

func newAgreement(id uint64, landlord, tenant common.Address) *agreementOut {
	return &agreementOut{
		AgreementId:     new(big.Int).SetUint64(id),
		PropertyId:      big.NewInt(1),
		Landlord:        landlord,
		Tenant:          tenant,
		MonthlyRent:     big.NewInt(1_500),
		SecurityDeposit: big.NewInt(3_000),
		DurationMonths:  big.NewInt(12),
		DepositPaid:     big.NewInt(0),
		TotalPaid:       big.NewInt(0),
		PaymentsMade:    big.NewInt(0),
		PaymentsMissed:  big.NewInt(0),
	}
}

func TestSignSelfAgreementSignsBothRoles(t *testing.T) {
	env := newTestEnv(t, testChainID)
	env.chain.agreements[7] = newAgreement(7, env.account, env.account)

	res, err := env.orch.SignAgreement(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []string{"signAsLandlord(7)", "signAsTenant(7)"}, env.sentCalls(t))
	require.Equal(t, "Agreement 7 is fully signed", res.Message)
	require.True(t, res.Detail.(rental.Agreement).FullySigned())
}

func TestSignAgreementRequiresParty(t *testing.T) {
	env := newTestEnv(t, testChainID)
	env.chain.agreements[7] = newAgreement(7, lib.GetRandomAddr(), lib.GetRandomAddr())

	_, err := env.orch.SignAgreement(context.Background(), 7)
	require.ErrorIs(t, err, rerrors.ErrInvalidRequest)
	require.Empty(t, env.wallet.Sent())
}

func TestPayRentApprovesAgreementContract(t *testing.T) {
	env := newTestEnv(t, testChainID)
	env.chain.agreements[3] = newAgreement(3, lib.GetRandomAddr(), env.account)
	nft := env.reg.Address(contracts.AgreementNFT)

	res, err := env.orch.PayRent(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, []string{
		fmt.Sprintf("approve(%s, 1500)", nft.Hex()),
		"payRent(3)",
	}, env.sentCalls(t))
	require.Equal(t, big.NewInt(1_500), res.Detail.(rental.Agreement).TotalPaid)
}

func TestVerifyPropertyRunsRequestThenApproval(t *testing.T) {
	env := newTestEnv(t, testChainID)
	env.chain.properties[4] = &propertyOut{
		Id:              big.NewInt(4),
		Landlord:        env.account,
		Name:            "Loft",
		Bedrooms:        big.NewInt(1),
		Bathrooms:       big.NewInt(1),
		SquareMeters:    big.NewInt(40),
		IsActive:        true,
		MonthlyRent:     big.NewInt(900),
		SecurityDeposit: big.NewInt(1_800),
	}

	res, err := env.orch.VerifyProperty(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, []string{"requestPropertyVerification(4)", "approvePropertyVerification(4)"}, env.sentCalls(t))
	require.Equal(t, rental.Verified, res.Detail.(rental.Property).VerificationStatus)

	res, err = env.orch.VerifyProperty(context.Background(), 4)
	require.NoError(t, err)
	require.Empty(t, res.Steps)
	require.Len(t, env.wallet.Sent(), 2)
	require.Equal(t, rental.Verified, res.Detail.(rental.Property).VerificationStatus)
}

func TestCreateAgreementReportsCreatedID(t *testing.T) {
	env := newTestEnv(t, testChainID)
	tenant := lib.GetRandomAddr()
	env.chain.agreements[9] = newAgreement(9, env.account, tenant)

	factory := env.reg.Address(contracts.AgreementFactory)
	created := contracts.AgreementFactoryABI.Events["AgreementCreated"].ID
	env.wallet.LogsFunc = func(to common.Address, data []byte) []*types.Log {
		return []*types.Log{{
			Address: factory,
			Topics: []common.Hash{
				created,
				common.BigToHash(big.NewInt(9)),
				common.BytesToHash(env.account.Bytes()),
				common.BytesToHash(tenant.Bytes()),
			},
		}}
	}

	res, err := env.orch.CreateAgreement(context.Background(), CreateAgreementRequest{
		PropertyID:      1,
		Tenant:          tenant,
		MonthlyRent:     big.NewInt(1_500),
		SecurityDeposit: big.NewInt(3_000),
		DurationMonths:  12,
	})
	require.NoError(t, err)
	require.NotNil(t, res.EntityID)
	require.Equal(t, uint64(9), *res.EntityID)
	require.Equal(t, tenant, res.Detail.(rental.Agreement).Tenant)
	require.Equal(t, []string{"agreement-factory.createAgreement"}, env.chain.sends())
}

func TestConfirmationWaitSurvivesCallerCancellation(t *testing.T) {
	env := newTestEnv(t, testChainID)
	env.chain.allowance[env.reg.Address(contracts.Vault)] = big.NewInt(1_000)
	env.wallet.WaitGate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	submitted := make(chan struct{})
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		res, err := env.orch.Deposit(ctx, big.NewInt(100), WithFlowID("flow-1"), WithObserver(func(s Status) {
			if s.State == StateSubmitted {
				close(submitted)
			}
		}))
		done <- outcome{res, err}
	}()

	<-submitted
	cancel()
	close(env.wallet.WaitGate)

	select {
	case out := <-done:
		require.NoError(t, out.err)
		require.Equal(t, "flow-1", out.res.FlowID)
	case <-time.After(5 * time.Second):
		t.Fatal("flow did not finish")
	}

	status, ok := env.orch.FlowStatus("flow-1")
	require.True(t, ok)
	require.Equal(t, StateDone, status.State)
	require.Equal(t, "flow-1", env.hub.Recent(1)[0].FlowID)
}

func TestFlowLogEvictsOldest(t *testing.T) {
	l := newFlowLog(2)
	l.record(Status{FlowID: "a", State: StateIdle})
	l.record(Status{FlowID: "b", State: StateIdle})
	l.record(Status{FlowID: "a", State: StateDone})
	l.record(Status{FlowID: "c", State: StateIdle})

	_, ok := l.get("a")
	require.False(t, ok)
	list := l.list()
	require.Len(t, list, 2)
	require.Equal(t, "c", list[0].FlowID)
	require.Equal(t, "b", list[1].FlowID)
}
