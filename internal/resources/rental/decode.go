package rental

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// propertyTuple mirrors the getProperty output tuple, field order matters
type propertyTuple struct {
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

// agreementTuple mirrors the getAgreement output tuple
type agreementTuple struct {
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

// tenantInfoTuple mirrors the getTenantInfo output tuple
type tenantInfoTuple struct {
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

// decodeTuple converts the single unpacked tuple of a call into T
func decodeTuple[T any](out []interface{}) (res T, err error) {
	if len(out) != 1 {
		return res, fmt.Errorf("expected 1 value, got %d", len(out))
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed tuple %T: %v", out[0], r)
		}
	}()
	return *abi.ConvertType(out[0], new(T)).(*T), nil
}

// uintDecoder accumulates the first conversion error so a record decodes in one pass
type uintDecoder struct {
	err error
}

func (d *uintDecoder) u64(field string, v *big.Int) uint64 {
	if d.err != nil {
		return 0
	}
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		d.err = fmt.Errorf("field %s: %v is not a uint64", field, v)
		return 0
	}
	return v.Uint64()
}

func (d *uintDecoder) amount(field string, v *big.Int) *big.Int {
	if d.err != nil {
		return nil
	}
	if v == nil {
		d.err = fmt.Errorf("field %s is missing", field)
		return nil
	}
	return new(big.Int).Set(v)
}

func DecodeProperty(out []interface{}) (Property, error) {
	t, err := decodeTuple[propertyTuple](out)
	if err != nil {
		return Property{}, err
	}
	var d uintDecoder
	p := Property{
		ID:                 d.u64("id", t.Id),
		Landlord:           t.Landlord,
		Name:               t.Name,
		Location:           t.Location,
		PropertyType:       t.PropertyType,
		Bedrooms:           d.u64("bedrooms", t.Bedrooms),
		Bathrooms:          d.u64("bathrooms", t.Bathrooms),
		SquareMeters:       d.u64("squareMeters", t.SquareMeters),
		VerificationStatus: VerificationStatus(t.VerificationStatus),
		IsActive:           t.IsActive,
		MonthlyRent:        d.amount("monthlyRent", t.MonthlyRent),
		SecurityDeposit:    d.amount("securityDeposit", t.SecurityDeposit),
	}
	if d.err != nil {
		return Property{}, d.err
	}
	if !p.VerificationStatus.Valid() {
		return Property{}, fmt.Errorf("unknown verification status %d", t.VerificationStatus)
	}
	return p, nil
}

func DecodeAgreement(out []interface{}) (Agreement, error) {
	t, err := decodeTuple[agreementTuple](out)
	if err != nil {
		return Agreement{}, err
	}
	var d uintDecoder
	a := Agreement{
		ID:              d.u64("agreementId", t.AgreementId),
		PropertyID:      d.u64("propertyId", t.PropertyId),
		Landlord:        t.Landlord,
		Tenant:          t.Tenant,
		MonthlyRent:     d.amount("monthlyRent", t.MonthlyRent),
		SecurityDeposit: d.amount("securityDeposit", t.SecurityDeposit),
		DurationMonths:  d.u64("durationMonths", t.DurationMonths),
		Status:          AgreementStatus(t.Status),
		LandlordSigned:  t.LandlordSigned,
		TenantSigned:    t.TenantSigned,
		DepositPaid:     d.amount("depositPaid", t.DepositPaid),
		TotalPaid:       d.amount("totalPaid", t.TotalPaid),
		PaymentsMade:    d.u64("paymentsMade", t.PaymentsMade),
		PaymentsMissed:  d.u64("paymentsMissed", t.PaymentsMissed),
	}
	if d.err != nil {
		return Agreement{}, d.err
	}
	if !a.Status.Valid() {
		return Agreement{}, fmt.Errorf("unknown agreement status %d", t.Status)
	}
	return a, nil
}

func DecodeTenantInfo(owner common.Address, out []interface{}) (TenantReputation, error) {
	t, err := decodeTuple[tenantInfoTuple](out)
	if err != nil {
		return TenantReputation{}, err
	}
	var d uintDecoder
	r := TenantReputation{
		Owner:                     owner,
		TokenID:                   TokenIDOf(owner),
		ReputationPercent:         d.u64("reputationScore", t.ReputationScore),
		PaymentsMade:              d.u64("paymentsMade", t.PaymentsMade),
		PaymentsMissed:            d.u64("paymentsMissed", t.PaymentsMissed),
		PropertiesRented:          d.u64("propertiesRented", t.PropertiesRented),
		PropertiesOwned:           d.u64("propertiesOwned", t.PropertiesOwned),
		ConsecutiveOnTimePayments: d.u64("consecutiveOnTimePayments", t.ConsecutiveOnTimePayments),
		TotalMonthsRented:         d.u64("totalMonthsRented", t.TotalMonthsRented),
		ReferralCount:             d.u64("referralCount", t.ReferralCount),
		DisputesCount:             d.u64("disputesCount", t.DisputesCount),
		OutstandingBalance:        d.amount("outstandingBalance", t.OutstandingBalance),
		TotalRentPaid:             d.amount("totalRentPaid", t.TotalRentPaid),
		LastActivityTime:          d.u64("lastActivityTime", t.LastActivityTime),
		LastPaymentTime:           d.u64("lastPaymentTime", t.LastPaymentTime),
		IsVerified:                t.IsVerified,
	}
	if d.err != nil {
		return TenantReputation{}, d.err
	}
	return r, nil
}

func DecodeBadges(out []interface{}) ([BadgeCount]bool, error) {
	if len(out) != 1 {
		return [BadgeCount]bool{}, fmt.Errorf("expected 1 value, got %d", len(out))
	}
	switch v := out[0].(type) {
	case [BadgeCount]bool:
		return v, nil
	case []bool:
		var badges [BadgeCount]bool
		if len(v) != BadgeCount {
			return badges, fmt.Errorf("expected %d badges, got %d", BadgeCount, len(v))
		}
		copy(badges[:], v)
		return badges, nil
	default:
		return [BadgeCount]bool{}, fmt.Errorf("unexpected badges type %T", out[0])
	}
}

func DecodeFactoryStats(out []interface{}) (FactoryStats, error) {
	if len(out) != 4 {
		return FactoryStats{}, fmt.Errorf("expected 4 values, got %d", len(out))
	}
	vals := make([]*big.Int, 4)
	for i, o := range out {
		v, ok := o.(*big.Int)
		if !ok {
			return FactoryStats{}, fmt.Errorf("stats value %d is %T", i, o)
		}
		vals[i] = v
	}
	var d uintDecoder
	s := FactoryStats{
		TotalAgreements:     d.u64("totalAgreements", vals[0]),
		ActiveAgreements:    d.u64("activeAgreements", vals[1]),
		CompletedAgreements: d.u64("completedAgreements", vals[2]),
		TotalVolume:         d.amount("totalVolume", vals[3]),
	}
	return s, d.err
}

// DecodeIDs converts a uint256[] output into ids
func DecodeIDs(out []interface{}) ([]uint64, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("expected 1 value, got %d", len(out))
	}
	raw, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected id list type %T", out[0])
	}
	var d uintDecoder
	ids := make([]uint64, 0, len(raw))
	for _, v := range raw {
		ids = append(ids, d.u64("id", v))
	}
	return ids, d.err
}

func DecodeUint(out []interface{}) (*big.Int, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("expected 1 value, got %d", len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected value type %T", out[0])
	}
	return v, nil
}

// EncodeCoordinate converts decimal degrees into the registry's fixed point integer
func EncodeCoordinate(deg float64) *big.Int {
	return big.NewInt(int64(math.Round(deg * CoordinateScale)))
}

func DecodeCoordinate(v *big.Int) float64 {
	return float64(v.Int64()) / CoordinateScale
}
