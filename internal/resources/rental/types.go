package rental

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type VerificationStatus uint8

const (
	Unverified VerificationStatus = iota
	VerificationPending
	Verified
)

func (s VerificationStatus) String() string {
	switch s {
	case Unverified:
		return "unverified"
	case VerificationPending:
		return "pending"
	case Verified:
		return "verified"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

func (s VerificationStatus) Valid() bool {
	return s <= Verified
}

func (s VerificationStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *VerificationStatus) UnmarshalText(text []byte) error {
	for v := Unverified; v <= Verified; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown verification status %q", text)
}

type AgreementStatus uint8

const (
	AgreementPending AgreementStatus = iota
	AgreementActive
	AgreementCompleted
	AgreementTerminated
	AgreementDisputed
)

func (s AgreementStatus) String() string {
	switch s {
	case AgreementPending:
		return "pending"
	case AgreementActive:
		return "active"
	case AgreementCompleted:
		return "completed"
	case AgreementTerminated:
		return "terminated"
	case AgreementDisputed:
		return "disputed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

func (s AgreementStatus) Valid() bool {
	return s <= AgreementDisputed
}

func (s AgreementStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AgreementStatus) UnmarshalText(text []byte) error {
	for v := AgreementPending; v <= AgreementDisputed; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown agreement status %q", text)
}

type Property struct {
	ID                 uint64             `json:"id"`
	Landlord           common.Address     `json:"landlord"`
	Name               string             `json:"name"`
	Location           string             `json:"location"`
	PropertyType       string             `json:"propertyType"`
	Bedrooms           uint64             `json:"bedrooms"`
	Bathrooms          uint64             `json:"bathrooms"`
	SquareMeters       uint64             `json:"squareMeters"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	IsActive           bool               `json:"isActive"`
	MonthlyRent        *big.Int           `json:"monthlyRent"`
	SecurityDeposit    *big.Int           `json:"securityDeposit"`
}

type Agreement struct {
	ID              uint64          `json:"id"`
	PropertyID      uint64          `json:"propertyId"`
	Landlord        common.Address  `json:"landlord"`
	Tenant          common.Address  `json:"tenant"`
	MonthlyRent     *big.Int        `json:"monthlyRent"`
	SecurityDeposit *big.Int        `json:"securityDeposit"`
	DurationMonths  uint64          `json:"durationMonths"`
	Status          AgreementStatus `json:"status"`
	LandlordSigned  bool            `json:"landlordSigned"`
	TenantSigned    bool            `json:"tenantSigned"`
	DepositPaid     *big.Int        `json:"depositPaid"`
	TotalPaid       *big.Int        `json:"totalPaid"`
	PaymentsMade    uint64          `json:"paymentsMade"`
	PaymentsMissed  uint64          `json:"paymentsMissed"`
}

func (a Agreement) FullySigned() bool {
	return a.LandlordSigned && a.TenantSigned
}

// RoleOf tells whether account is the landlord or the tenant of the agreement
func (a Agreement) RoleOf(account common.Address) (landlord bool, tenant bool) {
	return a.Landlord == account, a.Tenant == account
}

// BadgeCount is the number of badge slots of a passport
const BadgeCount = 14

type Badge int

const (
	BadgeFirstRental Badge = iota
	BadgeOnTimePayer
	BadgeReliableTenant
	BadgeLongTermTenant
	BadgePerfectRecord
	BadgeVerifiedIdentity
	BadgeReferrer
	BadgeSuperReferrer
	BadgePropertyOwner
	BadgeMultiPropertyOwner
	BadgeEarlyAdopter
	BadgeCommunityMember
	BadgeDisputeFree
	BadgeHighValueRenter
)

var badgeNames = [BadgeCount]string{
	"first-rental",
	"on-time-payer",
	"reliable-tenant",
	"long-term-tenant",
	"perfect-record",
	"verified-identity",
	"referrer",
	"super-referrer",
	"property-owner",
	"multi-property-owner",
	"early-adopter",
	"community-member",
	"dispute-free",
	"high-value-renter",
}

func (b Badge) String() string {
	if b < 0 || int(b) >= BadgeCount {
		return fmt.Sprintf("badge(%d)", int(b))
	}
	return badgeNames[b]
}

type TenantReputation struct {
	Owner                     common.Address   `json:"owner"`
	TokenID                   *big.Int         `json:"tokenId"`
	ReputationPercent         uint64           `json:"reputationPercent"`
	PaymentsMade              uint64           `json:"paymentsMade"`
	PaymentsMissed            uint64           `json:"paymentsMissed"`
	PropertiesRented          uint64           `json:"propertiesRented"`
	PropertiesOwned           uint64           `json:"propertiesOwned"`
	ConsecutiveOnTimePayments uint64           `json:"consecutiveOnTimePayments"`
	TotalMonthsRented         uint64           `json:"totalMonthsRented"`
	ReferralCount             uint64           `json:"referralCount"`
	DisputesCount             uint64           `json:"disputesCount"`
	OutstandingBalance        *big.Int         `json:"outstandingBalance"`
	TotalRentPaid             *big.Int         `json:"totalRentPaid"`
	LastActivityTime          uint64           `json:"lastActivityTime"`
	LastPaymentTime           uint64           `json:"lastPaymentTime"`
	IsVerified                bool             `json:"isVerified"`
	Badges                    [BadgeCount]bool `json:"badges"`
}

// EarnedBadges lists the names of the badges set on the passport
func (r TenantReputation) EarnedBadges() []string {
	var out []string
	for i, earned := range r.Badges {
		if earned {
			out = append(out, Badge(i).String())
		}
	}
	return out
}

// TokenIDOf derives the passport token id of an account, the integer value of its address
func TokenIDOf(account common.Address) *big.Int {
	return new(big.Int).SetBytes(account.Bytes())
}

type FactoryStats struct {
	TotalAgreements     uint64   `json:"totalAgreements"`
	ActiveAgreements    uint64   `json:"activeAgreements"`
	CompletedAgreements uint64   `json:"completedAgreements"`
	TotalVolume         *big.Int `json:"totalVolume"`
}

// CoordinateScale is the fixed point factor of registered latitude and longitude
const CoordinateScale = 1_000_000

// PropertyRegistration holds the fields of registerProperty, in call order
type PropertyRegistration struct {
	Name            string   `json:"name" validate:"required"`
	Description     string   `json:"description"`
	PropertyType    string   `json:"propertyType" validate:"required"`
	StreetAddress   string   `json:"streetAddress" validate:"required"`
	City            string   `json:"city" validate:"required"`
	State           string   `json:"state"`
	Country         string   `json:"country" validate:"required"`
	ZipCode         string   `json:"zipCode"`
	Latitude        float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude       float64  `json:"longitude" validate:"gte=-180,lte=180"`
	Bedrooms        uint64   `json:"bedrooms"`
	Bathrooms       uint64   `json:"bathrooms"`
	SquareMeters    uint64   `json:"squareMeters"`
	MonthlyRent     *big.Int `json:"monthlyRent" validate:"required"`
	SecurityDeposit *big.Int `json:"securityDeposit" validate:"required"`
	MinLeaseMonths  uint64   `json:"minLeaseMonths"`
	MaxLeaseMonths  uint64   `json:"maxLeaseMonths" validate:"gtefield=MinLeaseMonths"`
	IsFurnished     bool     `json:"isFurnished"`
	PetsAllowed     bool     `json:"petsAllowed"`
	ParkingSpaces   uint64   `json:"parkingSpaces"`
	Amenities       string   `json:"amenities"`
	MetadataURI     string   `json:"metadataURI"`
}

// Args returns the 22 registerProperty arguments in order, coordinates scaled to integers
func (p PropertyRegistration) Args() []interface{} {
	u := func(v uint64) *big.Int { return new(big.Int).SetUint64(v) }
	return []interface{}{
		p.Name,
		p.Description,
		p.PropertyType,
		p.StreetAddress,
		p.City,
		p.State,
		p.Country,
		p.ZipCode,
		EncodeCoordinate(p.Latitude),
		EncodeCoordinate(p.Longitude),
		u(p.Bedrooms),
		u(p.Bathrooms),
		u(p.SquareMeters),
		p.MonthlyRent,
		p.SecurityDeposit,
		u(p.MinLeaseMonths),
		u(p.MaxLeaseMonths),
		p.IsFurnished,
		p.PetsAllowed,
		u(p.ParkingSpaces),
		p.Amenities,
		p.MetadataURI,
	}
}
