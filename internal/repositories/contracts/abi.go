package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const tokenABIJSON = `[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

const vaultABIJSON = `[
{"type":"function","name":"deposits","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"calculateYield","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"totalDeposits","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"account","type":"address"}],"outputs":[]},
{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"account","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`

const propertyRegistryABIJSON = `[
{"type":"function","name":"propertyCounter","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getProperty","stateMutability":"view","inputs":[{"name":"propertyId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[
	{"name":"id","type":"uint256"},
	{"name":"landlord","type":"address"},
	{"name":"name","type":"string"},
	{"name":"location","type":"string"},
	{"name":"propertyType","type":"string"},
	{"name":"bedrooms","type":"uint256"},
	{"name":"bathrooms","type":"uint256"},
	{"name":"squareMeters","type":"uint256"},
	{"name":"verificationStatus","type":"uint8"},
	{"name":"isActive","type":"bool"},
	{"name":"monthlyRent","type":"uint256"},
	{"name":"securityDeposit","type":"uint256"}
]}]},
{"type":"function","name":"getPropertiesByLandlord","stateMutability":"view","inputs":[{"name":"landlord","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"registerProperty","stateMutability":"nonpayable","inputs":[
	{"name":"name","type":"string"},
	{"name":"description","type":"string"},
	{"name":"propertyType","type":"string"},
	{"name":"streetAddress","type":"string"},
	{"name":"city","type":"string"},
	{"name":"state","type":"string"},
	{"name":"country","type":"string"},
	{"name":"zipCode","type":"string"},
	{"name":"latitude","type":"int256"},
	{"name":"longitude","type":"int256"},
	{"name":"bedrooms","type":"uint256"},
	{"name":"bathrooms","type":"uint256"},
	{"name":"squareMeters","type":"uint256"},
	{"name":"monthlyRent","type":"uint256"},
	{"name":"securityDeposit","type":"uint256"},
	{"name":"minLeaseMonths","type":"uint256"},
	{"name":"maxLeaseMonths","type":"uint256"},
	{"name":"isFurnished","type":"bool"},
	{"name":"petsAllowed","type":"bool"},
	{"name":"parkingSpaces","type":"uint256"},
	{"name":"amenities","type":"string"},
	{"name":"metadataURI","type":"string"}
],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"requestPropertyVerification","stateMutability":"nonpayable","inputs":[{"name":"propertyId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"approvePropertyVerification","stateMutability":"nonpayable","inputs":[{"name":"propertyId","type":"uint256"}],"outputs":[]},
{"type":"event","name":"PropertyRegistered","anonymous":false,"inputs":[{"name":"propertyId","type":"uint256","indexed":true},{"name":"landlord","type":"address","indexed":true}]},
{"type":"event","name":"PropertyVerificationRequested","anonymous":false,"inputs":[{"name":"propertyId","type":"uint256","indexed":true}]},
{"type":"event","name":"PropertyVerified","anonymous":false,"inputs":[{"name":"propertyId","type":"uint256","indexed":true}]}
]`

const passportABIJSON = `[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getTenantInfo","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[
	{"name":"reputationScore","type":"uint256"},
	{"name":"paymentsMade","type":"uint256"},
	{"name":"paymentsMissed","type":"uint256"},
	{"name":"propertiesRented","type":"uint256"},
	{"name":"propertiesOwned","type":"uint256"},
	{"name":"consecutiveOnTimePayments","type":"uint256"},
	{"name":"totalMonthsRented","type":"uint256"},
	{"name":"referralCount","type":"uint256"},
	{"name":"disputesCount","type":"uint256"},
	{"name":"outstandingBalance","type":"uint256"},
	{"name":"totalRentPaid","type":"uint256"},
	{"name":"lastActivityTime","type":"uint256"},
	{"name":"lastPaymentTime","type":"uint256"},
	{"name":"isVerified","type":"bool"}
]}]},
{"type":"function","name":"getAllBadges","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"bool[14]"}]},
{"type":"function","name":"mintForSelf","stateMutability":"nonpayable","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const agreementFactoryABIJSON = `[
{"type":"function","name":"getFactoryStats","stateMutability":"view","inputs":[],"outputs":[
	{"name":"totalAgreements","type":"uint256"},
	{"name":"activeAgreements","type":"uint256"},
	{"name":"completedAgreements","type":"uint256"},
	{"name":"totalVolume","type":"uint256"}
]},
{"type":"function","name":"getLandlordAgreements","stateMutability":"view","inputs":[{"name":"landlord","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"getTenantAgreements","stateMutability":"view","inputs":[{"name":"tenant","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
{"type":"function","name":"createAgreement","stateMutability":"nonpayable","inputs":[
	{"name":"propertyId","type":"uint256"},
	{"name":"tenant","type":"address"},
	{"name":"monthlyRent","type":"uint256"},
	{"name":"securityDeposit","type":"uint256"},
	{"name":"durationMonths","type":"uint256"}
],"outputs":[{"name":"","type":"uint256"}]},
{"type":"event","name":"AgreementCreated","anonymous":false,"inputs":[{"name":"agreementId","type":"uint256","indexed":true},{"name":"landlord","type":"address","indexed":true},{"name":"tenant","type":"address","indexed":true}]}
]`

const agreementNFTABIJSON = `[
{"type":"function","name":"getAgreement","stateMutability":"view","inputs":[{"name":"agreementId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[
	{"name":"agreementId","type":"uint256"},
	{"name":"propertyId","type":"uint256"},
	{"name":"landlord","type":"address"},
	{"name":"tenant","type":"address"},
	{"name":"monthlyRent","type":"uint256"},
	{"name":"securityDeposit","type":"uint256"},
	{"name":"durationMonths","type":"uint256"},
	{"name":"status","type":"uint8"},
	{"name":"landlordSigned","type":"bool"},
	{"name":"tenantSigned","type":"bool"},
	{"name":"depositPaid","type":"uint256"},
	{"name":"totalPaid","type":"uint256"},
	{"name":"paymentsMade","type":"uint256"},
	{"name":"paymentsMissed","type":"uint256"}
]}]},
{"type":"function","name":"signAsLandlord","stateMutability":"nonpayable","inputs":[{"name":"agreementId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"signAsTenant","stateMutability":"nonpayable","inputs":[{"name":"agreementId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"paySecurityDeposit","stateMutability":"nonpayable","inputs":[{"name":"agreementId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"payRent","stateMutability":"nonpayable","inputs":[{"name":"agreementId","type":"uint256"}],"outputs":[]},
{"type":"event","name":"AgreementSigned","anonymous":false,"inputs":[{"name":"agreementId","type":"uint256","indexed":true},{"name":"signer","type":"address","indexed":true}]},
{"type":"event","name":"SecurityDepositPaid","anonymous":false,"inputs":[{"name":"agreementId","type":"uint256","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"RentPaid","anonymous":false,"inputs":[{"name":"agreementId","type":"uint256","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
{"type":"event","name":"AgreementStatusChanged","anonymous":false,"inputs":[{"name":"agreementId","type":"uint256","indexed":true},{"name":"status","type":"uint8","indexed":false}]}
]`

var (
	TokenABI            = mustParseABI(tokenABIJSON)
	VaultABI            = mustParseABI(vaultABIJSON)
	PropertyRegistryABI = mustParseABI(propertyRegistryABIJSON)
	PassportABI         = mustParseABI(passportABIJSON)
	AgreementFactoryABI = mustParseABI(agreementFactoryABIJSON)
	AgreementNFTABI     = mustParseABI(agreementNFTABIJSON)
)

func mustParseABI(definition string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic("invalid contract abi: " + err.Error())
	}
	return &parsed
}
