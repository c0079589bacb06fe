package config

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rentchain/rental-client/internal/chain"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
)

// BuildVersion is set at build time with -ldflags "-X .../internal/config.BuildVersion=..."
var BuildVersion = "0.0.0-dev"

// Validation tags described here: https://pkg.go.dev/github.com/go-playground/validator/v10
type Config struct {
	Network struct {
		ChainID          uint64 `env:"CHAIN_ID"           flag:"chain-id"           validate:"required"`
		Name             string `env:"CHAIN_NAME"         flag:"chain-name"`
		RPCURL           string `env:"ETH_NODE_ADDRESS"   flag:"eth-node-address"   validate:"required,url"`
		CurrencyName     string `env:"CHAIN_CURRENCY_NAME"     flag:"chain-currency-name"`
		CurrencySymbol   string `env:"CHAIN_CURRENCY_SYMBOL"   flag:"chain-currency-symbol"`
		CurrencyDecimals uint8  `env:"CHAIN_CURRENCY_DECIMALS" flag:"chain-currency-decimals"`
		ExplorerURL      string `env:"CHAIN_EXPLORER_URL" flag:"chain-explorer-url" validate:"omitempty,url"`
	}
	Contracts struct {
		Token            string `env:"TOKEN_ADDRESS"             flag:"token-address"             validate:"required,eth_addr"`
		Vault            string `env:"VAULT_ADDRESS"             flag:"vault-address"             validate:"required,eth_addr"`
		PropertyRegistry string `env:"PROPERTY_REGISTRY_ADDRESS" flag:"property-registry-address" validate:"required,eth_addr"`
		Passport         string `env:"PASSPORT_ADDRESS"          flag:"passport-address"          validate:"required,eth_addr"`
		AgreementFactory string `env:"AGREEMENT_FACTORY_ADDRESS" flag:"agreement-factory-address" validate:"required,eth_addr"`
		AgreementNFT     string `env:"AGREEMENT_NFT_ADDRESS"     flag:"agreement-nft-address"     validate:"required,eth_addr"`
		TokenDecimals    uint8  `env:"TOKEN_DECIMALS"            flag:"token-decimals"            validate:"lte=36" desc:"decimals of the payment token, defaults to 6"`
		VaultDecimals    uint8  `env:"VAULT_DECIMALS"            flag:"vault-decimals"            validate:"lte=36" desc:"decimals of vault figures, defaults to the token decimals"`
		TokenSymbol      string `env:"TOKEN_SYMBOL"              flag:"token-symbol"              desc:"read from the token contract when empty"`
	}
	Environment string `env:"ENVIRONMENT" flag:"environment"`
	Wallet      struct {
		Mnemonic     string `env:"WALLET_MNEMONIC"      flag:"wallet-mnemonic"      validate:"excluded_with=PrivateKey" desc:"without mnemonic and private key the client runs read-only"`
		PrivateKey   string `env:"WALLET_PRIVATE_KEY"   flag:"wallet-private-key"   validate:"omitempty,hexadecimal,len=64"`
		AccountIndex int    `env:"WALLET_ACCOUNT_INDEX" flag:"wallet-account-index" validate:"gte=0"`
		LegacyTx     bool   `env:"ETH_NODE_LEGACY_TX"   flag:"eth-node-legacy-tx"   desc:"use it to disable EIP-1559 transactions"`
	}
	Polling struct {
		Balance       time.Duration `env:"POLL_BALANCE_INTERVAL" flag:"poll-balance-interval" desc:"balance refresh interval"`
		Vault         time.Duration `env:"POLL_VAULT_INTERVAL"   flag:"poll-vault-interval"   desc:"vault position refresh interval while the vault view is open"`
		Events        time.Duration `env:"POLL_EVENTS_INTERVAL"  flag:"poll-events-interval"  desc:"interval between contract event log queries"`
		EventsRetries int           `env:"POLL_EVENTS_RETRIES"   flag:"poll-events-retries"   validate:"gte=0"`
	}
	Vault struct {
		APYPercent  float64 `env:"VAULT_APY_PERCENT"   flag:"vault-apy-percent"   validate:"gte=0" desc:"displayed APY, the vault exposes no rate"`
		DaysAssumed int     `env:"VAULT_DAYS_ASSUMED"  flag:"vault-days-assumed"  validate:"gte=0" desc:"holding period used by the yield estimate"`
	}
	Tx struct {
		Confirmations       uint64        `env:"TX_CONFIRMATIONS"        flag:"tx-confirmations"`
		StrongConfirmations uint64        `env:"TX_STRONG_CONFIRMATIONS" flag:"tx-strong-confirmations" desc:"confirmations for vault deposits and withdrawals"`
		Timeout             time.Duration `env:"TX_TIMEOUT"              flag:"tx-timeout"              desc:"maximum wait for a single transaction"`
		ReceiptPoll         time.Duration `env:"TX_RECEIPT_POLL"         flag:"tx-receipt-poll"`
	}
	RPC struct {
		ReadsPerSecond float64 `env:"RPC_READS_PER_SECOND" flag:"rpc-reads-per-second" validate:"gte=0" desc:"read call rate limit, 0 disables it"`
		ReadBurst      int     `env:"RPC_READ_BURST"       flag:"rpc-read-burst"       validate:"gte=0"`
	}
	Cache struct {
		RedisURL string        `env:"CACHE_REDIS_URL" flag:"cache-redis-url" validate:"omitempty,url" desc:"record cache, in-memory when empty"`
		TTL      time.Duration `env:"CACHE_TTL"       flag:"cache-ttl"`
		Prefix   string        `env:"CACHE_PREFIX"    flag:"cache-prefix"`
	}
	Fetch struct {
		Concurrency int `env:"FETCH_CONCURRENCY" flag:"fetch-concurrency" validate:"gte=0" desc:"parallel item reads in enumerations"`
	}
	Log struct {
		Color      bool   `env:"LOG_COLOR"        flag:"log-color"`
		FolderPath string `env:"LOG_FOLDER_PATH"  flag:"log-folder-path"  validate:"omitempty,dirpath" desc:"enables file logging and sets the folder path"`
		IsProd     bool   `env:"LOG_IS_PROD"      flag:"log-is-prod"      desc:"affects the format of the log output"`
		JSON       bool   `env:"LOG_JSON"         flag:"log-json"`
		LevelApp   string `env:"LOG_LEVEL_APP"    flag:"log-level-app"    validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelChain string `env:"LOG_LEVEL_CHAIN"  flag:"log-level-chain"  validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelHTTP  string `env:"LOG_LEVEL_HTTP"   flag:"log-level-http"   validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	}
	Web struct {
		Address   string `env:"WEB_ADDRESS"    flag:"web-address"    validate:"required,hostname_port" desc:"http server address host:port"`
		PublicUrl string `env:"WEB_PUBLIC_URL" flag:"web-public-url" validate:"omitempty,url"          desc:"public url of the client api, falls back to web-address if empty"`
	}
}

// HasWallet tells whether a signing key is configured
func (cfg *Config) HasWallet() bool {
	return cfg.Wallet.PrivateKey != "" || cfg.Wallet.Mnemonic != ""
}

func (cfg *Config) SetDefaults() {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Network

	if cfg.Network.Name == "" {
		cfg.Network.Name = "Base Sepolia"
	}
	if cfg.Network.CurrencyName == "" {
		cfg.Network.CurrencyName = "Ether"
	}
	if cfg.Network.CurrencySymbol == "" {
		cfg.Network.CurrencySymbol = "ETH"
	}
	if cfg.Network.CurrencyDecimals == 0 {
		cfg.Network.CurrencyDecimals = 18
	}

	// Contracts

	if cfg.Contracts.TokenDecimals == 0 {
		cfg.Contracts.TokenDecimals = contracts.DefaultDecimals
	}
	if cfg.Contracts.VaultDecimals == 0 {
		cfg.Contracts.VaultDecimals = cfg.Contracts.TokenDecimals
	}

	// Wallet

	cfg.Wallet.PrivateKey = strings.TrimPrefix(cfg.Wallet.PrivateKey, "0x")
	cfg.Wallet.Mnemonic = strings.TrimSpace(cfg.Wallet.Mnemonic)

	// Polling

	if cfg.Polling.Balance == 0 {
		cfg.Polling.Balance = 10 * time.Second
	}
	if cfg.Polling.Vault == 0 {
		cfg.Polling.Vault = 2 * time.Second
	}
	if cfg.Polling.Events == 0 {
		cfg.Polling.Events = 5 * time.Second
	}
	if cfg.Polling.EventsRetries == 0 {
		cfg.Polling.EventsRetries = 5
	}

	// Vault

	if cfg.Vault.APYPercent == 0 {
		cfg.Vault.APYPercent = 5
	}
	if cfg.Vault.DaysAssumed == 0 {
		cfg.Vault.DaysAssumed = 30
	}

	// Tx

	if cfg.Tx.Confirmations == 0 {
		cfg.Tx.Confirmations = 1
	}
	if cfg.Tx.StrongConfirmations == 0 {
		cfg.Tx.StrongConfirmations = 2
	}
	if cfg.Tx.Timeout == 0 {
		cfg.Tx.Timeout = 10 * time.Minute
	}
	if cfg.Tx.ReceiptPoll == 0 {
		cfg.Tx.ReceiptPoll = 2 * time.Second
	}

	// RPC

	if cfg.RPC.ReadBurst == 0 {
		cfg.RPC.ReadBurst = 10
	}

	// Cache

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Minute
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "rental-client:"
	}

	// Fetch

	if cfg.Fetch.Concurrency == 0 {
		cfg.Fetch.Concurrency = 8
	}

	// Log

	if cfg.Log.LevelApp == "" {
		cfg.Log.LevelApp = "debug"
	}
	if cfg.Log.LevelChain == "" {
		cfg.Log.LevelChain = "info"
	}
	if cfg.Log.LevelHTTP == "" {
		cfg.Log.LevelHTTP = "info"
	}

	// Web

	if cfg.Web.Address == "" {
		cfg.Web.Address = "0.0.0.0:8080"
	}
	if cfg.Web.PublicUrl == "" {
		cfg.Web.PublicUrl = "http://localhost:8080"
	}
}

// NetworkDescriptor is the network offered to the wallet when it does not know the chain
func (cfg *Config) NetworkDescriptor() chain.NetworkDescriptor {
	return chain.NetworkDescriptor{
		ChainID:     cfg.Network.ChainID,
		DisplayName: cfg.Network.Name,
		RPCURL:      cfg.Network.RPCURL,
		NativeCurrency: chain.NativeCurrency{
			Name:     cfg.Network.CurrencyName,
			Symbol:   cfg.Network.CurrencySymbol,
			Decimals: cfg.Network.CurrencyDecimals,
		},
		BlockExplorerURL: cfg.Network.ExplorerURL,
	}
}

func (cfg *Config) ContractAddresses() map[contracts.Name]common.Address {
	return map[contracts.Name]common.Address{
		contracts.Token:            common.HexToAddress(cfg.Contracts.Token),
		contracts.Vault:            common.HexToAddress(cfg.Contracts.Vault),
		contracts.PropertyRegistry: common.HexToAddress(cfg.Contracts.PropertyRegistry),
		contracts.Passport:         common.HexToAddress(cfg.Contracts.Passport),
		contracts.AgreementFactory: common.HexToAddress(cfg.Contracts.AgreementFactory),
		contracts.AgreementNFT:     common.HexToAddress(cfg.Contracts.AgreementNFT),
	}
}

// ContractDecimals returns the per-contract decimals overrides, the agreement contracts move the
// payment token so they share its decimals
func (cfg *Config) ContractDecimals() map[contracts.Name]uint8 {
	return map[contracts.Name]uint8{
		contracts.Token:        cfg.Contracts.TokenDecimals,
		contracts.Vault:        cfg.Contracts.VaultDecimals,
		contracts.AgreementNFT: cfg.Contracts.TokenDecimals,
	}
}

// GetSanitized returns a copy of the config with sensitive data removed
// explicitly adding each field here to avoid accidentally leaking sensitive data
func (cfg *Config) GetSanitized() interface{} {
	publicCfg := Config{}

	publicCfg.Network = cfg.Network
	publicCfg.Contracts = cfg.Contracts
	publicCfg.Environment = cfg.Environment

	publicCfg.Wallet.AccountIndex = cfg.Wallet.AccountIndex
	publicCfg.Wallet.LegacyTx = cfg.Wallet.LegacyTx

	publicCfg.Polling = cfg.Polling
	publicCfg.Vault = cfg.Vault
	publicCfg.Tx = cfg.Tx
	publicCfg.RPC = cfg.RPC

	publicCfg.Cache.TTL = cfg.Cache.TTL
	publicCfg.Cache.Prefix = cfg.Cache.Prefix

	publicCfg.Fetch = cfg.Fetch

	publicCfg.Log.Color = cfg.Log.Color
	publicCfg.Log.FolderPath = cfg.Log.FolderPath
	publicCfg.Log.IsProd = cfg.Log.IsProd
	publicCfg.Log.JSON = cfg.Log.JSON
	publicCfg.Log.LevelApp = cfg.Log.LevelApp
	publicCfg.Log.LevelChain = cfg.Log.LevelChain
	publicCfg.Log.LevelHTTP = cfg.Log.LevelHTTP

	publicCfg.Web.Address = cfg.Web.Address
	publicCfg.Web.PublicUrl = cfg.Web.PublicUrl

	return publicCfg
}
