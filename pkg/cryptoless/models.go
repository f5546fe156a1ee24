package cryptoless

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses.
const (
	TxStatusSigning = "SIGNING"
	TxStatusPending = "PENDING"
)

type Network struct {
	ID               string  `json:"id"`
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	Platform         string  `json:"platform"`
	DerivationPath   string  `json:"derivationPath"`
	IconURL          string  `json:"iconURL"`
	BlockExplorerURI *string `json:"blockExplorerURI,omitempty"`
	FeeCoin          FeeCoin `json:"feeCoin"`
	EvmChainID       *int    `json:"evmChainId,omitempty"`
	CreatedTime      string  `json:"createdTime"`
	UpdatedTime      string  `json:"updatedTime"`
}

// FeeCoin is the coin a network charges fees with.
type FeeCoin struct {
	Symbol   string `json:"symbol"`
	Decimals uint   `json:"decimals"`
}

type Account struct {
	ID          string   `json:"id"`
	Address     string   `json:"address"`
	PublicKeys  []string `json:"publicKeys"`
	Threshold   int      `json:"threshold"`
	NetworkCode string   `json:"networkCode"`
	Enable      bool     `json:"enable"`
	CreatedTime string   `json:"createdTime"`
	UpdatedTime string   `json:"updatedTime"`
}

type Transaction struct {
	ID               string              `json:"id"`
	Hash             string              `json:"hash"`
	NetworkCode      string              `json:"networkCode"`
	Serialized       string              `json:"serialized"`
	Status           string              `json:"status"`
	Fee              decimal.NullDecimal `json:"fee"`
	EstimatedFee     decimal.NullDecimal `json:"estimatedFee"`
	RequiredSignings []Signing           `json:"requiredSignings,omitempty"`
	Signatures       []Signature         `json:"signatures,omitempty"`
	CreatedTime      string              `json:"createdTime"`
	UpdatedTime      string              `json:"updatedTime"`
}

// Signing is a hash that must be signed by threshold of PublicKeys before
// the transaction can be sent.
type Signing struct {
	Hash       string   `json:"hash"`
	PublicKeys []string `json:"publicKeys"`
	Threshold  uint     `json:"threshold"`
}

type Signature struct {
	Hash      string `json:"hash"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

type Coin struct {
	ID          string              `json:"id"`
	Symbol      string              `json:"symbol"`
	Name        string              `json:"name"`
	IconURL     string              `json:"iconURL"`
	Category    *string             `json:"category,omitempty"`
	Source      int                 `json:"source"`
	Price       decimal.NullDecimal `json:"price"`
	MarketCap   decimal.NullDecimal `json:"marketCap"`
	CreatedTime string              `json:"createdTime"`
	UpdatedTime string              `json:"updatedTime"`
	Embedded    *CoinEmbedded       `json:"_embedded,omitempty"`
}

type CoinEmbedded struct {
	Networks []Network `json:"networks,omitempty"`
}

type Holder struct {
	ID          string          `json:"id"`
	Address     string          `json:"address"`
	Quantity    decimal.Decimal `json:"quantity"`
	Symbol      string          `json:"symbol"`
	NetworkCode string          `json:"networkCode"`
	CreatedTime string          `json:"createdTime,omitempty"`
	UpdatedTime string          `json:"updatedTime,omitempty"`
}

type Staking struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
	APR           decimal.Decimal `json:"apr"`
	LockTime      int             `json:"lockTime"`
	MinimumAmount decimal.Decimal `json:"minimumAmount"`
	NetworkCode   string          `json:"networkCode"`
	CreatedTime   string          `json:"createdTime"`
	UpdatedTime   string          `json:"updatedTime"`
}

type Delegator struct {
	ID          string              `json:"id"`
	Address     string              `json:"address"`
	CoinSymbol  string              `json:"coinSymbol"`
	Pendings    decimal.Decimal     `json:"pendings"`
	Staked      decimal.Decimal     `json:"staked"`
	Rewards     decimal.NullDecimal `json:"rewards"`
	NetworkCode string              `json:"networkCode"`
	CreatedTime string              `json:"createdTime"`
	UpdatedTime string              `json:"updatedTime"`
	Embedded    DelegatorEmbedded   `json:"_embedded"`
}

type DelegatorEmbedded struct {
	Staking Staking `json:"staking"`
}

type Transfer struct {
	ID          string               `json:"id"`
	From        string               `json:"from"`
	To          string               `json:"to"`
	Amount      decimal.Decimal      `json:"amount"`
	Status      int                  `json:"status"`
	NetworkCode string               `json:"networkCode"`
	CreatedTime string               `json:"createdTime"`
	UpdatedTime string               `json:"updatedTime"`
	Symbol      string               `json:"symbol,omitempty"`
	Embedded    *TransactionEmbedded `json:"_embedded,omitempty"`
}

// TransactionEmbedded carries the transactions created by a request.
type TransactionEmbedded struct {
	Transactions []Transaction `json:"transactions"`
}

// TransactionWrapper is returned by the calls creating transactions, ie.
// transfer, stake, unstake and claim.
type TransactionWrapper struct {
	NetworkCode string               `json:"networkCode"`
	Embedded    *TransactionEmbedded `json:"_embedded,omitempty"`
}

// Transactions returns the embedded transactions, if any.
func (w TransactionWrapper) Transactions() []Transaction {
	if w.Embedded == nil {
		return nil
	}
	return w.Embedded.Transactions
}

type Instruction struct {
	ID          string               `json:"id"`
	Type        string               `json:"type"`
	Body        map[string]string    `json:"body"`
	Status      int                  `json:"status"`
	NetworkCode string               `json:"networkCode"`
	CreatedTime string               `json:"createdTime"`
	UpdatedTime string               `json:"updatedTime"`
	Embedded    *TransactionEmbedded `json:"_embedded,omitempty"`
}

type BalanceTransaction struct {
	ID          string          `json:"id"`
	Hash        string          `json:"hash"`
	Address     string          `json:"address"`
	Amount      decimal.Decimal `json:"amount"`
	Symbol      string          `json:"symbol,omitempty"`
	Type        int             `json:"type"`
	BlockHeight int             `json:"blockHeight"`
	BlockTime   string          `json:"blockTime"`
}

type Registration struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	CreatedTime string `json:"createdTime"`
	UpdatedTime string `json:"updatedTime"`
}

// SwapQuote is the price offered for swapping FromAmount of FromSymbol into
// ToSymbol, valid until ExpiredTime.
type SwapQuote struct {
	ID          string          `json:"id"`
	NetworkCode string          `json:"networkCode"`
	FromSymbol  string          `json:"fromSymbol"`
	ToSymbol    string          `json:"toSymbol"`
	FromAmount  decimal.Decimal `json:"fromAmount"`
	ToAmount    decimal.Decimal `json:"toAmount"`
	ExpiredTime string          `json:"expiredTime"`
}

// SwapOrder is an accepted SwapQuote, along with the transactions to co-sign.
type SwapOrder struct {
	ID          string               `json:"id"`
	QuoteID     string               `json:"quoteId"`
	Status      string               `json:"status"`
	NetworkCode string               `json:"networkCode"`
	CreatedTime string               `json:"createdTime"`
	UpdatedTime string               `json:"updatedTime"`
	Embedded    *TransactionEmbedded `json:"_embedded,omitempty"`
}

// Timestamp parses an ISO8601 time as the API formats it and returns it as
// unix seconds, 0 if s is empty or invalid.
func Timestamp(s string) uint64 {
	if len(s) <= 0 {
		return 0
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}
