package cryptoless

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/0xfullStack/Cryptoless/pkg/apierror"
	"github.com/0xfullStack/Cryptoless/pkg/envelope"
	"github.com/0xfullStack/Cryptoless/pkg/httputil"
)

const (
	// allLimit is the page size of the endpoints returning everything.
	allLimit          = "10000"
	instructionsLimit = "50"
)

// endpoint is the description of an API call before signing.
type endpoint struct {
	name     string
	method   string
	path     string
	encoding httputil.Encoding
	params   envelope.Params
}

func get(name, path string, params envelope.Params) endpoint {
	return endpoint{name, http.MethodGet, path, httputil.FormEncoding, params}
}

func post(name, path string, params envelope.Params) endpoint {
	return endpoint{name, http.MethodPost, path, httputil.JSONEncoding, params}
}

func updatedSince(latestUpdatedAt uint64) string {
	return fmt.Sprintf("updatedTime:%d..", latestUpdatedAt)
}

func registerEndpoint(ownerPublicKey, nonce string) endpoint {
	return post("register", "/registrations", envelope.Params{
		"ownerPublicKey": ownerPublicKey,
		"nonce":          nonce,
	})
}

func networksEndpoint(latestUpdatedAt uint64) endpoint {
	return get("networks", "/networks", envelope.Params{
		"filter": updatedSince(latestUpdatedAt),
		"limit":  allLimit,
	})
}

func deployAccountEndpoint(networkCode string, publicKeys []string, threshold int) endpoint {
	return post(
		"deployAccount",
		fmt.Sprintf("/networks/%s/accounts", url.PathEscape(networkCode)),
		envelope.Params{
			"publicKeys": publicKeys,
			"threshold":  threshold,
		},
	)
}

func accountsEndpoint(publicKeys []string) endpoint {
	return get("accounts", "/accounts", envelope.Params{
		"includePublicKeys": strings.Join(publicKeys, ","),
		"limit":             allLimit,
	})
}

func transactionsEndpoint(status string, limit, offset int) endpoint {
	return get("transactions", "/transactions", envelope.Params{
		"status": status,
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
	})
}

func signTransactionEndpoint(id string, signatures []Signature) endpoint {
	return post(
		"signTransaction",
		fmt.Sprintf("/transactions/%s/signatures", url.PathEscape(id)),
		envelope.Params{"signatures": signatures},
	)
}

func sendTransactionEndpoint(id string) endpoint {
	return endpoint{
		name:     "sendTransaction",
		method:   http.MethodPatch,
		path:     fmt.Sprintf("/transactions/%s", url.PathEscape(id)),
		encoding: httputil.FormEncoding,
		params:   envelope.Params{"status": TxStatusPending},
	}
}

func coinsEndpoint(latestUpdatedAt uint64) endpoint {
	return get("coins", "/cryptocurrencies", envelope.Params{
		"expand": "networks",
		"filter": updatedSince(latestUpdatedAt),
		"limit":  allLimit,
	})
}

func holdersEndpoint(latestUpdatedAt uint64) endpoint {
	return get("holders", "/cryptocurrencies/holders", envelope.Params{
		"filter": updatedSince(latestUpdatedAt),
		"limit":  allLimit,
	})
}

func delegatorsEndpoint(latestUpdatedAt string) endpoint {
	return get("delegators", "/staking/delegators", envelope.Params{
		"filter": updatedSince(Timestamp(latestUpdatedAt)),
		"limit":  allLimit,
		"expand": "staking",
	})
}

func instructionsEndpoint(latestUpdatedAt uint64) endpoint {
	return get("instructions", "/instructions", envelope.Params{
		"filter": updatedSince(latestUpdatedAt),
		"limit":  instructionsLimit,
	})
}

func balanceTransactionsEndpoint(symbol, address string) endpoint {
	params := envelope.Params{}
	if len(address) > 0 {
		params["address"] = address
	}
	return get(
		"balanceTransactions",
		fmt.Sprintf("/cryptocurrencies/%s/transactions", url.PathEscape(symbol)),
		params,
	)
}

func stakingsEndpoint(latestUpdatedAt uint64) endpoint {
	return get("stakings", "/staking", envelope.Params{
		"filter": updatedSince(latestUpdatedAt),
		"limit":  allLimit,
	})
}

func transferEndpoint(
	symbol, networkCode, from, to string, amount decimal.Decimal,
) (endpoint, error) {
	if err := validateAmount(amount); err != nil {
		return endpoint{}, err
	}
	return post(
		"transfer",
		fmt.Sprintf("/cryptocurrencies/%s/transfers", url.PathEscape(symbol)),
		envelope.Params{
			"networkCode": networkCode,
			"from":        from,
			"to":          to,
			"amount":      amount.String(),
		},
	), nil
}

func delegationParams(symbol, networkCode, from string) envelope.Params {
	return envelope.Params{
		"networkCode": networkCode,
		"coinSymbol":  symbol,
		"delegator":   from,
	}
}

func stakeEndpoint(symbol, networkCode, from string, amount decimal.Decimal) (endpoint, error) {
	if err := validateAmount(amount); err != nil {
		return endpoint{}, err
	}
	params := delegationParams(symbol, networkCode, from)
	params["amount"] = amount.String()
	return post("stake", "/staking/delegations", params), nil
}

func unstakeEndpoint(symbol, networkCode, from string, amount decimal.Decimal) (endpoint, error) {
	if err := validateAmount(amount); err != nil {
		return endpoint{}, err
	}
	params := delegationParams(symbol, networkCode, from)
	params["amount"] = amount.String()
	return post("unstake", "/staking/unbondings", params), nil
}

func claimEndpoint(symbol, networkCode, from string) endpoint {
	return post("claim", "/staking/claims", delegationParams(symbol, networkCode, from))
}

func addCustomTokenEndpoint(networkCode, contractAddress string) endpoint {
	return post("addCustomToken", "/cryptocurrencies/custom", envelope.Params{
		"networkCode":     networkCode,
		"contractAddress": contractAddress,
	})
}

func quoteSwapEndpoint(
	networkCode, from, fromSymbol, toSymbol string, amount decimal.Decimal,
) (endpoint, error) {
	if err := validateAmount(amount); err != nil {
		return endpoint{}, err
	}
	return get("quoteSwap", "/swap/quotes", envelope.Params{
		"networkCode": networkCode,
		"from":        from,
		"fromSymbol":  fromSymbol,
		"toSymbol":    toSymbol,
		"amount":      amount.String(),
	}), nil
}

func swapEndpoint(quoteID, from string) endpoint {
	return post("swap", "/swap/orders", envelope.Params{
		"quoteId": quoteID,
		"from":    from,
	})
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apierror.Configuration("amount must be positive, got %s", amount)
	}
	return nil
}
