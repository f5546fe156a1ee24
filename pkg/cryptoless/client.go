// Package cryptoless is the client of the cryptoless custodial wallet API.
//
// Every call is signed with the Signer given to New over the identity token
// of the client, and the realtime channel of the same identity is managed
// lazily: it is connected by the first subscription and kept alive by the
// reconnection policy fed with SetReachable and Activate.
package cryptoless

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/thanhpk/randstr"

	"github.com/0xfullStack/Cryptoless/pkg/apierror"
	"github.com/0xfullStack/Cryptoless/pkg/envelope"
	"github.com/0xfullStack/Cryptoless/pkg/httputil"
	"github.com/0xfullStack/Cryptoless/pkg/realtime"
	"github.com/0xfullStack/Cryptoless/pkg/signer"
)

const (
	DefaultBaseURL   = "https://api.cryptoless.io"
	DefaultSocketURL = "https://connect.cryptoless.net"

	nonceLength = 16
	userAgent   = "cryptoless-go"
)

type options struct {
	baseURL      string
	socketURL    string
	timeout      time.Duration
	rateLimit    int
	breaker      *gobreaker.CircuitBreaker
	registerer   prometheus.Registerer
	httpClient   *http.Client
	dialer       realtime.Dialer
	unreachable  bool
	alwaysActive bool
	newBackOff   func() backoff.BackOff
	streamBuffer int
}

// Option customizes a Client.
type Option func(*options)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithSocketURL overrides DefaultSocketURL.
func WithSocketURL(url string) Option {
	return func(o *options) { o.socketURL = url }
}

// WithTimeout sets the timeout of every HTTP request.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) { o.timeout = timeout }
}

// WithRateLimit limits the HTTP requests per second sent by the client.
func WithRateLimit(requestsPerSecond int) Option {
	return func(o *options) { o.rateLimit = requestsPerSecond }
}

// WithCircuitBreaker replaces the default HTTP circuit breaker.
func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(o *options) { o.breaker = cb }
}

// WithRegisterer registers the client collectors with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithDialer replaces the websocket dialer of the realtime channel.
func WithDialer(d realtime.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithAlwaysActive makes the reconnection policy consider the app always
// active, for hosts without foreground/background notifications.
func WithAlwaysActive() Option {
	return func(o *options) { o.alwaysActive = true }
}

// WithUnreachable starts the client considering the network unreachable
// until SetReachable(true).
func WithUnreachable() Option {
	return func(o *options) { o.unreachable = true }
}

// WithBackOff sets the delay policy between reconnections.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(o *options) { o.newBackOff = newBackOff }
}

// WithStreamBuffer sets the number of frames buffered per subscription.
func WithStreamBuffer(size int) Option {
	return func(o *options) { o.streamBuffer = size }
}

// Client is the cryptoless API client of one identity.
type Client struct {
	token    string
	signer   signer.Signer
	http     *httputil.Client
	manager  *realtime.Manager
	registry *realtime.Registry
}

// New returns a Client for the given identity token, signing every request
// with s.
func New(token string, s signer.Signer, opts ...Option) (*Client, error) {
	if len(token) <= 0 {
		return nil, apierror.Configuration("missing identity token")
	}
	if s == nil {
		return nil, apierror.Configuration("missing signer")
	}

	o := &options{
		baseURL:   DefaultBaseURL,
		socketURL: DefaultSocketURL,
	}
	for _, opt := range opts {
		opt(o)
	}

	var metrics *httputil.Metrics
	if o.registerer != nil {
		metrics = httputil.NewMetrics(o.registerer)
	}
	httpClient, err := httputil.NewClient(httputil.Opts{
		BaseURL:           o.baseURL,
		Timeout:           o.timeout,
		RequestsPerSecond: o.rateLimit,
		Breaker:           o.breaker,
		Metrics:           metrics,
		HTTPClient:        o.httpClient,
	})
	if err != nil {
		return nil, err
	}

	manager, err := realtime.NewManager(realtime.Opts{
		URL:          o.socketURL,
		Token:        token,
		Dialer:       o.dialer,
		Unreachable:  o.unreachable,
		AlwaysActive: o.alwaysActive,
		NewBackOff:   o.newBackOff,
		Registerer:   o.registerer,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		token:    token,
		signer:   s,
		http:     httpClient,
		manager:  manager,
		registry: realtime.NewRegistry(manager, o.streamBuffer),
	}, nil
}

// Register registers ownerPublicKey as owner of the identity.
func (c *Client) Register(ctx context.Context, ownerPublicKey string) (*Registration, error) {
	var r Registration
	if err := c.fetch(ctx, registerEndpoint(ownerPublicKey, randstr.Hex(nonceLength)), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// FetchNetworks returns the networks updated since latestUpdatedAt, in unix
// seconds. Zero means all.
func (c *Client) FetchNetworks(ctx context.Context, latestUpdatedAt uint64) ([]Network, error) {
	var networks []Network
	if err := c.fetchList(ctx, networksEndpoint(latestUpdatedAt), &networks); err != nil {
		return nil, err
	}
	return networks, nil
}

// DeployAccount creates a threshold-of-publicKeys account on the network.
func (c *Client) DeployAccount(
	ctx context.Context, networkCode string, publicKeys []string, threshold int,
) (*Account, error) {
	if threshold <= 0 || threshold > len(publicKeys) {
		return nil, apierror.Configuration(
			"threshold must be in range [1, %d], got %d", len(publicKeys), threshold,
		)
	}
	var account Account
	if err := c.fetch(
		ctx, deployAccountEndpoint(networkCode, publicKeys, threshold), &account,
	); err != nil {
		return nil, err
	}
	return &account, nil
}

// FetchAccounts returns the accounts including any of publicKeys.
func (c *Client) FetchAccounts(ctx context.Context, publicKeys []string) ([]Account, error) {
	var accounts []Account
	if err := c.fetchList(ctx, accountsEndpoint(publicKeys), &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// FetchTransactions returns a page of the transactions with the given status.
func (c *Client) FetchTransactions(
	ctx context.Context, status string, limit, offset int,
) ([]Transaction, error) {
	var txs []Transaction
	if err := c.fetchList(ctx, transactionsEndpoint(status, limit, offset), &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// SignTransaction attaches signatures to the transaction.
func (c *Client) SignTransaction(
	ctx context.Context, id string, signatures []Signature,
) (*Transaction, error) {
	if len(signatures) <= 0 {
		return nil, apierror.Configuration("missing signatures")
	}
	var tx Transaction
	if err := c.fetch(ctx, signTransactionEndpoint(id, signatures), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// SendTransaction moves a signed transaction to PENDING status for broadcast.
func (c *Client) SendTransaction(ctx context.Context, id string) (*Transaction, error) {
	var tx Transaction
	if err := c.fetch(ctx, sendTransactionEndpoint(id), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// FetchCoins returns the coins, with their networks, updated since
// latestUpdatedAt.
func (c *Client) FetchCoins(ctx context.Context, latestUpdatedAt uint64) ([]Coin, error) {
	var coins []Coin
	if err := c.fetchList(ctx, coinsEndpoint(latestUpdatedAt), &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// FetchHolders returns the balances updated since latestUpdatedAt.
func (c *Client) FetchHolders(ctx context.Context, latestUpdatedAt uint64) ([]Holder, error) {
	var holders []Holder
	if err := c.fetchList(ctx, holdersEndpoint(latestUpdatedAt), &holders); err != nil {
		return nil, err
	}
	return holders, nil
}

// FetchDelegators returns the delegations updated since latestUpdatedAt, an
// ISO8601 time. An empty or invalid time means all.
func (c *Client) FetchDelegators(ctx context.Context, latestUpdatedAt string) ([]Delegator, error) {
	var delegators []Delegator
	if err := c.fetchList(ctx, delegatorsEndpoint(latestUpdatedAt), &delegators); err != nil {
		return nil, err
	}
	return delegators, nil
}

// FetchInstructions returns the instructions updated since latestUpdatedAt.
func (c *Client) FetchInstructions(ctx context.Context, latestUpdatedAt uint64) ([]Instruction, error) {
	var instructions []Instruction
	if err := c.fetchList(ctx, instructionsEndpoint(latestUpdatedAt), &instructions); err != nil {
		return nil, err
	}
	return instructions, nil
}

// FetchBalanceTransactions returns the history of the symbol balance of
// address.
func (c *Client) FetchBalanceTransactions(
	ctx context.Context, symbol, address string,
) ([]BalanceTransaction, error) {
	var txs []BalanceTransaction
	if err := c.fetchList(ctx, balanceTransactionsEndpoint(symbol, address), &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// FetchStakings returns the staking programs updated since latestUpdatedAt.
func (c *Client) FetchStakings(ctx context.Context, latestUpdatedAt uint64) ([]Staking, error) {
	var stakings []Staking
	if err := c.fetchList(ctx, stakingsEndpoint(latestUpdatedAt), &stakings); err != nil {
		return nil, err
	}
	return stakings, nil
}

// Transfer creates the transactions moving amount of symbol from one address
// to another. They must be co-signed and sent.
func (c *Client) Transfer(
	ctx context.Context, symbol, networkCode, from, to string, amount decimal.Decimal,
) (*TransactionWrapper, error) {
	ep, err := transferEndpoint(symbol, networkCode, from, to, amount)
	if err != nil {
		return nil, err
	}
	return c.fetchTransactions(ctx, ep)
}

// Stake delegates amount of symbol held by from.
func (c *Client) Stake(
	ctx context.Context, symbol, networkCode, from string, amount decimal.Decimal,
) (*TransactionWrapper, error) {
	ep, err := stakeEndpoint(symbol, networkCode, from, amount)
	if err != nil {
		return nil, err
	}
	return c.fetchTransactions(ctx, ep)
}

// Unstake undelegates amount of symbol delegated by from.
func (c *Client) Unstake(
	ctx context.Context, symbol, networkCode, from string, amount decimal.Decimal,
) (*TransactionWrapper, error) {
	ep, err := unstakeEndpoint(symbol, networkCode, from, amount)
	if err != nil {
		return nil, err
	}
	return c.fetchTransactions(ctx, ep)
}

// Claim withdraws the staking rewards of from.
func (c *Client) Claim(
	ctx context.Context, symbol, networkCode, from string,
) (*TransactionWrapper, error) {
	return c.fetchTransactions(ctx, claimEndpoint(symbol, networkCode, from))
}

// AddCustomToken adds the token at contractAddress to the tracked coins.
func (c *Client) AddCustomToken(
	ctx context.Context, networkCode, contractAddress string,
) (*Coin, error) {
	if len(contractAddress) <= 0 {
		return nil, apierror.Configuration("missing contract address")
	}
	var coin Coin
	if err := c.fetch(ctx, addCustomTokenEndpoint(networkCode, contractAddress), &coin); err != nil {
		return nil, err
	}
	return &coin, nil
}

// QuoteSwap asks for the price of swapping amount of fromSymbol held by from
// into toSymbol.
func (c *Client) QuoteSwap(
	ctx context.Context, networkCode, from, fromSymbol, toSymbol string,
	amount decimal.Decimal,
) (*SwapQuote, error) {
	ep, err := quoteSwapEndpoint(networkCode, from, fromSymbol, toSymbol, amount)
	if err != nil {
		return nil, err
	}
	var quote SwapQuote
	if err := c.fetch(ctx, ep, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// Swap accepts the quote, the returned order transactions must be co-signed
// and sent.
func (c *Client) Swap(ctx context.Context, quoteID, from string) (*SwapOrder, error) {
	if len(quoteID) <= 0 {
		return nil, apierror.Configuration("missing quote id")
	}
	var order SwapOrder
	if err := c.fetch(ctx, swapEndpoint(quoteID, from), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) fetchTransactions(ctx context.Context, ep endpoint) (*TransactionWrapper, error) {
	var w TransactionWrapper
	if err := c.fetch(ctx, ep, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *Client) fetch(ctx context.Context, ep endpoint, v interface{}) error {
	body, err := c.call(ctx, ep)
	if err != nil {
		return err
	}
	return decodeObject(body, v)
}

func (c *Client) fetchList(ctx context.Context, ep endpoint, v interface{}) error {
	body, err := c.call(ctx, ep)
	if err != nil {
		return err
	}
	return decodeList(body, v)
}

// call signs the endpoint params and sends them. Nothing is sent if signing
// fails.
func (c *Client) call(ctx context.Context, ep endpoint) ([]byte, error) {
	env, err := envelope.Build(ep.params, c.token, c.signer)
	if err != nil {
		return nil, err
	}

	status, body, err := c.http.Do(ctx, httputil.Request{
		Name:     ep.name,
		Method:   ep.method,
		Path:     ep.path,
		Params:   env,
		Encoding: ep.encoding,
		Header:   map[string]string{"User-Agent": userAgent},
	})
	if err != nil {
		return nil, err
	}
	return checkResponse(status, body)
}
