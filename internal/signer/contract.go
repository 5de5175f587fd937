package signer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
)

const isValidSignatureABI = `[{"inputs":[{"name":"_hash","type":"bytes32"},{"name":"_signature","type":"bytes"}],"name":"isValidSignature","outputs":[{"name":"magicValue","type":"bytes4"}],"stateMutability":"view","type":"function"}]`

// eip1271Magic is bytes4(keccak256("isValidSignature(bytes32,bytes)")).
var eip1271Magic = []byte{0x16, 0x26, 0xba, 0x7e}

var ErrNoRPC = errors.New("rpc url not configured")

// ContractVerifier checks claims signed by contract wallets through
// EIP-1271 isValidSignature. Results are cached per (wallet, digest, sig).
type ContractVerifier struct {
	rpcURL  string
	timeout time.Duration
	retries int
	ttl     time.Duration
	method  abi.ABI

	mu     sync.Mutex
	caller ethereum.ContractCaller
	cache  map[string]verdict
}

type verdict struct {
	valid   bool
	expires time.Time
}

func NewContractVerifier(rpcURL string, ttl, timeout time.Duration, retries int) (*ContractVerifier, error) {
	parsed, err := abi.JSON(strings.NewReader(isValidSignatureABI))
	if err != nil {
		return nil, fmt.Errorf("parse isValidSignature abi: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &ContractVerifier{
		rpcURL:  strings.TrimSpace(rpcURL),
		timeout: timeout,
		retries: retries,
		ttl:     ttl,
		method:  parsed,
		cache:   make(map[string]verdict),
	}, nil
}

// newContractVerifierWith is used by tests to skip dialing.
func newContractVerifierWith(caller ethereum.ContractCaller, ttl time.Duration) (*ContractVerifier, error) {
	v, err := NewContractVerifier("injected", ttl, time.Second, 0)
	if err != nil {
		return nil, err
	}
	v.caller = caller
	return v, nil
}

// VerifyClaim reports whether wallet accepts sigHex over the claim digest
// for gameKey.
func (v *ContractVerifier) VerifyClaim(ctx context.Context, d Domain, gameKey string, wallet common.Address, sigHex string) (bool, error) {
	if v.rpcURL == "" {
		return false, ErrNoRPC
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return false, fmt.Errorf("invalid signature encoding: %w", err)
	}
	var digest [32]byte
	copy(digest[:], ClaimDigest(d, gameKey, wallet))

	key := cacheKey(wallet, digest, sig)
	if valid, ok := v.cached(key); ok {
		return valid, nil
	}

	data, err := v.method.Pack("isValidSignature", digest, sig)
	if err != nil {
		return false, fmt.Errorf("pack isValidSignature: %w", err)
	}
	msg := ethereum.CallMsg{To: &wallet, Data: data}

	var lastErr error
	for attempt := 0; attempt <= v.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
		out, err := v.call(ctx, msg)
		if err != nil {
			lastErr = err
			continue
		}
		valid := len(out) >= 4 && bytes.Equal(out[:4], eip1271Magic)
		v.store(key, valid)
		return valid, nil
	}
	return false, lastErr
}

func (v *ContractVerifier) call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	caller, err := v.dial(ctx)
	if err != nil {
		return nil, err
	}
	out, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("isValidSignature call: %w", err)
	}
	return out, nil
}

func (v *ContractVerifier) dial(ctx context.Context) (ethereum.ContractCaller, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.caller != nil {
		return v.caller, nil
	}
	client, err := ethclient.DialContext(ctx, v.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	v.caller = client
	return client, nil
}

func cacheKey(wallet common.Address, digest [32]byte, sig []byte) string {
	return wallet.Hex() + ":" + common.Bytes2Hex(digest[:]) + ":" + common.Bytes2Hex(sig)
}

func (v *ContractVerifier) cached(key string) (bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.cache[key]
	if !ok {
		return false, false
	}
	if time.Now().After(e.expires) {
		delete(v.cache, key)
		return false, false
	}
	return e.valid, true
}

func (v *ContractVerifier) store(key string, valid bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache[key] = verdict{valid: valid, expires: time.Now().Add(v.ttl)}
}
