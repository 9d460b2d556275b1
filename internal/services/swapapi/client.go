// Package swapapi talks to the external swap-routing HTTP service: priced
// quotes and executable instruction sets for a chosen route.
package swapapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/flash-engine/internal/config"
	"github.com/hxuan190/flash-engine/internal/domain"
	"github.com/hxuan190/flash-engine/internal/metrics"
)

const SWAP_API_SERVICE = "swap-api-service"

var (
	ErrQuoteUnavailable      = errors.New("swap routing service unavailable or no route exists")
	ErrMultiHopRouteRejected = errors.New("multi-hop route rejected: only direct routes are supported")
	ErrMalformedResponse     = errors.New("malformed swap service response")
)

type Service struct {
	container.BaseDIInstance

	baseURL            string
	httpClient         *http.Client
	defaultSlippageBps uint16
}

func (svc *Service) ID() string {
	return SWAP_API_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	conf := c.GetConfig(config.SWAP_API_CONFIG_KEY).(*config.SwapAPIConfig)
	svc.baseURL = conf.BaseURL
	svc.httpClient = &http.Client{Timeout: conf.Timeout}
	svc.defaultSlippageBps = conf.DefaultSlippageBps
	return nil
}

// DefaultSlippageBps exposes the configured fallback slippage.
func (svc *Service) DefaultSlippageBps() uint16 {
	return svc.defaultSlippageBps
}

type quoteWire struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InputAmount          string          `json:"inputAmount"`
	OutputAmount         string          `json:"outputAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SlippageBps          uint16          `json:"slippageBps"`
	PriceImpactPct       float64         `json:"priceImpactPct"`
	RoutePlan            []routePlanWire `json:"routePlan"`
}

type routePlanWire struct {
	SwapInfo struct {
		AmmKey     string `json:"ammKey"`
		Label      string `json:"label"`
		InputMint  string `json:"inputMint"`
		OutputMint string `json:"outputMint"`
		InAmount   string `json:"inAmount"`
		OutAmount  string `json:"outAmount"`
		FeeAmount  string `json:"feeAmount"`
	} `json:"swapInfo"`
	Percent uint8 `json:"percent"`
}

// GetQuote requests a priced direct route. Routes with more than one hop are
// rejected by policy, not truncated.
func (svc *Service) GetQuote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64, slippageBps uint16) (*domain.Quote, error) {
	if slippageBps == 0 {
		slippageBps = svc.defaultSlippageBps
	}

	params := url.Values{}
	params.Set("inputAsset", inputMint.String())
	params.Set("outputAsset", outputMint.String())
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("maxSlippageBps", strconv.FormatUint(uint64(slippageBps), 10))
	params.Set("directRoutesOnly", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.baseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		metrics.QuoteRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.QuoteRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.QuoteRequests.WithLabelValues("no_route").Inc()
		return nil, fmt.Errorf("%w: status %d", ErrQuoteUnavailable, resp.StatusCode)
	}

	var wire quoteWire
	if err := sonic.Unmarshal(body, &wire); err != nil {
		metrics.QuoteRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	quote, err := quoteFromWire(&wire, body)
	if err != nil {
		metrics.QuoteRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	if quote.Hops() == 0 {
		metrics.QuoteRequests.WithLabelValues("no_route").Inc()
		return nil, fmt.Errorf("%w: empty route plan", ErrQuoteUnavailable)
	}
	if quote.Hops() > 1 {
		metrics.QuoteRequests.WithLabelValues("multi_hop").Inc()
		return nil, fmt.Errorf("%w: got %d hops", ErrMultiHopRouteRejected, quote.Hops())
	}

	metrics.QuoteRequests.WithLabelValues("ok").Inc()
	return quote, nil
}

func quoteFromWire(wire *quoteWire, raw []byte) (*domain.Quote, error) {
	inputMint, err := solana.PublicKeyFromBase58(wire.InputMint)
	if err != nil {
		return nil, fmt.Errorf("%w: inputMint: %v", ErrMalformedResponse, err)
	}
	outputMint, err := solana.PublicKeyFromBase58(wire.OutputMint)
	if err != nil {
		return nil, fmt.Errorf("%w: outputMint: %v", ErrMalformedResponse, err)
	}
	inAmount, err := strconv.ParseUint(wire.InputAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: inputAmount %q", ErrMalformedResponse, wire.InputAmount)
	}
	outAmount, err := strconv.ParseUint(wire.OutputAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: outputAmount %q", ErrMalformedResponse, wire.OutputAmount)
	}

	var threshold uint64
	if wire.OtherAmountThreshold != "" {
		threshold, _ = strconv.ParseUint(wire.OtherAmountThreshold, 10, 64)
	}

	route := make([]domain.RouteStep, 0, len(wire.RoutePlan))
	for _, step := range wire.RoutePlan {
		stepIn, err := strconv.ParseUint(step.SwapInfo.InAmount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: route step inAmount %q", ErrMalformedResponse, step.SwapInfo.InAmount)
		}
		stepOut, err := strconv.ParseUint(step.SwapInfo.OutAmount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: route step outAmount %q", ErrMalformedResponse, step.SwapInfo.OutAmount)
		}
		stepFee, err := strconv.ParseUint(step.SwapInfo.FeeAmount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: route step feeAmount %q", ErrMalformedResponse, step.SwapInfo.FeeAmount)
		}

		stepInputMint, err := solana.PublicKeyFromBase58(step.SwapInfo.InputMint)
		if err != nil {
			return nil, fmt.Errorf("%w: route step inputMint: %v", ErrMalformedResponse, err)
		}
		stepOutputMint, err := solana.PublicKeyFromBase58(step.SwapInfo.OutputMint)
		if err != nil {
			return nil, fmt.Errorf("%w: route step outputMint: %v", ErrMalformedResponse, err)
		}

		route = append(route, domain.RouteStep{
			AmmKey:     step.SwapInfo.AmmKey,
			Label:      step.SwapInfo.Label,
			InputMint:  stepInputMint,
			OutputMint: stepOutputMint,
			InAmount:   stepIn,
			OutAmount:  stepOut,
			FeeAmount:  stepFee,
		})
	}

	return &domain.Quote{
		InputMint:            inputMint,
		OutputMint:           outputMint,
		InAmount:             inAmount,
		OutAmount:            outAmount,
		OtherAmountThreshold: threshold,
		SlippageBps:          wire.SlippageBps,
		PriceImpactPct:       wire.PriceImpactPct,
		Route:                route,
		Raw:                  raw,
	}, nil
}

type swapInstructionsRequest struct {
	Quote           json.RawMessage `json:"quote"`
	PayerAddress    string          `json:"payerAddress"`
	WrapNativeAsset bool            `json:"wrapNativeAsset"`
	AsLegacy        bool            `json:"asLegacyTransaction"`
}

type swapInstructionsResponse struct {
	SerializedTransaction       string   `json:"serializedTransaction"`
	LastValidBlockHeight        uint64   `json:"lastValidBlockHeight"`
	AddressLookupTableAddresses []string `json:"addressLookupTableAddresses,omitempty"`
}

// GetSwapInstructions fetches the executable instruction set for a quoted
// route and rewrites it for the flash-loan lifecycle: compute-budget
// instructions and escrow-closing instructions injected by the swap service
// are stripped, and when sourceOverride is set, references to that account
// are redirected to the escrow with the signer flag cleared.
func (svc *Service) GetSwapInstructions(ctx context.Context, quote *domain.Quote, payer, escrow, sourceOverride solana.PublicKey) (*domain.RouteInstructions, error) {
	if quote.Hops() > 1 {
		// Contract violation by the upstream service; never accepted silently.
		return nil, fmt.Errorf("%w: swap response has %d hops", ErrMultiHopRouteRejected, quote.Hops())
	}

	reqBody, err := sonic.Marshal(&swapInstructionsRequest{
		Quote:           quote.Raw,
		PayerAddress:    payer.String(),
		WrapNativeAsset: true,
		AsLegacy:        true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.baseURL+"/swap-instructions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := svc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: swap-instructions status %d", ErrQuoteUnavailable, resp.StatusCode)
	}

	var wire swapInstructionsResponse
	if err := sonic.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	raw, err := base64.StdEncoding.DecodeString(wire.SerializedTransaction)
	if err != nil {
		return nil, fmt.Errorf("%w: serializedTransaction: %v", ErrMalformedResponse, err)
	}

	instructions, err := extractRouteInstructions(raw, escrow, sourceOverride)
	if err != nil {
		return nil, err
	}

	luts := make([]solana.PublicKey, 0, len(wire.AddressLookupTableAddresses))
	for _, addr := range wire.AddressLookupTableAddresses {
		pk, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: lookup table address %q", ErrMalformedResponse, addr)
		}
		luts = append(luts, pk)
	}

	return &domain.RouteInstructions{
		Instructions: instructions,
		LookupTables: luts,
	}, nil
}
