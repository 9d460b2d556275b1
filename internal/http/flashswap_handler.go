package http

import (
	"encoding/base64"
	"errors"
	"strconv"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/flash-engine/internal/common"
	"github.com/hxuan190/flash-engine/internal/domain"
	"github.com/hxuan190/flash-engine/internal/http/httputil"
	"github.com/hxuan190/flash-engine/internal/services/builder"
	"github.com/hxuan190/flash-engine/internal/services/swapapi"
)

type FlashSwapHandler struct {
	builderSvc *builder.Service
}

func NewFlashSwapHandler(builderSvc *builder.Service) *FlashSwapHandler {
	return &FlashSwapHandler{builderSvc: builderSvc}
}

func (h *FlashSwapHandler) Root() string {
	return "/flashswap"
}

func (h *FlashSwapHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/estimate", h.getEstimate)
	pub.POST("/build", h.postBuild)
	pub.POST("/simulate", h.postSimulate)
	pub.GET("/builds/:wallet", h.getLastBuild)
}

// EstimateRequest asks how much of the liquid asset a flash swap would borrow.
type EstimateRequest struct {
	// Target token mint address (Solana base58 public key)
	TargetMint string `form:"targetMint" binding:"required" example:"uSd2czE61Evaf76RNbq4KPpXnkiL3irdzgLFUMe3NoG"`

	// Desired output in the target token's smallest units
	DesiredOut string `form:"desiredOut" binding:"required" example:"1000000"`

	// Slippage tolerance in basis points, default from DEFAULT_SLIPPAGE_BPS
	SlippageBps uint16 `form:"slippageBps" example:"50"`
}

// BuildRequestBody is the POST /build payload. Amounts are decimal strings
// to survive JSON number precision limits.
type BuildRequestBody struct {
	// Wallet that signs and pays for the transaction
	Wallet string `json:"wallet" binding:"required" example:"7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"`

	// Target token mint to acquire
	TargetMint string `json:"targetMint" binding:"required" example:"uSd2czE61Evaf76RNbq4KPpXnkiL3irdzgLFUMe3NoG"`

	// Desired output in the target token's smallest units; ignored when
	// borrowOverride is set
	DesiredOut string `json:"desiredOut" example:"1000000"`

	// Borrow exactly this many lamports instead of estimating
	BorrowOverride string `json:"borrowOverride" example:"0"`

	SlippageBps uint16 `json:"slippageBps" example:"50"`

	// SwapBack adds the reverse leg (target back to the liquid asset)
	SwapBack bool `json:"swapBack" example:"false"`

	// ExtraInstructions are caller-supplied instructions placed between
	// the swap leg and the repay; data is base64
	ExtraInstructions []ExtraInstruction `json:"extraInstructions,omitempty"`

	// Simulate dry-runs the transaction and attaches the result
	Simulate bool `json:"simulate" example:"false"`
}

// ExtraInstruction is a caller-supplied instruction in wire form.
type ExtraInstruction struct {
	ProgramID string             `json:"programId" binding:"required"`
	Accounts  []ExtraAccountMeta `json:"accounts"`
	Data      string             `json:"data"` // base64
}

type ExtraAccountMeta struct {
	Pubkey     string `json:"pubkey" binding:"required"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

type SimulateRequestBody struct {
	// Transaction is the base64 serialized transaction to dry-run
	Transaction string `json:"transaction" binding:"required"`
}

// getEstimate godoc
// @Summary Estimate the borrow amount for a desired output
// @Tags flashswap
// @Produce json
// @Param targetMint query string true "Target token mint"
// @Param desiredOut query string true "Desired output in smallest units"
// @Param slippageBps query int false "Slippage tolerance in bps"
// @Success 200 {object} httputil.Response{data=domain.EstimateResult}
// @Router /flashswap/estimate [get]
func (h *FlashSwapHandler) getEstimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	targetMint, err := solana.PublicKeyFromBase58(req.TargetMint)
	if err != nil {
		httputil.BadRequest(c, "invalid targetMint: "+err.Error())
		return
	}
	desiredOut, err := strconv.ParseUint(req.DesiredOut, 10, 64)
	if err != nil || desiredOut == 0 {
		httputil.BadRequest(c, "desiredOut must be a positive integer")
		return
	}

	res, err := h.builderSvc.Estimate(c.Request.Context(), targetMint, desiredOut, req.SlippageBps)
	if err != nil {
		h.writeBuildError(c, err)
		return
	}
	httputil.Success(c, res)
}

// postBuild godoc
// @Summary Build an unsigned flash-swap transaction
// @Tags flashswap
// @Accept json
// @Produce json
// @Param request body BuildRequestBody true "Build parameters"
// @Success 200 {object} httputil.Response{data=domain.BuildResult}
// @Router /flashswap/build [post]
func (h *FlashSwapHandler) postBuild(c *gin.Context) {
	var body BuildRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	req, err := buildRequestFromBody(&body)
	if err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	res, err := h.builderSvc.BuildFlashSwap(c.Request.Context(), req)
	if err != nil {
		h.writeBuildError(c, err)
		return
	}
	httputil.Success(c, res)
}

// postSimulate godoc
// @Summary Dry-run a serialized transaction against the RPC node
// @Tags flashswap
// @Accept json
// @Produce json
// @Param request body SimulateRequestBody true "Serialized transaction"
// @Success 200 {object} httputil.Response{data=domain.SimulationResult}
// @Router /flashswap/simulate [post]
func (h *FlashSwapHandler) postSimulate(c *gin.Context) {
	var body SimulateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httputil.BadRequest(c, err.Error())
		return
	}

	raw, err := base64.StdEncoding.DecodeString(body.Transaction)
	if err != nil {
		httputil.BadRequest(c, "transaction is not valid base64")
		return
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		httputil.BadRequest(c, "transaction does not deserialize: "+err.Error())
		return
	}

	sim, err := h.builderSvc.SimulateTransaction(c.Request.Context(), tx)
	if err != nil {
		httputil.InternalError(c, err.Error())
		return
	}
	httputil.Success(c, sim)
}

// getLastBuild godoc
// @Summary Fetch the most recent build record for a wallet
// @Tags flashswap
// @Produce json
// @Param wallet path string true "Wallet address"
// @Success 200 {object} httputil.Response{data=persistence.BuildRecord}
// @Router /flashswap/builds/{wallet} [get]
func (h *FlashSwapHandler) getLastBuild(c *gin.Context) {
	wallet, err := solana.PublicKeyFromBase58(c.Param("wallet"))
	if err != nil {
		httputil.BadRequest(c, "invalid wallet: "+err.Error())
		return
	}

	rec, err := h.builderSvc.LastBuild(wallet)
	if err != nil || rec == nil {
		httputil.WriteHttpError(c, common.HTTPErrorNotFound("no build recorded for wallet"))
		return
	}
	httputil.Success(c, rec)
}

func buildRequestFromBody(body *BuildRequestBody) (*domain.BuildRequest, error) {
	wallet, err := solana.PublicKeyFromBase58(body.Wallet)
	if err != nil {
		return nil, errors.New("invalid wallet: " + err.Error())
	}
	targetMint, err := solana.PublicKeyFromBase58(body.TargetMint)
	if err != nil {
		return nil, errors.New("invalid targetMint: " + err.Error())
	}

	var desiredOut, borrowOverride uint64
	if body.DesiredOut != "" {
		desiredOut, err = strconv.ParseUint(body.DesiredOut, 10, 64)
		if err != nil {
			return nil, errors.New("desiredOut must be an unsigned integer")
		}
	}
	if body.BorrowOverride != "" {
		borrowOverride, err = strconv.ParseUint(body.BorrowOverride, 10, 64)
		if err != nil {
			return nil, errors.New("borrowOverride must be an unsigned integer")
		}
	}

	extras := make([]solana.Instruction, 0, len(body.ExtraInstructions))
	for i, wire := range body.ExtraInstructions {
		ix, err := wire.toInstruction()
		if err != nil {
			return nil, errors.New("extraInstructions[" + strconv.Itoa(i) + "]: " + err.Error())
		}
		extras = append(extras, ix)
	}

	return &domain.BuildRequest{
		Wallet:            wallet,
		TargetMint:        targetMint,
		DesiredOut:        desiredOut,
		BorrowOverride:    borrowOverride,
		SlippageBps:       body.SlippageBps,
		SwapBack:          body.SwapBack,
		ExtraInstructions: extras,
		Simulate:          body.Simulate,
	}, nil
}

func (w *ExtraInstruction) toInstruction() (solana.Instruction, error) {
	program, err := solana.PublicKeyFromBase58(w.ProgramID)
	if err != nil {
		return nil, errors.New("invalid programId")
	}
	data, err := base64.StdEncoding.DecodeString(w.Data)
	if err != nil {
		return nil, errors.New("data is not valid base64")
	}
	metas := make(solana.AccountMetaSlice, 0, len(w.Accounts))
	for _, a := range w.Accounts {
		pk, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, errors.New("invalid account pubkey " + a.Pubkey)
		}
		metas = append(metas, &solana.AccountMeta{
			PublicKey:  pk,
			IsSigner:   a.IsSigner,
			IsWritable: a.IsWritable,
		})
	}
	return solana.NewInstruction(program, metas, data), nil
}

// writeBuildError maps build failures to the response codes callers act on:
// bad inputs and unsupported routes are 400, upstream failures are 502,
// structurally unusable results are 422.
func (h *FlashSwapHandler) writeBuildError(c *gin.Context, err error) {
	httputil.WriteHttpError(c, httpErrorFor(err))
}

func httpErrorFor(err error) *common.HttpError {
	switch {
	case errors.Is(err, builder.ErrInvalidWallet),
		errors.Is(err, builder.ErrInvalidAmount),
		errors.Is(err, swapapi.ErrMultiHopRouteRejected):
		return common.HTTPErrorBadRequest(err.Error())
	case errors.Is(err, swapapi.ErrQuoteUnavailable):
		return common.HTTPErrorBadGateway(err.Error())
	case errors.Is(err, builder.ErrTransactionTooLarge),
		errors.Is(err, builder.ErrNoValidLookupTables):
		return common.HTTPErrorUnprocessable(err.Error())
	default:
		return common.HTTPErrorInternalError(err.Error())
	}
}
