// Package ops serves the operational endpoints: health, relay balance, cost estimate and
// the public network descriptor.
package ops

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/chain"
	"github.com/RIKUY-ORG/Rikuy/api/src/relay"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/gin-gonic/gin"
)

type Relayer interface {
	Address() common.Address
	Thresholds() (min, critical *big.Int)
	CheckBalance(ctx context.Context) (relay.BalanceStatus, error)
	LastBalance() (relay.BalanceStatus, bool)
	EstimateCost(ctx context.Context, intent chain.Intent) (relay.CostEstimate, error)
}

type Handler struct {
	Relay     Relayer
	Chain     chain.Descriptor
	DevMode   bool
	StartedAt time.Time
}

func NewHandler(relayer Relayer, desc chain.Descriptor, devMode bool) *Handler {
	return &Handler{Relay: relayer, Chain: desc, DevMode: devMode, StartedAt: time.Now().UTC()}
}

// ToEther formats a wei amount in ether with up to 18 decimals.
func ToEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	f := new(big.Float).SetPrec(256).SetInt(wei)
	f.Quo(f, new(big.Float).SetPrec(256).SetInt64(params.Ether))
	return f.Text('f', 18)
}

// Health godoc
// @Summary      Liveness probe
// @Tags         Ops
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"network":   h.Chain.Name,
		"devMode":   h.DevMode,
		"uptime":    time.Since(h.StartedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	})
}

// Balance godoc
// @Summary      Relayer operating account balance
// @Tags         Ops
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      502  {object}  map[string]interface{}
// @Router       /relayer/balance [get]
func (h *Handler) Balance(c *gin.Context) {
	status, ok := h.Relay.LastBalance()
	if !ok || c.Query("refresh") == "true" {
		var err error
		status, err = h.Relay.CheckBalance(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
	}
	minBalance, critical := h.Relay.Thresholds()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"address":    h.Relay.Address().Hex(),
			"balanceWei": status.Balance.String(),
			"balance":    ToEther(status.Balance),
			"isLow":      status.IsLow,
			"isCritical": status.IsCritical,
			"checkedAt":  status.CheckedAt,
			"thresholds": gin.H{
				"minBalance":      ToEther(minBalance),
				"criticalBalance": ToEther(critical),
			},
		},
	})
}

// Estimate godoc
// @Summary      Estimated cost of relaying one report
// @Tags         Ops
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /relayer/estimate [get]
func (h *Handler) Estimate(c *gin.Context) {
	var proof [8]*big.Int
	var signals [4]*big.Int
	for i := range proof {
		proof[i] = big.NewInt(0)
	}
	for i := range signals {
		signals[i] = big.NewInt(0)
	}
	intent, err := chain.NewCreateReportIntent(h.Chain, [32]byte{}, 0, proof, signals)
	if err != nil {
		_ = c.Error(apperror.Internal(err))
		return
	}

	est, err := h.Relay.EstimateCost(c.Request.Context(), intent)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"gas":         est.Gas,
			"gasPriceWei": est.GasPrice.String(),
			"costWei":     est.Cost.String(),
			"cost":        ToEther(est.Cost),
		},
	})
}

// Network godoc
// @Summary      Chain the service relays to
// @Tags         Ops
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /network [get]
func (h *Handler) Network(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.Chain.Public()})
}
