package broker

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kisquant/internal/domain"
)

// PlaceOrder submits one cash order. The call is at-most-once-attempt: there
// is no transient retry, and when the limiter has no free slot the order fails
// fast with ErrRateLimited instead of silently delaying. An auth failure
// triggers exactly one re-authentication and one resubmission.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if err := req.Validate(); err != nil {
		return domain.OrderResult{}, err
	}
	if !c.limiter.Allow() {
		return domain.OrderResult{}, errors.Wrap(domain.ErrRateLimited, "no rate-limit slot for order placement")
	}

	result, err := c.submitOrder(ctx, req)
	if errors.Is(err, domain.ErrAuth) {
		c.logger.Warn("order hit auth failure, re-authenticating once",
			zap.String("symbol", req.Symbol))
		c.invalidateToken()
		if authErr := c.Authenticate(ctx); authErr != nil {
			return domain.OrderResult{}, authErr
		}
		result, err = c.submitOrder(ctx, req)
	}
	if err != nil {
		return domain.OrderResult{}, err
	}

	return result, nil
}

func (c *Client) submitOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	trID := trIDBuy
	if req.Side == domain.SideSell {
		trID = trIDSell
	}

	// KIS order divisions: "00" limit with a unit price, "01" market with "0"
	division, unitPrice := "00", req.LimitPrice.StringFixed(0)
	if req.Type == domain.OrderTypeMarket {
		division, unitPrice = "01", "0"
	}

	body := orderRequestBody{
		AccountNo:          c.creds.AccountNo,
		AccountProductCode: c.creds.AccountProductCode,
		Symbol:             req.Symbol,
		OrderDivision:      division,
		Quantity:           strconv.FormatInt(req.Quantity, 10),
		UnitPrice:          unitPrice,
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, orderPath, trID, nil, body, &resp); err != nil {
		return domain.OrderResult{}, err
	}

	if !resp.ok() {
		// explicit broker-side rejection, distinct from an unknown outcome
		return domain.OrderResult{Accepted: false, Err: apiError(orderPath, resp.envelope)}, nil
	}
	if resp.Output.OrderNo == "" {
		return domain.OrderResult{}, errors.Wrap(domain.ErrDataUnavailable, "accepted order carries no order number")
	}

	c.logger.Info("order accepted by broker",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.Int64("quantity", req.Quantity),
		zap.String("broker_order_id", resp.Output.OrderNo))

	return domain.OrderResult{Accepted: true, BrokerOrderID: resp.Output.OrderNo}, nil
}

// FetchAccount returns the account summary and current positions. The
// projection is owned by this fetch and not cached.
func (c *Client) FetchAccount(ctx context.Context) (domain.Portfolio, error) {
	query := url.Values{}
	query.Set("CANO", c.creds.AccountNo)
	query.Set("ACNT_PRDT_CD", c.creds.AccountProductCode)
	query.Set("AFHR_FLPR_YN", "N")
	query.Set("INQR_DVSN", "02")
	query.Set("UNPR_DVSN", "01")
	query.Set("FUND_STTL_ICLD_YN", "N")
	query.Set("FNCG_AMT_AUTO_RDPT_YN", "N")
	query.Set("PRCS_DVSN", "00")
	query.Set("CTX_AREA_FK100", "")
	query.Set("CTX_AREA_NK100", "")

	var portfolio domain.Portfolio
	err := c.withRetry(ctx, "fetch account", func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(domain.ErrTransient, err.Error())
		}

		var resp balanceResponse
		if err := c.do(ctx, http.MethodGet, balancePath, trIDBalance, query, nil, &resp); err != nil {
			return err
		}
		if !resp.ok() {
			return errors.Wrap(domain.ErrDataUnavailable, apiError(balancePath, resp.envelope).Error())
		}

		positions := make([]domain.PortfolioPosition, 0, len(resp.Holdings))
		for _, h := range resp.Holdings {
			quantity, _ := strconv.ParseInt(h.Quantity, 10, 64)
			positions = append(positions, domain.PortfolioPosition{
				Symbol:           h.Symbol,
				Name:             h.Name,
				Quantity:         quantity,
				AvgPurchasePrice: parseDecimal(h.AvgPurchasePrice),
				CurrentPrice:     parseDecimal(h.CurrentPrice),
				EvalAmount:       parseDecimal(h.EvalAmount),
				ProfitLoss:       parseDecimal(h.ProfitLoss),
				ProfitLossRatio:  parseDecimal(h.ProfitLossRatio),
			})
		}

		var summary domain.AccountSummary
		if len(resp.Summary) > 0 {
			summary = domain.AccountSummary{
				TotalCash: parseDecimal(resp.Summary[0].TotalCash),
				TotalEval: parseDecimal(resp.Summary[0].TotalEval),
				NetAsset:  parseDecimal(resp.Summary[0].NetAsset),
			}
		}

		portfolio = domain.Portfolio{
			Account:   summary,
			Positions: positions,
			FetchedAt: c.now().UTC(),
		}
		return nil
	})
	if err != nil {
		return domain.Portfolio{}, err
	}
	return portfolio, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
