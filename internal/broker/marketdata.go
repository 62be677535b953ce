package broker

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kisquant/internal/domain"
)

const kisDateLayout = "20060102"

// FetchQuote returns the latest price bar for a symbol. The bar carries the
// current price as close alongside the session's open/high/low and cumulative
// volume.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (domain.PriceBar, error) {
	query := url.Values{}
	query.Set("FID_COND_MRKT_DIV_CODE", "J")
	query.Set("FID_INPUT_ISCD", symbol)

	var bar domain.PriceBar
	err := c.withRetry(ctx, "fetch quote", func() error {
		// every attempt, retries included, takes a limiter slot
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(domain.ErrTransient, err.Error())
		}

		var resp quoteResponse
		if err := c.do(ctx, http.MethodGet, quotePath, trIDQuote, query, nil, &resp); err != nil {
			return err
		}
		if !resp.ok() {
			return errors.Wrap(domain.ErrDataUnavailable, apiError(quotePath, resp.envelope).Error())
		}

		price, err := decimal.NewFromString(resp.Output.Price)
		if err != nil {
			return errors.Wrapf(domain.ErrDataUnavailable, "malformed quote price %q for %s", resp.Output.Price, symbol)
		}
		open, err := decimal.NewFromString(resp.Output.Open)
		if err != nil {
			return errors.Wrapf(domain.ErrDataUnavailable, "malformed quote open %q for %s", resp.Output.Open, symbol)
		}
		high, err := decimal.NewFromString(resp.Output.High)
		if err != nil {
			return errors.Wrapf(domain.ErrDataUnavailable, "malformed quote high %q for %s", resp.Output.High, symbol)
		}
		low, err := decimal.NewFromString(resp.Output.Low)
		if err != nil {
			return errors.Wrapf(domain.ErrDataUnavailable, "malformed quote low %q for %s", resp.Output.Low, symbol)
		}
		volume, err := strconv.ParseInt(resp.Output.Volume, 10, 64)
		if err != nil {
			return errors.Wrapf(domain.ErrDataUnavailable, "malformed quote volume %q for %s", resp.Output.Volume, symbol)
		}

		bar = domain.PriceBar{
			Time:   c.now().UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: volume,
		}
		return nil
	})
	if err != nil {
		return domain.PriceBar{}, err
	}
	return bar, nil
}

// FetchHistory returns the daily price series covering the trailing lookback
// calendar days, oldest bar first. An empty or malformed broker response is a
// DataUnavailable failure, never a silently short series.
func (c *Client) FetchHistory(ctx context.Context, symbol string, lookback int) (domain.PriceSeries, error) {
	if lookback <= 0 {
		return nil, errors.Wrapf(domain.ErrValidation, "lookback must be positive, got %d", lookback)
	}

	end := c.now()
	start := end.AddDate(0, 0, -lookback)

	query := url.Values{}
	query.Set("FID_COND_MRKT_DIV_CODE", "J")
	query.Set("FID_INPUT_ISCD", symbol)
	query.Set("FID_INPUT_DATE_1", start.Format(kisDateLayout))
	query.Set("FID_INPUT_DATE_2", end.Format(kisDateLayout))
	query.Set("FID_PERIOD_DIV_CODE", "D")
	query.Set("FID_ORG_ADJ_PRC", "0")

	var series domain.PriceSeries
	err := c.withRetry(ctx, "fetch history", func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(domain.ErrTransient, err.Error())
		}

		var resp dailyPriceResponse
		if err := c.do(ctx, http.MethodGet, dailyPath, trIDDaily, query, nil, &resp); err != nil {
			return err
		}
		if !resp.ok() {
			return errors.Wrap(domain.ErrDataUnavailable, apiError(dailyPath, resp.envelope).Error())
		}
		if len(resp.Output) == 0 {
			return errors.Wrapf(domain.ErrDataUnavailable, "empty daily series for %s", symbol)
		}

		parsed, err := parseDailyBars(resp.Output)
		if err != nil {
			return errors.Wrapf(err, "daily series for %s", symbol)
		}
		series = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched daily series",
		zap.String("symbol", symbol), zap.Int("bars", len(series)))
	return series, nil
}

// parseDailyBars converts the broker payload into a chronological series with
// unique timestamps. KIS delivers newest-first; bars are re-sorted ascending.
func parseDailyBars(items []dailyBar) (domain.PriceSeries, error) {
	series := make(domain.PriceSeries, 0, len(items))
	for _, item := range items {
		day, err := time.Parse(kisDateLayout, item.Date)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrDataUnavailable, "malformed bar date %q", item.Date)
		}
		open, err := decimal.NewFromString(item.Open)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrDataUnavailable, "malformed open %q at %s", item.Open, item.Date)
		}
		high, err := decimal.NewFromString(item.High)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrDataUnavailable, "malformed high %q at %s", item.High, item.Date)
		}
		low, err := decimal.NewFromString(item.Low)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrDataUnavailable, "malformed low %q at %s", item.Low, item.Date)
		}
		closePrice, err := decimal.NewFromString(item.Close)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrDataUnavailable, "malformed close %q at %s", item.Close, item.Date)
		}
		volume, err := strconv.ParseInt(item.Volume, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrDataUnavailable, "malformed volume %q at %s", item.Volume, item.Date)
		}

		series = append(series, domain.PriceBar{
			Time:   day.UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })

	deduped := series[:0]
	for i, bar := range series {
		if i > 0 && bar.Time.Equal(series[i-1].Time) {
			continue
		}
		deduped = append(deduped, bar)
	}
	return deduped, nil
}
