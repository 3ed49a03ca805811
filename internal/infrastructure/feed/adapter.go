package feed

import (
	"errors"
	"strconv"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	"main/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

var (
	// ErrEmptyPayload marks a data frame whose payload section is missing or
	// empty; the whole message is dropped.
	ErrEmptyPayload = errors.New("empty feed payload")
	// ErrMissingSymbol marks a data frame that carries no symbol.
	ErrMissingSymbol = errors.New("missing symbol in feed payload")
)

// parseLevels converts raw [price, quantity, ...] string tuples into
// normalized updates. A malformed token rejects that level only; siblings
// still apply.
func parseLevels(out []marketdata.Update, exchange, symbol string, side marketdata.Side, raw [][]string, logger *logrus.Entry) []marketdata.Update {
	for _, lvl := range raw {
		if len(lvl) < 2 {
			metrics.LevelsSkippedTotal.WithLabelValues(exchange).Inc()
			logger.WithFields(logrus.Fields{"symbol": symbol, "side": side.String()}).
				Warn("truncated level skipped")
			continue
		}
		price, err := strconv.ParseFloat(lvl[0], 64)
		if err != nil {
			metrics.LevelsSkippedTotal.WithLabelValues(exchange).Inc()
			logger.WithError(err).WithFields(logrus.Fields{"symbol": symbol, "price": lvl[0]}).
				Warn("unparseable price, level skipped")
			continue
		}
		quantity, err := strconv.ParseFloat(lvl[1], 64)
		if err != nil {
			metrics.LevelsSkippedTotal.WithLabelValues(exchange).Inc()
			logger.WithError(err).WithFields(logrus.Fields{"symbol": symbol, "price": lvl[0]}).
				Warn("unparseable quantity, level skipped")
			continue
		}
		out = append(out, marketdata.Update{Side: side, Price: price, Quantity: quantity})
	}
	return out
}

// exchangeTime resolves the feed's millisecond timestamp. When absent or
// malformed the wire field becomes "N/A" and the receive time keys the
// record's bucket.
func exchangeTime(tsMillis string, received time.Time) (wire string, event time.Time) {
	if tsMillis == "" {
		return marketdata.NoExchangeTime, received
	}
	ms, err := strconv.ParseInt(tsMillis, 10, 64)
	if err != nil {
		return marketdata.NoExchangeTime, received
	}
	t := time.UnixMilli(ms).UTC()
	return marketdata.FormatTime(t), t
}
