package exchange

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"stratrunner.com/internal/model"
)

// BinanceSession 单个用户的币安现货会话
type BinanceSession struct {
	client *binance.Client
}

var _ Session = (*BinanceSession)(nil)

// BinanceBaseURL 返回现货 REST 地址, 不修改 SDK 的全局 UseTestnet
func BinanceBaseURL(testnet bool) string {
	if testnet {
		return binance.BaseAPITestnetURL
	}
	return binance.BaseAPIMainURL
}

// NewBinanceSessionFactory 返回基于用户 API Key 创建会话的工厂
func NewBinanceSessionFactory(baseURL string) SessionFactory {
	return func(_ context.Context, _ string, creds Credentials) (Session, error) {
		if creds.APIKey == "" || creds.APISecret == "" {
			return nil, &Error{Kind: KindCredentials, Err: fmt.Errorf("empty api key or secret")}
		}
		return &BinanceSession{client: newBinanceClient(creds.APIKey, creds.APISecret, baseURL)}, nil
	}
}

func newBinanceClient(apiKey, secret, baseURL string) *binance.Client {
	client := binance.NewClient(apiKey, secret)
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return client
}

func (s *BinanceSession) PlaceOrder(ctx context.Context, order model.OrderRequest) (*PlaceResult, error) {
	svc := s.client.NewCreateOrderService().
		Symbol(order.Symbol).
		Side(binance.SideType(order.Side)).
		Type(binance.OrderType(order.Type)).
		Quantity(order.Quantity.String())

	if order.Type == model.OrderTypeLimit && order.LimitPrice != nil {
		svc = svc.TimeInForce(binance.TimeInForceTypeGTC).Price(order.LimitPrice.String())
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, Classify(err)
	}

	// 只有完全成交才算成功, 挂单或过期单不结算
	if res.Status != binance.OrderStatusTypeFilled {
		return nil, &Error{
			Kind: KindNotFilled,
			Err: fmt.Errorf("order %d status %s, executed %s of %s",
				res.OrderID, res.Status, res.ExecutedQuantity, res.OrigQuantity),
		}
	}

	return &PlaceResult{
		ExchangeOrderID: strconv.FormatInt(res.OrderID, 10),
		FillPrice:       averageFillPrice(res),
		ExecutedQty:     parseDecimal(res.ExecutedQuantity),
		Status:          StatusFilled,
	}, nil
}

func (s *BinanceSession) AccountState(ctx context.Context) (*AccountState, error) {
	acc, err := s.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, Classify(err)
	}
	return &AccountState{CanTrade: acc.CanTrade}, nil
}

// averageFillPrice 成交均价 = 累计成交额 / 成交数量, 未成交时退回委托价
func averageFillPrice(res *binance.CreateOrderResponse) decimal.Decimal {
	qty := parseDecimal(res.ExecutedQuantity)
	quote := parseDecimal(res.CummulativeQuoteQuantity)
	if qty.IsPositive() && quote.IsPositive() {
		return quote.Div(qty)
	}
	if len(res.Fills) > 0 {
		return parseDecimal(res.Fills[0].Price)
	}
	return parseDecimal(res.Price)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// BinancePriceFeed 使用公共行情接口查询最新价
type BinancePriceFeed struct {
	client *binance.Client
}

var _ PriceFeed = (*BinancePriceFeed)(nil)

func NewBinancePriceFeed(baseURL string) *BinancePriceFeed {
	return &BinancePriceFeed{client: newBinanceClient("", "", baseURL)}
}

func (f *BinancePriceFeed) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := f.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, Classify(err)
	}
	for _, p := range prices {
		if p.Symbol == symbol {
			return decimal.NewFromString(p.Price)
		}
	}
	return decimal.Zero, &Error{Kind: KindUnknownSymbol, Err: fmt.Errorf("no price for %s", symbol)}
}
