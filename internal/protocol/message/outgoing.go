package message

import "strconv"

// Outgoing is the leading tag of a client request.
type Outgoing int

const (
	ReqMktData                Outgoing = 1
	CancelMktData             Outgoing = 2
	PlaceOrder                Outgoing = 3
	CancelOrder               Outgoing = 4
	ReqOpenOrders             Outgoing = 5
	ReqAcctData               Outgoing = 6
	ReqExecutions             Outgoing = 7
	ReqIDs                    Outgoing = 8
	ReqContractData           Outgoing = 9
	ReqMktDepth               Outgoing = 10
	CancelMktDepth            Outgoing = 11
	ReqNewsBulletins          Outgoing = 12
	CancelNewsBulletins       Outgoing = 13
	SetServerLogLevel         Outgoing = 14
	ReqAutoOpenOrders         Outgoing = 15
	ReqAllOpenOrders          Outgoing = 16
	ReqManagedAccts           Outgoing = 17
	ReqFA                     Outgoing = 18
	ReplaceFA                 Outgoing = 19
	ReqHistoricalData         Outgoing = 20
	ExerciseOptions           Outgoing = 21
	ReqScannerSubscription    Outgoing = 22
	CancelScannerSubscription Outgoing = 23
	ReqScannerParameters      Outgoing = 24
	CancelHistoricalData      Outgoing = 25
	ReqCurrentTime            Outgoing = 49
	ReqRealTimeBars           Outgoing = 50
	CancelRealTimeBars        Outgoing = 51
	ReqFundamentalData        Outgoing = 52
	CancelFundamentalData     Outgoing = 53
	ReqCalcImpliedVolat       Outgoing = 54
	ReqCalcOptionPrice        Outgoing = 55
	CancelCalcImpliedVolat    Outgoing = 56
	CancelCalcOptionPrice     Outgoing = 57
	ReqGlobalCancel           Outgoing = 58
	ReqMarketDataType         Outgoing = 59
	ReqPositions              Outgoing = 61
	ReqAccountSummary         Outgoing = 62
	CancelAccountSummary      Outgoing = 63
	CancelPositions           Outgoing = 64
	StartAPI                  Outgoing = 71
	ReqPositionsMulti         Outgoing = 74
	CancelPositionsMulti      Outgoing = 75
	ReqAccountUpdatesMulti    Outgoing = 76
	CancelAccountUpdatesMulti Outgoing = 77
	ReqSecDefOptParams        Outgoing = 78
	ReqSoftDollarTiers        Outgoing = 79
	ReqFamilyCodes            Outgoing = 80
	ReqMatchingSymbols        Outgoing = 81
	ReqMktDepthExchanges      Outgoing = 82
	ReqSmartComponents        Outgoing = 83
	ReqNewsArticle            Outgoing = 84
	ReqNewsProviders          Outgoing = 85
	ReqHistoricalNews         Outgoing = 86
	ReqHeadTimestamp          Outgoing = 87
	ReqHistogramData          Outgoing = 88
	CancelHistogramData       Outgoing = 89
	CancelHeadTimestamp       Outgoing = 90
	ReqMarketRule             Outgoing = 91
	ReqPnL                    Outgoing = 92
	CancelPnL                 Outgoing = 93
	ReqPnLSingle              Outgoing = 94
	CancelPnLSingle           Outgoing = 95
	ReqHistoricalTicks        Outgoing = 96
	ReqTickByTickData         Outgoing = 97
	CancelTickByTickData      Outgoing = 98
	ReqCompletedOrders        Outgoing = 99
	ReqWshMetaData            Outgoing = 100
	CancelWshMetaData         Outgoing = 101
	ReqWshEventData           Outgoing = 102
	CancelWshEventData        Outgoing = 103
	ReqUserInfo               Outgoing = 104
)

// Tag renders the outgoing id as its wire field.
func (o Outgoing) Tag() string {
	return strconv.Itoa(int(o))
}
