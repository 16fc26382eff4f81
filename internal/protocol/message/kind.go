package message

import "strconv"

// Kind is the numeric tag in the leading field of an inbound frame.
type Kind int

// Invalid marks a frame whose leading field is not a message tag.
const Invalid Kind = -1

// Incoming message kinds.
const (
	TickPrice                   Kind = 1
	TickSize                    Kind = 2
	OrderStatus                 Kind = 3
	ErrMsg                      Kind = 4
	OpenOrder                   Kind = 5
	AcctValue                   Kind = 6
	PortfolioValue              Kind = 7
	AcctUpdateTime              Kind = 8
	NextValidID                 Kind = 9
	ContractData                Kind = 10
	ExecutionData               Kind = 11
	MarketDepth                 Kind = 12
	MarketDepthL2               Kind = 13
	NewsBulletins               Kind = 14
	ManagedAccts                Kind = 15
	ReceiveFA                   Kind = 16
	HistoricalData              Kind = 17
	BondContractData            Kind = 18
	ScannerParameters           Kind = 19
	ScannerData                 Kind = 20
	TickOptionComputation       Kind = 21
	TickGeneric                 Kind = 45
	TickString                  Kind = 46
	TickEFP                     Kind = 47
	CurrentTime                 Kind = 49
	RealTimeBars                Kind = 50
	FundamentalData             Kind = 51
	ContractDataEnd             Kind = 52
	OpenOrderEnd                Kind = 53
	AcctDownloadEnd             Kind = 54
	ExecutionDataEnd            Kind = 55
	DeltaNeutralValidation      Kind = 56
	TickSnapshotEnd             Kind = 57
	MarketDataType              Kind = 58
	CommissionReport            Kind = 59
	PositionData                Kind = 61
	PositionEnd                 Kind = 62
	AccountSummary              Kind = 63
	AccountSummaryEnd           Kind = 64
	VerifyMessageAPI            Kind = 65
	VerifyCompleted             Kind = 66
	DisplayGroupList            Kind = 67
	DisplayGroupUpdated         Kind = 68
	VerifyAndAuthMessageAPI     Kind = 69
	VerifyAndAuthCompleted      Kind = 70
	PositionMulti               Kind = 71
	PositionMultiEnd            Kind = 72
	AccountUpdateMulti          Kind = 73
	AccountUpdateMultiEnd       Kind = 74
	SecurityDefinitionOptParams Kind = 75
	SecurityDefinitionOptEnd    Kind = 76
	SoftDollarTiers             Kind = 77
	FamilyCodes                 Kind = 78
	SymbolSamples               Kind = 79
	MktDepthExchanges           Kind = 80
	TickReqParams               Kind = 81
	SmartComponents             Kind = 82
	NewsArticle                 Kind = 83
	TickNews                    Kind = 84
	NewsProviders               Kind = 85
	HistoricalNews              Kind = 86
	HistoricalNewsEnd           Kind = 87
	HeadTimestamp               Kind = 88
	HistogramData               Kind = 89
	HistoricalDataUpdate        Kind = 90
	RerouteMktDataReq           Kind = 91
	RerouteMktDepthReq          Kind = 92
	MarketRule                  Kind = 93
	PnL                         Kind = 94
	PnLSingle                   Kind = 95
	HistoricalTicks             Kind = 96
	HistoricalTicksBidAsk       Kind = 97
	HistoricalTicksLast         Kind = 98
	TickByTick                  Kind = 99
	OrderBound                  Kind = 100
	CompletedOrder              Kind = 101
	CompletedOrdersEnd          Kind = 102
	ReplaceFAEnd                Kind = 103
	WshMetaData                 Kind = 104
	WshEventData                Kind = 105
	HistoricalSchedule          Kind = 106
	UserInfo                    Kind = 107
	HistoricalDataEnd           Kind = 108
	CurrentTimeInMillis         Kind = 109
)

// Known reports whether k is in the catalog.
func (k Kind) Known() bool {
	_, ok := catalog[k]
	return ok
}

func (k Kind) String() string {
	if info, ok := catalog[k]; ok {
		return info.Name
	}
	if k == Invalid {
		return "invalid"
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// Tag renders the kind as the leading wire field of a frame that carries it.
func (k Kind) Tag() string {
	return strconv.Itoa(int(k))
}
