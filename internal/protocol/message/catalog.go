package message

// NoRequestID marks kinds that carry no request identifier.
const NoRequestID = -1

// Info describes how the correlator treats one message kind.
type Info struct {
	Kind Kind
	Name string
	// RequestIDField is the index of the request id field at ProtocolVersion,
	// or NoRequestID.
	RequestIDField int
	// Terminal kinds complete the pending request that receives them.
	Terminal bool
}

func entry(k Kind, name string, idField int, terminal bool) Info {
	return Info{Kind: k, Name: name, RequestIDField: idField, Terminal: terminal}
}

// Field positions follow the layouts a version 176 gateway sends. Kinds with
// a leading version field carry the id at index 2.
var catalog = func() map[Kind]Info {
	entries := []Info{
		entry(TickPrice, "tickPrice", 2, false),
		entry(TickSize, "tickSize", 2, false),
		entry(OrderStatus, "orderStatus", NoRequestID, false),
		entry(ErrMsg, "error", 2, false),
		entry(OpenOrder, "openOrder", NoRequestID, false),
		entry(AcctValue, "updateAccountValue", NoRequestID, false),
		entry(PortfolioValue, "updatePortfolio", NoRequestID, false),
		entry(AcctUpdateTime, "updateAccountTime", NoRequestID, false),
		entry(NextValidID, "nextValidId", NoRequestID, false),
		entry(ContractData, "contractDetails", 1, false),
		entry(ExecutionData, "execDetails", 1, false),
		entry(MarketDepth, "updateMktDepth", 2, false),
		entry(MarketDepthL2, "updateMktDepthL2", 2, false),
		entry(NewsBulletins, "updateNewsBulletin", NoRequestID, false),
		entry(ManagedAccts, "managedAccounts", NoRequestID, false),
		entry(ReceiveFA, "receiveFA", NoRequestID, false),
		entry(HistoricalData, "historicalData", 1, true),
		entry(BondContractData, "bondContractDetails", 1, false),
		entry(ScannerParameters, "scannerParameters", NoRequestID, false),
		entry(ScannerData, "scannerData", 2, false),
		entry(TickOptionComputation, "tickOptionComputation", 1, false),
		entry(TickGeneric, "tickGeneric", 2, false),
		entry(TickString, "tickString", 2, false),
		entry(TickEFP, "tickEFP", 2, false),
		entry(CurrentTime, "currentTime", NoRequestID, false),
		entry(RealTimeBars, "realtimeBar", 2, false),
		entry(FundamentalData, "fundamentalData", 2, true),
		entry(ContractDataEnd, "contractDetailsEnd", 2, true),
		entry(OpenOrderEnd, "openOrderEnd", NoRequestID, false),
		entry(AcctDownloadEnd, "accountDownloadEnd", NoRequestID, false),
		entry(ExecutionDataEnd, "execDetailsEnd", 2, true),
		entry(DeltaNeutralValidation, "deltaNeutralValidation", 2, false),
		entry(TickSnapshotEnd, "tickSnapshotEnd", 2, true),
		entry(MarketDataType, "marketDataType", 2, false),
		entry(CommissionReport, "commissionReport", NoRequestID, false),
		entry(PositionData, "position", NoRequestID, false),
		entry(PositionEnd, "positionEnd", NoRequestID, false),
		entry(AccountSummary, "accountSummary", 2, false),
		entry(AccountSummaryEnd, "accountSummaryEnd", 2, true),
		entry(VerifyMessageAPI, "verifyMessageAPI", NoRequestID, false),
		entry(VerifyCompleted, "verifyCompleted", NoRequestID, false),
		entry(DisplayGroupList, "displayGroupList", 2, true),
		entry(DisplayGroupUpdated, "displayGroupUpdated", 2, false),
		entry(VerifyAndAuthMessageAPI, "verifyAndAuthMessageAPI", NoRequestID, false),
		entry(VerifyAndAuthCompleted, "verifyAndAuthCompleted", NoRequestID, false),
		entry(PositionMulti, "positionMulti", 2, false),
		entry(PositionMultiEnd, "positionMultiEnd", 2, true),
		entry(AccountUpdateMulti, "accountUpdateMulti", 2, false),
		entry(AccountUpdateMultiEnd, "accountUpdateMultiEnd", 2, true),
		entry(SecurityDefinitionOptParams, "securityDefinitionOptionParameter", 1, false),
		entry(SecurityDefinitionOptEnd, "securityDefinitionOptionParameterEnd", 1, true),
		entry(SoftDollarTiers, "softDollarTiers", 1, true),
		entry(FamilyCodes, "familyCodes", NoRequestID, false),
		entry(SymbolSamples, "symbolSamples", 1, true),
		entry(MktDepthExchanges, "mktDepthExchanges", NoRequestID, false),
		entry(TickReqParams, "tickReqParams", 1, false),
		entry(SmartComponents, "smartComponents", 1, true),
		entry(NewsArticle, "newsArticle", 1, true),
		entry(TickNews, "tickNews", 1, false),
		entry(NewsProviders, "newsProviders", NoRequestID, false),
		entry(HistoricalNews, "historicalNews", 1, false),
		entry(HistoricalNewsEnd, "historicalNewsEnd", 1, true),
		entry(HeadTimestamp, "headTimestamp", 1, true),
		entry(HistogramData, "histogramData", 1, true),
		entry(HistoricalDataUpdate, "historicalDataUpdate", 1, false),
		entry(RerouteMktDataReq, "rerouteMktDataReq", 1, false),
		entry(RerouteMktDepthReq, "rerouteMktDepthReq", 1, false),
		entry(MarketRule, "marketRule", NoRequestID, false),
		entry(PnL, "pnl", 1, false),
		entry(PnLSingle, "pnlSingle", 1, false),
		entry(HistoricalTicks, "historicalTicks", 1, true),
		entry(HistoricalTicksBidAsk, "historicalTicksBidAsk", 1, true),
		entry(HistoricalTicksLast, "historicalTicksLast", 1, true),
		entry(TickByTick, "tickByTick", 1, false),
		entry(OrderBound, "orderBound", NoRequestID, false),
		entry(CompletedOrder, "completedOrder", NoRequestID, false),
		entry(CompletedOrdersEnd, "completedOrdersEnd", NoRequestID, false),
		entry(ReplaceFAEnd, "replaceFAEnd", 1, true),
		entry(WshMetaData, "wshMetaData", 1, true),
		entry(WshEventData, "wshEventData", 1, true),
		entry(HistoricalSchedule, "historicalSchedule", 1, true),
		entry(UserInfo, "userInfo", 1, true),
		entry(HistoricalDataEnd, "historicalDataEnd", 1, true),
		entry(CurrentTimeInMillis, "currentTimeInMillis", NoRequestID, false),
	}
	out := make(map[Kind]Info, len(entries))
	for _, e := range entries {
		out[e.Kind] = e
	}
	return out
}()

// Lookup returns the catalog entry for k.
func Lookup(k Kind) (Info, bool) {
	info, ok := catalog[k]
	return info, ok
}

// Catalog returns every known entry ordered by tag.
func Catalog() []Info {
	out := make([]Info, 0, len(catalog))
	for k := Kind(0); len(out) < len(catalog); k++ {
		if info, ok := catalog[k]; ok {
			out = append(out, info)
		}
	}
	return out
}
