package broker

// Wire types for the KIS OpenAPI. Field names follow the broker's JSON keys;
// everything is delivered as strings and parsed at the boundary.

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	AppKey    string `json:"appkey"`
	AppSecret string `json:"appsecret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// envelope is the common KIS response header. rt_cd "0" means success.
type envelope struct {
	RtCd string `json:"rt_cd"`
	Msg1 string `json:"msg1"`
}

func (e envelope) ok() bool { return e.RtCd == "0" }

type quoteResponse struct {
	envelope
	Output struct {
		Price  string `json:"stck_prpr"`
		Open   string `json:"stck_oprc"`
		High   string `json:"stck_hgpr"`
		Low    string `json:"stck_lwpr"`
		Volume string `json:"acml_vol"`
	} `json:"output"`
}

type dailyPriceResponse struct {
	envelope
	Output []dailyBar `json:"output1"`
}

type dailyBar struct {
	Date   string `json:"stck_bsop_date"`
	Open   string `json:"stck_oprc"`
	High   string `json:"stck_hgpr"`
	Low    string `json:"stck_lwpr"`
	Close  string `json:"stck_clpr"`
	Volume string `json:"acml_vol"`
}

type orderRequestBody struct {
	AccountNo          string `json:"CANO"`
	AccountProductCode string `json:"ACNT_PRDT_CD"`
	Symbol             string `json:"PDNO"`
	OrderDivision      string `json:"ORD_DVSN"`
	Quantity           string `json:"ORD_QTY"`
	UnitPrice          string `json:"ORD_UNPR"`
}

type orderResponse struct {
	envelope
	Output struct {
		OrderNo string `json:"ODNO"`
	} `json:"output"`
}

type balanceResponse struct {
	envelope
	Holdings []holdingItem  `json:"output1"`
	Summary  []balanceTotal `json:"output2"`
}

type holdingItem struct {
	Symbol           string `json:"pdno"`
	Name             string `json:"prdt_name"`
	Quantity         string `json:"hldg_qty"`
	AvgPurchasePrice string `json:"pchs_avg_pric"`
	CurrentPrice     string `json:"prpr"`
	EvalAmount       string `json:"evlu_amt"`
	ProfitLoss       string `json:"evlu_pfls_amt"`
	ProfitLossRatio  string `json:"evlu_pfls_rt"`
}

type balanceTotal struct {
	TotalCash string `json:"dnca_tot_amt"`
	TotalEval string `json:"tot_evlu_amt"`
	NetAsset  string `json:"nass_amt"`
}
