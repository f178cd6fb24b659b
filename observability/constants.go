package observability

// Metric names
const (
	CodesAssignedTotal       = "refwallet.codes.assigned.total"
	ReferralsAppliedTotal    = "refwallet.referrals.applied.total"
	CreditGrantedAmount      = "refwallet.credit.granted.amount"
	RedemptionsTotal         = "refwallet.redemptions.total"
	CreditRedeemedAmount     = "refwallet.credit.redeemed.amount"
	BalanceTransactionsTotal = "refwallet.balance.transactions.total"
	HTTPRequestDuration      = "refwallet.http.request.duration"
)

// Attribute keys
const (
	LabelType   = "type"
	LabelSport  = "sport"
	LabelRoute  = "route"
	LabelMethod = "method"
	LabelStatus = "status"
)
