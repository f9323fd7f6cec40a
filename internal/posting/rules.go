package posting

// Fixed account codes for inventory postings. The chart of accounts is
// administered elsewhere; these are lookups, not configuration.
const (
	AccountInventory  = "146" // 상품
	AccountInputVAT   = "135" // 부가세대급금
	AccountPayable    = "251" // 외상매입금
	AccountReceivable = "108" // 외상매출금
	AccountRevenue    = "401" // 상품매출
	AccountOutputVAT  = "255" // 부가세예수금
)

type amountKind int

const (
	amountSupply amountKind = iota
	amountVAT
	amountTotal
)

type ruleLine struct {
	Side    Side
	Account string
	Amount  amountKind
}

// postingRules maps a transaction direction to its account roles. New
// transaction types extend this table; the voucher builder never branches on
// direction itself.
var postingRules = map[Direction][]ruleLine{
	DirectionInbound: {
		{Side: SideDebit, Account: AccountInventory, Amount: amountSupply},
		{Side: SideDebit, Account: AccountInputVAT, Amount: amountVAT},
		{Side: SideCredit, Account: AccountPayable, Amount: amountTotal},
	},
	DirectionOutbound: {
		{Side: SideDebit, Account: AccountReceivable, Amount: amountTotal},
		{Side: SideCredit, Account: AccountRevenue, Amount: amountSupply},
		{Side: SideCredit, Account: AccountOutputVAT, Amount: amountVAT},
	},
}

// PostingLine is one resolved (account, side, amount) tuple.
type PostingLine struct {
	Side    Side
	Account string
	Amount  int64
}

// Resolve maps a direction and its amounts to ordered posting lines.
// Zero-amount lines (a transaction without VAT) are dropped.
func Resolve(direction Direction, amt Amounts) ([]PostingLine, error) {
	rules, ok := postingRules[direction]
	if !ok {
		return nil, ErrUnknownDirection
	}
	lines := make([]PostingLine, 0, len(rules))
	for _, rule := range rules {
		var amount int64
		switch rule.Amount {
		case amountSupply:
			amount = amt.Supply
		case amountVAT:
			amount = amt.VAT
		case amountTotal:
			amount = amt.Total
		}
		if amount == 0 {
			continue
		}
		lines = append(lines, PostingLine{Side: rule.Side, Account: rule.Account, Amount: amount})
	}
	return lines, nil
}
