package posting

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Reference labels carried over from the source system's screens: 매입 for
// purchase receipts, 출고 for sales shipments.
const (
	labelInbound  = "매입"
	labelOutbound = "출고"
)

// Reference binds a voucher to the identity of its source transaction. Its
// string form is "{label}-{YYYYMMDD}-{number}".
type Reference struct {
	Direction Direction
	Date      time.Time
	Number    int64
}

// NewReference builds the reference for a transaction.
func NewReference(t InventoryTransaction) Reference {
	return Reference{Direction: t.Direction, Date: t.Date, Number: t.Number}
}

func (r Reference) String() string {
	label := labelOutbound
	if r.Direction == DirectionInbound {
		label = labelInbound
	}
	return fmt.Sprintf("%s-%s-%d", label, r.Date.Format("20060102"), r.Number)
}

// ParseReference recovers the source transaction identity from a reference
// string.
func ParseReference(raw string) (Reference, error) {
	parts := strings.SplitN(raw, "-", 3)
	if len(parts) != 3 {
		return Reference{}, fmt.Errorf("posting: malformed reference %q", raw)
	}
	var direction Direction
	switch parts[0] {
	case labelInbound:
		direction = DirectionInbound
	case labelOutbound:
		direction = DirectionOutbound
	default:
		return Reference{}, fmt.Errorf("posting: unknown reference label %q", parts[0])
	}
	date, err := time.Parse("20060102", parts[1])
	if err != nil {
		return Reference{}, fmt.Errorf("posting: bad reference date %q", parts[1])
	}
	number, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || number <= 0 {
		return Reference{}, fmt.Errorf("posting: bad reference number %q", parts[2])
	}
	return Reference{Direction: direction, Date: date, Number: number}, nil
}
