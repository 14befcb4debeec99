package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// TotalShareBPS is the amount every share plan must distribute.
const TotalShareBPS = 10000

// SharePlan splits proceeds between recipients in basis points.
type SharePlan struct {
	Recipients []string
	ShareBPS   []uint64
}

// SharePlanValue extracts the share plan declared on the unit and validates it.
func (u *Unit) SharePlanValue() (*SharePlan, error) {
	if u.SharePlan == nil {
		return nil, nil
	}

	recipients, err := u.literalList(u.SharePlan.Recipients, "recipients")
	if err != nil {
		return nil, err
	}
	shares, err := u.literalList(u.SharePlan.Shares, "shares")
	if err != nil {
		return nil, err
	}

	plan := &SharePlan{
		Recipients: make([]string, len(recipients)),
		ShareBPS:   make([]uint64, len(shares)),
	}
	for i, r := range recipients {
		s, ok := r.(string)
		if !ok {
			return nil, &InvalidSharePlanError{Unit: u.Name, Rule: SharePlanRuleMalformedAddress, Address: fmt.Sprint(r)}
		}
		plan.Recipients[i] = s
	}
	for i, s := range shares {
		bps, ok := toBPS(s)
		if !ok {
			return nil, &InvalidSharePlanError{
				Unit:   u.Name,
				Rule:   SharePlanRuleInvalidShare,
				Detail: fmt.Sprintf("shares[%d]=%v", i, s),
			}
		}
		plan.ShareBPS[i] = bps
	}

	if err := plan.Validate(); err != nil {
		err.Unit = u.Name
		return nil, err
	}
	return plan, nil
}

func (u *Unit) literalList(index int, field string) ([]any, error) {
	if index < 0 || index >= len(u.Args) {
		return nil, &InvalidSharePlanError{
			Unit:   u.Name,
			Rule:   SharePlanRuleArgIndex,
			Detail: fmt.Sprintf("%s=%d with %d arguments", field, index, len(u.Args)),
		}
	}
	arg := u.Args[index]
	list, ok := arg.Value.([]any)
	if arg.IsRef() || !ok {
		return nil, &InvalidSharePlanError{Unit: u.Name, Rule: SharePlanRuleNotList, Detail: field}
	}
	return list, nil
}

// Validate checks the share plan invariants. The unit name is left empty.
func (s *SharePlan) Validate() *InvalidSharePlanError {
	if len(s.Recipients) == 0 {
		return &InvalidSharePlanError{Rule: SharePlanRuleEmptyRecipients}
	}
	if len(s.Recipients) != len(s.ShareBPS) {
		return &InvalidSharePlanError{
			Rule:   SharePlanRuleLengthMismatch,
			Detail: fmt.Sprintf("%d recipients, %d shares", len(s.Recipients), len(s.ShareBPS)),
		}
	}
	for _, r := range s.Recipients {
		if !IsValidAddress(r) {
			return &InvalidSharePlanError{Rule: SharePlanRuleMalformedAddress, Address: r}
		}
	}
	// bounding each share keeps the sum from wrapping
	for _, share := range s.ShareBPS {
		if share > TotalShareBPS {
			return &InvalidSharePlanError{Rule: SharePlanRuleShareTooLarge, Detail: fmt.Sprintf("share %d", share)}
		}
	}
	if sum := lo.Sum(s.ShareBPS); sum != TotalShareBPS {
		return &InvalidSharePlanError{Rule: SharePlanRuleSumMismatch, Sum: sum}
	}
	return nil
}

// IsValidAddress accepts 0x-prefixed 20-byte hex addresses. Mixed-case input
// must carry a correct EIP-55 checksum.
func IsValidAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return false
	}
	hexPart := s[2:]
	if hexPart == strings.ToLower(hexPart) || hexPart == strings.ToUpper(hexPart) {
		return true
	}
	return common.HexToAddress(s).Hex() == s
}

func toBPS(v any) (uint64, bool) {
	switch n := v.(type) {
	case int:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case uint64:
		return n, true
	case float64:
		if n < 0 || n != math.Trunc(n) || n > math.MaxUint32 {
			return 0, false
		}
		return uint64(n), true
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(n), 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
