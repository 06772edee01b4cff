package types

import "testing"

func TestMarketMetaTokenID(t *testing.T) {
	t.Parallel()

	meta := &MarketMeta{
		ConditionID: "0xabc",
		YesTokenID:  "111",
		NoTokenID:   "222",
	}

	if got := meta.TokenID(true); got != "111" {
		t.Errorf("TokenID(true) = %q, want the YES token", got)
	}
	if got := meta.TokenID(false); got != "222" {
		t.Errorf("TokenID(false) = %q, want the NO token", got)
	}
}
