package currency

import "testing"

func TestFeeCheckedAddOverflow(t *testing.T) {
	_, ok := Fee(1).CheckedAdd(^Fee(0))
	if ok {
		t.Fatalf("expected overflow")
	}
}

func TestBalanceCheckedSubUnderflow(t *testing.T) {
	_, ok := Balance(5).CheckedSub(Balance(6))
	if ok {
		t.Fatalf("expected underflow")
	}
}

func TestFeeToAmountLossless(t *testing.T) {
	f := Fee(12345)
	if Amount(f) != f.ToAmount() {
		t.Fatalf("ToAmount lossy")
	}
}

func TestBalanceAddSubAmount(t *testing.T) {
	b := Balance(100)
	b2, ok := b.AddAmount(Amount(50))
	if !ok || b2 != 150 {
		t.Fatalf("AddAmount = %v, %v", b2, ok)
	}
	b3, ok := b2.SubAmount(Amount(200))
	if ok {
		t.Fatalf("expected underflow, got %v", b3)
	}
}

func TestSignedAddSameSign(t *testing.T) {
	a := PositiveOf[Amount](10)
	b := PositiveOf[Amount](20)
	sum, overflow := AddSigned(a, b)
	if overflow || sum.Magnitude != 30 || !sum.Positive {
		t.Fatalf("sum = %+v overflow=%v", sum, overflow)
	}
}

func TestSignedAddCancellation(t *testing.T) {
	a := PositiveOf[Amount](10)
	b := NegativeOf[Amount](15)
	sum, overflow := AddSigned(a, b)
	if overflow || sum.Magnitude != 5 || sum.Positive {
		t.Fatalf("sum = %+v overflow=%v, want -5", sum, overflow)
	}
}

func TestSignedNegateZeroNoop(t *testing.T) {
	z := Signed[Amount]{Magnitude: 0, Positive: true}
	if !z.Negate().Positive {
		t.Fatalf("negating zero should be a no-op")
	}
}
