package waterfall

import (
	"math/big"
	"math/rand"
	"testing"

	nativecommon "proplend/native/common"
)

func units(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), nativecommon.Unit())
}

func TestSeniorMonthlyInterest(t *testing.T) {
	got, err := CalculateSeniorMonthlyInterest(units(800_000), 800)
	if err != nil {
		t.Fatalf("senior interest: %v", err)
	}
	if got.Cmp(big.NewInt(5_333_333_333)) != 0 {
		t.Fatalf("senior target = %s", got)
	}
	margin, err := CalculatePlatformMargin(units(9_000), 200)
	if err != nil {
		t.Fatalf("margin: %v", err)
	}
	if margin.Cmp(units(180)) != 0 {
		t.Fatalf("margin = %s", margin)
	}
}

func TestComputeSplitPriority(t *testing.T) {
	params := DefaultParams()
	cases := []struct {
		name                     string
		interest, seniorTVL      *big.Int
		senior, platform, junior *big.Int
	}{
		{
			name:      "senior covered with residual",
			interest:  units(9_000),
			seniorTVL: units(800_000),
			senior:    big.NewInt(5_333_333_333),
			platform:  units(180),
			junior:    big.NewInt(3_486_666_667),
		},
		{
			name:      "shortfall goes entirely to senior",
			interest:  units(1_000),
			seniorTVL: units(800_000),
			senior:    units(1_000),
			platform:  big.NewInt(0),
			junior:    big.NewInt(0),
		},
		{
			name:      "platform capped by remainder",
			interest:  big.NewInt(5_400_000_000),
			seniorTVL: units(800_000),
			senior:    big.NewInt(5_333_333_333),
			platform:  big.NewInt(66_666_667),
			junior:    big.NewInt(0),
		},
		{
			name:      "empty senior tranche",
			interest:  units(1_000),
			seniorTVL: big.NewInt(0),
			senior:    big.NewInt(0),
			platform:  units(20),
			junior:    units(980),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			split, err := ComputeSplit(tc.interest, tc.seniorTVL, params)
			if err != nil {
				t.Fatalf("split: %v", err)
			}
			if split.Senior.Cmp(tc.senior) != 0 || split.Platform.Cmp(tc.platform) != 0 || split.Junior.Cmp(tc.junior) != 0 {
				t.Fatalf("split = %s/%s/%s, want %s/%s/%s", split.Senior, split.Platform, split.Junior, tc.senior, tc.platform, tc.junior)
			}
		})
	}
}

func TestComputeSplitConservesInterest(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	params := DefaultParams()
	for i := 0; i < 500; i++ {
		interest := big.NewInt(rng.Int63n(1_000_000_000_000) + 1)
		tvl := big.NewInt(rng.Int63n(10_000_000_000_000))
		split, err := ComputeSplit(interest, tvl, params)
		if err != nil {
			t.Fatalf("split: %v", err)
		}
		for _, part := range []*big.Int{split.Senior, split.Platform, split.Junior} {
			if part.Sign() < 0 {
				t.Fatalf("negative payout for interest=%s tvl=%s", interest, tvl)
			}
		}
		sum := new(big.Int).Add(split.Senior, split.Platform)
		sum.Add(sum, split.Junior)
		if sum.Cmp(interest) != 0 {
			t.Fatalf("payouts %s != interest %s (tvl %s)", sum, interest, tvl)
		}
		if split.Senior.Cmp(split.SeniorTarget) > 0 {
			t.Fatalf("senior paid above target")
		}
	}
}
