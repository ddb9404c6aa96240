package marketdata

import (
	"context"
	"testing"
)

func TestParseSymbols(t *testing.T) {
	got, err := ParseSymbols(" vnm=Vinamilk, FPT ,, hpg = Hoa Phat ")
	if err != nil {
		t.Fatalf("ParseSymbols() error = %v", err)
	}
	if len(got) != 3 || got[0].Code != "VNM" || got[0].Name != "Vinamilk" || got[1].Name != "" || got[2].Code != "HPG" || got[2].Name != "Hoa Phat" {
		t.Errorf("ParseSymbols() = %+v", got)
	}
	if _, err := ParseSymbols("=Nameless"); err == nil {
		t.Error("entry without code should fail")
	}
}

func TestStaticOracleLoadPrices(t *testing.T) {
	o := NewStaticOracle()
	codes, err := o.LoadPrices("VNM=65000:64000,fpt=120000")
	if err != nil {
		t.Fatalf("LoadPrices() error = %v", err)
	}
	if len(codes) != 2 || codes[1] != "FPT" {
		t.Errorf("codes = %v", codes)
	}
	q, err := o.LatestQuote(context.Background(), "vnm")
	if err != nil || q.Price != 65000 || q.PrevClose != 64000 {
		t.Errorf("LatestQuote() = %+v, %v", q, err)
	}

	for _, bad := range []string{"VNM", "VNM=abc", "VNM=0", "VNM=10:x"} {
		if _, err := NewStaticOracle().LoadPrices(bad); err == nil {
			t.Errorf("LoadPrices(%q) should fail", bad)
		}
	}
}
