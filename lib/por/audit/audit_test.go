package audit

import (
	"context"
	"testing"

	"lukechampine.com/frand"

	"github.com/F483/heartbeat/lib/por/swpriv"
)

func setupRound(t *testing.T) (*swpriv.Verifier, *swpriv.Challenge, uint32) {
	t.Helper()
	v, err := swpriv.Gen(128, 4)
	if err != nil {
		t.Fatal(err)
	}
	cf, err := v.ChunkFile(frand.Bytes(2048))
	if err != nil {
		t.Fatal(err)
	}
	_, st, err := v.Encode(context.Background(), cf)
	if err != nil {
		t.Fatal(err)
	}
	chal, err := v.GenChallenge(st)
	if err != nil {
		t.Fatal(err)
	}
	return v, chal, cf.ChunkCount()
}

func TestCoverageObserve(t *testing.T) {
	_, chal, n := setupRound(t)

	cov := NewCoverage(n)
	if cov.Count() != 0 {
		t.Fatal("fresh coverage is nonempty")
	}
	if err := cov.Observe(chal); err != nil {
		t.Fatal(err)
	}

	idxs, err := chal.ChallengedChunks(n)
	if err != nil {
		t.Fatal(err)
	}
	for _, i := range idxs {
		if !cov.Hit(i) {
			t.Fatalf("challenged chunk %d not marked", i)
		}
	}
	if cov.Count() > n {
		t.Fatal("coverage exceeds chunk count")
	}
	if cov.Ratio() <= 0 || cov.Ratio() > 1 {
		t.Fatalf("ratio %v", cov.Ratio())
	}
}

func TestCoverageEmptyFile(t *testing.T) {
	cov := NewCoverage(0)
	if !cov.Complete() {
		t.Fatal("empty file is trivially covered")
	}
	if cov.Ratio() != 1 {
		t.Fatalf("ratio %v", cov.Ratio())
	}
}

func TestRoundRecordRoundtrip(t *testing.T) {
	_, chal, _ := setupRound(t)

	rr, err := NewRoundRecord(7, chal, true)
	if err != nil {
		t.Fatal(err)
	}
	if rr.Chunks != chal.L || len(rr.ChalDigest) != 20 {
		t.Fatalf("record %+v", rr)
	}

	buf, err := rr.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	got := new(RoundRecord)
	if err := got.Deserialize(buf); err != nil {
		t.Fatal(err)
	}
	if got.Seq != rr.Seq || got.Chunks != rr.Chunks || got.Passed != rr.Passed ||
		string(got.ChalDigest) != string(rr.ChalDigest) {
		t.Fatal("roundtrip mismatch")
	}
}

func TestHistoryOrderAndFailed(t *testing.T) {
	_, chal, _ := setupRound(t)

	var h History
	for _, seq := range []uint64{5, 1, 3} {
		rr, err := NewRoundRecord(seq, chal, seq != 3)
		if err != nil {
			t.Fatal(err)
		}
		h.Append(rr)
	}

	for i := 1; i < len(h); i++ {
		if h[i-1].Seq > h[i].Seq {
			t.Fatal("history not sorted")
		}
	}

	failed := h.Failed()
	if len(failed) != 1 || failed[0].Seq != 3 {
		t.Fatalf("failed rounds: %+v", failed)
	}

	buf, err := h.Serialize()
	if err != nil {
		t.Fatal(err)
	}
	var got History
	if err := got.Deserialize(buf); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Seq != 1 {
		t.Fatal("history roundtrip mismatch")
	}
}
