package index

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"as2org/internal/model"
)

func asEntry(asn uint32, orgID, name string) model.Entry {
	return model.Entry{Kind: model.KindAS, AS: &model.ASRecord{ASN: asn, OrgID: orgID, Name: name, Source: "ARIN"}}
}

func orgEntry(orgID, name, country string) model.Entry {
	return model.Entry{Kind: model.KindOrg, Org: &model.OrgRecord{
		OrgID: orgID, Name: name, Country: country, Source: "RIPE", DataType: "Organization",
	}}
}

// AS100 and AS200 belong to Acme, AS300 to Globex.
func scenario() *Index {
	return Build([]model.Entry{
		asEntry(100, "X", "ACME-1"),
		orgEntry("X", "Acme", "US"),
		asEntry(200, "X", "ACME-2"),
		asEntry(300, "Y", "GLOBEX"),
		orgEntry("Y", "Globex", "DE"),
	})
}

func asns(infos []model.ASInfo) []uint32 {
	out := make([]uint32, 0, len(infos))
	for _, i := range infos {
		out = append(out, i.ASN)
	}
	return out
}

func TestIndex_Scenario(t *testing.T) {
	t.Parallel()

	idx := scenario()

	info, ok := idx.ASInfo(100)
	require.True(t, ok)
	require.Equal(t, model.ASInfo{
		ASN:         100,
		Name:        "ACME-1",
		CountryCode: "US",
		OrgID:       "X",
		OrgName:     "Acme",
		Source:      "RIPE",
	}, info)

	sibs, ok := idx.Siblings(100)
	require.True(t, ok)
	require.ElementsMatch(t, []uint32{100, 200}, asns(sibs))

	require.True(t, idx.AreSiblings(100, 200))
	require.False(t, idx.AreSiblings(100, 300))

	_, ok = idx.ASInfo(999)
	require.False(t, ok)

	require.Equal(t, 3, idx.Len())
}

func TestIndex_SiblingsFollowFirstSeenOrder(t *testing.T) {
	t.Parallel()

	idx := Build([]model.Entry{
		orgEntry("X", "Acme", "US"),
		asEntry(30, "X", ""),
		asEntry(10, "X", ""),
		asEntry(20, "X", ""),
		asEntry(10, "X", "renamed"),
	})

	sibs, ok := idx.Siblings(20)
	require.True(t, ok)
	require.Equal(t, []uint32{30, 10, 20}, asns(sibs))
	require.Equal(t, "renamed", sibs[1].Name)
}

func TestIndex_SiblingsContainQueriedAndShareOrg(t *testing.T) {
	t.Parallel()

	idx := scenario()
	for _, a := range []uint32{100, 200, 300} {
		sibs, ok := idx.Siblings(a)
		require.True(t, ok)
		require.Contains(t, asns(sibs), a)
		for _, s := range sibs {
			require.Equal(t, idx.asToOrg[a], s.OrgID)
		}
	}

	_, ok := idx.Siblings(999)
	require.False(t, ok)
}

func TestIndex_AreSiblingsProperties(t *testing.T) {
	t.Parallel()

	idx := scenario()
	all := []uint32{0, 100, 200, 300, 999}
	for _, a := range all {
		for _, b := range all {
			require.Equal(t, idx.AreSiblings(a, b), idx.AreSiblings(b, a), "symmetry %d,%d", a, b)
		}
		_, present := idx.asToOrg[a]
		require.Equal(t, present, idx.AreSiblings(a, a), "reflexivity %d", a)
		if !present {
			for _, b := range all {
				require.False(t, idx.AreSiblings(a, b))
				require.False(t, idx.AreSiblings(b, a))
			}
		}
	}
}

func TestIndex_DanglingOrg(t *testing.T) {
	t.Parallel()

	idx := Build([]model.Entry{
		orgEntry("X", "Acme", "US"),
		asEntry(100, "X", ""),
		asEntry(400, "GHOST", "orphan"),
		asEntry(401, "GHOST", "orphan-2"),
	})

	// Present in the AS table, but the join fails.
	_, ok := idx.AS(400)
	require.True(t, ok)
	_, ok = idx.ASInfo(400)
	require.False(t, ok)

	_, ok = idx.Siblings(400)
	require.False(t, ok)

	// Membership is still decided by org id alone.
	require.True(t, idx.AreSiblings(400, 401))
	require.True(t, idx.AreSiblings(400, 400))
	require.False(t, idx.AreSiblings(400, 100))

	got, ok := idx.OrgASNs("GHOST")
	require.True(t, ok)
	require.Equal(t, []uint32{400, 401}, got)
	_, ok = idx.Org("GHOST")
	require.False(t, ok)

	require.Equal(t, 2, idx.Stats().DanglingASNs)
}

func TestIndex_ASInfoIffOrgResolves(t *testing.T) {
	t.Parallel()

	idx := Build([]model.Entry{
		orgEntry("X", "Acme", "US"),
		asEntry(1, "X", ""),
		asEntry(2, "NOPE", ""),
		asEntry(3, "X", ""),
	})
	for asn, rec := range idx.asByNumber {
		_, orgOK := idx.orgByID[rec.OrgID]
		_, infoOK := idx.ASInfo(asn)
		require.Equal(t, orgOK, infoOK, "AS%d", asn)
	}
}

func TestIndex_LastWriteWins(t *testing.T) {
	t.Parallel()

	idx := Build([]model.Entry{
		orgEntry("X", "Acme", "US"),
		orgEntry("Y", "Globex", "DE"),
		asEntry(100, "X", "first"),
		asEntry(100, "Y", "second"),
		orgEntry("X", "Acme Corp", "CA"),
	})

	info, ok := idx.ASInfo(100)
	require.True(t, ok)
	require.Equal(t, "second", info.Name)
	require.Equal(t, "Y", info.OrgID)

	// The replaced AS no longer appears under its old organization.
	_, ok = idx.OrgASNs("X")
	require.False(t, ok)
	got, ok := idx.OrgASNs("Y")
	require.True(t, ok)
	require.Equal(t, []uint32{100}, got)

	org, ok := idx.Org("X")
	require.True(t, ok)
	require.Equal(t, "Acme Corp", org.Name)

	require.Equal(t, Stats{ASRecords: 1, OrgRecords: 2, DuplicateASNs: 1, DuplicateOrgs: 1}, idx.Stats())
}

func TestIndex_Invariants(t *testing.T) {
	t.Parallel()

	idx := Build([]model.Entry{
		orgEntry("X", "Acme", "US"),
		asEntry(1, "X", ""),
		asEntry(2, "Y", ""),
		asEntry(3, "X", ""),
		asEntry(2, "X", ""),
		asEntry(4, "Z", ""),
	})

	for asn, orgID := range idx.asToOrg {
		rec, ok := idx.asByNumber[asn]
		require.True(t, ok)
		require.Equal(t, rec.OrgID, orgID)
	}
	require.Len(t, idx.asToOrg, len(idx.asByNumber))

	total := 0
	for orgID, members := range idx.orgToAS {
		for _, asn := range members {
			require.Equal(t, orgID, idx.asToOrg[asn])
		}
		total += len(members)
	}
	require.Equal(t, len(idx.asByNumber), total, "each AS sits in exactly one bucket")
}

func TestIndex_ASInfoIsIdempotent(t *testing.T) {
	t.Parallel()

	idx := scenario()
	first, ok1 := idx.ASInfo(200)
	second, ok2 := idx.ASInfo(200)
	require.Equal(t, ok1, ok2)
	require.Equal(t, first, second)
}

func TestIndex_OrgASNsReturnsCopy(t *testing.T) {
	t.Parallel()

	idx := scenario()
	got, ok := idx.OrgASNs("X")
	require.True(t, ok)
	got[0] = 9999

	again, _ := idx.OrgASNs("X")
	require.Equal(t, []uint32{100, 200}, again)
}

func TestIndex_Empty(t *testing.T) {
	t.Parallel()

	idx := Build(nil)
	require.Zero(t, idx.Len())
	_, ok := idx.ASInfo(1)
	require.False(t, ok)
	_, ok = idx.Siblings(1)
	require.False(t, ok)
	require.False(t, idx.AreSiblings(1, 1))
}

func TestIndex_SiblingsPanicsOnCorruptBucket(t *testing.T) {
	t.Parallel()

	idx := scenario()
	// Simulate a builder defect: AS300 listed under Acme.
	idx.orgToAS["X"] = append(idx.orgToAS["X"], 300)

	require.Panics(t, func() { idx.Siblings(100) })
}

func TestIndex_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	idx := scenario()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if _, ok := idx.ASInfo(100); !ok {
					t.Errorf("ASInfo(100) missed")
					return
				}
				sibs, _ := idx.Siblings(200)
				got := asns(sibs)
				sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
				if len(got) != 2 || got[0] != 100 || got[1] != 200 {
					t.Errorf("unexpected siblings %v", got)
					return
				}
				if !idx.AreSiblings(100, 200) {
					t.Errorf("AreSiblings(100, 200) = false")
					return
				}
			}
		}()
	}
	wg.Wait()
}
