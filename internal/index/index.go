// Package index holds the AS-to-organization lookup tables.
//
// An Index is built once from parsed dataset entries and never mutated, so it
// may be shared by any number of goroutines without locking.
package index

import (
	"fmt"

	"as2org/internal/model"
)

// Stats describes what went into an Index.
type Stats struct {
	ASRecords     int `json:"as_records"`
	OrgRecords    int `json:"org_records"`
	DuplicateASNs int `json:"duplicate_asns"`
	DuplicateOrgs int `json:"duplicate_orgs"`
	DanglingASNs  int `json:"dangling_asns"`
}

type Index struct {
	asByNumber map[uint32]model.ASRecord
	orgByID    map[string]model.OrgRecord
	asToOrg    map[uint32]string
	orgToAS    map[string][]uint32
	stats      Stats
}

// Build indexes entries. A later record with the same AS number or org id
// replaces the earlier one. Sibling lists follow the order in which AS
// numbers were first seen.
func Build(entries []model.Entry) *Index {
	idx := &Index{
		asByNumber: make(map[uint32]model.ASRecord),
		orgByID:    make(map[string]model.OrgRecord),
	}

	var order []uint32
	for _, e := range entries {
		switch e.Kind {
		case model.KindAS:
			if e.AS == nil {
				continue
			}
			if _, ok := idx.asByNumber[e.AS.ASN]; ok {
				idx.stats.DuplicateASNs++
			} else {
				order = append(order, e.AS.ASN)
			}
			idx.asByNumber[e.AS.ASN] = *e.AS
		case model.KindOrg:
			if e.Org == nil {
				continue
			}
			if _, ok := idx.orgByID[e.Org.OrgID]; ok {
				idx.stats.DuplicateOrgs++
			}
			idx.orgByID[e.Org.OrgID] = *e.Org
		}
	}

	idx.asToOrg = make(map[uint32]string, len(idx.asByNumber))
	idx.orgToAS = make(map[string][]uint32)
	for _, asn := range order {
		orgID := idx.asByNumber[asn].OrgID
		idx.asToOrg[asn] = orgID
		idx.orgToAS[orgID] = append(idx.orgToAS[orgID], asn)
		if _, ok := idx.orgByID[orgID]; !ok {
			idx.stats.DanglingASNs++
		}
	}

	idx.stats.ASRecords = len(idx.asByNumber)
	idx.stats.OrgRecords = len(idx.orgByID)
	return idx
}

func (idx *Index) Stats() Stats { return idx.stats }

// Len returns the number of distinct AS numbers.
func (idx *Index) Len() int { return len(idx.asByNumber) }

// ASInfo joins asn with its organization. It reports false when the AS is
// unknown or its organization is missing from the dataset.
func (idx *Index) ASInfo(asn uint32) (model.ASInfo, bool) {
	as, ok := idx.asByNumber[asn]
	if !ok {
		return model.ASInfo{}, false
	}
	org, ok := idx.orgByID[as.OrgID]
	if !ok {
		return model.ASInfo{}, false
	}
	return model.Join(as, org), true
}

// Siblings returns every AS operated by the organization of asn, asn
// included. It reports false when asn is unknown or its organization is
// missing. It panics if a sibling's organization cannot be resolved, since
// Build never produces that state.
func (idx *Index) Siblings(asn uint32) ([]model.ASInfo, bool) {
	orgID, ok := idx.asToOrg[asn]
	if !ok {
		return nil, false
	}
	if _, ok := idx.orgByID[orgID]; !ok {
		return nil, false
	}
	asns := idx.orgToAS[orgID]
	out := make([]model.ASInfo, 0, len(asns))
	for _, sib := range asns {
		info, ok := idx.ASInfo(sib)
		if !ok || info.OrgID != orgID {
			panic(fmt.Sprintf("index: corrupt sibling bucket for org %q: AS%d does not resolve", orgID, sib))
		}
		out = append(out, info)
	}
	return out, true
}

// AreSiblings reports whether both AS numbers are known and share an
// organization. An unknown AS is nobody's sibling, not even its own.
func (idx *Index) AreSiblings(asn1, asn2 uint32) bool {
	org1, ok := idx.asToOrg[asn1]
	if !ok {
		return false
	}
	org2, ok := idx.asToOrg[asn2]
	if !ok {
		return false
	}
	return org1 == org2
}

func (idx *Index) AS(asn uint32) (model.ASRecord, bool) {
	as, ok := idx.asByNumber[asn]
	return as, ok
}

func (idx *Index) Org(orgID string) (model.OrgRecord, bool) {
	org, ok := idx.orgByID[orgID]
	return org, ok
}

// OrgASNs returns the AS numbers recorded for orgID. The slice is a copy.
func (idx *Index) OrgASNs(orgID string) ([]uint32, bool) {
	asns, ok := idx.orgToAS[orgID]
	if !ok {
		return nil, false
	}
	return append([]uint32(nil), asns...), true
}
