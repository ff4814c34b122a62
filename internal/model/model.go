package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ASRecord is one AS line of the as-org2info dataset.
type ASRecord struct {
	ASN      uint32 `json:"asn"`
	Name     string `json:"name"`
	OrgID    string `json:"org_id"`
	Source   string `json:"source"`
	OpaqueID string `json:"opaque_id,omitempty"`
	Changed  string `json:"changed,omitempty"`
}

// OrgRecord is one Organization line of the as-org2info dataset.
type OrgRecord struct {
	OrgID    string `json:"org_id"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	Source   string `json:"source"`
	Changed  string `json:"changed,omitempty"`
	DataType string `json:"type"`
}

// ASInfo joins an ASRecord with the organization it references.
type ASInfo struct {
	ASN         uint32 `json:"asn"`
	Name        string `json:"name"`
	CountryCode string `json:"country_code"`
	OrgID       string `json:"org_id"`
	OrgName     string `json:"org_name"`
	Source      string `json:"source"`
}

type Kind int

const (
	KindOrg Kind = iota
	KindAS
)

func (k Kind) String() string {
	switch k {
	case KindAS:
		return "as"
	case KindOrg:
		return "org"
	default:
		return "unknown"
	}
}

// Entry is a parsed dataset line. Exactly one of AS or Org is set, matching Kind.
type Entry struct {
	Kind Kind
	AS   *ASRecord
	Org  *OrgRecord
}

// Join builds the ASInfo for as using org. Source comes from the organization.
func Join(as ASRecord, org OrgRecord) ASInfo {
	return ASInfo{
		ASN:         as.ASN,
		Name:        as.Name,
		CountryCode: org.Country,
		OrgID:       as.OrgID,
		OrgName:     org.Name,
		Source:      org.Source,
	}
}

// ParseASN parses a decimal AS number, with or without an "AS" prefix.
func ParseASN(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if len(s) > 2 && strings.EqualFold(s[:2], "as") {
		s = s[2:]
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid AS number %q", s)
	}
	return uint32(n), nil
}
