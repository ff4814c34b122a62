package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"as2org/internal/model"
)

const fixture = `{"changed":"20120224","country":"US","name":"Google LLC","org_id":"GOGL-ARIN","source":"ARIN","type":"Organization"}
{"changed":"20120224","asn":"15169","name":"GOOGLE","opaque_id":"d1d4e9c3","org_id":"GOGL-ARIN","source":"ARIN","type":"ASN"}
{"asn":"36040","name":"YOUTUBE","organizationId":"GOGL-ARIN","source":"ARIN","type":"ASN"}
{"country":"FR","name":"SociÃ©tÃ© GÃ©nÃ©rale","organizationId":"SG-RIPE","source":"RIPE","type":"Organization"}
`

func TestParse_Fixture(t *testing.T) {
	t.Parallel()

	entries, err := Parse(strings.NewReader(fixture))
	require.NoError(t, err)
	require.Len(t, entries, 4)

	require.Equal(t, model.KindOrg, entries[0].Kind)
	require.Nil(t, entries[0].AS)
	require.Equal(t, model.OrgRecord{
		OrgID:    "GOGL-ARIN",
		Name:     "Google LLC",
		Country:  "US",
		Source:   "ARIN",
		Changed:  "20120224",
		DataType: "Organization",
	}, *entries[0].Org)

	require.Equal(t, model.KindAS, entries[1].Kind)
	require.Nil(t, entries[1].Org)
	require.Equal(t, model.ASRecord{
		ASN:      15169,
		Name:     "GOOGLE",
		OrgID:    "GOGL-ARIN",
		Source:   "ARIN",
		OpaqueID: "d1d4e9c3",
		Changed:  "20120224",
	}, *entries[1].AS)

	// organizationId alias, optional fields absent.
	require.Equal(t, model.ASRecord{ASN: 36040, Name: "YOUTUBE", OrgID: "GOGL-ARIN", Source: "ARIN"}, *entries[2].AS)

	// Encoding repair runs before decoding.
	require.Equal(t, "Société Générale", entries[3].Org.Name)
	require.Equal(t, "SG-RIPE", entries[3].Org.OrgID)
}

func TestParseLine_Aliases(t *testing.T) {
	t.Parallel()

	e, err := ParseLine(`{"asn":"64500","opaqueId":"abc","organizationId":"X","source":"LACNIC","type":"ASN"}`)
	require.NoError(t, err)
	require.Equal(t, "abc", e.AS.OpaqueID)
	require.Equal(t, "X", e.AS.OrgID)

	// The canonical key wins over the alias when both are present.
	e, err = ParseLine(`{"asn":"64500","org_id":"A","organizationId":"B","source":"ARIN","type":"ASN"}`)
	require.NoError(t, err)
	require.Equal(t, "A", e.AS.OrgID)

	e, err = ParseLine(`{"org_id":"O","country":"DE","source":"RIPE","data_type":"Organization"}`)
	require.NoError(t, err)
	require.Equal(t, model.KindOrg, e.Kind)
	require.Equal(t, "Organization", e.Org.DataType)
}

func TestParseLine_Defaults(t *testing.T) {
	t.Parallel()

	e, err := ParseLine(`{"asn":"1","org_id":"O","source":"ARIN","type":"ASN"}`)
	require.NoError(t, err)
	require.Empty(t, e.AS.Name)
	require.Empty(t, e.AS.Changed)
	require.Empty(t, e.AS.OpaqueID)

	e, err = ParseLine(`{"org_id":"O","country":"US","source":"ARIN","type":"Organization","name":null}`)
	require.NoError(t, err)
	require.Empty(t, e.Org.Name)
}

func TestParseLine_NumericASN(t *testing.T) {
	t.Parallel()

	e, err := ParseLine(`{"asn":4200000000,"org_id":"O","source":"ARIN","type":"ASN"}`)
	require.NoError(t, err)
	require.Equal(t, uint32(4200000000), e.AS.ASN)
}

func TestParseLine_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		missing bool
	}{
		{name: "not json", line: `{"asn":`},
		{name: "array", line: `[1,2]`},
		{name: "null", line: `null`},
		{name: "empty", line: ``},
		{name: "asn missing", line: `{"org_id":"O","source":"ARIN","type":"ASN"}`, missing: true},
		{name: "asn not a number", line: `{"asn":"AS15169","org_id":"O","source":"ARIN","type":"ASN"}`},
		{name: "asn overflows uint32", line: `{"asn":"4294967296","org_id":"O","source":"ARIN","type":"ASN"}`},
		{name: "as org_id missing", line: `{"asn":"1","source":"ARIN","type":"ASN"}`, missing: true},
		{name: "as source missing", line: `{"asn":"1","org_id":"O","type":"ASN"}`, missing: true},
		{name: "org country missing", line: `{"org_id":"O","source":"ARIN","type":"Organization"}`, missing: true},
		{name: "org type missing", line: `{"org_id":"O","country":"US","source":"ARIN"}`, missing: true},
		{name: "org name wrong type", line: `{"org_id":"O","country":"US","source":"ARIN","type":"Organization","name":7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			require.Error(t, err)
			require.Equal(t, tt.missing, errors.Is(err, ErrMissingField), "err: %v", err)
		})
	}
}

func TestParse_FailFastReportsLine(t *testing.T) {
	t.Parallel()

	input := `{"org_id":"O","country":"US","source":"ARIN","type":"Organization"}
{"asn":"1","org_id":"O","source":"ARIN","type":"ASN"}
{"asn":"oops","org_id":"O","source":"ARIN","type":"ASN"}
{"asn":"2","org_id":"O","source":"ARIN","type":"ASN"}
`
	entries, err := Parse(strings.NewReader(input))
	require.Error(t, err)
	require.Nil(t, entries)

	var lineErr *LineError
	require.ErrorAs(t, err, &lineErr)
	require.Equal(t, 3, lineErr.Line)
	require.Equal(t, `{"asn":"oops","org_id":"O","source":"ARIN","type":"ASN"}`, lineErr.Raw)
	require.Contains(t, err.Error(), "parse line 3")
}

func TestParse_BlankLineIsAnError(t *testing.T) {
	t.Parallel()

	input := "{\"org_id\":\"O\",\"country\":\"US\",\"source\":\"ARIN\",\"type\":\"Organization\"}\n\n"
	_, err := Parse(strings.NewReader(input))
	require.ErrorIs(t, err, ErrEmptyLine)

	var lineErr *LineError
	require.ErrorAs(t, err, &lineErr)
	require.Equal(t, 2, lineErr.Line)
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	entries, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestScan_CallbackErrorStops(t *testing.T) {
	t.Parallel()

	stop := errors.New("stop")
	calls := 0
	err := Scan(strings.NewReader(fixture), func(model.Entry) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, calls)
}
