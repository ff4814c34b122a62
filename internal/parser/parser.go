// Package parser decodes the as-org2info newline-delimited JSON format.
//
// Each line is either an AS record (discriminator "type":"ASN") or an
// Organization record. A line is first decoded into a generic object, the
// discriminator selects the variant, and the variant's fields are read from an
// ordered list of accepted source keys so historical spellings keep working.
package parser

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"as2org/internal/latin1"
	"as2org/internal/model"
)

const (
	discriminatorASN = "ASN"

	// CAIDA lines are short but org names are free text; leave generous room.
	maxLineBytes = 1 << 20
)

// Accepted source keys per logical field, in lookup order.
var (
	keysASN      = []string{"asn"}
	keysName     = []string{"name"}
	keysOrgID    = []string{"org_id", "organizationId"}
	keysOpaqueID = []string{"opaque_id", "opaqueId"}
	keysSource   = []string{"source"}
	keysChanged  = []string{"changed"}
	keysCountry  = []string{"country"}
	keysType     = []string{"type", "data_type"}
)

var (
	ErrEmptyLine    = errors.New("empty line")
	ErrMissingField = errors.New("missing required field")
)

// LineError reports the line that aborted a parse.
type LineError struct {
	Line int
	Raw  string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("parse line %d: %v: %s", e.Line, e.Err, e.Raw)
}

func (e *LineError) Unwrap() error { return e.Err }

// Parse reads every line of r. The first line that fails to decode, blank
// lines included, aborts the parse and nothing is returned.
func Parse(r io.Reader) ([]model.Entry, error) {
	var entries []model.Entry
	err := Scan(r, func(e model.Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Scan decodes r line by line and hands each entry to fn in input order.
func Scan(r io.Reader, fn func(model.Entry) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := latin1.Repair(scanner.Text())
		entry, err := ParseLine(line)
		if err != nil {
			return &LineError{Line: lineNum, Raw: line, Err: err}
		}
		if err := fn(entry); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan dataset: %w", err)
	}
	return nil
}

// ParseLine decodes a single, already repaired, dataset line.
func ParseLine(line string) (model.Entry, error) {
	if strings.TrimSpace(line) == "" {
		return model.Entry{}, ErrEmptyLine
	}
	var obj object
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		return model.Entry{}, fmt.Errorf("decode object: %w", err)
	}
	if obj == nil {
		return model.Entry{}, fmt.Errorf("decode object: not a json object")
	}

	typ, _, err := obj.optString(keysType)
	if err != nil {
		return model.Entry{}, err
	}
	if typ == discriminatorASN {
		as, err := decodeAS(obj)
		if err != nil {
			return model.Entry{}, fmt.Errorf("as record: %w", err)
		}
		return model.Entry{Kind: model.KindAS, AS: &as}, nil
	}
	org, err := decodeOrg(obj)
	if err != nil {
		return model.Entry{}, fmt.Errorf("org record: %w", err)
	}
	return model.Entry{Kind: model.KindOrg, Org: &org}, nil
}

func decodeAS(obj object) (model.ASRecord, error) {
	var (
		rec model.ASRecord
		err error
	)
	if rec.ASN, err = obj.asn(keysASN); err != nil {
		return model.ASRecord{}, err
	}
	if rec.OrgID, err = obj.reqString(keysOrgID); err != nil {
		return model.ASRecord{}, err
	}
	if rec.Source, err = obj.reqString(keysSource); err != nil {
		return model.ASRecord{}, err
	}
	if rec.Name, _, err = obj.optString(keysName); err != nil {
		return model.ASRecord{}, err
	}
	if rec.OpaqueID, _, err = obj.optString(keysOpaqueID); err != nil {
		return model.ASRecord{}, err
	}
	if rec.Changed, _, err = obj.optString(keysChanged); err != nil {
		return model.ASRecord{}, err
	}
	return rec, nil
}

func decodeOrg(obj object) (model.OrgRecord, error) {
	var (
		rec model.OrgRecord
		err error
	)
	if rec.DataType, err = obj.reqString(keysType); err != nil {
		return model.OrgRecord{}, err
	}
	if rec.OrgID, err = obj.reqString(keysOrgID); err != nil {
		return model.OrgRecord{}, err
	}
	if rec.Country, err = obj.reqString(keysCountry); err != nil {
		return model.OrgRecord{}, err
	}
	if rec.Source, err = obj.reqString(keysSource); err != nil {
		return model.OrgRecord{}, err
	}
	if rec.Name, _, err = obj.optString(keysName); err != nil {
		return model.OrgRecord{}, err
	}
	if rec.Changed, _, err = obj.optString(keysChanged); err != nil {
		return model.OrgRecord{}, err
	}
	return rec, nil
}

type object map[string]json.RawMessage

func (o object) lookup(keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := o[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// optString returns the first present key. JSON null counts as absent.
func (o object) optString(keys []string) (string, bool, error) {
	raw, ok := o.lookup(keys)
	if !ok || string(raw) == "null" {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, fmt.Errorf("field %s: %w", keys[0], err)
	}
	return s, true, nil
}

func (o object) reqString(keys []string) (string, error) {
	s, ok, err := o.optString(keys)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingField, keys[0])
	}
	return s, nil
}

// asn accepts the dataset's decimal string form and a bare JSON number.
func (o object) asn(keys []string) (uint32, error) {
	raw, ok := o.lookup(keys)
	if !ok || string(raw) == "null" {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, keys[0])
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			return 0, fmt.Errorf("field %s: %w", keys[0], err)
		}
		text = num.String()
	}
	n, err := strconv.ParseUint(strings.TrimSpace(text), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", keys[0], err)
	}
	return uint32(n), nil
}
