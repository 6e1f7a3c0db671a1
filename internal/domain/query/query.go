package query

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

// MaxQueryLength is the maximum query text size in bytes.
const MaxQueryLength = 4096

// Type is the clinical category of a query. It steers the LLM prompt only.
type Type string

const (
	TypeGeneral    Type = "general"
	TypeDiagnostic Type = "diagnostic"
	TypeTreatment  Type = "treatment"
	TypeMedication Type = "medication"
	TypeLabResults Type = "lab_results"
	TypeImaging    Type = "imaging"
	TypeHistory    Type = "history"
)

var validTypes = map[Type]bool{
	TypeGeneral: true, TypeDiagnostic: true, TypeTreatment: true, TypeMedication: true,
	TypeLabResults: true, TypeImaging: true, TypeHistory: true,
}

// Request is a validated natural-language query (immutable value object).
type Request struct {
	text       string
	facilityID string
	patientID  string
	queryType  Type
	maxResults int
}

// NewRequest validates and creates a query request.
// An empty queryType defaults to general; maxResults <= 0 means no cap on citations.
func NewRequest(text, facilityID, patientID string, queryType Type, maxResults int) (Request, error) {
	text = Normalize(text)
	if text == "" {
		return Request{}, fmt.Errorf("%w: query text is required", domain.ErrInvalidQuery)
	}
	if len(text) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d bytes)", domain.ErrInvalidQuery, MaxQueryLength)
	}
	if facilityID == "" {
		return Request{}, fmt.Errorf("%w: facility_id is required", domain.ErrInvalidQuery)
	}
	if queryType == "" {
		queryType = TypeGeneral
	}
	if !validTypes[queryType] {
		return Request{}, fmt.Errorf("%w: unknown query type %q", domain.ErrInvalidQuery, queryType)
	}
	if maxResults < 0 {
		maxResults = 0
	}
	return Request{
		text: text, facilityID: facilityID, patientID: patientID,
		queryType: queryType, maxResults: maxResults,
	}, nil
}

// Text returns the normalized query text.
func (r Request) Text() string { return r.text }

// FacilityID returns the tenant facility.
func (r Request) FacilityID() string { return r.facilityID }

// PatientID returns the optional patient code.
func (r Request) PatientID() string { return r.patientID }

// Type returns the clinical query type.
func (r Request) Type() Type { return r.queryType }

// MaxResults returns the citation cap (0 = unlimited).
func (r Request) MaxResults() int { return r.maxResults }

// Normalize trims and collapses whitespace. Case and punctuation are preserved.
func Normalize(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Fingerprint is the cache key of a query: scope chain, normalized text and embedding.
type Fingerprint struct {
	key   string
	chain scope.Chain
}

// NewFingerprint hashes the chain keys, the query type, the normalized text
// and the exact embedding bits. The type shapes the LLM prompt, so it is part of the key.
func NewFingerprint(chain scope.Chain, qtype Type, text string, embedding []float32) Fingerprint {
	h := sha256.New()
	for _, k := range chain.Keys() {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})
	h.Write([]byte(qtype))
	h.Write([]byte{1})
	h.Write([]byte(Normalize(text)))
	h.Write([]byte{1})
	buf := make([]byte, 4)
	for _, f := range embedding {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		h.Write(buf)
	}
	return Fingerprint{key: hex.EncodeToString(h.Sum(nil)), chain: chain}
}

// Key returns the hex digest.
func (f Fingerprint) Key() string { return f.key }

// Chain returns the scope chain the fingerprint was computed for.
func (f Fingerprint) Chain() scope.Chain { return f.chain }
