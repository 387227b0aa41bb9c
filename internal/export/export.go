// Package export renders session results as downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ultrathink/discovery-web/internal/domain"
)

var (
	// ErrUnknownKind is returned for an export kind that does not exist.
	ErrUnknownKind = errors.New("unknown export kind")
	// ErrUnsupportedFormat is returned when a kind cannot be rendered in a format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Export kinds.
const (
	KindCandidates = "candidates"
	KindVariants   = "variants"
	KindProtein    = "protein"
	KindSMILES     = "smiles"
)

// Export formats.
const (
	FormatCSV    = "csv"
	FormatText   = "txt"
	FormatPDB    = "pdb"
	FormatSMILES = "smi"
)

// Document is a rendered export.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Source provides the data an export is rendered from.
type Source interface {
	Candidates() ([]domain.Candidate, string, error)
	Variants() (domain.EvolutionResult, error)
	ProteinStructure() (domain.ProteinStructure, error)
}

// DefaultFormat returns the format used when the caller names none.
func DefaultFormat(kind string) string {
	switch kind {
	case KindProtein:
		return FormatPDB
	case KindSMILES:
		return FormatSMILES
	default:
		return FormatCSV
	}
}

// Render builds the export of kind in format from src.
func Render(src Source, kind, format string, now time.Time) (*Document, error) {
	if format == "" {
		format = DefaultFormat(kind)
	}
	stamp := now.UTC().Format("20060102-150405")

	switch kind {
	case KindCandidates:
		cands, target, err := src.Candidates()
		if err != nil {
			return nil, err
		}
		name := Filename("candidates", target, stamp)
		switch format {
		case FormatCSV:
			body, err := CandidatesCSV(cands)
			if err != nil {
				return nil, err
			}
			return &Document{Filename: name + ".csv", ContentType: "text/csv", Body: body}, nil
		case FormatText:
			return &Document{Filename: name + ".txt", ContentType: "text/plain", Body: CandidatesReport(target, cands, now)}, nil
		case FormatSMILES:
			return smilesDocument(name, candidateSMILES(cands)), nil
		}

	case KindVariants:
		res, err := src.Variants()
		if err != nil {
			return nil, err
		}
		name := Filename("generation"+strconv.Itoa(res.Generation), "variants", stamp)
		switch format {
		case FormatCSV:
			body, err := VariantsCSV(res.TopCandidates)
			if err != nil {
				return nil, err
			}
			return &Document{Filename: name + ".csv", ContentType: "text/csv", Body: body}, nil
		case FormatSMILES:
			return smilesDocument(name, variantSMILES(res.TopCandidates)), nil
		}

	case KindProtein:
		p, err := src.ProteinStructure()
		if err != nil {
			return nil, err
		}
		if format == FormatPDB {
			label := p.ProteinName
			if label == "" {
				label = "protein"
			}
			return &Document{
				Filename:    Filename(label, "", stamp) + ".pdb",
				ContentType: "chemical/x-pdb",
				Body:        []byte(p.PDB),
			}, nil
		}

	case KindSMILES:
		cands, target, err := src.Candidates()
		if err != nil {
			return nil, err
		}
		if format == FormatSMILES || format == FormatText {
			return smilesDocument(Filename("smiles", target, stamp), candidateSMILES(cands)), nil
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	return nil, fmt.Errorf("%w: %s as %s", ErrUnsupportedFormat, kind, format)
}

var candidateHeader = []string{
	"rank", "smiles", "qed", "admet_score", "bioavailability_score", "synthetic_accessibility",
	"drug_likeness", "lipinski_violations", "lipinski_pass", "toxicity_flag", "bbb_penetration",
	"gi_absorption", "aromatic_rings", "rotatable_bonds", "heavy_atoms",
}

// CandidatesCSV renders candidates in rank order as given.
func CandidatesCSV(cands []domain.Candidate) ([]byte, error) {
	rows := make([][]string, 0, len(cands)+1)
	rows = append(rows, candidateHeader)
	for _, c := range cands {
		rows = append(rows, []string{
			strconv.Itoa(c.Rank),
			c.SMILES,
			FormatScore(c.QED),
			FormatScore(c.ADMETScore),
			formatFloat(c.BioavailabilityScore),
			formatFloat(c.SyntheticAccessibility),
			formatFloat(c.DrugLikeness),
			strconv.Itoa(c.LipinskiViolations),
			strconv.FormatBool(c.LipinskiPass),
			FormatFlag(c.ToxicityFlag),
			FormatFlag(c.BBBPenetration),
			c.GIAbsorption,
			strconv.Itoa(c.AromaticRings),
			strconv.Itoa(c.RotatableBonds),
			strconv.Itoa(c.HeavyAtoms),
		})
	}
	return writeCSV(rows)
}

var variantHeader = []string{
	"rank", "smiles", "admet_score", "novelty_score", "mw", "logp", "tpsa", "bbb", "toxicity", "mutations",
}

// VariantsCSV renders one generation of variants.
func VariantsCSV(variants []domain.Variant) ([]byte, error) {
	rows := make([][]string, 0, len(variants)+1)
	rows = append(rows, variantHeader)
	for _, v := range variants {
		rows = append(rows, []string{
			strconv.Itoa(v.Rank),
			v.SMILES,
			formatFloat(v.ADMETScore),
			formatFloat(v.NoveltyScore),
			formatFloat(v.Properties.MW),
			formatFloat(v.Properties.LogP),
			formatFloat(v.Properties.TPSA),
			strconv.FormatBool(v.Properties.BBB),
			strconv.FormatBool(v.Properties.Toxicity),
			strings.Join(v.Mutations, "; "),
		})
	}
	return writeCSV(rows)
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// CandidatesReport renders a plain text summary of a discovery run.
func CandidatesReport(target string, cands []domain.Candidate, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Drug discovery results\n")
	fmt.Fprintf(&b, "Target: %s\n", orPlaceholder(target, "Unknown target"))
	fmt.Fprintf(&b, "Exported: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Candidates: %d\n\n", len(cands))

	for _, c := range cands {
		fmt.Fprintf(&b, "#%d %s\n", c.Rank, c.SMILES)
		fmt.Fprintf(&b, "  QED: %s  ADMET: %s  SA: %s\n",
			FormatScore(c.QED), FormatScore(c.ADMETScore), formatFloat(c.SyntheticAccessibility))
		fmt.Fprintf(&b, "  Lipinski: %s (%d violations)  Toxicity: %s  BBB: %s  GI absorption: %s\n\n",
			passFail(c.LipinskiPass), c.LipinskiViolations, FormatFlag(c.ToxicityFlag),
			FormatFlag(c.BBBPenetration), orPlaceholder(c.GIAbsorption, "Unknown"))
	}
	return []byte(b.String())
}

func smilesDocument(name string, smiles []string) *Document {
	body := strings.Join(smiles, "\n")
	if body != "" {
		body += "\n"
	}
	return &Document{Filename: name + ".smi", ContentType: "chemical/x-daylight-smiles", Body: []byte(body)}
}

func candidateSMILES(cands []domain.Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.SMILES)
	}
	return out
}

func variantSMILES(vs []domain.Variant) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.SMILES)
	}
	return out
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Filename joins the non-empty parts with underscores after replacing
// anything but letters, digits, '-' and '_'.
func Filename(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(unsafeFilenameChars.ReplaceAllString(p, "_"), "_")
		if p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return "export"
	}
	return strings.Join(clean, "_")
}

// FormatScore renders an optional score with three decimals, or "N/A".
func FormatScore(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}

// FormatFlag renders an optional flag as "yes", "no" or "N/A".
func FormatFlag(v *bool) string {
	switch {
	case v == nil:
		return "N/A"
	case *v:
		return "yes"
	default:
		return "no"
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func passFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
