package affiliates

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

type PolicyErrorKind string

const (
	PolicyFileName       PolicyErrorKind = "file_name"
	PolicyRegimeMismatch PolicyErrorKind = "regime_mismatch"
	PolicyPeriod         PolicyErrorKind = "period"
)

// PolicyError rejects a file before any parsing happens.
type PolicyError struct {
	Kind    PolicyErrorKind
	Message string
}

func (e *PolicyError) Error() string {
	return e.Message
}

var reFileBase = regexp.MustCompile(`^(MS(?:CM)?|MC(?:CM)?)(\d{6})$`)

// FileName is a parsed bulk file name such as MSCM202509.csv.
type FileName struct {
	Name   string
	Prefix string
	Period string
	Regime RegimeContext
}

// ParseFileName checks the name against the MS|MSCM|MC|MCCM + yyyymm
// contract without looking at the clock.
func ParseFileName(name string) (FileName, error) {
	base := filepath.Base(strings.TrimSpace(name))
	ext := filepath.Ext(base)
	if !strings.EqualFold(ext, ".csv") {
		return FileName{}, &PolicyError{Kind: PolicyFileName, Message: fmt.Sprintf("file %s must have a .csv extension", base)}
	}

	m := reFileBase.FindStringSubmatch(strings.TrimSuffix(base, ext))
	if m == nil {
		return FileName{}, &PolicyError{
			Kind:    PolicyFileName,
			Message: fmt.Sprintf("file name %s does not match MS|MSCM|MC|MCCM followed by yyyymm", base),
		}
	}

	regime, _ := RegimeForPrefix(m[1])
	return FileName{Name: base, Prefix: m[1], Period: m[2], Regime: regime}, nil
}

// CheckFileName applies the full pre-ingestion policy: name contract, prefix
// agreeing with the selected regime option, and period equal to the month
// before now.
func CheckFileName(name, regimeOptionName string, now time.Time) (FileName, error) {
	fn, err := ParseFileName(name)
	if err != nil {
		return FileName{}, err
	}

	selected, ok := RegimeForOptionName(regimeOptionName)
	if !ok {
		return FileName{}, &PolicyError{Kind: PolicyRegimeMismatch, Message: fmt.Sprintf("unknown regime %q", regimeOptionName)}
	}
	if selected.FilePrefix != fn.Regime.FilePrefix {
		return FileName{}, &PolicyError{
			Kind:    PolicyRegimeMismatch,
			Message: fmt.Sprintf("file %s does not belong to regime %s (expected prefix %s)", fn.Name, regimeOptionName, selected.FilePrefix),
		}
	}

	if want := PreviousPeriod(now); fn.Period != want {
		return FileName{}, &PolicyError{
			Kind:    PolicyPeriod,
			Message: fmt.Sprintf("file %s has period %s, only %s is accepted", fn.Name, fn.Period, want),
		}
	}

	return fn, nil
}

// PreviousPeriod returns the yyyymm of the calendar month before now.
func PreviousPeriod(now time.Time) string {
	year, month := now.Year(), int(now.Month())-1
	if month == 0 {
		month = 12
		year--
	}
	return fmt.Sprintf("%04d%02d", year, month)
}
