package affiliates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"siges/internal/util"
)

var (
	reDateShape = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)
	reDecimal   = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// ToISODate converts dd/mm/yyyy or dd-mm-yyyy into yyyy-mm-dd. Two digit
// years are read as 20yy. Day and month are range checked only; 31/02 passes.
func ToISODate(input string) (string, bool) {
	m := reDateShape.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "", false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	yearText := m[3]
	if len(yearText) == 2 {
		yearText = "20" + yearText
	}
	year, _ := strconv.Atoi(yearText)

	if day < 1 || day > 31 || month < 1 || month > 12 || year < 1900 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// ParseInteger accepts plain unsigned digit strings only.
func ParseInteger(input string) (int64, bool) {
	s := strings.TrimSpace(input)
	if !util.IsDigits(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// normalizeDecimalText turns a comma decimal separator into a dot.
func normalizeDecimalText(input string) string {
	return strings.ReplaceAll(strings.TrimSpace(input), ",", ".")
}

// ParseDecimal accepts 123, 123.45 and 123,45.
func ParseDecimal(input string) (decimal.Decimal, bool) {
	s := normalizeDecimalText(input)
	if !reDecimal.MatchString(s) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// BuildGroupSubgroup concatenates group and subgroup, zero padding a single
// digit subgroup. A subgroup without group is dropped.
func BuildGroupSubgroup(group, subgroup string) (string, bool) {
	group = strings.TrimSpace(group)
	subgroup = strings.TrimSpace(subgroup)
	if group == "" {
		return "", false
	}
	if len(subgroup) == 1 && util.IsDigits(subgroup) {
		subgroup = "0" + subgroup
	}
	return group + subgroup, true
}

// ParseSisbenLevel maps the "N" marker to level 4.
func ParseSisbenLevel(input string) (int, bool) {
	s := strings.TrimSpace(input)
	if s == "N" {
		return 4, true
	}
	n, ok := ParseInteger(s)
	if !ok {
		return 0, false
	}
	return int(n), true
}

// BuildDepartmentMunicipality returns the five digit DIVIPOLA code. A five
// digit municipality is taken as already composite.
func BuildDepartmentMunicipality(department, municipality string) (string, bool) {
	department = strings.TrimSpace(department)
	municipality = strings.TrimSpace(municipality)

	if len(municipality) == 5 && util.IsDigits(municipality) {
		return municipality, true
	}
	if !util.IsDigits(department) || !util.IsDigits(municipality) {
		return "", false
	}
	if len(department) > 2 || len(municipality) > 3 {
		return "", false
	}
	return util.LeftPad(department, 2) + util.LeftPad(municipality, 3), true
}
